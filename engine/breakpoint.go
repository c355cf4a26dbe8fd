/*
 * scriptdbg
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

/*
Package engine implements the debug control engine: the breakpoint store,
source table, trace state machine, suspension handshake and frame facade
that sit behind a protocol adapter such as rdip.
*/
package engine

import (
	"strings"
	"sync"
)

/*
Breakpoint is a single breakpoint, resolved or not. File is the path as
it was requested while the breakpoint is unresolved; substring
resolution replaces it with the full path of the loaded source it
matched.
*/
type Breakpoint struct {
	Index     int    // stable, monotonically assigned identity
	File      string // requested path (may be a suffix/substring) until resolved, then the matched path
	Line      int
	Enabled   bool
	Condition string // empty means unconditional
	Resolved  bool   // true once File matches a loaded source exactly
}

/*
BreakpointStore holds every breakpoint the user has set, resolved or not.
Resolved breakpoints are indexed by line then by file for O(1) lookup
from the trace state machine's hot path; unresolved ones are kept in a
flat list until a matching source is seen.
*/
type BreakpointStore struct {
	mu           sync.Mutex
	resolved     map[int]map[string]*Breakpoint
	unresolved   []*Breakpoint
	nextIndex    int
	knownSources map[string]int // path -> line count, accumulated from every ResolveAll call
}

/*
NewBreakpointStore creates an empty breakpoint store.
*/
func NewBreakpointStore() *BreakpointStore {
	return &BreakpointStore{
		resolved:  make(map[int]map[string]*Breakpoint),
		nextIndex: 1,
	}
}

/*
Add inserts a breakpoint for file:line with the given condition (empty for
unconditional) and returns it. Adding the same file:line twice returns the
existing breakpoint instead of creating a duplicate, reusing its index and
updating its condition.

assumeResolved skips substring matching against known sources and records
File as already resolved, exactly as given - this is what an IDE client
connected over the wire protocol gets, since it always reports full,
canonical paths that are expected to match what the runtime loads
byte-for-byte. Callers whose paths may be partial (the console UI) pass
false to fall back to the substring-matching behaviour ResolveAll also
uses.
*/
func (s *BreakpointStore) Add(file string, line int, condition string, assumeResolved bool) *Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bp := s.lookupLocked(file, line); bp != nil {
		bp.Condition = condition
		return bp
	}

	bp := &Breakpoint{
		Index:     s.nextIndex,
		File:      file,
		Line:      line,
		Enabled:   true,
		Condition: condition,
	}
	s.nextIndex++

	switch {
	case assumeResolved:
		bp.Resolved = true
		s.insertResolvedLocked(bp)

	default:
		if match := findCaseInsensitiveMatch(bp.File, bp.Line, s.knownSources); match != "" {
			bp.File = match
			bp.Resolved = true
			s.insertResolvedLocked(bp)
		} else {
			s.unresolved = append(s.unresolved, bp)
		}
	}

	return bp
}

/*
Restore re-inserts a breakpoint exactly as given - preserving its Index
rather than assigning a fresh one - and bumps the store's index counter
past it if needed. This is what settings persistence uses to reload a
saved breakpoint list: the original debugger restores indices from disk
and continues numbering from max(index)+1, so a freshly added breakpoint
in a resumed session never collides with or reuses a saved one's index.
*/
func (s *BreakpointStore) Restore(bp *Breakpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := &Breakpoint{
		Index:     bp.Index,
		File:      bp.File,
		Line:      bp.Line,
		Enabled:   bp.Enabled,
		Condition: bp.Condition,
		Resolved:  bp.Resolved,
	}

	if stored.Resolved {
		s.insertResolvedLocked(stored)
	} else {
		s.unresolved = append(s.unresolved, stored)
	}

	if stored.Index >= s.nextIndex {
		s.nextIndex = stored.Index + 1
	}
}

/*
lookupLocked finds an existing breakpoint (resolved or not) for file:line.
Must be called with mu held.
*/
func (s *BreakpointStore) lookupLocked(file string, line int) *Breakpoint {
	if byFile, ok := s.resolved[line]; ok {
		if bp, ok := byFile[file]; ok {
			return bp
		}
	}
	for _, bp := range s.unresolved {
		if bp.Line == line && bp.File == file {
			return bp
		}
	}
	return nil
}

/*
allLocked returns every breakpoint, resolved or not, in no particular
order. Must be called with mu held.
*/
func (s *BreakpointStore) allLocked() []*Breakpoint {
	all := make([]*Breakpoint, 0, len(s.unresolved))
	for _, byFile := range s.resolved {
		for _, bp := range byFile {
			all = append(all, bp)
		}
	}
	return append(all, s.unresolved...)
}

/*
ByIndex returns the breakpoint with the given stable index, or nil.
*/
func (s *BreakpointStore) ByIndex(index int) *Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bp := range s.allLocked() {
		if bp.Index == index {
			return bp
		}
	}
	return nil
}

/*
RemoveByIndex removes the breakpoint with the given stable index. Returns
false if no breakpoint has that index.
*/
func (s *BreakpointStore) RemoveByIndex(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ln, byFile := range s.resolved {
		for f, bp := range byFile {
			if bp.Index == index {
				delete(byFile, f)
				if len(byFile) == 0 {
					delete(s.resolved, ln)
				}
				return true
			}
		}
	}

	for i, bp := range s.unresolved {
		if bp.Index == index {
			s.unresolved = append(s.unresolved[:i], s.unresolved[i+1:]...)
			return true
		}
	}
	return false
}

/*
RemoveAll deletes every breakpoint, resolved or not, keeping the index
counter and known-sources cache intact.
*/
func (s *BreakpointStore) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resolved = make(map[int]map[string]*Breakpoint)
	s.unresolved = nil
}

/*
SetEnabledByIndex enables or disables the breakpoint with the given
stable index. Returns false if no breakpoint has that index.
*/
func (s *BreakpointStore) SetEnabledByIndex(index int, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bp := range s.allLocked() {
		if bp.Index == index {
			bp.Enabled = enabled
			return true
		}
	}
	return false
}

/*
SetConditionByIndex updates the condition of the breakpoint with the
given stable index. Returns false if no breakpoint has that index.
*/
func (s *BreakpointStore) SetConditionByIndex(index int, condition string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bp := range s.allLocked() {
		if bp.Index == index {
			bp.Condition = condition
			return true
		}
	}
	return false
}

/*
Clear resets the store to empty, including the index counter and the
known-sources cache - used when a client disconnects, so the next
connection starts from a clean slate.
*/
func (s *BreakpointStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resolved = make(map[int]map[string]*Breakpoint)
	s.unresolved = nil
	s.nextIndex = 1
	s.knownSources = nil
}

/*
Remove deletes the breakpoint at file:line. If line is negative every
breakpoint in file is removed.
*/
func (s *BreakpointStore) Remove(file string, line int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := func(bp *Breakpoint) bool {
		return bp.File == file && (line < 0 || bp.Line == line)
	}

	for ln, byFile := range s.resolved {
		for f, bp := range byFile {
			if matches(bp) {
				delete(byFile, f)
			}
		}
		if len(byFile) == 0 {
			delete(s.resolved, ln)
		}
	}

	kept := s.unresolved[:0]
	for _, bp := range s.unresolved {
		if !matches(bp) {
			kept = append(kept, bp)
		}
	}
	s.unresolved = kept
}

/*
SetEnabled enables or disables the breakpoint at file:line, if it exists.
A disabled breakpoint stays resolved/unresolved and keeps its index, but
is ignored by the trace state machine.
*/
func (s *BreakpointStore) SetEnabled(file string, line int, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bp := s.lookupLocked(file, line); bp != nil {
		bp.Enabled = enabled
		return true
	}
	return false
}

/*
SetCondition updates the condition of the breakpoint at file:line, if it
exists.
*/
func (s *BreakpointStore) SetCondition(file string, line int, condition string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bp := s.lookupLocked(file, line); bp != nil {
		bp.Condition = condition
		return true
	}
	return false
}

/*
List returns every breakpoint, resolved or not, ordered by Index.
*/
func (s *BreakpointStore) List() []*Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*Breakpoint, 0, len(s.unresolved))
	for _, byFile := range s.resolved {
		for _, bp := range byFile {
			all = append(all, bp)
		}
	}
	all = append(all, s.unresolved...)

	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j-1].Index > all[j].Index; j-- {
			all[j-1], all[j] = all[j], all[j-1]
		}
	}

	return all
}

/*
Lookup returns the enabled, resolved breakpoint at the exact file and
line, or nil if there is none. This is the hot path called from the
trace state machine on every LINE event, so it never takes the slow
substring-matching path ResolveAll uses.
*/
func (s *BreakpointStore) Lookup(file string, line int) *Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byFile, ok := s.resolved[line]; ok {
		if bp, ok := byFile[file]; ok && bp.Enabled {
			return bp
		}
	}
	return nil
}

/*
ResolveAll attempts to resolve every unresolved breakpoint against the
given set of known source paths and their line counts, using a
case-insensitive substring match (a breakpoint set against "foo.rb"
resolves against a loaded "/app/lib/foo.rb") that also requires the
candidate source to have at least as many lines as the breakpoint's line
number - a path that merely contains the right substring but is too
short to contain the breakpoint's line is not a match. Resolution is
idempotent: calling it again with the same sources never re-resolves an
already-resolved breakpoint or changes its File.
*/
func (s *BreakpointStore) ResolveAll(knownSources map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.knownSources == nil {
		s.knownSources = make(map[string]int, len(knownSources))
	}
	for path, lineCount := range knownSources {
		s.knownSources[path] = lineCount
	}

	var remaining []*Breakpoint
	for _, bp := range s.unresolved {
		if match := findCaseInsensitiveMatch(bp.File, bp.Line, knownSources); match != "" {
			bp.File = match
			bp.Resolved = true
			s.insertResolvedLocked(bp)
		} else {
			remaining = append(remaining, bp)
		}
	}
	s.unresolved = remaining
}

/*
insertResolvedLocked records bp under its (now exact) file/line in the
resolved index. It does not touch the unresolved list - callers are
responsible for that, since they iterate it in different ways (Add
appends-then-checks, ResolveAll filters in place).
*/
func (s *BreakpointStore) insertResolvedLocked(bp *Breakpoint) {
	byFile, ok := s.resolved[bp.Line]
	if !ok {
		byFile = make(map[string]*Breakpoint)
		s.resolved[bp.Line] = byFile
	}
	byFile[bp.File] = bp
}

/*
findCaseInsensitiveMatch returns the first known source whose path
contains needle as a case-insensitive substring and whose line count is
at least line, or "" if none matches - mirroring Server.cpp's
"bp.line <= it->second.size()" guard so a breakpoint never resolves to a
source too short to contain it.
*/
func findCaseInsensitiveMatch(needle string, line int, knownSources map[string]int) string {
	lower := strings.ToLower(needle)
	for src, lineCount := range knownSources {
		if lineCount < line {
			continue
		}
		if strings.Contains(strings.ToLower(src), lower) {
			return src
		}
	}
	return ""
}
