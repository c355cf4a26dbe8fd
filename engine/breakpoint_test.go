/*
 * scriptdbg
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package engine

import "testing"

func TestBreakpointAddDedup(t *testing.T) {
	s := NewBreakpointStore()

	bp1 := s.Add("/app/main.rb", 10, "", false)
	bp2 := s.Add("/app/main.rb", 10, "x > 1", false)

	if bp1.Index != bp2.Index {
		t.Fatalf("expected the same breakpoint to be returned, got indexes %d and %d", bp1.Index, bp2.Index)
	}
	if bp2.Condition != "x > 1" {
		t.Fatalf("expected condition to be updated, got %q", bp2.Condition)
	}
	if len(s.List()) != 1 {
		t.Fatalf("expected exactly one breakpoint, got %d", len(s.List()))
	}
}

func TestBreakpointUniqueIndex(t *testing.T) {
	s := NewBreakpointStore()

	bp1 := s.Add("a.rb", 1, "", false)
	bp2 := s.Add("b.rb", 2, "", false)
	bp3 := s.Add("a.rb", 3, "", false)

	seen := map[int]bool{}
	for _, bp := range []*Breakpoint{bp1, bp2, bp3} {
		if seen[bp.Index] {
			t.Fatalf("index %d reused", bp.Index)
		}
		seen[bp.Index] = true
	}
}

func TestBreakpointResolution(t *testing.T) {
	s := NewBreakpointStore()

	bp := s.Add("main.rb", 5, "", false)
	if bp.Resolved {
		t.Fatal("breakpoint should start unresolved")
	}
	if s.Lookup("/app/lib/main.rb", 5) != nil {
		t.Fatal("unresolved breakpoint must not be visible to Lookup")
	}

	s.ResolveAll(map[string]int{"/app/lib/main.rb": 10, "/app/lib/other.rb": 10})

	if !bp.Resolved || bp.File != "/app/lib/main.rb" {
		t.Fatalf("expected breakpoint to resolve to /app/lib/main.rb, got %+v", bp)
	}
	if got := s.Lookup("/app/lib/main.rb", 5); got == nil || got.Index != bp.Index {
		t.Fatalf("expected resolved breakpoint to be found by Lookup, got %+v", got)
	}

	// Resolution must be idempotent.
	s.ResolveAll(map[string]int{"/app/lib/main.rb": 10})
	if bp.File != "/app/lib/main.rb" {
		t.Fatalf("resolution should be stable, got %q", bp.File)
	}
}

func TestBreakpointResolutionRejectsTooShortSource(t *testing.T) {
	s := NewBreakpointStore()
	s.Add("main.rb", 20, "", false)

	s.ResolveAll(map[string]int{"/app/lib/main.rb": 10})

	if s.Lookup("/app/lib/main.rb", 20) != nil {
		t.Fatal("expected a breakpoint past the end of a too-short source to stay unresolved")
	}

	s.ResolveAll(map[string]int{"/app/lib/main.rb": 25})
	if s.Lookup("/app/lib/main.rb", 20) == nil {
		t.Fatal("expected the breakpoint to resolve once the source is long enough")
	}
}

func TestBreakpointResolvesAtAddTimeFromKnownSources(t *testing.T) {
	s := NewBreakpointStore()
	s.ResolveAll(map[string]int{"/app/lib/main.rb": 10})

	bp := s.Add("main.rb", 7, "", false)
	if !bp.Resolved || bp.File != "/app/lib/main.rb" {
		t.Fatalf("expected immediate resolution against known sources, got %+v", bp)
	}
}

func TestBreakpointEnableDisable(t *testing.T) {
	s := NewBreakpointStore()
	s.Add("a.rb", 1, "", false)
	s.ResolveAll(map[string]int{"a.rb": 10})

	if s.Lookup("a.rb", 1) == nil {
		t.Fatal("expected breakpoint to be enabled by default")
	}

	if !s.SetEnabled("a.rb", 1, false) {
		t.Fatal("expected SetEnabled to find the breakpoint")
	}
	if s.Lookup("a.rb", 1) != nil {
		t.Fatal("Lookup must not return a disabled breakpoint")
	}

	s.SetEnabled("a.rb", 1, true)
	if s.Lookup("a.rb", 1) == nil {
		t.Fatal("expected breakpoint to be re-enabled")
	}
}

func TestBreakpointRemove(t *testing.T) {
	s := NewBreakpointStore()
	s.Add("a.rb", 1, "", false)
	s.Add("a.rb", 2, "", false)
	s.ResolveAll(map[string]int{"a.rb": 10})

	s.Remove("a.rb", 1)
	if s.Lookup("a.rb", 1) != nil {
		t.Fatal("expected breakpoint at line 1 to be removed")
	}
	if s.Lookup("a.rb", 2) == nil {
		t.Fatal("expected breakpoint at line 2 to survive")
	}

	s.Remove("a.rb", -1)
	if s.Lookup("a.rb", 2) != nil {
		t.Fatal("expected Remove with negative line to clear the whole file")
	}
}

func TestBreakpointRestorePreservesIndexAndBumpsCounter(t *testing.T) {
	s := NewBreakpointStore()

	s.Restore(&Breakpoint{Index: 1, File: "a.rb", Line: 1, Enabled: true, Resolved: true})
	s.Restore(&Breakpoint{Index: 5, File: "b.rb", Line: 2, Enabled: false, Resolved: false})

	if s.ByIndex(1) == nil || s.ByIndex(5) == nil {
		t.Fatal("expected both restored breakpoints to be addressable by their saved index")
	}
	if s.ByIndex(5).Enabled {
		t.Fatal("expected the restored disabled breakpoint to stay disabled")
	}

	next := s.Add("c.rb", 3, "", true)
	if next.Index != 6 {
		t.Fatalf("expected the next breakpoint to continue numbering from max(index)+1, got %d", next.Index)
	}
}

func TestBreakpointSetCondition(t *testing.T) {
	s := NewBreakpointStore()
	s.Add("a.rb", 1, "", false)

	if !s.SetCondition("a.rb", 1, "y == 2") {
		t.Fatal("expected SetCondition to find the breakpoint")
	}

	found := false
	for _, bp := range s.List() {
		if bp.File == "a.rb" && bp.Line == 1 {
			found = true
			if bp.Condition != "y == 2" {
				t.Fatalf("expected updated condition, got %q", bp.Condition)
			}
		}
	}
	if !found {
		t.Fatal("expected breakpoint to be present in List")
	}
}
