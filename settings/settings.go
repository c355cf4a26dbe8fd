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
Package settings persists breakpoints across debugging sessions: a
console user who quits and relaunches the host gets their breakpoints
back without re-entering them one by one.
*/
package settings

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"devt.de/krotik/scriptdbg/engine"
)

/*
Store loads and saves the breakpoints known to a BreakpointStore. The
default implementation is YAMLFile; a host embedding this debugger is
free to supply its own (e.g. one backed by its own settings database).
*/
type Store interface {
	Load(store *engine.BreakpointStore)
	Save(store *engine.BreakpointStore)
}

/*
YAMLFile is a Store backed by a single YAML file on disk, in the same
resolved/unresolved breakpoint split the original settings file used.
*/
type YAMLFile struct {
	Path string
}

/*
NewYAMLFile creates a YAMLFile-backed Store at path.
*/
func NewYAMLFile(path string) *YAMLFile {
	return &YAMLFile{Path: path}
}

/*
DefaultPath returns the platform user-config path breakpoints are
persisted to when a host doesn't specify one of its own.
*/
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "scriptdbg", "breakpoints.yaml")
}

/*
breakpointDoc is the on-disk shape of a single breakpoint. It mirrors
engine.Breakpoint but is a separate type so the wire/storage format
doesn't silently change whenever the engine type does.
*/
type breakpointDoc struct {
	Index     int    `yaml:"index"`
	File      string `yaml:"file"`
	Line      int    `yaml:"line"`
	Enabled   bool   `yaml:"enabled"`
	Condition string `yaml:"condition,omitempty"`
}

/*
document is the full on-disk document, split into resolved and
unresolved sections the same way the original settings file is.
*/
type document struct {
	ResolvedBreakpoints   []breakpointDoc `yaml:"resolved_breakpoints"`
	UnresolvedBreakpoints []breakpointDoc `yaml:"unresolved_breakpoints"`
}

func toDocument(bps []*engine.Breakpoint) document {
	var doc document
	for _, bp := range bps {
		b := breakpointDoc{
			Index:     bp.Index,
			File:      bp.File,
			Line:      bp.Line,
			Enabled:   bp.Enabled,
			Condition: bp.Condition,
		}
		if bp.Resolved {
			doc.ResolvedBreakpoints = append(doc.ResolvedBreakpoints, b)
		} else {
			doc.UnresolvedBreakpoints = append(doc.UnresolvedBreakpoints, b)
		}
	}
	return doc
}

/*
Save writes every breakpoint known to store to disk as YAML. Like the
original settings file, a write failure is not reported to the caller -
losing a settings save is not worth aborting a debugging session over.
*/
func (f *YAMLFile) Save(store *engine.BreakpointStore) {
	doc := toDocument(store.List())

	data, err := yaml.Marshal(doc)
	if err != nil {
		return
	}

	os.MkdirAll(filepath.Dir(f.Path), 0755)
	ioutil.WriteFile(f.Path, data, 0644)
}

/*
Load restores every breakpoint recorded on disk into store through
BreakpointStore.Restore, keeping each saved index. A resolved breakpoint
goes back in as resolved, under exactly the path it was saved under; an
unresolved one goes back on the unresolved list, where a later
ResolveAll matches it by substring once its source loads. A missing or unparsable file is silently treated as "no
saved breakpoints", matching the original's swallowed-I/O-error
behaviour - a corrupt or absent settings file must never prevent a
debugging session from starting.
*/
func (f *YAMLFile) Load(store *engine.BreakpointStore) {
	data, err := ioutil.ReadFile(f.Path)
	if err != nil {
		return
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return
	}

	for _, b := range doc.ResolvedBreakpoints {
		store.Restore(&engine.Breakpoint{
			Index: b.Index, File: b.File, Line: b.Line,
			Enabled: b.Enabled, Condition: b.Condition, Resolved: true,
		})
	}
	for _, b := range doc.UnresolvedBreakpoints {
		store.Restore(&engine.Breakpoint{
			Index: b.Index, File: b.File, Line: b.Line,
			Enabled: b.Enabled, Condition: b.Condition, Resolved: false,
		})
	}
}

/*
Exists reports whether the settings file is present, so a caller can
decide whether to attempt Load at all.
*/
func (f *YAMLFile) Exists() bool {
	_, err := os.Stat(f.Path)
	return err == nil
}
