/*
 * scriptdbg
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package settings

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"devt.de/krotik/scriptdbg/engine"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store := engine.NewBreakpointStore()
	store.Add("sketch.rb", 42, "", true)
	store.Add("sketch.rb", 7, "x > 0", true)
	unresolved := store.Add("helper.rb", 3, "", false)
	unresolved.Enabled = false

	f := NewYAMLFile(filepath.Join(t.TempDir(), "breakpoints.yaml"))
	f.Save(store)

	if !f.Exists() {
		t.Fatal("expected the settings file to exist after Save")
	}

	restored := engine.NewBreakpointStore()
	f.Load(restored)

	bps := restored.List()
	if len(bps) != 3 {
		t.Fatalf("expected 3 restored breakpoints, got %d", len(bps))
	}

	var sawCondition, sawDisabled bool
	for _, bp := range bps {
		if bp.File == "sketch.rb" && bp.Line == 7 && bp.Condition == "x > 0" {
			sawCondition = true
		}
		if bp.File == "helper.rb" && !bp.Enabled {
			sawDisabled = true
		}
	}
	if !sawCondition {
		t.Fatal("expected the conditional breakpoint's condition to survive a round trip")
	}
	if !sawDisabled {
		t.Fatal("expected the disabled unresolved breakpoint to stay disabled after a round trip")
	}
}

func TestLoadMissingFileIsNoop(t *testing.T) {
	store := engine.NewBreakpointStore()
	f := NewYAMLFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	f.Load(store)
	if len(store.List()) != 0 {
		t.Fatal("expected no breakpoints after loading a missing file")
	}
}

func TestLoadCorruptFileIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.yaml")
	if err := ioutil.WriteFile(path, []byte("not: [valid yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	store := engine.NewBreakpointStore()
	f := NewYAMLFile(path)
	f.Load(store)
	if len(store.List()) != 0 {
		t.Fatal("expected no breakpoints after loading a corrupt file")
	}
}

func TestYAMLFileImplementsStore(t *testing.T) {
	var _ Store = (*YAMLFile)(nil)
}
