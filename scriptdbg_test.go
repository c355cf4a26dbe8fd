/*
 * scriptdbg
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package scriptdbg

import (
	"sync"
	"testing"

	"devt.de/krotik/scriptdbg/runtime"
)

type fakeHostRuntime struct {
	mu       sync.Mutex
	callback func(runtime.Event)
}

func (f *fakeHostRuntime) Install(cb func(runtime.Event)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callback = cb
	return nil
}
func (f *fakeHostRuntime) Remove() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callback = nil
}
func (f *fakeHostRuntime) Frames() []runtime.StackFrame { return nil }
func (f *fakeHostRuntime) Variables(binding interface{}, kind runtime.VarKind) ([]runtime.Variable, error) {
	return nil, nil
}
func (f *fakeHostRuntime) ToDisplayString(objectID uint64) (string, error) { return "", nil }
func (f *fakeHostRuntime) ClassName(objectID uint64) (string, error)      { return "", nil }
func (f *fakeHostRuntime) IVarCount(objectID uint64) (int, error)         { return 0, nil }
func (f *fakeHostRuntime) InstanceVariables(objectID uint64) ([]runtime.Variable, error) {
	return nil, nil
}
func (f *fakeHostRuntime) ProtectedCall(fn func() (interface{}, error)) (interface{}, error) {
	return fn()
}
func (f *fakeHostRuntime) EvalInBinding(binding interface{}, expression string) (uint64, error) {
	return 0, nil
}
func (f *fakeHostRuntime) Drain() map[string][]string { return nil }

func TestInitDebuggerRequiresBind(t *testing.T) {
	bindMu.Lock()
	boundHost = nil
	bindMu.Unlock()

	if _, err := InitDebugger("rdip"); err == nil {
		t.Fatal("expected an error when InitDebugger is called before Bind")
	}
}

func TestInitDebuggerRejectsUnknownVariant(t *testing.T) {
	fr := &fakeHostRuntime{}
	Bind(&Host{Tracer: fr, Walker: fr, Bridge: fr})

	if _, err := InitDebugger("telnet"); err == nil {
		t.Fatal("expected an error for an unknown client variant")
	}
}

func TestInitDebuggerRejectsBadPortOption(t *testing.T) {
	fr := &fakeHostRuntime{}
	Bind(&Host{Tracer: fr, Walker: fr, Bridge: fr})

	if _, err := InitDebugger("rdip port=notanumber"); err == nil {
		t.Fatal("expected an error for a non-numeric port option")
	}
}

func TestInitDebuggerRDIPStartsAndShutsDownCleanly(t *testing.T) {
	fr := &fakeHostRuntime{}
	Bind(&Host{Tracer: fr, Walker: fr, Bridge: fr})

	shutdown, err := InitDebugger("rdip port=0")
	if err != nil {
		t.Fatalf("unexpected error starting the rdip session: %v", err)
	}
	shutdown()
}
