/*
 * scriptdbg
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package rdip

import (
	"fmt"
	"sync"

	"devt.de/krotik/scriptdbg/runtime"
)

/*
fakeRuntime is a minimal, deterministic stand-in for a scripting language
used only to drive this package's tests against a real *engine.Debugger.
*/
type fakeRuntime struct {
	mu       sync.Mutex
	callback func(runtime.Event)
	frames   []runtime.StackFrame
	values   map[uint64]runtime.Variable
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{values: make(map[uint64]runtime.Variable)}
}

func (f *fakeRuntime) Install(cb func(runtime.Event)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callback = cb
	return nil
}

func (f *fakeRuntime) Remove() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callback = nil
}

func (f *fakeRuntime) fire(ev runtime.Event) {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

func (f *fakeRuntime) Frames() []runtime.StackFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]runtime.StackFrame, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeRuntime) Variables(binding interface{}, kind runtime.VarKind) ([]runtime.Variable, error) {
	vars, _ := binding.(map[string]uint64)
	out := make([]runtime.Variable, 0, len(vars))
	for name, id := range vars {
		v := f.values[id]
		v.Name = name
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeRuntime) ToDisplayString(objectID uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[objectID].Value, nil
}

func (f *fakeRuntime) ClassName(objectID uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[objectID].Kind, nil
}

func (f *fakeRuntime) IVarCount(objectID uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values[objectID].HasChildren {
		return 1, nil
	}
	return 0, nil
}

func (f *fakeRuntime) InstanceVariables(objectID uint64) ([]runtime.Variable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.values[objectID].HasChildren {
		return nil, nil
	}
	return []runtime.Variable{{Name: "@inner", Value: "1", Kind: "Integer"}}, nil
}

func (f *fakeRuntime) ProtectedCall(fn func() (interface{}, error)) (interface{}, error) {
	return fn()
}

func (f *fakeRuntime) EvalInBinding(binding interface{}, expression string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vars, _ := binding.(map[string]uint64)
	if id, ok := vars[expression]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("undefined: %s", expression)
}

func (f *fakeRuntime) Drain() map[string][]string {
	return nil
}

func (f *fakeRuntime) setFrames(frames []runtime.StackFrame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = frames
}

func (f *fakeRuntime) setValue(id uint64, v runtime.Variable) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[id] = v
}
