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

import (
	"fmt"
	"sync"

	"devt.de/krotik/scriptdbg/runtime"
)

/*
fakeRuntime is a minimal, deterministic stand-in for a scripting
language, used only to drive the engine's tests. It is not a language:
it just replays a fixed script of events and answers value-bridge calls
against an in-memory map.
*/
type fakeRuntime struct {
	mu       sync.Mutex
	callback func(runtime.Event)

	frames []runtime.StackFrame
	values map[uint64]fakeValue

	sources map[string][]string
}

type fakeValue struct {
	display string
	class   string
	ivars   int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		values:  make(map[uint64]fakeValue),
		sources: make(map[string][]string),
	}
}

// runtime.Tracer

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

// runtime.StackWalker

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
		out = append(out, runtime.Variable{Name: name, Value: v.display, Kind: v.class, ObjectID: id})
	}
	return out, nil
}

// runtime.ValueBridge

func (f *fakeRuntime) ToDisplayString(objectID uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[objectID]
	if !ok {
		return "", fmt.Errorf("unknown object %d", objectID)
	}
	return v.display, nil
}

func (f *fakeRuntime) ClassName(objectID uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[objectID].class, nil
}

func (f *fakeRuntime) IVarCount(objectID uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[objectID].ivars, nil
}

func (f *fakeRuntime) InstanceVariables(objectID uint64) ([]runtime.Variable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.values[objectID]
	if !ok {
		return nil, fmt.Errorf("unknown object %d", objectID)
	}
	out := make([]runtime.Variable, 0, v.ivars)
	for i := 0; i < v.ivars; i++ {
		out = append(out, runtime.Variable{Name: fmt.Sprintf("@ivar%d", i), Value: "nil", Kind: "NilClass"})
	}
	return out, nil
}

func (f *fakeRuntime) ProtectedCall(fn func() (interface{}, error)) (res interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
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

// runtime.SourceProvider

func (f *fakeRuntime) Drain() map[string][]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.sources) == 0 {
		return nil
	}
	out := f.sources
	f.sources = make(map[string][]string)
	return out
}

// Test helpers

func (f *fakeRuntime) setFrames(frames []runtime.StackFrame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = frames
}

func (f *fakeRuntime) setValue(id uint64, display, class string, ivars int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[id] = fakeValue{display, class, ivars}
}

func (f *fakeRuntime) loadSource(path string, lines []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[path] = lines
}
