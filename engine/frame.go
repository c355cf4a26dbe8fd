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
	"regexp"
	"sync"

	"devt.de/krotik/scriptdbg/runtime"
	"devt.de/krotik/scriptdbg/util"
)

/*
excludedGlobalVar matches the handful of global variables that have side
effects when merely read ($KCODE, $-K, $=, $IGNORECASE, $FILENAME) - a
global-variable listing must never touch these, so they are filtered out
before a client ever sees them.
*/
var excludedGlobalVar = regexp.MustCompile(`^\$(?:KCODE|-K|=|IGNORECASE|FILENAME)$`)

/*
FrameFacade owns the call-stack snapshot taken when a thread suspends,
the cursor selecting which frame protocol commands operate on, and the
value-bridge calls needed to describe and evaluate things in that frame.
Capture must only be called from the scripting thread while it is
stopped; the rest of the methods may be called from the network thread
while the scripting thread is blocked in SuspensionState.Suspend, which
is why they take their own lock rather than relying on happens-before
through the suspension handshake alone.
*/
type FrameFacade struct {
	mu          sync.Mutex
	frames      []runtime.StackFrame
	activeIndex int

	walker runtime.StackWalker
	bridge runtime.ValueBridge
}

/*
NewFrameFacade creates a frame facade around a host's stack walker and
value bridge.
*/
func NewFrameFacade(walker runtime.StackWalker, bridge runtime.ValueBridge) *FrameFacade {
	return &FrameFacade{walker: walker, bridge: bridge}
}

/*
Capture snapshots the current call stack. Must be called on the
scripting thread, before the condition of a candidate breakpoint is
evaluated, so that frame 0 always reflects the location execution
actually stopped at - not wherever a condition's own evaluation leaves
the runtime.
*/
func (f *FrameFacade) Capture() {
	frames := f.walker.Frames()

	f.mu.Lock()
	f.frames = frames
	f.activeIndex = 0
	f.mu.Unlock()
}

/*
Clear drops the captured snapshot once the thread resumes, so that stale
frame data can't be queried from a running thread.
*/
func (f *FrameFacade) Clear() {
	f.mu.Lock()
	f.frames = nil
	f.activeIndex = 0
	f.mu.Unlock()
}

/*
Frames returns the captured call stack, innermost frame first.
*/
func (f *FrameFacade) Frames() []runtime.StackFrame {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]runtime.StackFrame, len(f.frames))
	copy(out, f.frames)
	return out
}

/*
SetActive moves the cursor to the frame at the given 0-based index,
innermost first. Returns util.ErrInvalidState if the index is out of
range.
*/
func (f *FrameFacade) SetActive(index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if index < 0 || index >= len(f.frames) {
		return util.NewDebugError(util.ErrInvalidState,
			fmt.Sprintf("frame index %d out of range (have %d frames)", index, len(f.frames)), "", 0)
	}
	f.activeIndex = index
	return nil
}

/*
Active returns the currently selected frame and its 0-based index.
*/
func (f *FrameFacade) Active() (runtime.StackFrame, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.activeIndex < 0 || f.activeIndex >= len(f.frames) {
		return runtime.StackFrame{}, 0, util.NewDebugError(util.ErrInvalidState, "no active frame", "", 0)
	}
	return f.frames[f.activeIndex], f.activeIndex, nil
}

/*
Variables lists the variables of the given kind visible from the active
frame. For GlobalVars this drops the handful of global variables that
have side effects when read (see excludedGlobalVar) - a host's
StackWalker is not expected to know about this, so the filter lives here
rather than in the runtime contract.
*/
func (f *FrameFacade) Variables(kind runtime.VarKind) ([]runtime.Variable, error) {
	active, _, err := f.Active()
	if err != nil {
		return nil, err
	}

	res, callErr := protectedCall(f.bridge, func() (interface{}, error) {
		return f.walker.Variables(active.Binding, kind)
	})
	if callErr != nil {
		return nil, callErr
	}

	vars, _ := res.([]runtime.Variable)
	if kind != runtime.GlobalVars {
		return vars, nil
	}

	filtered := vars[:0]
	for _, v := range vars {
		if !excludedGlobalVar.MatchString(v.Name) {
			filtered = append(filtered, v)
		}
	}
	return filtered, nil
}

/*
Eval evaluates expression in the scope of the active frame and returns it
described as a Variable, ready to be sent over the wire. A failed
evaluation is reported as a Variable carrying the error text rather than
as a Go error, matching how the protocol surfaces evaluation faults to
the client without tearing down the connection.
*/
func (f *FrameFacade) Eval(expression string) (runtime.Variable, error) {
	active, _, err := f.Active()
	if err != nil {
		return runtime.Variable{}, err
	}

	res, callErr := protectedCall(f.bridge, func() (interface{}, error) {
		objectID, err := f.bridge.EvalInBinding(active.Binding, expression)
		if err != nil {
			return nil, err
		}
		return f.describe("", objectID)
	})
	if callErr != nil {
		return runtime.Variable{
			Name:  expression,
			Value: callErr.Error(),
			Kind:  "error",
		}, nil
	}

	v, _ := res.(runtime.Variable)
	return v, nil
}

/*
InstanceVariables lists the instance variables of the value identified by
objectID. Unlike Variables/Eval it does not depend on the active frame -
an object handle obtained from any earlier Eval or Variables call remains
valid until the thread resumes.
*/
func (f *FrameFacade) InstanceVariables(objectID uint64) ([]runtime.Variable, error) {
	res, err := protectedCall(f.bridge, func() (interface{}, error) {
		return f.bridge.InstanceVariables(objectID)
	})
	if err != nil {
		return nil, err
	}

	vars, _ := res.([]runtime.Variable)
	return vars, nil
}

/*
describe turns an ObjectID into a full Variable via the value bridge.
Must be called from inside a protectedCall.
*/
func (f *FrameFacade) describe(name string, objectID uint64) (runtime.Variable, error) {
	display, err := f.bridge.ToDisplayString(objectID)
	if err != nil {
		return runtime.Variable{}, err
	}

	class, err := f.bridge.ClassName(objectID)
	if err != nil {
		return runtime.Variable{}, err
	}

	ivarCount, err := f.bridge.IVarCount(objectID)
	if err != nil {
		return runtime.Variable{}, err
	}

	return runtime.Variable{
		Name:        name,
		Value:       display,
		Kind:        class,
		HasChildren: ivarCount > 0,
		ObjectID:    objectID,
	}, nil
}

/*
protectedCall is the Go analogue of rb_protect/ProtectFuncall: it runs fn
and turns any panic the value bridge raises into an error, so a fault in
host code describing a value never escapes to crash the scripting thread
or the network thread evaluating it on its behalf.
*/
func protectedCall(bridge runtime.ValueBridge, fn func() (interface{}, error)) (res interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = util.NewDebugError(util.ErrValueBridgeFailure, fmt.Sprint(r), "", 0)
		}
	}()

	if bridge == nil {
		return fn()
	}
	return bridge.ProtectedCall(fn)
}
