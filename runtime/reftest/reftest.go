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
Package reftest implements the runtime contract (runtime.Tracer,
runtime.StackWalker, runtime.ValueBridge and runtime.SourceProvider)
against a small, deterministic canned script instead of a real scripting
language. It gives the cmd/scriptdbg demo binary a runtime to attach to
that drives CALL/LINE/RETURN events without an actual interpreter and
produces the same stepping experience every run. The engine, rdip and
console tests do not use it; each package has its own fakeRuntime.

The "language" it interprets is deliberately tiny - one assignment or
statement per line, of the form "name = expr" where expr is an integer
literal, another variable, or a "left + right" sum - just enough to give
a debugging session something to step through and inspect.
*/
package reftest

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"devt.de/krotik/scriptdbg/runtime"
)

/*
Script is a canned program: a file name and its source lines, numbered
from 1. Line 1 is treated as the entry point and reported as a CALL
event; every following line is a LINE event; once the last line has run,
a RETURN event is reported carrying the last line's number.
*/
type Script struct {
	File  string
	Lines []string
}

/*
DefaultScript is a small canned program good enough to demonstrate
breakpoints, stepping and variable inspection end to end.
*/
var DefaultScript = &Script{
	File: "main.rb",
	Lines: []string{
		"x = 1",
		"y = x + 1",
		"z = y + 1",
		"result = z",
	},
}

/*
Runtime is a reference implementation of the engine's runtime contract,
backed by a Script it executes line by line on whatever goroutine calls
Run.
*/
type Runtime struct {
	mu       sync.Mutex
	callback func(runtime.Event)
	script   *Script
	vars     map[string]int
	values   map[uint64]runtime.Variable
	nextID   uint64
	drained  bool
}

/*
NewRuntime creates a Runtime that will execute script when Run is called.
*/
func NewRuntime(script *Script) *Runtime {
	return &Runtime{
		script: script,
		vars:   make(map[string]int),
		values: make(map[uint64]runtime.Variable),
	}
}

// Tracer
// ======

func (r *Runtime) Install(cb func(runtime.Event)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.callback != nil {
		return fmt.Errorf("reftest: a tracer is already installed")
	}
	r.callback = cb
	return nil
}

func (r *Runtime) Remove() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callback = nil
}

func (r *Runtime) fire(ev runtime.Event) {
	r.mu.Lock()
	cb := r.callback
	r.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

/*
Run executes the canned script to completion, firing a CALL event at the
first line, a LINE event at every line after that, and a RETURN event
once the last line has executed. It blocks for as long as the installed
callback blocks - exactly as a real interpreter would block while a
tracepoint callback suspends the thread.
*/
func (r *Runtime) Run() {
	lines := r.script.Lines
	if len(lines) == 0 {
		return
	}

	r.fire(runtime.Event{Kind: runtime.Call, File: r.script.File, Line: 1})
	r.execute(1)

	for line := 2; line <= len(lines); line++ {
		r.fire(runtime.Event{Kind: runtime.Line, File: r.script.File, Line: line})
		r.execute(line)
	}

	r.fire(runtime.Event{Kind: runtime.Return, File: r.script.File, Line: len(lines)})
}

/*
execute interprets a single "name = expr" line, updating the variable
table. Lines that don't match this shape are silently skipped, so a
canned script can carry comments or bare statements without upsetting
the demo.
*/
func (r *Runtime) execute(line int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stmt := strings.TrimSpace(r.script.Lines[line-1])
	name, expr, ok := strings.Cut(stmt, "=")
	if !ok {
		return
	}
	name = strings.TrimSpace(name)
	expr = strings.TrimSpace(expr)

	if left, right, ok := strings.Cut(expr, "+"); ok {
		r.vars[name] = r.operand(strings.TrimSpace(left)) + r.operand(strings.TrimSpace(right))
		return
	}
	r.vars[name] = r.operand(expr)
}

func (r *Runtime) operand(tok string) int {
	if n, err := strconv.Atoi(tok); err == nil {
		return n
	}
	return r.vars[tok]
}

// StackWalker
// ===========

/*
Frames reports a single synthetic frame for the running script, with the
variable table as its binding.
*/
func (r *Runtime) Frames() []runtime.StackFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return []runtime.StackFrame{{
		File:    r.script.File,
		Method:  "main",
		Binding: r.vars,
	}}
}

func (r *Runtime) Variables(binding interface{}, kind runtime.VarKind) ([]runtime.Variable, error) {
	if kind != runtime.LocalVars {
		return nil, nil
	}

	vars, _ := binding.(map[string]int)

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]runtime.Variable, 0, len(vars))
	for name, val := range vars {
		out = append(out, runtime.Variable{
			Name:     name,
			Value:    strconv.Itoa(val),
			Kind:     "Integer",
			ObjectID: r.registerLocked(name, val),
		})
	}
	return out, nil
}

func (r *Runtime) registerLocked(name string, val int) uint64 {
	r.nextID++
	id := r.nextID
	r.values[id] = runtime.Variable{Name: name, Value: strconv.Itoa(val), Kind: "Integer"}
	return id
}

// ValueBridge
// ===========

func (r *Runtime) ToDisplayString(objectID uint64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[objectID]
	if !ok {
		return "", fmt.Errorf("reftest: unknown object %d", objectID)
	}
	return v.Value, nil
}

func (r *Runtime) ClassName(objectID uint64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[objectID]
	if !ok {
		return "", fmt.Errorf("reftest: unknown object %d", objectID)
	}
	return v.Kind, nil
}

func (r *Runtime) IVarCount(objectID uint64) (int, error) {
	return 0, nil
}

func (r *Runtime) InstanceVariables(objectID uint64) ([]runtime.Variable, error) {
	return nil, nil
}

func (r *Runtime) ProtectedCall(fn func() (interface{}, error)) (interface{}, error) {
	return fn()
}

/*
EvalInBinding evaluates expression - an integer literal, a variable name,
or a "left + right" sum of either - against the given frame binding.
*/
func (r *Runtime) EvalInBinding(binding interface{}, expression string) (uint64, error) {
	vars, _ := binding.(map[string]int)

	r.mu.Lock()
	defer r.mu.Unlock()

	val, err := r.evalLocked(vars, strings.TrimSpace(expression))
	if err != nil {
		return 0, err
	}
	return r.registerLocked(expression, val), nil
}

func (r *Runtime) evalLocked(vars map[string]int, expr string) (int, error) {
	if left, right, ok := strings.Cut(expr, "+"); ok {
		l, err := r.operandLocked(vars, strings.TrimSpace(left))
		if err != nil {
			return 0, err
		}
		rr, err := r.operandLocked(vars, strings.TrimSpace(right))
		if err != nil {
			return 0, err
		}
		return l + rr, nil
	}
	return r.operandLocked(vars, expr)
}

func (r *Runtime) operandLocked(vars map[string]int, tok string) (int, error) {
	if n, err := strconv.Atoi(tok); err == nil {
		return n, nil
	}
	if val, ok := vars[tok]; ok {
		return val, nil
	}
	return 0, fmt.Errorf("undefined: %s", tok)
}

// SourceProvider
// ==============

/*
Drain reports the canned script's source once, and an empty map on every
call after that, matching the idempotent-drain contract.
*/
func (r *Runtime) Drain() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drained {
		return map[string][]string{}
	}
	r.drained = true
	return map[string][]string{r.script.File: r.script.Lines}
}
