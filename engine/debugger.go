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
	"sync"
	"time"

	"devt.de/krotik/scriptdbg/runtime"
	"devt.de/krotik/scriptdbg/util"
)

/*
Debugger is the facade a protocol adapter (rdip, console) drives. It owns
every piece of engine state described in this package - the breakpoint
store, the source table, the trace state machine, the suspension
handshake and the frame facade - and is the only place that talks to the
host runtime through the runtime package's interfaces.
*/
type Debugger struct {
	Breakpoints *BreakpointStore
	Sources     *SourceTable
	Frames      *FrameFacade

	trace   *TraceState
	suspend *SuspensionState
	tracer  runtime.Tracer
	source  runtime.SourceProvider
	logger  util.Logger

	maintainSources   bool
	breakOnStartArmed bool

	mu         sync.Mutex
	lastFile   string
	lastLine   int
	lastReason StopReason

	/*
		OnBreak, if set, is invoked on the scripting thread right after a
		frame snapshot is captured and before the thread blocks - this is
		where a protocol adapter pushes its "stopped" notification to a
		connected client.
	*/
	OnBreak func(reason StopReason, file string, line int)
}

/*
NewDebugger wires together a complete debug engine around a host's
tracer, stack walker, value bridge and (optional) source provider.
keepAlive configures the suspension handshake's defensive wakeup ticker;
pass 0 to disable it.
*/
func NewDebugger(tracer runtime.Tracer, walker runtime.StackWalker, bridge runtime.ValueBridge,
	source runtime.SourceProvider, logger util.Logger, keepAlive time.Duration) *Debugger {

	if logger == nil {
		logger = util.NewNullLogger()
	}

	return &Debugger{
		Breakpoints: NewBreakpointStore(),
		Sources:     NewSourceTable(),
		Frames:      NewFrameFacade(walker, bridge),

		trace:           NewTraceState(),
		suspend:         NewSuspensionState(keepAlive),
		tracer:          tracer,
		source:          source,
		logger:          logger,
		maintainSources: true,
	}
}

/*
MaintainSources toggles whether the debugger mirrors the host's loaded
sources into the source table on every CALL event. Hosts that already
manage an IDE-visible source view (i.e. are not running "headless") pass
false here, the same way the original debugger skipped populating
SCRIPT_LINES__ when talking to an IDE.
*/
func (d *Debugger) MaintainSources(flag bool) {
	d.mu.Lock()
	d.maintainSources = flag
	d.mu.Unlock()
}

/*
Start installs the debugger as the host's tracepoint callback. It must be
called once, before the host begins executing scripts.
*/
func (d *Debugger) Start() error {
	return d.tracer.Install(d.onEvent)
}

/*
Stop removes the tracepoint callback and releases the suspension
handshake's background goroutine. Any thread currently suspended is
released first.
*/
func (d *Debugger) Stop() {
	d.suspend.Resume()
	d.tracer.Remove()
	d.suspend.Stop()
}

// Breakpoint commands
// ===================

/*
SetBreakPoint adds or updates a breakpoint at file:line with an optional
condition expression. The path is taken as already resolved, matching how
an IDE client connected over the wire always reports canonical, full
source paths.
*/
func (d *Debugger) SetBreakPoint(file string, line int, condition string) *Breakpoint {
	return d.Breakpoints.Add(file, line, condition, true)
}

/*
RemoveBreakPoint removes the breakpoint at file:line, or every breakpoint
in file if line is negative.
*/
func (d *Debugger) RemoveBreakPoint(file string, line int) {
	d.Breakpoints.Remove(file, line)
}

/*
SetBreakPointEnabled enables or disables the breakpoint at file:line.
*/
func (d *Debugger) SetBreakPointEnabled(file string, line int, enabled bool) bool {
	return d.Breakpoints.SetEnabled(file, line, enabled)
}

/*
SetCondition updates the condition of the breakpoint at file:line.
*/
func (d *Debugger) SetCondition(file string, line int, condition string) bool {
	return d.Breakpoints.SetCondition(file, line, condition)
}

/*
ListBreakPoints returns every known breakpoint, resolved or not.
*/
func (d *Debugger) ListBreakPoints() []*Breakpoint {
	return d.Breakpoints.List()
}

/*
BreakOnStart arms (or disarms) a one-shot stop at the next CALL event the
host reports. Unlike an ordinary step, it fires unconditionally - even
ahead of a breakpoint candidate at the same location - so a session always
gets one guaranteed chance to set up breakpoints before anything runs.
*/
func (d *Debugger) BreakOnStart(flag bool) {
	d.mu.Lock()
	d.breakOnStartArmed = flag
	d.mu.Unlock()
}

/*
BreakOnError sets the trace state machine's break-on-error flag, which
TraceState.NotifyError reports. Debugger has no method through which a
host reports a runtime error, so the flag does not by itself suspend the
thread.
*/
func (d *Debugger) BreakOnError(flag bool) {
	d.trace.BreakOnError(flag)
}

// Execution control
// =================

/*
Continue resumes a suspended thread with the given continuation mode.
Returns false if no thread is currently suspended. The continuation mode
is translated into the matching trace-state latch before the thread is
released, so it is already armed by the time the scripting thread wakes
up and processes its next event.
*/
func (d *Debugger) Continue(cont ContType) bool {
	switch cont {
	case StepIn:
		d.trace.Step()
	case StepOver:
		d.trace.StepOver()
	case StepOut:
		d.trace.StepOut()
	}
	return d.suspend.Resume()
}

/*
Pause requests that a running thread stop at the next line it executes.
It is a no-op if the thread is already suspended, matching the original
debugger's "pause while already stopped does nothing" behaviour.
*/
func (d *Debugger) Pause() {
	if d.suspend.IsSuspended() {
		return
	}
	d.trace.Pause()
}

/*
IsSuspended reports whether the scripting thread is currently stopped.
*/
func (d *Debugger) IsSuspended() bool {
	return d.suspend.IsSuspended()
}

// Frame / evaluation commands, delegated to the frame facade
// ============================================================

/*
SelectFrame moves the active-frame cursor to the given 0-based index.
*/
func (d *Debugger) SelectFrame(index int) error {
	return d.Frames.SetActive(index)
}

/*
Eval evaluates an expression in the scope of the active frame. Any call
made from the network thread while the scripting thread is suspended
must instead go through QueueAndWait, which hops the call onto the
scripting thread first.
*/
func (d *Debugger) Eval(expression string) (runtime.Variable, error) {
	return d.Frames.Eval(expression)
}

/*
Variables lists the variables of the given kind visible from the active
frame.
*/
func (d *Debugger) Variables(kind runtime.VarKind) ([]runtime.Variable, error) {
	return d.Frames.Variables(kind)
}

/*
InstanceVariables lists the instance variables of a previously obtained
object handle.
*/
func (d *Debugger) InstanceVariables(objectID uint64) ([]runtime.Variable, error) {
	return d.Frames.InstanceVariables(objectID)
}

/*
QueueAndWait runs fn on the scripting thread (which must currently be
suspended) and blocks the caller until it completes. This is how the
network thread safely calls Eval/Variables/SelectFrame without ever
touching the host runtime itself - fn is expected to be one of this
type's own methods.
*/
func (d *Debugger) QueueAndWait(fn func()) {
	if !d.suspend.IsSuspended() {
		fn()
		return
	}

	done := make(chan struct{})
	d.suspend.QueueWork(func() {
		fn()
		close(done)
	})
	<-done
}

// Status reporting
// ================

/*
Status summarises the debugger's state for diagnostics: whether a thread
is suspended, and why and where it last stopped. Neither the console nor
the rdip adapter exposes it as a command.
*/
func (d *Debugger) Status() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	return map[string]interface{}{
		"Suspended":      d.suspend.IsSuspended(),
		"Breakpoints":    d.Breakpoints.List(),
		"LastStopFile":   d.lastFile,
		"LastStopLine":   d.lastLine,
		"LastStopReason": d.lastReason,
		"CallDepth":      d.trace.CallDepth(),
	}
}

// Tracepoint callback
// ===================

func (d *Debugger) onEvent(ev runtime.Event) {
	// A fault raised while handling the event must never propagate back
	// into the host's tracepoint machinery.
	defer func() {
		if r := recover(); r != nil {
			d.logger.LogError("engine: recovered from a fault in the tracepoint callback: ", r)
		}
	}()

	var fired bool
	var reason StopReason
	var candidate *Breakpoint

	switch ev.Kind {

	case runtime.Call:
		d.mu.Lock()
		maintain := d.maintainSources
		armed := d.breakOnStartArmed
		d.breakOnStartArmed = false
		d.mu.Unlock()

		if maintain {
			if lineCounts := d.Sources.DrainFrom(d.source); len(lineCounts) > 0 {
				d.Breakpoints.ResolveAll(lineCounts)
			}
		}

		fired, reason, candidate = d.trace.OnCall(d.Breakpoints.Lookup(ev.File, ev.Line))
		if armed {
			d.breakAndWait(StopAtStart, ev.File, ev.Line)
			return
		}

	case runtime.Line:
		fired, reason, candidate = d.trace.OnLine(d.Breakpoints.Lookup(ev.File, ev.Line))

	case runtime.Return:
		fired, reason, candidate = d.trace.OnReturn(d.Breakpoints.Lookup(ev.File, ev.Line))
	}

	if fired {
		d.breakAndWait(reason, ev.File, ev.Line)
		return
	}

	if candidate != nil {
		// Capture before evaluating the condition, so the condition's own
		// evaluation can never shift what frame 0 looks like.
		d.Frames.Capture()

		if candidate.Condition == "" || d.evalTruthy(candidate.Condition) {
			d.notifyAndSuspend(StopBreakpoint, ev.File, ev.Line)
		} else {
			d.Frames.Clear()
		}
	}
}

/*
breakAndWait captures a fresh frame snapshot and suspends.
*/
func (d *Debugger) breakAndWait(reason StopReason, file string, line int) {
	d.Frames.Capture()
	d.notifyAndSuspend(reason, file, line)
}

/*
notifyAndSuspend assumes the frame snapshot has already been captured. It
records the stop, fires OnBreak and blocks on the suspension handshake
until a client resumes the thread.
*/
func (d *Debugger) notifyAndSuspend(reason StopReason, file string, line int) {
	d.mu.Lock()
	d.lastFile = file
	d.lastLine = line
	d.lastReason = reason
	d.mu.Unlock()

	if d.OnBreak != nil {
		d.OnBreak(reason, file, line)
	}

	d.suspend.Suspend()
	d.Frames.Clear()
}

/*
evalTruthy evaluates a breakpoint condition and fires only when it is the
boolean-true singleton - mirroring Server.cpp's
"condition_value == Qtrue" check exactly. A condition that errors, or
evaluates to anything other than true (including a non-boolean value or
false/nil), suppresses the breakpoint rather than firing it.
*/
func (d *Debugger) evalTruthy(expression string) bool {
	v, err := d.Frames.Eval(expression)
	return err == nil && v.Value == "true"
}
