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

import "sync"

/*
ContType is how a suspended thread should be resumed.
*/
type ContType int

/*
Available continuation modes.
*/
const (
	Resume   ContType = iota // run until the next breakpoint or the end
	StepIn                   // stop at the very next line-processing event
	StepOver                 // stop at the next line in the same or an enclosing frame
	StepOut                  // stop once the current call returns
)

/*
StopReason explains why the trace state machine decided to suspend
execution, used for logging and for the status report.
*/
type StopReason int

/*
Possible stop reasons.
*/
const (
	NotStopped StopReason = iota
	StopAtStart
	StopStepIn
	StopStepOver
	StopStepOut
	StopBreakpoint
	StopError
)

/*
TraceState is the trace-event state machine. Every CALL, LINE and RETURN
event the runtime reports is run through the same line-processing rule;
CALL and RETURN additionally adjust the call depth around it, in that
order (CALL increments before processing, RETURN processes before
decrementing), so a one-shot latch set while handling one event kind can
only ever be observed and cleared by the very next event, whatever kind
that turns out to be.
*/
type TraceState struct {
	mu sync.Mutex

	callDepth int

	breakOnError bool

	breakAtNextLine bool

	stepOverBreakAtNextLine bool
	stepOverTargetDepth     int

	// stepOutArmed is set by StepOut() and consumed the first time a
	// RETURN event brings the call depth down to stepOutTargetDepth; it
	// does not itself cause a suspension. It instead sets
	// stepOutBreakAtNextLine, which the line-processing rule checks on
	// whichever event comes next.
	stepOutArmed        bool
	stepOutTargetDepth  int
	stepOutBreakAtNextLine bool
}

/*
NewTraceState creates a trace state machine at call depth zero, with no
latch armed.
*/
func NewTraceState() *TraceState {
	return &TraceState{}
}

/*
BreakOnError sets the flag NotifyError reports, i.e. whether a runtime
error should suspend the thread. This is a supplemental toggle, not part
of the RDIP command grammar.
*/
func (ts *TraceState) BreakOnError(flag bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.breakOnError = flag
}

/*
Step arms an unconditional stop at the next line-processing event.
*/
func (ts *TraceState) Step() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.breakAtNextLine = true
}

/*
StepOver arms a stop at the next line-processing event seen at a call
depth no deeper than the current one.
*/
func (ts *TraceState) StepOver() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.stepOverBreakAtNextLine = true
	ts.stepOverTargetDepth = ts.callDepth
}

/*
StepOut arms a stop once the current call returns to its caller. It is a
no-op at the outermost frame, matching the original debugger's guard
against arming an unreachable target depth.
*/
func (ts *TraceState) StepOut() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.callDepth > 1 {
		ts.stepOutArmed = true
		ts.stepOutTargetDepth = ts.callDepth - 1
	}
}

/*
Pause arms an unconditional stop at the next line-processing event. The
caller is responsible for only invoking this while the thread is
running - pausing an already-stopped thread is a no-op at the Debugger
level, not here.
*/
func (ts *TraceState) Pause() {
	ts.Step()
}

/*
lineProcessing is the rule shared by CALL, LINE and RETURN handling. bp
is the resolved, enabled breakpoint at the current file:line, if any.
*/
func (ts *TraceState) lineProcessing(bp *Breakpoint) (fired bool, reason StopReason, candidate *Breakpoint) {
	switch {
	case ts.breakAtNextLine:
		ts.clearLatches()
		return true, StopStepIn, nil

	case ts.stepOverBreakAtNextLine && ts.stepOverTargetDepth >= ts.callDepth:
		ts.clearLatches()
		return true, StopStepOver, nil

	case ts.stepOutBreakAtNextLine:
		ts.clearLatches()
		return true, StopStepOut, nil
	}

	if bp != nil {
		return false, StopBreakpoint, bp
	}
	return false, NotStopped, nil
}

func (ts *TraceState) clearLatches() {
	ts.breakAtNextLine = false
	ts.stepOverBreakAtNextLine = false
	ts.stepOutBreakAtNextLine = false
}

/*
OnCall records a CALL event: call depth is incremented first, then the
line-processing rule runs.
*/
func (ts *TraceState) OnCall(bp *Breakpoint) (fired bool, reason StopReason, candidate *Breakpoint) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.callDepth++
	return ts.lineProcessing(bp)
}

/*
OnLine records a LINE event. A call depth of zero is promoted to one
first, covering the bootstrap case where LINE is the very first event a
host ever reports.
*/
func (ts *TraceState) OnLine(bp *Breakpoint) (fired bool, reason StopReason, candidate *Breakpoint) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.callDepth == 0 {
		ts.callDepth = 1
	}
	return ts.lineProcessing(bp)
}

/*
OnReturn records a RETURN event: the line-processing rule runs first,
then the call depth is decremented, then - if that brought the depth down
to an armed StepOut target - stepOutBreakAtNextLine is set so the very
next event (of any kind) suspends.
*/
func (ts *TraceState) OnReturn(bp *Breakpoint) (fired bool, reason StopReason, candidate *Breakpoint) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	fired, reason, candidate = ts.lineProcessing(bp)

	if ts.callDepth > 0 {
		ts.callDepth--
	}

	if ts.stepOutArmed && ts.callDepth == ts.stepOutTargetDepth {
		ts.stepOutArmed = false
		ts.stepOutBreakAtNextLine = true
	}

	return fired, reason, candidate
}

/*
NotifyError reports a runtime error to the state machine and returns
whether BreakOnError should suspend the thread.
*/
func (ts *TraceState) NotifyError() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.breakOnError
}

/*
CallDepth returns the current call depth, used by tests and by
Debugger.Status.
*/
func (ts *TraceState) CallDepth() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.callDepth
}
