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
Package console implements a human-operated, line-edited command
console around the same debug engine the rdip protocol adapter drives -
useful for a host with no IDE attached, or for diagnosing the debugger
itself.
*/
package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"

	"devt.de/krotik/scriptdbg/engine"
	"devt.de/krotik/scriptdbg/runtime"
)

const helpText = `Debugger commands
  b[reak] file:line          set breakpoint at file:line
  b[reak]                    list breakpoints
  del[ete] [n]                delete breakpoint n, or all if omitted
  c[ont]                      run until program ends or hits a breakpoint
  s[tep]                      step (into methods) one line
  n[ext]                      step over one line
  fin[ish]                    run until the current frame returns
  w[here]/f[rame]             display frames
  f[rame] n                   select frame n
  v[ar] g[lobal]               show global variables
  v[ar] l[ocal]                show local variables
  p expression                evaluate expression and print its value
  h[elp]                       print this help
  q[uit]                       detach and exit
`

/*
UI drives a *engine.Debugger from an interactive terminal. It registers
itself as the debugger's OnBreak callback, printing a prompt and
blocking for a command every time the scripting thread suspends.
*/
type UI struct {
	debugger *engine.Debugger
	line     *liner.State
	out      io.Writer
}

/*
New creates a console UI around debugger, writing prompts and output to
out (typically os.Stdout).
*/
func New(debugger *engine.Debugger, out io.Writer) *UI {
	ui := &UI{
		debugger: debugger,
		line:     liner.NewLiner(),
		out:      out,
	}
	ui.line.SetCtrlCAborts(true)
	debugger.OnBreak = ui.onBreak
	return ui
}

/*
Close releases the underlying line editor. Call once the session ends.
*/
func (ui *UI) Close() {
	ui.line.Close()
}

/*
Run reads and evaluates commands from the terminal until the user quits
or the input stream closes. It blocks the calling goroutine - callers
typically run it on its own goroutine, the same way the original
console UI ran its read loop on a dedicated thread.
*/
func (ui *UI) Run() {
	fmt.Fprintln(ui.out, "scriptdbg console")

	for {
		text, err := ui.line.Prompt(ui.prompt())
		if err != nil {
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		ui.line.AppendHistory(text)

		if quit := ui.evaluate(text); quit {
			return
		}
	}
}

func (ui *UI) prompt() string {
	state := "running"
	if ui.debugger.IsSuspended() {
		state = "stopped"
	}
	return fmt.Sprintf("scriptdbg (%s): ", state)
}

/*
onBreak is the debugger's suspend notification. It is invoked on the
scripting thread right as that thread is about to block, so all it does
here is print where the program stopped - the actual command loop
always runs on the console goroutine via Run.
*/
func (ui *UI) onBreak(reason engine.StopReason, file string, line int) {
	switch reason {
	case engine.StopBreakpoint:
		fmt.Fprintf(ui.out, "\n%s %s:%d\n", color.YellowString("Breakpoint hit at"), file, line)
	default:
		fmt.Fprintf(ui.out, "\n%s %s:%d\n", color.YellowString("Stopped at"), file, line)
	}
}

/*
evaluate runs a single command line and reports whether the session
should end.
*/
func (ui *UI) evaluate(command string) (quit bool) {
	fields := strings.Fields(command)
	head := strings.ToLower(fields[0])

	switch {
	case matchesAbbrev(head, "break", "b") && len(fields) == 1:
		ui.printBreakpoints()

	case matchesAbbrev(head, "break", "b") && len(fields) > 1:
		ui.addBreakpoint(fields[1])

	case matchesAbbrev(head, "delete", "del"):
		ui.deleteBreakpoint(fields[1:])

	case matchesAbbrev(head, "cont", "c"):
		ui.debugger.Continue(engine.Resume)

	case matchesAbbrev(head, "step", "s"):
		ui.debugger.Continue(engine.StepIn)

	case matchesAbbrev(head, "next", "n"):
		ui.debugger.Continue(engine.StepOver)

	case matchesAbbrev(head, "finish", "fin"):
		ui.debugger.Continue(engine.StepOut)

	case matchesAbbrev(head, "where", "w"), matchesAbbrev(head, "frame", "f") && len(fields) == 1:
		ui.printFrames()

	case matchesAbbrev(head, "frame", "f") && len(fields) > 1:
		ui.selectFrame(fields[1])

	case matchesAbbrev(head, "help", "h"):
		fmt.Fprint(ui.out, helpText)

	case matchesAbbrev(head, "quit", "q"):
		ui.debugger.Continue(engine.Resume)
		return true

	case matchesAbbrev(head, "var", "v") && len(fields) > 1 && matchesAbbrev(fields[1], "global", "g"):
		ui.printVariables(runtime.GlobalVars)

	case matchesAbbrev(head, "var", "v") && len(fields) > 1 && matchesAbbrev(fields[1], "local", "l"):
		ui.printVariables(runtime.LocalVars)

	case strings.HasPrefix(command, "p "):
		ui.printEval(strings.TrimSpace(command[2:]))

	default:
		ui.printEval(command)
	}

	return false
}

func matchesAbbrev(word, full, short string) bool {
	return word == full || word == short
}

func (ui *UI) addBreakpoint(spec string) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		fmt.Fprintln(ui.out, "usage: break file:line")
		return
	}
	line, err := strconv.Atoi(parts[1])
	if err != nil {
		fmt.Fprintln(ui.out, "usage: break file:line")
		return
	}
	bp := ui.debugger.Breakpoints.Add(parts[0], line, "", false)
	fmt.Fprintf(ui.out, "Added breakpoint %d at %s:%d\n", bp.Index, bp.File, bp.Line)
}

func (ui *UI) deleteBreakpoint(args []string) {
	if len(args) == 0 {
		for _, bp := range ui.debugger.ListBreakPoints() {
			ui.debugger.Breakpoints.RemoveByIndex(bp.Index)
		}
		return
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintln(ui.out, "usage: delete [n]")
		return
	}
	if !ui.debugger.Breakpoints.RemoveByIndex(index) {
		fmt.Fprintln(ui.out, "Cannot remove breakpoint")
	}
}

func (ui *UI) printBreakpoints() {
	bps := ui.debugger.ListBreakPoints()
	if len(bps) == 0 {
		fmt.Fprintln(ui.out, "No breakpoints")
		return
	}
	for _, bp := range bps {
		fmt.Fprintf(ui.out, "  %d %s:%d\n", bp.Index, bp.File, bp.Line)
	}
}

func (ui *UI) printFrames() {
	frames := ui.debugger.Frames.Frames()
	_, active, _ := ui.debugger.Frames.Active()
	for i, f := range frames {
		prefix := "    "
		if i == active {
			prefix = "--> "
		}
		fmt.Fprintf(ui.out, "%s#%d %s:%d\n", prefix, i+1, f.File, f.Line)
	}
}

func (ui *UI) selectFrame(arg string) {
	index, err := strconv.Atoi(arg)
	if err != nil {
		fmt.Fprintln(ui.out, "usage: frame n")
		return
	}
	if err := ui.debugger.SelectFrame(index - 1); err != nil {
		fmt.Fprintln(ui.out, err)
		return
	}
	ui.printFrames()
}

func (ui *UI) printVariables(kind runtime.VarKind) {
	if !ui.debugger.IsSuspended() {
		fmt.Fprintln(ui.out, "Program is running")
		return
	}
	var vars []runtime.Variable
	ui.debugger.QueueAndWait(func() {
		vars, _ = ui.debugger.Variables(kind)
	})
	for _, v := range vars {
		fmt.Fprintf(ui.out, "  %s => %s\n", v.Name, v.Value)
	}
}

func (ui *UI) printEval(expression string) {
	if expression == "" {
		return
	}
	if !ui.debugger.IsSuspended() {
		fmt.Fprintln(ui.out, "Program is running")
		return
	}
	var v runtime.Variable
	var err error
	ui.debugger.QueueAndWait(func() {
		v, err = ui.debugger.Eval(expression)
	})
	if err != nil {
		fmt.Fprintln(ui.out, err)
		return
	}
	fmt.Fprintln(ui.out, v.Value)
}
