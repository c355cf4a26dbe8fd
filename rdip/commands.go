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
	"regexp"
	"strconv"
	"strings"

	"devt.de/krotik/scriptdbg/engine"
	"devt.de/krotik/scriptdbg/runtime"
)

// This represents only a subset of all commands defined by ruby-debug-ide.
//
// Not (yet) supported: catch, restart, detach, pp, expression_info,
// include, exclude, file-filter, up, down, jump, load, set_type, thread
// switch, thread inspect, thread stop, thread current, thread resume, var
// constant.
var (
	reAddBreakpoint = regexp.MustCompile(`(?i)^b(?:reak)?\s+(.+?):(\d+)(?:\s+if\s+(.+))?$`)
	reBreakpoints   = regexp.MustCompile(`(?i)^(?:info\s*)?b(?:reak)?$`)
	reCondition     = regexp.MustCompile(`(?i)^cond(?:ition)?\s+(\d+)(?:\s+(.+))?$`)
	reDelete        = regexp.MustCompile(`(?i)^del(?:ete)?(?:\s+(\d+))?$`)
	reEnable        = regexp.MustCompile(`(?i)^(en|dis)(?:able)?\s+breakpoints((?:\s+\d+)+)$`)
	reIndexList     = regexp.MustCompile(`\d+`)

	reContinue = regexp.MustCompile(`(?i)^c(?:ont)?$`)
	reFinish   = regexp.MustCompile(`(?i)^fin(?:ish)?$`)
	reNext     = regexp.MustCompile(`(?i)^n(?:ext)?$`)
	rePause    = regexp.MustCompile(`(?i)^(?:pause|i(?:nterrupt)?)$`)
	reQuit     = regexp.MustCompile(`(?i)^(?:q(?:uit)?|exit)$`)
	reStart    = regexp.MustCompile(`(?i)^start$`)
	reStep     = regexp.MustCompile(`(?i)^s(?:tep)?$`)

	reFrame      = regexp.MustCompile(`(?i)^f(?:rame)?\s+(\d+)$`)
	reThreadList = regexp.MustCompile(`(?i)^th(?:read)?\s+l(?:ist)?$`)
	reWhere      = regexp.MustCompile(`(?i)^(?:w(?:here)?|bt|backtrace)$`)

	reEval        = regexp.MustCompile(`(?i)^(?:p|e(?:val)?)\s+(.+)$`)
	reInspect     = regexp.MustCompile(`(?i)^v(?:ar)?\s+inspect\s+(.+)$`)
	reVarGlobal   = regexp.MustCompile(`(?i)^v(?:ar)?\s+g(?:lobal)?$`)
	reVarInstance = regexp.MustCompile(`(?i)^v(?:ar)?\s+i(?:nstance)?\s+(?:0x)?([0-9a-fA-F]+)$`)
	reVarLocal    = regexp.MustCompile(`(?i)^v(?:ar)?\s+l(?:ocal)?$`)
)

/*
evaluate dispatches a single, already-tokenized command and returns the
response to write back (empty means no response is sent) and whether the
connection should be closed afterwards. Unknown commands are logged and
silently ignored, matching the protocol's tolerance for ruby-debug-ide
commands this server does not implement.
*/
func (s *Server) evaluate(command string) (response string, disconnect bool) {

	// Breakpoint commands.
	switch {
	case reAddBreakpoint.MatchString(command):
		m := reAddBreakpoint.FindStringSubmatch(command)
		file := strings.ReplaceAll(m[1], `\`, "/")
		line, _ := strconv.Atoi(m[2])
		bp := s.debugger.SetBreakPoint(file, line, m[3])
		return fmt.Sprintf(`<breakpointAdded no="%d" location="%s:%d" />`, bp.Index, escapeXML(bp.File), line), false

	case reBreakpoints.MatchString(command):
		var b strings.Builder
		b.WriteString("<breakpoints>")
		for _, bp := range s.debugger.ListBreakPoints() {
			fmt.Fprintf(&b, `<breakpoint n="%d" file="%s" line="%d" />`, bp.Index, escapeXML(bp.File), bp.Line)
		}
		b.WriteString("</breakpoints>")
		return b.String(), false

	case reCondition.MatchString(command):
		m := reCondition.FindStringSubmatch(command)
		index, _ := strconv.Atoi(m[1])
		if s.debugger.Breakpoints.SetConditionByIndex(index, m[2]) {
			return fmt.Sprintf(`<conditionSet bp_id="%d" />`, index), false
		}
		return "", false

	case reDelete.MatchString(command):
		m := reDelete.FindStringSubmatch(command)
		if m[1] != "" {
			index, _ := strconv.Atoi(m[1])
			s.debugger.Breakpoints.RemoveByIndex(index)
			return fmt.Sprintf(`<breakpointDeleted no="%d" />`, index), false
		}
		s.debugger.Breakpoints.RemoveAll()
		return "", false

	case reEnable.MatchString(command):
		m := reEnable.FindStringSubmatch(command)
		enable := strings.EqualFold(m[1], "en")
		var b strings.Builder
		for _, tok := range reIndexList.FindAllString(m[2], -1) {
			index, _ := strconv.Atoi(tok)
			if s.debugger.Breakpoints.SetEnabledByIndex(index, enable) {
				word := "Disabled"
				if enable {
					word = "Enabled"
				}
				fmt.Fprintf(&b, `<breakpoint%s bp_id="%d" />`, word, index)
			}
		}
		return b.String(), false
	}

	// Control commands.
	switch {
	case reContinue.MatchString(command), reStart.MatchString(command):
		s.debugger.Continue(engine.Resume)
		return "", false

	case reFinish.MatchString(command):
		s.debugger.Continue(engine.StepOut)
		return "", false

	case reNext.MatchString(command):
		s.debugger.Continue(engine.StepOver)
		return "", false

	case rePause.MatchString(command):
		s.debugger.Pause()
		return "", false

	case reQuit.MatchString(command):
		s.debugger.Continue(engine.Resume)
		return "", true

	case reStep.MatchString(command):
		s.debugger.Continue(engine.StepIn)
		return "", false
	}

	// State commands.
	switch {
	case reFrame.MatchString(command):
		m := reFrame.FindStringSubmatch(command)
		// The wire protocol is 1-based; the engine's frame cursor is
		// 0-based, innermost first.
		if wireIndex, err := strconv.Atoi(m[1]); err == nil && wireIndex >= 1 {
			s.debugger.SelectFrame(wireIndex - 1)
		}
		return "", false

	case reThreadList.MatchString(command):
		return `<threads><thread id="1" status="run" /></threads>`, false

	case reWhere.MatchString(command):
		return s.formatFrames(), false
	}

	// Variable/inspection commands.
	switch {
	case reEval.MatchString(command):
		m := reEval.FindStringSubmatch(command)
		return s.handleEval(m[1]), false

	case reInspect.MatchString(command):
		m := reInspect.FindStringSubmatch(command)
		return s.handleInspect(m[1]), false

	case reVarGlobal.MatchString(command):
		return s.handleVariables("global", runtime.GlobalVars), false

	case reVarInstance.MatchString(command):
		m := reVarInstance.FindStringSubmatch(command)
		objectID, _ := strconv.ParseUint(m[1], 16, 64)
		return s.handleInstanceVariables(objectID), false

	case reVarLocal.MatchString(command):
		return s.handleVariables("local", runtime.LocalVars), false
	}

	s.logger.LogInfo("rdip: unrecognized command: " + command)
	return "", false
}

/*
handleEval evaluates an expression in the active frame. While the thread
is running there is nothing to evaluate against, so the client gets the
same placeholder ruby-debug-ide itself returns in that case; while
stopped, the call is hopped onto the scripting thread.
*/
func (s *Server) handleEval(expression string) string {
	if !s.debugger.IsSuspended() {
		return fmt.Sprintf(`<eval expression="%s" value="Expression cannot be evaluated" />`, escapeXML(expression))
	}

	var v runtime.Variable
	s.debugger.QueueAndWait(func() {
		var err error
		v, err = s.debugger.Eval(expression)
		if err != nil {
			v = runtime.Variable{Value: err.Error()}
		}
	})
	return fmt.Sprintf(`<eval expression="%s" value="%s" />`, escapeXML(expression), escapeXML(v.Value))
}

/*
handleInspect evaluates an expression and wraps the result as a single
"watch" variable, the form the IDE's watch window expects.
*/
func (s *Server) handleInspect(expression string) string {
	if !s.debugger.IsSuspended() {
		return s.formatVariables("watch", nil)
	}

	var v runtime.Variable
	s.debugger.QueueAndWait(func() {
		res, err := s.debugger.Eval(expression)
		if err != nil {
			res = runtime.Variable{Value: err.Error(), Kind: "error"}
		}
		res.Name = expression
		v = res
	})
	return s.formatVariables("watch", []runtime.Variable{v})
}

func (s *Server) handleVariables(kind string, varKind runtime.VarKind) string {
	if !s.debugger.IsSuspended() {
		return s.formatVariables(kind, nil)
	}

	var vars []runtime.Variable
	s.debugger.QueueAndWait(func() {
		vars, _ = s.debugger.Variables(varKind)
	})
	return s.formatVariables(kind, vars)
}

func (s *Server) handleInstanceVariables(objectID uint64) string {
	if !s.debugger.IsSuspended() {
		return s.formatVariables("instance", nil)
	}

	var vars []runtime.Variable
	s.debugger.QueueAndWait(func() {
		vars, _ = s.debugger.InstanceVariables(objectID)
	})
	return s.formatVariables("instance", vars)
}

func (s *Server) formatVariables(kind string, vars []runtime.Variable) string {
	var b strings.Builder
	b.WriteString("<variables>")
	for _, v := range vars {
		fmt.Fprintf(&b, `<variable name="%s" kind="%s" value="%s" type="%s" hasChildren="%t" objectId="0x%x" />`,
			escapeXML(v.Name), kind, escapeXML(v.Value), escapeXML(v.Kind), v.HasChildren, v.ObjectID)
	}
	b.WriteString("</variables>")
	return b.String()
}

func (s *Server) formatFrames() string {
	frames := s.debugger.Frames.Frames()
	_, activeIndex, err := s.debugger.Frames.Active()
	if err != nil {
		activeIndex = -1
	}

	var b strings.Builder
	b.WriteString("<frames>")
	for i, f := range frames {
		fmt.Fprintf(&b, `<frame no="%d" file="%s" line="%d"`, i+1, escapeXML(f.File), f.Line)
		if i == activeIndex {
			b.WriteString(` current="yes"`)
		}
		b.WriteString(" />")
	}
	b.WriteString("</frames>")
	return b.String()
}
