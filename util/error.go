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
Package util contains utility definitions and functions shared by the
debug engine, the protocol adapters and the command line tools.
*/
package util

import (
	"encoding/json"
	"errors"
	"fmt"
)

/*
Debug related error types.
*/
var (
	ErrInvalidState       = errors.New("Invalid debugger state")
	ErrUnknownThread      = errors.New("Unknown thread")
	ErrUnknownBreakPoint  = errors.New("Unknown breakpoint")
	ErrInvalidExpression  = errors.New("Invalid expression")
	ErrValueBridgeFailure = errors.New("Value bridge call failed")
	ErrProtocolSyntax     = errors.New("Invalid protocol command")
)

/*
DebugError is an error which occurred while handling a debug command or a
tracepoint callback. It never escapes to the host runtime - the tracepoint
boundary recovers from it and reports it as a best-effort value instead of
propagating a panic.
*/
type DebugError struct {
	Type   error  // Error type (to be used for equal checks)
	Detail string // Details of this error
	File   string // Source file where the error was observed (may be empty)
	Line   int    // Source line where the error was observed (may be 0)
}

/*
NewDebugError creates a new DebugError object.
*/
func NewDebugError(t error, detail string, file string, line int) *DebugError {
	return &DebugError{t, detail, file, line}
}

/*
Error returns a human-readable string representation of this error.
*/
func (e *DebugError) Error() string {
	ret := fmt.Sprintf("%v: %v", e.Type, e.Detail)

	if e.File != "" {

		// Add source position if available

		ret = fmt.Sprintf("%s (%v:%v)", ret, e.File, e.Line)
	}

	return ret
}

/*
Unwrap allows errors.Is / errors.As to see through to the error type.
*/
func (e *DebugError) Unwrap() error {
	return e.Type
}

/*
ToJSONObject returns this DebugError as a JSON object.
*/
func (e *DebugError) ToJSONObject() map[string]interface{} {
	t := ""
	if e.Type != nil {
		t = e.Type.Error()
	}
	return map[string]interface{}{
		"Type":   t,
		"Detail": e.Detail,
		"File":   e.File,
		"Line":   e.Line,
	}
}

/*
MarshalJSON serializes this DebugError into a JSON string.
*/
func (e *DebugError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToJSONObject())
}
