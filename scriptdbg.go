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
Package scriptdbg is the single entry point a host application uses to
attach this debugger to its own scripting runtime. A host binds its
runtime hooks once, at startup, then calls InitDebugger exactly as many
times as the user asks for a debugging session - almost always once.
*/
package scriptdbg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"devt.de/krotik/scriptdbg/config"
	"devt.de/krotik/scriptdbg/console"
	"devt.de/krotik/scriptdbg/engine"
	"devt.de/krotik/scriptdbg/rdip"
	"devt.de/krotik/scriptdbg/runtime"
	"devt.de/krotik/scriptdbg/settings"
	"devt.de/krotik/scriptdbg/util"
)

/*
Host is the set of hooks a scripting runtime implements to be
debuggable. A host constructs one of these around its own interpreter
and passes it to Bind before ever calling InitDebugger.
*/
type Host struct {
	Tracer runtime.Tracer
	Walker runtime.StackWalker
	Bridge runtime.ValueBridge
	Source runtime.SourceProvider // optional, may be nil
	Logger util.Logger            // optional, may be nil
}

var (
	bindMu    sync.Mutex
	boundHost *Host
)

/*
Bind registers a host's runtime hooks. It must be called once before
InitDebugger; calling it again replaces the previously bound host,
which only makes sense between debugging sessions.
*/
func Bind(host *Host) {
	bindMu.Lock()
	defer bindMu.Unlock()
	boundHost = host
}

/*
InitDebugger starts a debugging session as configured by configString,
whose grammar is a client-variant keyword followed by optional
whitespace-separated options:

	console
	rdip
	rdip port=1234
	rdip wait
	rdip port=1234 wait

"console" attaches the interactive terminal UI; "rdip" starts the
ruby-debug-ide TCP protocol adapter. For "rdip", "port=N" overrides the
listening port (config.RDIPPort otherwise) and the bare word "wait"
blocks the call until a client connects, instead of letting the host
continue running immediately.

It returns a shutdown function the host calls to end the session -
this disables tracepoints and releases any suspended thread - and a
non-nil error if configString is malformed or Bind was never called.
*/
func InitDebugger(configString string) (func(), error) {
	bindMu.Lock()
	host := boundHost
	bindMu.Unlock()

	if host == nil {
		return nil, fmt.Errorf("scriptdbg: Bind must be called before InitDebugger")
	}

	fields := strings.Fields(configString)
	if len(fields) == 0 {
		return nil, fmt.Errorf("scriptdbg: empty configuration string")
	}

	port := config.Int(config.RDIPPort)
	wait := false
	switch fields[0] {
	case "console":
		if len(fields) > 1 {
			return nil, fmt.Errorf("scriptdbg: console takes no options, got %q", configString)
		}
	case "rdip":
		for _, opt := range fields[1:] {
			switch {
			case opt == "wait":
				wait = true
			case strings.HasPrefix(opt, "port="):
				n, err := strconv.Atoi(strings.TrimPrefix(opt, "port="))
				if err != nil {
					return nil, fmt.Errorf("scriptdbg: invalid port option %q: %w", opt, err)
				}
				port = n
			default:
				return nil, fmt.Errorf("scriptdbg: unrecognized rdip option %q", opt)
			}
		}
	default:
		return nil, fmt.Errorf("scriptdbg: unknown client variant %q", fields[0])
	}

	keepAlive := time.Duration(config.Int(config.WorkQueueKeepAliveMS)) * time.Millisecond
	d := engine.NewDebugger(host.Tracer, host.Walker, host.Bridge, host.Source, host.Logger, keepAlive)

	path := config.Str(config.SettingsFile)
	if path == "" {
		path = settings.DefaultPath()
	}
	var store settings.Store = settings.NewYAMLFile(path)

	if fields[0] == "console" {
		return startConsole(d, store)
	}
	return startRDIP(d, port, wait)
}

func startConsole(d *engine.Debugger, store settings.Store) (func(), error) {
	if store != nil {
		store.Load(d.Breakpoints)
	}

	if err := d.Start(); err != nil {
		return nil, err
	}

	ui := console.New(d, os.Stdout)
	go ui.Run()

	return func() {
		if store != nil {
			store.Save(d.Breakpoints)
		}
		ui.Close()
		d.Stop()
	}, nil
}

func startRDIP(d *engine.Debugger, port int, wait bool) (func(), error) {
	if err := d.Start(); err != nil {
		return nil, err
	}

	srv := rdip.NewServer(d, nil)
	if err := srv.ListenAndServe(fmt.Sprintf(":%d", port)); err != nil {
		d.Stop()
		return nil, err
	}

	if wait {
		for !srv.IsClientConnected() {
			time.Sleep(10 * time.Millisecond)
		}
	}

	return func() {
		srv.Close()
		d.Stop()
	}, nil
}
