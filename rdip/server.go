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
	"bufio"
	"fmt"
	"net"
	"regexp"
	"strings"
	"sync"

	"github.com/fatih/color"

	"devt.de/krotik/scriptdbg/engine"
	"devt.de/krotik/scriptdbg/util"
)

/*
DefaultPort is the port a ruby-debug-ide client connects to when none is
given explicitly.
*/
const DefaultPort = 1234

var commandSeparator = regexp.MustCompile(`[;\r\n]+`)

/*
Server is the ruby-debug-ide protocol adapter: a TCP acceptor serving at
most one client at a time, translating line-delimited commands into calls
on a debug engine and engine notifications into single-line XML
responses. Accepting connections and evaluating commands both run on
their own goroutine (the "network thread"); they never call into the
host runtime directly, only through the engine facade, which hops any
runtime-touching call onto the scripting thread via QueueAndWait.
*/
type Server struct {
	debugger *engine.Debugger
	logger   util.Logger

	listener net.Listener
	closed   chan struct{}

	connMu sync.Mutex
	conn   net.Conn

	writeMu sync.Mutex
}

/*
NewServer creates a protocol adapter around a debug engine. The server
wires itself up as the engine's OnBreak callback; it is an error to give
the same *engine.Debugger to two servers.
*/
func NewServer(debugger *engine.Debugger, logger util.Logger) *Server {
	if logger == nil {
		logger = util.NewNullLogger()
	}

	s := &Server{
		debugger: debugger,
		logger:   logger,
		closed:   make(chan struct{}),
	}
	debugger.OnBreak = s.onBreak

	return s
}

/*
ListenAndServe binds addr (host:port, or just :port) and starts accepting
connections in the background. It returns once the listener is bound, not
once a client has connected - a ruby-debug-ide client is free to connect
at any later time. Use IsClientConnected to find out whether one has.
*/
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return err
	}
	s.listener = ln

	go s.acceptLoop()
	return nil
}

/*
Close stops accepting new connections and closes the current one, if any.
*/
func (s *Server) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}

	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn != nil {
		conn.Close()
	}

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

/*
IsClientConnected reports whether a client is currently connected.
*/
func (s *Server) IsClientConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
				s.logger.LogError(fmt.Sprintf("rdip: accept failed: %v", err))
				return
			}
		}
		// At most one client at a time: handleConn runs the full lifetime
		// of this connection before the acceptor is rearmed, mirroring the
		// original debug server's single-connection discipline.
		s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.logger.LogInfo("rdip: client connected")

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			s.processLine(line)
		}
		if err != nil {
			break
		}
	}

	s.connMu.Lock()
	s.conn = nil
	s.connMu.Unlock()
	conn.Close()

	// A disconnect clears every breakpoint and releases a suspended
	// thread - the next client starts a debugging session from scratch.
	s.debugger.Breakpoints.Clear()
	s.debugger.Continue(engine.Resume)

	s.logger.LogInfo("rdip: client disconnected")
}

func (s *Server) processLine(line string) {
	for _, token := range commandSeparator.Split(line, -1) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		s.logger.LogDebug(color.CyanString("rdip < %s", token))

		response, disconnect := s.evaluate(token)
		if response != "" {
			s.write(response)
		}
		if disconnect {
			s.connMu.Lock()
			conn := s.conn
			s.connMu.Unlock()
			if conn != nil {
				conn.Close()
			}
			return
		}
	}
}

func (s *Server) write(response string) {
	response = strings.TrimSpace(response)
	if response == "" {
		return
	}

	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		s.logger.LogDebug("rdip: no client connected, dropping response")
		return
	}

	s.logger.LogDebug(color.GreenString("rdip > %s", response))

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.Write([]byte(response + "\r\n"))
}

/*
onBreak is wired up as the engine's OnBreak callback. It runs on the
scripting thread, right after a frame snapshot is taken and before the
thread blocks in the suspension handshake - exactly where the protocol
needs to push its notification, since the client must see "stopped"
before it can send a command that expects the thread to already be
waiting.
*/
func (s *Server) onBreak(reason engine.StopReason, file string, line int) {
	if !s.IsClientConnected() {
		return
	}

	if reason == engine.StopBreakpoint {
		s.write(fmt.Sprintf(`<breakpoint file="%s" line="%d" threadId="1" />`, escapeXML(file), line))
		return
	}
	s.write(fmt.Sprintf(`<suspended file="%s" line="%d" threadId="1" frames="1" />`, escapeXML(file), line))
}
