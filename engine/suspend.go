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
)

/*
SuspensionState is the rendezvous point between the scripting thread
(which blocks here when stopped at a tracepoint) and the network thread
(which inspects and resumes it). The network thread never calls into the
scripting runtime directly: instead it queues a closure here, which the
scripting thread runs for it the next time it wakes up, still on its own
goroutine.

A keep-alive ticker periodically broadcasts on the condition variable as
a defensive measure against a lost wakeup between a QueueWork/Resume call
and the scripting thread entering its wait - on top of the mutex, which
already makes such a race impossible in practice, this mirrors the
original debugger's deadline_timer belt-and-braces and keeps the
suspended goroutine from ever blocking forever if that invariant is ever
violated by a future change.
*/
type SuspensionState struct {
	mu   sync.Mutex
	cond *sync.Cond

	suspended bool
	resume    bool

	workQueue []func()

	keepAlive *time.Ticker
	stopOnce  sync.Once
	stopCh    chan struct{}
}

/*
NewSuspensionState creates a suspension handshake whose keep-alive ticker
fires every interval. A zero interval disables the ticker.
*/
func NewSuspensionState(interval time.Duration) *SuspensionState {
	s := &SuspensionState{
		stopCh: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	if interval > 0 {
		s.keepAlive = time.NewTicker(interval)
		go s.runKeepAlive()
	}

	return s
}

func (s *SuspensionState) runKeepAlive() {
	for {
		select {
		case <-s.keepAlive.C:
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

/*
Stop shuts down the keep-alive ticker. Safe to call more than once.
*/
func (s *SuspensionState) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.keepAlive != nil {
			s.keepAlive.Stop()
		}
	})
}

/*
QueueWork schedules fn to run on the scripting thread while it is
suspended, and wakes it up so it notices. fn runs with no lock held. If
the thread is not currently suspended, fn still runs the next time it
is.
*/
func (s *SuspensionState) QueueWork(fn func()) {
	s.mu.Lock()
	s.workQueue = append(s.workQueue, fn)
	s.cond.Broadcast()
	s.mu.Unlock()
}

/*
Suspend blocks the calling (scripting) goroutine until Resume is called,
draining any queued work in between. Which continuation mode to apply is
not this type's concern - a caller arms the trace state machine's latches
before calling Resume, and Suspend simply returns once released.
*/
func (s *SuspensionState) Suspend() {
	s.mu.Lock()

	s.suspended = true
	s.cond.Broadcast()

	for !s.resume {
		for len(s.workQueue) > 0 {
			fn := s.workQueue[0]
			s.workQueue = s.workQueue[1:]

			s.mu.Unlock()
			fn()
			s.mu.Lock()
		}

		if s.resume {
			break
		}
		s.cond.Wait()
	}

	s.resume = false
	s.suspended = false

	s.mu.Unlock()
}

/*
Resume wakes a suspended thread. It is a no-op if the thread is not
currently suspended.
*/
func (s *SuspensionState) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.suspended {
		return false
	}

	s.resume = true
	s.cond.Broadcast()
	return true
}

/*
IsSuspended reports whether the scripting thread is currently blocked in
Suspend.
*/
func (s *SuspensionState) IsSuspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}
