// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Session represents one accepted client connection.
// It exists in memory for the connection's lifetime only.
type Session struct {
	id         uint64
	clientAddr string
	startedAt  time.Time

	// dest is written once during handshake parsing, before the relay starts.
	dest string

	authenticated atomic.Bool
	bytesUp       atomic.Uint64
	bytesDown     atomic.Uint64
}

func (s *Session) ID() uint64 {
	return s.id
}

func (s *Session) ClientAddr() string {
	return s.clientAddr
}

func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Destination returns the host:port the client asked to reach,
// empty until the handshake is parsed.
func (s *Session) Destination() string {
	return s.dest
}

// Authenticated reports whether the session passed authentication.
// It is set at most once and never reverts to false.
func (s *Session) Authenticated() bool {
	return s.authenticated.Load()
}

func (s *Session) markAuthenticated() {
	s.authenticated.Store(true)
}

// BytesUp returns the number of bytes relayed from the client to the destination.
func (s *Session) BytesUp() uint64 {
	return s.bytesUp.Load()
}

// BytesDown returns the number of bytes relayed from the destination to the client.
func (s *Session) BytesDown() uint64 {
	return s.bytesDown.Load()
}

// sessionRegistry tracks in-flight sessions and enforces the session limit.
type sessionRegistry struct {
	limit int

	mu     sync.Mutex
	conns  map[uint64]net.Conn
	nextID uint64
	done   chan struct{} // closed when the registry becomes empty
}

func newSessionRegistry(limit int) *sessionRegistry {
	return &sessionRegistry{
		limit: limit,
		conns: make(map[uint64]net.Conn),
	}
}

// add registers a new session for conn.
// It returns false if the session limit is reached.
func (r *sessionRegistry) add(conn net.Conn) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.limit > 0 && len(r.conns) >= r.limit {
		return nil, false
	}

	r.nextID++
	s := &Session{
		id:         r.nextID,
		clientAddr: conn.RemoteAddr().String(),
		startedAt:  time.Now(),
	}
	r.conns[s.id] = conn

	return s, true
}

func (r *sessionRegistry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, s.id)
	if len(r.conns) == 0 && r.done != nil {
		close(r.done)
		r.done = nil
	}
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// wait blocks until all sessions are gone or the timeout elapses.
// It reports whether the registry drained in time.
func (r *sessionRegistry) wait(timeout time.Duration) bool {
	r.mu.Lock()
	if len(r.conns) == 0 {
		r.mu.Unlock()
		return true
	}
	if r.done == nil {
		r.done = make(chan struct{})
	}
	done := r.done
	r.mu.Unlock()

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

// closeAll force-closes all tracked connections.
func (r *sessionRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.conns {
		c.Close()
	}
}
