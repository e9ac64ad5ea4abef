// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// dialDestination opens a bounded outbound connection to the host:port the
// client asked for. Failures are classified as destination unreachable.
func (p *ProxyServer) dialDestination(ctx context.Context, hostport string) (net.Conn, error) {
	d := net.Dialer{
		Timeout:   p.config.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	conn, err := d.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrDestinationUnreachable, hostport, err)
	}
	return conn, nil
}

var copyBufPool = sync.Pool{
	New: func() any {
		return make([]byte, 32*1024)
	},
}

// idleConn arms a fresh read deadline before each read so that a relay
// stalled in both directions eventually fails with a timeout error
// instead of holding the session forever.
type idleConn struct {
	net.Conn
	timeout time.Duration
}

func (c idleConn) Read(b []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

// countingWriter adds the number of bytes written to an atomic counter.
type countingWriter struct {
	w io.Writer
	n *atomic.Uint64
}

func (cw countingWriter) Write(b []byte) (int, error) {
	n, err := cw.w.Write(b)
	cw.n.Add(uint64(n))
	return n, err
}

type closeWriter interface {
	CloseWrite() error
}

// tunnel relays bytes between the client and destination connections until
// both directions are done or one of them fails. On return both connections
// are left to the caller to close.
func (p *ProxyServer) tunnel(s *Session, cconn, dconn net.Conn) error {
	donec := make(chan error, 2)

	go p.copyDirection("upstream", dconn, idleConn{cconn, p.config.IdleTimeout}, &s.bytesUp, donec)
	go p.copyDirection("downstream", cconn, idleConn{dconn, p.config.IdleTimeout}, &s.bytesDown, donec)

	var tunnelErr error
	for i := 0; i < 2; i++ {
		if err := <-donec; err != nil && tunnelErr == nil && !isClosedConnError(err) {
			tunnelErr = err
		}
	}

	if tunnelErr == nil {
		return nil
	}

	var neterr net.Error
	if errors.As(tunnelErr, &neterr) && neterr.Timeout() {
		return fmt.Errorf("%w: %s", ErrRelayTimeout, s.Destination())
	}
	return tunnelErr
}

// copyDirection copies one direction of the relay and half-closes the write
// side when the read side is exhausted, so that the peer sees EOF while the
// opposite direction keeps flowing.
func (p *ProxyServer) copyDirection(name string, dst net.Conn, src idleConn, counter *atomic.Uint64, donec chan<- error) {
	buf, _ := copyBufPool.Get().([]byte)
	defer copyBufPool.Put(buf) //nolint:staticcheck // 32KB slice, not a pointer.

	_, err := io.CopyBuffer(countingWriter{dst, counter}, src, buf)
	if err != nil && !isClosedConnError(err) {
		p.log.Debugf("relay %s error from %s: %s", name, src.RemoteAddr(), err)
	}

	if cw, ok := dst.(closeWriter); ok {
		cw.CloseWrite()
	} else {
		// No half-close support, unblock the peer reader the hard way.
		dst.SetReadDeadline(time.Now())
	}

	donec <- err
}
