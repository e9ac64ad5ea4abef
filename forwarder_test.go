// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/delpha/proxy/log"
)

// tcpPipe returns two ends of a loopback TCP connection.
func tcpPipe(t *testing.T) (client, server net.Conn) {
	t.Helper()

	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		server, err = l.Accept()
	}()

	client, cerr := net.Dial("tcp", l.Addr().String())
	<-done
	if cerr != nil {
		t.Fatal(cerr)
	}
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func testServer(idleTimeout time.Duration) *ProxyServer {
	return &ProxyServer{
		config: ProxyConfig{
			IdleTimeout: idleTimeout,
			DialTimeout: time.Second,
		},
		log: log.NopLogger,
	}
}

func TestTunnelRelaysAndCounts(t *testing.T) {
	clientEnd, cconn := tcpPipe(t)
	dconn, destEnd := tcpPipe(t)

	p := testServer(0)
	s := &Session{}

	done := make(chan error, 1)
	go func() {
		done <- p.tunnel(s, cconn, dconn)
	}()

	if _, err := clientEnd.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 5)
	if _, err := io.ReadFull(destEnd, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hello" {
		t.Fatalf("destination read %q, want %q", buf, "hello")
	}

	if _, err := destEnd.Write([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	buf = buf[:3]
	if _, err := io.ReadFull(clientEnd, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "abc" {
		t.Fatalf("client read %q, want %q", buf, "abc")
	}

	// Half-close from the client propagates EOF to the destination.
	clientEnd.(*net.TCPConn).CloseWrite()
	if _, err := destEnd.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("destination read error = %v, want EOF", err)
	}
	destEnd.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tunnel did not finish")
	}

	if got := s.BytesUp(); got != 5 {
		t.Errorf("BytesUp() = %d, want 5", got)
	}
	if got := s.BytesDown(); got != 3 {
		t.Errorf("BytesDown() = %d, want 3", got)
	}
}

func TestTunnelIdleTimeout(t *testing.T) {
	_, cconn := tcpPipe(t)
	dconn, _ := tcpPipe(t)

	p := testServer(50 * time.Millisecond)
	s := &Session{}

	done := make(chan error, 1)
	go func() {
		done <- p.tunnel(s, cconn, dconn)
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrRelayTimeout) {
			t.Fatalf("tunnel error = %v, want ErrRelayTimeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tunnel did not time out")
	}
}

func TestDialDestinationUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	target := l.Addr().String()
	l.Close()

	p := testServer(0)
	if _, err := p.dialDestination(context.Background(), target); !errors.Is(err, ErrDestinationUnreachable) {
		t.Fatalf("dial error = %v, want ErrDestinationUnreachable", err)
	}
}
