// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/delpha/proxy/log"
	"github.com/delpha/proxy/middleware"
)

// ProxyServer is a forward HTTP proxy protected with Basic Authentication.
// It serves CONNECT tunnels and absolute-form plain HTTP requests.
type ProxyServer struct {
	config    ProxyConfig
	log       log.Logger
	creds     *CredentialStore
	basicAuth *middleware.BasicAuth
	metrics   *serverMetrics
	registry  *sessionRegistry
	transport http.RoundTripper
	listener  net.Listener
}

func NewProxyServer(cfg *ProxyConfig, logger log.Logger) (*ProxyServer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &ProxyServer{
		config:    *cfg,
		log:       logger,
		creds:     NewCredentialStore(cfg.BasicAuth),
		basicAuth: middleware.NewProxyBasicAuth(),
		metrics:   newServerMetrics(cfg.PromRegistry, cfg.PromNamespace),
		registry:  newSessionRegistry(cfg.MaxSessions),
		transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   cfg.DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	if p.creds.IsSet() {
		p.log.Infof("PROXY server authentication enabled for user %q", cfg.BasicAuth.Username())
	} else {
		p.log.Infof("PROXY server authentication disabled, all clients will be accepted")
	}

	l, err := Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	p.listener = l

	return p, nil
}

// Addr returns the address the server is listening on.
func (p *ProxyServer) Addr() string {
	return p.listener.Addr().String()
}

// Sessions returns the number of currently served sessions.
func (p *ProxyServer) Sessions() int {
	return p.registry.len()
}

// FailedAuthAttempts returns the number of failed authentication attempts since start.
func (p *ProxyServer) FailedAuthAttempts() uint64 {
	return p.creds.FailedAttempts()
}

// Run serves the proxy until ctx is canceled. On cancellation the listener
// is closed immediately and in-flight sessions are given ShutdownTimeout to
// drain before being force-closed.
func (p *ProxyServer) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		p.listener.Close()
	}()

	p.log.Infof("PROXY server listen address=%s", p.Addr())

	err := p.serve()

	if n := p.registry.len(); n > 0 {
		p.log.Infof("waiting for %d open sessions to finish", n)
		if !p.registry.wait(p.config.ShutdownTimeout) {
			p.log.Infof("forcing %d open sessions to close", p.registry.len())
			p.registry.closeAll()
			p.registry.wait(p.config.ShutdownTimeout)
		}
	}

	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (p *ProxyServer) serve() error {
	var delay time.Duration
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				if delay == 0 {
					delay = 5 * time.Millisecond
				} else {
					delay *= 2
				}
				if max := time.Second; delay > max {
					delay = max
				}
				p.log.Debugf("temporary accept error, retrying in %s: %s", delay, err)
				time.Sleep(delay)
				continue
			}

			return fmt.Errorf("accept: %w", err)
		}
		delay = 0

		go p.handleConn(conn)
	}
}

func (p *ProxyServer) handleConn(conn net.Conn) {
	defer conn.Close()

	s, ok := p.registry.add(conn)
	if !ok {
		p.metrics.reject("capacity")
		p.log.Infof("session rejected client=%s: %s", conn.RemoteAddr(), ErrCapacityExceeded)
		writeErrorResponse(conn, http.StatusServiceUnavailable)
		return
	}
	p.metrics.sessionStart()
	defer func() {
		p.registry.remove(s)
		p.metrics.sessionEnd(s)
	}()

	if err := p.handleSession(s, conn); err != nil && !errors.Is(err, errClose) {
		p.metrics.error(err)
		p.log.Infof("session %d client=%s dst=%s failed: %s", s.ID(), s.ClientAddr(), s.Destination(), err)
	} else {
		p.log.Debugf("session %d client=%s dst=%s closed up=%dB down=%dB",
			s.ID(), s.ClientAddr(), s.Destination(), s.BytesUp(), s.BytesDown())
	}
}

func (p *ProxyServer) handleSession(s *Session, conn net.Conn) error {
	br := bufio.NewReader(conn)

	req, err := p.readRequest(conn, br)
	if err != nil {
		if isClosedConnError(err) || isCloseable(err) {
			return errClose
		}
		writeErrorResponse(conn, http.StatusBadRequest)
		return fmt.Errorf("%w: %s", ErrProtocol, err)
	}

	if err := p.authenticate(s, conn, req); err != nil {
		return err
	}

	if req.Method == http.MethodConnect {
		return p.handleConnect(s, conn, br, req)
	}
	return p.handleHTTP(s, conn, br, req)
}

// readRequest parses a proxy request off the wire. The header read deadline
// is armed for the duration of the parse only, the relay that follows uses
// its own idle deadlines.
func (p *ProxyServer) readRequest(conn net.Conn, br *bufio.Reader) (*http.Request, error) {
	if d := p.config.ReadHeaderTimeout; d > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(d)); err != nil {
			return nil, err
		}
	}

	req, err := http.ReadRequest(br)
	if err != nil {
		return nil, err
	}

	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}
	return req, nil
}

// authenticate verifies the Proxy-Authorization header against the
// configured credentials. Missing and invalid credentials are both answered
// with a 407 challenge, without revealing which of the two it was.
func (p *ProxyServer) authenticate(s *Session, conn net.Conn, req *http.Request) error {
	if !p.creds.IsSet() {
		s.markAuthenticated()
		return nil
	}

	user, pass, ok := p.basicAuth.BasicAuth(req)
	if !ok || !p.creds.Verify(user, pass) {
		p.metrics.authFailures.Inc()
		writeProxyAuthRequired(conn)
		return ErrProxyAuthentication
	}

	s.markAuthenticated()
	return nil
}

func (p *ProxyServer) handleConnect(s *Session, conn net.Conn, br *bufio.Reader, req *http.Request) error {
	target := req.URL.Host
	if req.URL.Port() == "" {
		writeErrorResponse(conn, http.StatusBadRequest)
		return fmt.Errorf("%w: CONNECT target %q missing port", ErrProtocol, target)
	}
	s.dest = target

	dconn, err := p.dialDestination(context.Background(), target)
	if err != nil {
		writeErrorResponse(conn, http.StatusBadGateway)
		return err
	}
	defer dconn.Close()

	res := newResponse(http.StatusOK, "")
	res.Status = "200 Connection Established"
	if err := res.Write(conn); err != nil {
		return err
	}

	// The client may have pipelined bytes behind the CONNECT request,
	// hand them to the destination before starting the relay.
	if err := drainBuffer(dconn, br); err != nil {
		return err
	}

	p.log.Debugf("session %d tunnel established client=%s dst=%s", s.ID(), s.ClientAddr(), target)
	return p.tunnel(s, conn, dconn)
}

// handleHTTP forwards absolute-form plain HTTP requests and keeps the client
// connection open for follow-up requests until either side asks to close.
func (p *ProxyServer) handleHTTP(s *Session, conn net.Conn, br *bufio.Reader, req *http.Request) error {
	for {
		if !req.URL.IsAbs() {
			writeErrorResponse(conn, http.StatusBadRequest)
			return fmt.Errorf("%w: request URI %q must be absolute", ErrProtocol, req.RequestURI)
		}
		s.dest = requestHostPort(req.URL)

		res, err := p.roundTrip(s, req)
		if err != nil {
			writeErrorResponse(conn, http.StatusBadGateway)
			return fmt.Errorf("%w: %s: %s", ErrDestinationUnreachable, s.dest, err)
		}

		err = res.Write(countingWriter{conn, &s.bytesDown})
		res.Body.Close()
		if err != nil {
			if isClosedConnError(err) {
				return errClose
			}
			return err
		}

		if req.Close || res.Close {
			return errClose
		}

		req, err = p.readRequest(conn, br)
		if err != nil {
			if isClosedConnError(err) || isCloseable(err) {
				return errClose
			}
			return fmt.Errorf("%w: %s", ErrProtocol, err)
		}
		if err := p.authenticate(s, conn, req); err != nil {
			return err
		}
	}
}

// roundTrip sends the client's request to the destination with
// hop-by-hop proxy headers stripped.
func (p *ProxyServer) roundTrip(s *Session, req *http.Request) (*http.Response, error) {
	outreq := req.Clone(context.Background())
	outreq.RequestURI = ""
	outreq.Header.Del(middleware.ProxyAuthorizationHeader)
	outreq.Header.Del("Proxy-Connection")
	if outreq.Body != nil && outreq.Body != http.NoBody {
		outreq.Body = countingReadCloser{outreq.Body, &s.bytesUp}
	}

	return p.transport.RoundTrip(outreq)
}

type countingReadCloser struct {
	rc io.ReadCloser
	n  *atomic.Uint64
}

func (cr countingReadCloser) Read(b []byte) (int, error) {
	n, err := cr.rc.Read(b)
	cr.n.Add(uint64(n))
	return n, err
}

func (cr countingReadCloser) Close() error {
	return cr.rc.Close()
}

func requestHostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	return net.JoinHostPort(u.Hostname(), "80")
}

func drainBuffer(w io.Writer, r *bufio.Reader) error {
	n := r.Buffered()
	if n == 0 {
		return nil
	}
	buf, err := r.Peek(n)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return err
	}
	_, err = r.Discard(n)
	return err
}

// newResponse builds a minimal HTTP/1.1 response suitable for writing
// directly to the client connection.
func newResponse(code int, body string) *http.Response {
	res := &http.Response{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{},
	}
	if body != "" {
		res.Header.Set("Content-Type", "text/plain; charset=utf-8")
		res.Body = io.NopCloser(strings.NewReader(body))
		res.ContentLength = int64(len(body))
	} else {
		res.Body = http.NoBody
	}
	return res
}

func writeErrorResponse(conn net.Conn, code int) {
	res := newResponse(code, http.StatusText(code)+"\n")
	res.Close = true
	res.Write(conn)
}

func writeProxyAuthRequired(conn net.Conn) {
	res := newResponse(http.StatusProxyAuthRequired, http.StatusText(http.StatusProxyAuthRequired)+"\n")
	res.Header.Set("Proxy-Authenticate", `Basic realm="Delpha Proxy"`)
	res.Close = true
	res.Write(conn)
}
