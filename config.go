// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProxyConfig configures the proxy server.
// It is immutable after the server is created.
type ProxyConfig struct {
	// Addr is the TCP address to listen on in form "host:port".
	// If the host is empty, the server listens on all available interfaces.
	Addr string

	// BasicAuth is the username and password protecting the proxy.
	// If nil, authentication is disabled and all clients are accepted.
	BasicAuth *url.Userinfo

	// ReadHeaderTimeout is the amount of time allowed to read the request
	// line and headers of the proxy handshake.
	ReadHeaderTimeout time.Duration

	// IdleTimeout is the maximum amount of time a relay may stall in both
	// directions before it is torn down.
	IdleTimeout time.Duration

	// DialTimeout is the maximum amount of time a dial to the destination
	// will wait for a connect to complete.
	DialTimeout time.Duration

	// MaxSessions limits the number of concurrently served sessions.
	// Connections above the limit are accepted and rejected with a
	// capacity-exceeded response. Zero means no limit.
	MaxSessions int

	// ShutdownTimeout is the grace period given to in-flight sessions
	// after the listener is closed before they are force-closed.
	ShutdownTimeout time.Duration

	PromNamespace string
	PromRegistry  prometheus.Registerer
}

func DefaultProxyConfig() *ProxyConfig {
	return &ProxyConfig{
		Addr:              ":3128",
		ReadHeaderTimeout: 1 * time.Minute,
		IdleTimeout:       15 * time.Minute,
		DialTimeout:       10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}

func (c *ProxyConfig) Validate() error {
	if err := validateAddr(c.Addr); err != nil {
		return fmt.Errorf("addr: %w", err)
	}
	if c.BasicAuth != nil {
		if c.BasicAuth.Username() == "" {
			return fmt.Errorf("basic_auth: missing username")
		}
		if p, _ := c.BasicAuth.Password(); p == "" {
			return fmt.Errorf("basic_auth: missing password")
		}
	}
	if c.ReadHeaderTimeout < 0 || c.IdleTimeout < 0 || c.DialTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("max_sessions must not be negative")
	}

	return nil
}

// validateAddr checks that addr is a host:port with a port in range 0-65535.
// Port 0 is allowed, the listener then binds an ephemeral port.
func validateAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("missing address")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("expected host:port: %w", err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port %q", port)
	}
	if n < 0 || n > 65535 {
		return fmt.Errorf("port %d out of range", n)
	}
	return nil
}

// ParseProxyAddress parses a "host:port" proxy address and normalizes it.
// A missing host defaults to localhost.
func ParseProxyAddress(val string) (string, error) {
	host, port, err := net.SplitHostPort(val)
	if err != nil {
		return "", fmt.Errorf("expected host:port: %w", err)
	}
	if host == "" {
		host = "localhost"
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", fmt.Errorf("invalid port %q", port)
	}
	return net.JoinHostPort(host, port), nil
}
