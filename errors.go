// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// Error taxonomy for proxy sessions.
// Per-session errors terminate the session and are reported with a
// protocol-appropriate status response where one can still be written.
var (
	// ErrProxyAuthentication is returned when the client provided missing or invalid credentials.
	ErrProxyAuthentication = errors.New("proxy authentication required")

	// ErrCapacityExceeded is returned when the session limit is reached.
	ErrCapacityExceeded = errors.New("proxy capacity exceeded")

	// ErrDestinationUnreachable is returned when the outbound connection cannot be established.
	ErrDestinationUnreachable = errors.New("destination unreachable")

	// ErrProtocol is returned on a malformed handshake.
	ErrProtocol = errors.New("malformed proxy request")

	// ErrRelayTimeout is returned when a relay stalls beyond the idle timeout.
	ErrRelayTimeout = errors.New("relay idle timeout exceeded")
)

// errClose indicates that the client connection should be closed without further processing.
var errClose = errors.New("closing connection")

// isClosedConnError reports whether err is an error from use of a closed network connection.
func isClosedConnError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	return strings.Contains(err.Error(), "use of closed network connection")
}

// isCloseable reports whether err is an error that indicates the client connection should be closed.
func isCloseable(err error) bool {
	if err == nil {
		return false
	}

	var neterr net.Error
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		(errors.As(err, &neterr) && neterr.Timeout())
}

// errorReason maps err to a metrics label.
func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrProxyAuthentication):
		return "auth"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, ErrDestinationUnreachable):
		return "unreachable"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrRelayTimeout):
		return "timeout"
	default:
		var neterr net.Error
		if errors.As(err, &neterr) && neterr.Timeout() {
			return "timeout"
		}
		return "network"
	}
}
