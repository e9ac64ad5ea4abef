// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package sysproxy points the operating system's proxy settings at a
// forward proxy and restores them afterwards.
//
// Supported platforms are Linux with GNOME (gsettings) and macOS
// (networksetup). On any other platform New returns ErrUnsupportedPlatform.
package sysproxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/delpha/proxy/log"
)

var (
	// ErrUnsupportedPlatform is returned when no configurator exists for the
	// current operating system or desktop environment.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrPermissionDenied is returned when the system settings exist but
	// cannot be modified by the current user.
	ErrPermissionDenied = errors.New("permission denied")
)

// State describes whether the system is currently configured to use a proxy.
type State int

const (
	// StateUnknown means the system settings could not be read.
	StateUnknown State = iota
	// StateInactive means no proxy is configured.
	StateInactive
	// StateActive means the system routes traffic through a proxy.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Settings is the proxy endpoint to install in the system configuration.
type Settings struct {
	Host string
	Port int
}

func (s Settings) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("missing host")
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range", s.Port)
	}
	return nil
}

// ParseSettings parses a "host:port" string into Settings.
func ParseSettings(val string) (Settings, error) {
	host, port, err := net.SplitHostPort(val)
	if err != nil {
		return Settings{}, fmt.Errorf("expected host:port: %w", err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid port %q", port)
	}
	s := Settings{Host: host, Port: n}
	return s, s.Validate()
}

// Configurator manages the system proxy configuration.
//
// Activate and Deactivate are idempotent: applying either in its target
// state is a no-op and returns nil.
type Configurator interface {
	// Detect reads the current system state.
	Detect(ctx context.Context) (State, error)

	// Activate installs s as the system proxy, saving the previous
	// configuration so Deactivate can restore it.
	Activate(ctx context.Context, s Settings) error

	// Deactivate restores the configuration saved by Activate, or turns
	// the proxy off if no saved configuration exists.
	Deactivate(ctx context.Context) error
}

// CommandRunner executes a system configuration command and returns its
// combined output. It exists so tests can stub out the real binaries.
type CommandRunner func(ctx context.Context, name string, args ...string) (string, error)

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return string(out), classifyExecError(err, string(out))
	}
	return string(out), nil
}

func classifyExecError(err error, out string) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, err)
	}
	if strings.Contains(strings.ToLower(out), "permission denied") {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, strings.TrimSpace(out))
	}
	if out != "" {
		return fmt.Errorf("%s: %s", err, strings.TrimSpace(out))
	}
	return err
}

// New returns the configurator for the current operating system.
func New(logger log.Logger) (Configurator, error) {
	store, err := newStateStore()
	if err != nil {
		return nil, err
	}

	switch runtime.GOOS {
	case "linux":
		return newGnomeConfigurator(execRunner, store, logger), nil
	case "darwin":
		return newNetworksetupConfigurator(execRunner, store, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, runtime.GOOS)
	}
}
