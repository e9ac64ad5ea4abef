// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sysproxy

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/delpha/proxy/log"
)

// fakeGsettings emulates a gsettings key-value store.
type fakeGsettings struct {
	values map[string]string
	calls  []string
}

func newFakeGsettings(mode string) *fakeGsettings {
	return &fakeGsettings{
		values: map[string]string{
			schemaProxy + " mode":       "'" + mode + "'",
			schemaProxyHTTP + " host":   "''",
			schemaProxyHTTP + " port":   "0",
			schemaProxyHTTPS + " host":  "''",
			schemaProxyHTTPS + " port":  "0",
		},
	}
}

func (f *fakeGsettings) run(ctx context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	if name != gsettingsBin {
		return "", errors.New("unexpected command " + name)
	}
	key := args[1] + " " + args[2]
	switch args[0] {
	case "get":
		return f.values[key] + "\n", nil
	case "set":
		f.values[key] = args[3]
		return "", nil
	}
	return "", errors.New("unexpected gsettings verb " + args[0])
}

func (f *fakeGsettings) mode() string {
	return strings.Trim(f.values[schemaProxy+" mode"], "'")
}

func testStore(t *testing.T) *stateStore {
	t.Helper()
	return &stateStore{path: filepath.Join(t.TempDir(), "sysproxy.json")}
}

func TestGnomeDetect(t *testing.T) {
	tests := []struct {
		mode string
		want State
	}{
		{"none", StateInactive},
		{"auto", StateInactive},
		{"manual", StateActive},
	}
	for _, tc := range tests {
		t.Run(tc.mode, func(t *testing.T) {
			f := newFakeGsettings(tc.mode)
			c := newGnomeConfigurator(f.run, testStore(t), log.NopLogger)

			got, err := c.Detect(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("Detect() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestGnomeDetectError(t *testing.T) {
	run := func(ctx context.Context, name string, args ...string) (string, error) {
		return "", errors.New("dbus unavailable")
	}
	c := newGnomeConfigurator(run, testStore(t), log.NopLogger)

	got, err := c.Detect(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got != StateUnknown {
		t.Errorf("Detect() = %s, want %s", got, StateUnknown)
	}
}

func TestGnomeActivateDeactivateRoundTrip(t *testing.T) {
	f := newFakeGsettings("none")
	f.values[schemaProxyHTTP+" host"] = "'old.example.com'"
	f.values[schemaProxyHTTP+" port"] = "8080"
	c := newGnomeConfigurator(f.run, testStore(t), log.NopLogger)
	ctx := context.Background()

	if err := c.Activate(ctx, Settings{Host: "localhost", Port: 3128}); err != nil {
		t.Fatal(err)
	}
	if f.mode() != proxyModeManual {
		t.Fatalf("mode after Activate = %q, want %q", f.mode(), proxyModeManual)
	}
	if got := f.values[schemaProxyHTTP+" host"]; got != "localhost" {
		t.Fatalf("http host after Activate = %q", got)
	}
	if s, err := c.Detect(ctx); err != nil || s != StateActive {
		t.Fatalf("Detect() after Activate = %s, %v", s, err)
	}

	if err := c.Deactivate(ctx); err != nil {
		t.Fatal(err)
	}
	if f.mode() != proxyModeNone {
		t.Fatalf("mode after Deactivate = %q, want %q", f.mode(), proxyModeNone)
	}
	if got := f.values[schemaProxyHTTP+" host"]; got != "old.example.com" {
		t.Errorf("http host not restored, got %q", got)
	}
	if got := f.values[schemaProxyHTTP+" port"]; got != "8080" {
		t.Errorf("http port not restored, got %q", got)
	}
}

func TestGnomeActivateIdempotent(t *testing.T) {
	f := newFakeGsettings("none")
	f.values[schemaProxyHTTP+" host"] = "'old.example.com'"
	c := newGnomeConfigurator(f.run, testStore(t), log.NopLogger)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := c.Activate(ctx, Settings{Host: "localhost", Port: 3128}); err != nil {
			t.Fatal(err)
		}
	}

	// Repeated activations must keep the original pre-activation snapshot,
	// deactivating once restores it.
	if err := c.Deactivate(ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.values[schemaProxyHTTP+" host"]; got != "old.example.com" {
		t.Errorf("http host not restored after repeated Activate, got %q", got)
	}
}

func TestGnomeDeactivateIdempotent(t *testing.T) {
	f := newFakeGsettings("none")
	c := newGnomeConfigurator(f.run, testStore(t), log.NopLogger)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := c.Deactivate(ctx); err != nil {
			t.Fatal(err)
		}
		if f.mode() != proxyModeNone {
			t.Fatalf("mode after Deactivate = %q, want %q", f.mode(), proxyModeNone)
		}
	}
}

func TestGnomeActivateInvalidSettings(t *testing.T) {
	f := newFakeGsettings("none")
	c := newGnomeConfigurator(f.run, testStore(t), log.NopLogger)

	if err := c.Activate(context.Background(), Settings{Host: "", Port: 3128}); err == nil {
		t.Error("expected error for missing host")
	}
	if err := c.Activate(context.Background(), Settings{Host: "localhost", Port: 0}); err == nil {
		t.Error("expected error for port 0")
	}
	if len(f.calls) != 0 {
		t.Errorf("no commands should run on invalid settings, got %v", f.calls)
	}
}

func TestClassifyExecError(t *testing.T) {
	err := classifyExecError(errors.New("exit status 1"), "failed to commit changes to dconf: Permission denied")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
}
