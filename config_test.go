// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"net/url"
	"testing"
)

func TestDefaultProxyConfigValidate(t *testing.T) {
	if err := DefaultProxyConfig().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestProxyConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*ProxyConfig)
	}{
		{"empty addr", func(c *ProxyConfig) { c.Addr = "" }},
		{"addr without port", func(c *ProxyConfig) { c.Addr = "localhost" }},
		{"port out of range", func(c *ProxyConfig) { c.Addr = ":70000" }},
		{"port not a number", func(c *ProxyConfig) { c.Addr = ":http" }},
		{"negative dial timeout", func(c *ProxyConfig) { c.DialTimeout = -1 }},
		{"negative max sessions", func(c *ProxyConfig) { c.MaxSessions = -1 }},
		{"basic auth without password", func(c *ProxyConfig) { c.BasicAuth = url.User("user") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultProxyConfig()
			tc.mod(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseProxyAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "localhost:3128", want: "localhost:3128"},
		{in: ":3128", want: "localhost:3128"},
		{in: "10.0.0.1:8080", want: "10.0.0.1:8080"},
		{in: "localhost", wantErr: true},
		{in: "localhost:0", wantErr: true},
		{in: "localhost:http", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseProxyAddress(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("ParseProxyAddress(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
