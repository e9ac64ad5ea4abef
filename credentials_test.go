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

func TestCredentialStoreVerify(t *testing.T) {
	cs := NewCredentialStore(url.UserPassword("user", "pass"))

	if !cs.IsSet() {
		t.Fatal("IsSet() = false")
	}
	if !cs.Verify("user", "pass") {
		t.Error("valid credentials rejected")
	}
	if cs.Verify("user", "nope") {
		t.Error("invalid password accepted")
	}
	if cs.Verify("nope", "pass") {
		t.Error("invalid username accepted")
	}
	if got := cs.FailedAttempts(); got != 2 {
		t.Errorf("FailedAttempts() = %d, want 2", got)
	}
}

func TestCredentialStoreUnset(t *testing.T) {
	var cs CredentialStore

	if cs.IsSet() {
		t.Error("IsSet() = true for zero value")
	}
	if cs.Verify("", "") {
		t.Error("unconfigured store must fail closed")
	}
}

func TestParseUserInfo(t *testing.T) {
	tests := []struct {
		in       string
		user     string
		pass     string
		wantErr  bool
	}{
		{in: "user:pass", user: "user", pass: "pass"},
		{in: "us%40er:pa%3ass", user: "us@er", pass: "pa:ss"},
		{in: "", wantErr: true},
		{in: "user", wantErr: true},
		{in: "user:", wantErr: true},
		{in: ":pass", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			ui, err := ParseUserInfo(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseUserInfo(%q) expected error", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if ui.Username() != tc.user {
				t.Errorf("username = %q, want %q", ui.Username(), tc.user)
			}
			if p, _ := ui.Password(); p != tc.pass {
				t.Errorf("password = %q, want %q", p, tc.pass)
			}
		})
	}
}
