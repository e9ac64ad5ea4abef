// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestBasicAuth(t *testing.T) {
	ba := NewBasicAuth(AuthorizationHeader)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetBasicAuth("user", "pass")

	if user, pass, ok := ba.BasicAuth(r); !ok || user != "user" || pass != "pass" {
		t.Errorf("BasicAuth failed, got %v %v %v", user, pass, ok)
	}
}

func TestProxyBasicAuth(t *testing.T) {
	ba := NewProxyBasicAuth()
	r := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	ba.SetBasicAuthFromUserInfo(r, url.UserPassword("user", "pass"))

	if r.Header.Get(AuthorizationHeader) != "" {
		t.Errorf("Authorization header should not be set")
	}
	if user, pass, ok := ba.BasicAuth(r); !ok || user != "user" || pass != "pass" {
		t.Errorf("BasicAuth failed, got %v %v %v", user, pass, ok)
	}
}

func TestParseBasicAuthMalformed(t *testing.T) {
	tests := []string{
		"",
		"Basic",
		"Basic !!!",
		"Bearer dXNlcjpwYXNz",
		"Basic dXNlcnBhc3M=", // no colon
	}

	ba := NewProxyBasicAuth()
	for _, v := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
		if v != "" {
			r.Header.Set(ProxyAuthorizationHeader, v)
		}
		if _, _, ok := ba.BasicAuth(r); ok {
			t.Errorf("expected failure for %q", v)
		}
	}
}
