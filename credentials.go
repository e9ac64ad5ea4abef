// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"crypto/subtle"
	"fmt"
	"net/url"
	"sync/atomic"
)

// CredentialStore holds the configured proxy credentials and answers
// authentication checks. The zero value is an unconfigured store that
// rejects everything, see Verify.
type CredentialStore struct {
	user   string
	secret string
	set    bool

	failed atomic.Uint64
}

// NewCredentialStore creates a credential store from the given userinfo.
// A nil userinfo results in an unconfigured store.
func NewCredentialStore(u *url.Userinfo) *CredentialStore {
	cs := new(CredentialStore)
	if u == nil {
		return cs
	}

	cs.user = u.Username()
	cs.secret, _ = u.Password()
	cs.set = true

	return cs
}

// IsSet reports whether the store holds configured credentials.
func (cs *CredentialStore) IsSet() bool {
	return cs.set
}

// Verify compares the candidate credentials against the configured set.
// The comparison is constant-time to mitigate timing attacks.
// An unconfigured store fails closed and returns false.
func (cs *CredentialStore) Verify(user, secret string) bool {
	if !cs.set {
		return false
	}

	// Both comparisons always run so that a username mismatch
	// is indistinguishable from a password mismatch.
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cs.user)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(secret), []byte(cs.secret)) == 1
	if userOK && secretOK {
		return true
	}

	cs.failed.Add(1)
	return false
}

// FailedAttempts returns the number of failed Verify calls.
func (cs *CredentialStore) FailedAttempts() uint64 {
	return cs.failed.Load()
}

// ParseUserInfo parses a "username:password" string into url.Userinfo.
// Username and password are URL decoded, so special characters can be
// passed in as %40 for @ or %3a for a colon.
func ParseUserInfo(val string) (*url.Userinfo, error) {
	if val == "" {
		return nil, fmt.Errorf("expected username:password")
	}

	u, err := url.Parse("proxy://" + val + "@localhost")
	if err != nil {
		return nil, fmt.Errorf("expected username:password")
	}

	ui := u.User
	if ui.Username() == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}
	if p, _ := ui.Password(); p == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}

	return ui, nil
}
