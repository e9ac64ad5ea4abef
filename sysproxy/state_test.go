// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sysproxy

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStateStoreRoundTrip(t *testing.T) {
	s := testStore(t)

	var got gnomeSnapshot
	if ok, err := s.Load(&got); err != nil || ok {
		t.Fatalf("Load() on missing file = %v, %v", ok, err)
	}

	want := gnomeSnapshot{Mode: "none", HTTPHost: "old.example.com", HTTPPort: "8080"}
	if err := s.Save(want); err != nil {
		t.Fatal(err)
	}
	if ok, err := s.Load(&got); err != nil || !ok {
		t.Fatalf("Load() = %v, %v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() on missing file = %v", err)
	}
	if ok, _ := s.Load(&got); ok {
		t.Error("Load() after Clear() found a snapshot")
	}
}

func TestStateStoreCorrupted(t *testing.T) {
	s := testStore(t)
	if err := os.WriteFile(s.path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	var snap gnomeSnapshot
	if _, err := s.Load(&snap); err == nil {
		t.Error("expected error for corrupted state file")
	}
}
