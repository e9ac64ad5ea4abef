// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sysproxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// stateStore persists the system configuration captured before activation,
// so that deactivation restores what the user had rather than a blank slate.
type stateStore struct {
	path string
}

func newStateStore() (*stateStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("user config dir: %w", err)
	}
	return &stateStore{path: filepath.Join(dir, "delpha-proxy", "sysproxy.json")}, nil
}

// Save writes v to the state file, overwriting any previous snapshot.
func (s *stateStore) Save(v any) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o600)
}

// Load reads the saved snapshot into v.
// It reports false if no snapshot exists.
func (s *stateStore) Load(v any) (bool, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("corrupted state file %s: %w", s.path, err)
	}
	return true, nil
}

// Clear removes the saved snapshot, missing file is not an error.
func (s *stateStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
