// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cobrautil

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestBindAllEnv(t *testing.T) {
	t.Setenv("TEST_ADDRESS", "localhost:4000")

	var addr string
	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&addr, "address", ":3128", "")

	if err := BindAll(cmd, "TEST", ""); err != nil {
		t.Fatal(err)
	}
	if addr != "localhost:4000" {
		t.Errorf("address = %q, want %q", addr, "localhost:4000")
	}
}

func TestBindAllFlagTakesPrecedence(t *testing.T) {
	t.Setenv("TEST_ADDRESS", "localhost:4000")

	var addr string
	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&addr, "address", ":3128", "")
	if err := cmd.Flags().Set("address", "localhost:5000"); err != nil {
		t.Fatal(err)
	}

	if err := BindAll(cmd, "TEST", ""); err != nil {
		t.Fatal(err)
	}
	if addr != "localhost:5000" {
		t.Errorf("address = %q, want %q", addr, "localhost:5000")
	}
}

func TestEnvName(t *testing.T) {
	if got := EnvName("DELPHA_PROXY", "basic-auth"); got != "DELPHA_PROXY_BASIC_AUTH" {
		t.Errorf("EnvName() = %q", got)
	}
}
