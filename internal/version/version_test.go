// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	Version = "v1.2.3"
	Commit = "abcdef0"

	s := Get().String()
	for _, w := range []string{"v1.2.3", "abcdef0", "go"} {
		if !strings.Contains(s, w) {
			t.Errorf("String() = %q, expected to contain %q", s, w)
		}
	}
}
