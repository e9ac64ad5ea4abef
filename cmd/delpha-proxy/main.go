// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"errors"
	"os"

	"github.com/delpha/proxy/command/check"
	"github.com/delpha/proxy/command/delphaproxy"
)

func main() {
	if err := delphaproxy.Command().Execute(); err != nil {
		var se *check.StatusError
		if errors.As(err, &se) {
			os.Exit(se.Code)
		}
		os.Exit(1)
	}
}
