// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cobrautil

import (
	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/cobra"
)

const longWrapWidth = 80

// DefaultLong sets the long description to the short description if the long
// description is empty, and wraps it to a terminal friendly width.
func DefaultLong(cmd *cobra.Command) {
	if cmd.Short == "" {
		return
	}

	if cmd.Long == "" {
		cmd.Long = cmd.Short + "."
	}
	cmd.Long = wordwrap.WrapString(cmd.Long, longWrapWidth)
}

func NoHelpSubcommand(cmd *cobra.Command) {
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
}
