// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package delphaproxy

import (
	"github.com/spf13/cobra"

	"github.com/delpha/proxy/bind"
	"github.com/delpha/proxy/command/activate"
	"github.com/delpha/proxy/command/check"
	"github.com/delpha/proxy/command/deactivate"
	"github.com/delpha/proxy/command/run"
	"github.com/delpha/proxy/command/status"
	"github.com/delpha/proxy/command/version"
	"github.com/delpha/proxy/utils/cobrautil"
)

const (
	EnvPrefix          = "DELPHA_PROXY"
	ConfigFileFlagName = "config-file"
)

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delpha-proxy",
		Short: "HTTP (forward) proxy server with credential protection and system proxy tooling",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cobrautil.BindAll(cmd, EnvPrefix, ConfigFileFlagName)
		},
	}
	bind.ConfigFile(cmd.PersistentFlags(), new(string))

	commands := []*cobra.Command{
		run.Command(),
		check.Command(),
		activate.Command(),
		deactivate.Command(),
		status.Command(),
		version.Command(),
	}
	for _, c := range commands {
		cobrautil.DefaultLong(c)
		cobrautil.AppendEnvToUsage(c, EnvPrefix)
		cmd.AddCommand(c)
	}

	cmd.SilenceUsage = true

	return cmd
}
