// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package deactivate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/delpha/proxy/bind"
	"github.com/delpha/proxy/log"
	"github.com/delpha/proxy/log/stdlog"
	"github.com/delpha/proxy/sysproxy"
)

type command struct {
	logConfig *log.Config
}

func (c *command) runE(cmd *cobra.Command, _ []string) error {
	if f := c.logConfig.File; f != nil {
		defer f.Close()
	}
	logger := stdlog.New(c.logConfig)

	cfg, err := sysproxy.New(logger.Named("sysproxy"))
	if err != nil {
		return err
	}

	if err := cfg.Deactivate(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "system proxy deactivated, previous configuration restored")
	return nil
}

func Command() *cobra.Command {
	c := command{
		logConfig: log.DefaultConfig(),
	}

	cmd := &cobra.Command{
		Use:   "deactivate [flags]",
		Short: "Restore the system proxy settings",
		Args:  cobra.NoArgs,
		RunE:  c.runE,
	}

	fs := cmd.Flags()
	bind.LogConfig(fs, c.logConfig)
	bind.AutoMarkFlagFilename(cmd)

	return cmd
}
