// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package activate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/delpha/proxy/bind"
	"github.com/delpha/proxy/log"
	"github.com/delpha/proxy/log/stdlog"
	"github.com/delpha/proxy/sysproxy"
)

type command struct {
	proxyAddr string
	logConfig *log.Config
}

func (c *command) runE(cmd *cobra.Command, _ []string) error {
	if f := c.logConfig.File; f != nil {
		defer f.Close()
	}
	logger := stdlog.New(c.logConfig)

	s, err := sysproxy.ParseSettings(c.proxyAddr)
	if err != nil {
		return fmt.Errorf("proxy address: %w", err)
	}

	cfg, err := sysproxy.New(logger.Named("sysproxy"))
	if err != nil {
		return err
	}

	if err := cfg.Activate(cmd.Context(), s); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "system proxy activated, traffic goes through %s:%d\n", s.Host, s.Port)
	return nil
}

func Command() *cobra.Command {
	c := command{
		proxyAddr: "localhost:3128",
		logConfig: log.DefaultConfig(),
	}

	cmd := &cobra.Command{
		Use:   "activate [--proxy-address <host:port>] [flags]",
		Short: "Point the system proxy settings at the proxy",
		Long:  long,
		Args:  cobra.NoArgs,
		RunE:  c.runE,
	}

	fs := cmd.Flags()
	bind.ProxyAddress(fs, &c.proxyAddr)
	bind.LogConfig(fs, c.logConfig)
	bind.AutoMarkFlagFilename(cmd)

	return cmd
}

const long = `Point the system proxy settings at the proxy.
The previous configuration is saved and restored by the deactivate command.
Activating again with different settings keeps the original saved configuration.`
