// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package check

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/delpha/proxy"
	"github.com/delpha/proxy/bind"
	"github.com/delpha/proxy/log"
	"github.com/delpha/proxy/log/stdlog"
)

// Exit codes distinguish why the check failed, so scripts can react
// without parsing the output.
const (
	ExitCodeUnreachable     = 2
	ExitCodeUnauthenticated = 3
)

// StatusError carries the exit code for a failed check.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	return e.Reason
}

type command struct {
	checkerConfig *proxy.HealthCheckerConfig
	logConfig     *log.Config
	jsonOut       bool
}

func makeCommand() command {
	return command{
		checkerConfig: proxy.DefaultHealthCheckerConfig(),
		logConfig:     log.DefaultConfig(),
	}
}

func (c *command) runE(cmd *cobra.Command, _ []string) error {
	if f := c.logConfig.File; f != nil {
		defer f.Close()
	}
	logger := stdlog.New(c.logConfig)

	hc, err := proxy.NewHealthChecker(c.checkerConfig, logger.Named("check"))
	if err != nil {
		return err
	}

	r := hc.Check(cmd.Context())

	if c.jsonOut {
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), r)
	}

	switch {
	case r.Authenticated:
		return nil
	case r.Reachable:
		cmd.SilenceErrors = true
		return &StatusError{Code: ExitCodeUnauthenticated, Reason: "proxy rejected the credentials"}
	default:
		cmd.SilenceErrors = true
		return &StatusError{Code: ExitCodeUnreachable, Reason: "proxy is unreachable"}
	}
}

func Command() *cobra.Command {
	c := makeCommand()

	cmd := &cobra.Command{
		Use:   "check --proxy-address <host:port> [--credentials <username:password>] [flags]",
		Short: "Check that the proxy is reachable and the credentials work",
		Long:  long,
		Args:  cobra.NoArgs,
		RunE:  c.runE,
	}

	fs := cmd.Flags()
	bind.HealthCheckerConfig(fs, c.checkerConfig)
	bind.LogConfig(fs, c.logConfig)
	fs.BoolVar(&c.jsonOut, "json", false, "output the result as JSON")

	bind.MarkFlagRequired(cmd, "proxy-address")
	bind.AutoMarkFlagFilename(cmd)

	return cmd
}

const long = `Check that the proxy is reachable and the credentials work.
The check fetches the test URL through the proxy and reports the public IP
the destination sees. Exit code is 2 if the proxy cannot be reached,
and 3 if it is up but rejected the credentials.`
