// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/goleak"
	"go.uber.org/multierr"
	"golang.org/x/net/netutil"

	"github.com/delpha/proxy"
	"github.com/delpha/proxy/bind"
	"github.com/delpha/proxy/internal/version"
	"github.com/delpha/proxy/log"
	"github.com/delpha/proxy/log/stdlog"
	"github.com/delpha/proxy/runctx"
)

const (
	promNs      = "delpha_proxy"
	apiMaxConns = 64
)

type command struct {
	promReg     *prometheus.Registry
	proxyConfig *proxy.ProxyConfig
	apiAddr     string
	logConfig   *log.Config

	dryRun bool
	goleak bool
}

func makeCommand() command {
	return command{
		promReg:     prometheus.NewRegistry(),
		proxyConfig: proxy.DefaultProxyConfig(),
		apiAddr:     "localhost:10000",
		logConfig:   log.DefaultConfig(),
	}
}

func (c *command) runE(cmd *cobra.Command, _ []string) (cmdErr error) {
	if f := c.logConfig.File; f != nil {
		defer f.Close()
	}
	onError, err := c.registerErrorsMetric()
	if err != nil {
		return fmt.Errorf("register errors metric: %w", err)
	}
	logger := stdlog.New(c.logConfig, stdlog.WithOnError(onError))

	defer func() {
		if cmdErr != nil {
			logger.Errorf("fatal error exiting: %s", cmdErr)
			cmd.SilenceErrors = true
		}
	}()

	logger.Infof("Delpha Proxy %s (%s)", version.Version, version.Commit)
	logger.Debugf("resource limits: GOMAXPROCS=%d GOMEMLIMIT=%s", runtime.GOMAXPROCS(0), os.Getenv("GOMEMLIMIT"))

	cfg := bind.DescribeFlags(cmd.Flags())
	logger.Debugf("configuration\n%s", cfg)

	if err := c.registerRuntimeMetrics(); err != nil {
		return fmt.Errorf("register runtime metrics: %w", err)
	}

	c.proxyConfig.PromRegistry = c.promReg
	c.proxyConfig.PromNamespace = promNs

	p, err := proxy.NewProxyServer(c.proxyConfig, logger.Named("proxy"))
	if err != nil {
		return err
	}

	g := runctx.NewGroup()
	g.Add(p.Run)

	if c.apiAddr != "" {
		h := proxy.NewAPIHandler(c.promReg, p, cfg)
		l, err := proxy.Listen("tcp", c.apiAddr)
		if err != nil {
			return fmt.Errorf("api listen %s: %w", c.apiAddr, err)
		}
		l = netutil.LimitListener(l, apiMaxConns)
		srv := &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 1 * time.Minute,
		}
		g.Add(func(ctx context.Context) error {
			logger.Named("api").Infof("API server listen address=%s", l.Addr())
			go func() {
				<-ctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(sctx)
			}()
			if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	if c.goleak {
		defer func() {
			if err := goleak.Find(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "goleak: %s", err)
				os.Exit(1)
			}
		}()
	}

	if c.dryRun {
		return nil
	}

	return g.Run()
}

func (c *command) registerErrorsMetric() (func(name string), error) {
	m := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNs,
		Name:      "log_errors_total",
		Help:      "Number of errors logged",
	}, []string{"name"})

	if err := c.promReg.Register(m); err != nil {
		return nil, err
	}

	return func(name string) {
		m.WithLabelValues(name).Inc()
	}, nil
}

func (c *command) registerRuntimeMetrics() error {
	return multierr.Combine(
		// Note that ProcessCollector is only available in Linux and Windows.
		c.promReg.Register(collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{Namespace: promNs})),
		c.promReg.Register(collectors.NewGoCollector()),
		c.promReg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: promNs,
			Name:      "version",
			Help:      "Version, value is always 1",
			ConstLabels: prometheus.Labels{
				"version": version.Version,
				"commit":  version.Commit,
				"time":    version.Time,
			},
		}, func() float64 {
			return 1
		})),
	)
}

func Command() *cobra.Command {
	c := makeCommand()

	cmd := &cobra.Command{
		Use:   "run [--address <host:port>] [--basic-auth <username:password>] [flags]",
		Short: "Start the proxy server",
		Long:  long,
		Args:  cobra.NoArgs,
		RunE:  c.runE,
	}

	fs := cmd.Flags()
	bind.ProxyConfig(fs, c.proxyConfig)
	bind.APIAddress(fs, &c.apiAddr)
	bind.LogConfig(fs, c.logConfig)

	fs.BoolVar(&c.goleak, "goleak", false, "enable goleak")
	fs.BoolVar(&c.dryRun, "dry-run", false, "validate configuration and exit")
	bind.MarkFlagHidden(cmd, "goleak", "dry-run")

	bind.AutoMarkFlagFilename(cmd)

	return cmd
}

const long = `Start the proxy server.
Clients must authenticate with the configured basic auth credentials,
requests with missing or invalid credentials are rejected with 407.
If no credentials are configured, all clients are accepted.`
