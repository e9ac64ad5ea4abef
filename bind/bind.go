// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bind

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/mmatczuk/anyflag"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/delpha/proxy"
	"github.com/delpha/proxy/log"
)

func ConfigFile(fs *pflag.FlagSet, configFile *string) {
	fs.StringVarP(configFile,
		"config-file", "c", *configFile, "<path>"+
			"Configuration file to load options from. "+
			"The supported formats are: JSON, YAML, TOML, HCL, and Java properties. "+
			"The file format is determined by the file extension, if not specified the default format is YAML. "+
			"The following precedence order of configuration sources is used: command flags, environment variables, config file, default values. ")
}

func ProxyConfig(fs *pflag.FlagSet, cfg *proxy.ProxyConfig) {
	fs.StringVarP(&cfg.Addr,
		"address", "", cfg.Addr, "<host:port>"+
			"The server address to listen on. "+
			"If the host is empty, the server will listen on all available interfaces. ")

	BasicAuth(fs, &cfg.BasicAuth)

	fs.DurationVar(&cfg.ReadHeaderTimeout,
		"read-header-timeout", cfg.ReadHeaderTimeout,
		"The amount of time allowed to read request headers.")

	fs.DurationVar(&cfg.IdleTimeout,
		"idle-timeout", cfg.IdleTimeout,
		"The maximum amount of time a relayed connection may stall before it is closed. "+
			"Zero means no limit. ")

	fs.DurationVar(&cfg.DialTimeout,
		"dial-timeout", cfg.DialTimeout,
		"The maximum amount of time a dial to the destination will wait for a connect to complete. "+
			"With or without a timeout, the operating system may impose its own earlier timeout. ")

	fs.IntVar(&cfg.MaxSessions,
		"max-sessions", cfg.MaxSessions,
		"The maximum number of concurrently served sessions, connections above the limit are rejected. "+
			"Zero means no limit. ")

	fs.DurationVar(&cfg.ShutdownTimeout,
		"shutdown-timeout", cfg.ShutdownTimeout,
		"The amount of time to wait for open sessions to finish on shutdown before force-closing them.")
}

func BasicAuth(fs *pflag.FlagSet, userinfo **url.Userinfo) {
	fs.VarP(anyflag.NewValueWithRedact[*url.Userinfo](*userinfo, userinfo, proxy.ParseUserInfo, RedactUserinfo),
		"basic-auth", "", "<username:password>"+
			"Basic authentication credentials to protect the server. "+
			"Username and password are URL decoded. "+
			"This allows you to pass in special characters such as @ by using %%40 or pass in a colon with %%3a. ")
}

func Credentials(fs *pflag.FlagSet, userinfo **url.Userinfo) {
	fs.VarP(anyflag.NewValueWithRedact[*url.Userinfo](*userinfo, userinfo, proxy.ParseUserInfo, RedactUserinfo),
		"credentials", "s", "<username:password>"+
			"Basic authentication credentials to present to the proxy. "+
			"Username and password are URL decoded. ")
}

func ProxyAddress(fs *pflag.FlagSet, addr *string) {
	fs.StringVarP(addr,
		"proxy-address", "x", *addr, "<host:port>"+
			"The proxy address. "+
			"If the host is empty, localhost is assumed. ")
}

func APIAddress(fs *pflag.FlagSet, addr *string) {
	fs.StringVarP(addr,
		"api-address", "", *addr, "<host:port>"+
			"The API server address to listen on. "+
			"If empty, the API server is disabled. ")
}

func HealthCheckerConfig(fs *pflag.FlagSet, cfg *proxy.HealthCheckerConfig) {
	ProxyAddress(fs, &cfg.ProxyAddr)
	Credentials(fs, &cfg.Credentials)

	fs.StringVar(&cfg.TestURL,
		"test-url", cfg.TestURL, "<url>"+
			"URL fetched through the proxy to verify it works. "+
			"The response body is expected to carry the caller's public IP address. ")

	fs.DurationVar(&cfg.Timeout,
		"timeout", cfg.Timeout,
		"The maximum amount of time the whole probe may take, including the proxy handshake.")
}

func LogConfig(fs *pflag.FlagSet, cfg *log.Config) {
	fs.Var(NewFileFlag(&cfg.File, OpenFileParser(os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600, 0o700)),
		"log-file", "<path>"+
			"Path to the log file, if empty, logs to stdout. ")

	logLevel := []log.Level{
		log.ErrorLevel,
		log.InfoLevel,
		log.DebugLevel,
	}
	fs.Var(anyflag.NewValue[log.Level](cfg.Level, &cfg.Level, anyflag.EnumParser[log.Level](logLevel...)),
		"log-level", "<error|info|debug>"+
			"Log level. ")
}

func MarkFlagHidden(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.Flags().MarkHidden(name); err != nil {
			panic(err)
		}
	}
}

func MarkFlagRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func AutoMarkFlagFilename(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if strings.HasPrefix(f.Usage, "<path") ||
			strings.HasSuffix(f.Name, "-file") ||
			strings.HasSuffix(f.Name, "-dir") {
			MarkFlagFilename(cmd, f.Name)
		}
	})
}

func MarkFlagFilename(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagFilename(name); err != nil {
			panic(err)
		}
	}
}

// DescribeFlags renders the flag set as "name=value" lines,
// with secret values redacted by their flag implementation.
func DescribeFlags(fs *pflag.FlagSet) string {
	var b strings.Builder
	fs.VisitAll(func(flag *pflag.Flag) {
		if flag.Hidden || flag.Name == "help" {
			return
		}
		b.WriteString(fmt.Sprintf("%s=%s\n", flag.Name, strings.Trim(flag.Value.String(), "[]")))
	})
	return b.String()
}
