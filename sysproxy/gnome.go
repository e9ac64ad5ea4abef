// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sysproxy

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/delpha/proxy/log"
)

// GNOME desktop configuration via gsettings.
const (
	gsettingsBin = "gsettings"

	schemaProxy      = "org.gnome.system.proxy"
	schemaProxyHTTP  = "org.gnome.system.proxy.http"
	schemaProxyHTTPS = "org.gnome.system.proxy.https"

	proxyModeManual = "manual"
	proxyModeNone   = "none"
)

type gnomeConfigurator struct {
	run   CommandRunner
	store *stateStore
	log   log.Logger
}

func newGnomeConfigurator(run CommandRunner, store *stateStore, logger log.Logger) *gnomeConfigurator {
	return &gnomeConfigurator{run: run, store: store, log: logger}
}

// gnomeSnapshot is the configuration captured before activation.
type gnomeSnapshot struct {
	Mode      string `json:"mode"`
	HTTPHost  string `json:"http_host"`
	HTTPPort  string `json:"http_port"`
	HTTPSHost string `json:"https_host"`
	HTTPSPort string `json:"https_port"`
}

func (c *gnomeConfigurator) Detect(ctx context.Context) (State, error) {
	mode, err := c.get(ctx, schemaProxy, "mode")
	if err != nil {
		return StateUnknown, err
	}

	if mode == proxyModeManual {
		return StateActive, nil
	}
	return StateInactive, nil
}

func (c *gnomeConfigurator) Activate(ctx context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	// Capture the pre-activation configuration only once, repeated
	// activations must not overwrite the user's original settings.
	var snap gnomeSnapshot
	if ok, err := c.store.Load(&snap); err != nil {
		return err
	} else if !ok {
		snap, err = c.snapshot(ctx)
		if err != nil {
			return err
		}
		if err := c.store.Save(snap); err != nil {
			return err
		}
	}

	port := strconv.Itoa(s.Port)
	for _, kv := range []struct{ schema, key, val string }{
		{schemaProxyHTTP, "host", s.Host},
		{schemaProxyHTTP, "port", port},
		{schemaProxyHTTPS, "host", s.Host},
		{schemaProxyHTTPS, "port", port},
		{schemaProxy, "mode", proxyModeManual},
	} {
		if err := c.set(ctx, kv.schema, kv.key, kv.val); err != nil {
			return err
		}
	}

	c.log.Infof("system proxy set to %s:%d via gsettings", s.Host, s.Port)
	return nil
}

func (c *gnomeConfigurator) Deactivate(ctx context.Context) error {
	var snap gnomeSnapshot
	ok, err := c.store.Load(&snap)
	if err != nil {
		return err
	}
	if !ok {
		// Nothing saved, make sure the proxy is off. Harmless when
		// already inactive.
		return c.set(ctx, schemaProxy, "mode", proxyModeNone)
	}

	mode := snap.Mode
	if mode == "" || mode == proxyModeManual {
		// Never restore back into the state we are leaving.
		mode = proxyModeNone
	}
	for _, kv := range []struct{ schema, key, val string }{
		{schemaProxyHTTP, "host", snap.HTTPHost},
		{schemaProxyHTTP, "port", snap.HTTPPort},
		{schemaProxyHTTPS, "host", snap.HTTPSHost},
		{schemaProxyHTTPS, "port", snap.HTTPSPort},
		{schemaProxy, "mode", mode},
	} {
		if err := c.set(ctx, kv.schema, kv.key, kv.val); err != nil {
			return err
		}
	}

	if err := c.store.Clear(); err != nil {
		return err
	}

	c.log.Infof("system proxy restored via gsettings, mode=%s", mode)
	return nil
}

func (c *gnomeConfigurator) snapshot(ctx context.Context) (gnomeSnapshot, error) {
	var (
		snap gnomeSnapshot
		err  error
	)
	read := func(dst *string, schema, key string) {
		if err != nil {
			return
		}
		*dst, err = c.get(ctx, schema, key)
	}
	read(&snap.Mode, schemaProxy, "mode")
	read(&snap.HTTPHost, schemaProxyHTTP, "host")
	read(&snap.HTTPPort, schemaProxyHTTP, "port")
	read(&snap.HTTPSHost, schemaProxyHTTPS, "host")
	read(&snap.HTTPSPort, schemaProxyHTTPS, "port")

	return snap, err
}

func (c *gnomeConfigurator) get(ctx context.Context, schema, key string) (string, error) {
	out, err := c.run(ctx, gsettingsBin, "get", schema, key)
	if err != nil {
		return "", fmt.Errorf("gsettings get %s %s: %w", schema, key, err)
	}
	// String values come back quoted, e.g. 'manual'.
	return strings.Trim(strings.TrimSpace(out), "'"), nil
}

func (c *gnomeConfigurator) set(ctx context.Context, schema, key, val string) error {
	if _, err := c.run(ctx, gsettingsBin, "set", schema, key, val); err != nil {
		return fmt.Errorf("gsettings set %s %s: %w", schema, key, err)
	}
	return nil
}
