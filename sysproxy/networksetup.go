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

// macOS configuration via networksetup, applied to every enabled network service.
const networksetupBin = "networksetup"

type networksetupConfigurator struct {
	run   CommandRunner
	store *stateStore
	log   log.Logger
}

func newNetworksetupConfigurator(run CommandRunner, store *stateStore, logger log.Logger) *networksetupConfigurator {
	return &networksetupConfigurator{run: run, store: store, log: logger}
}

type networksetupSnapshot struct {
	Services []string `json:"services"`
}

func (c *networksetupConfigurator) Detect(ctx context.Context) (State, error) {
	services, err := c.services(ctx)
	if err != nil {
		return StateUnknown, err
	}

	for _, svc := range services {
		out, err := c.run(ctx, networksetupBin, "-getwebproxy", svc)
		if err != nil {
			return StateUnknown, err
		}
		if strings.Contains(out, "Enabled: Yes") {
			return StateActive, nil
		}
	}
	return StateInactive, nil
}

func (c *networksetupConfigurator) Activate(ctx context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	services, err := c.services(ctx)
	if err != nil {
		return err
	}
	if len(services) == 0 {
		return fmt.Errorf("%w: no enabled network services", ErrUnsupportedPlatform)
	}

	var snap networksetupSnapshot
	if ok, err := c.store.Load(&snap); err != nil {
		return err
	} else if !ok {
		if err := c.store.Save(networksetupSnapshot{Services: services}); err != nil {
			return err
		}
	}

	port := strconv.Itoa(s.Port)
	for _, svc := range services {
		for _, args := range [][]string{
			{"-setwebproxy", svc, s.Host, port},
			{"-setsecurewebproxy", svc, s.Host, port},
			{"-setwebproxystate", svc, "on"},
			{"-setsecurewebproxystate", svc, "on"},
		} {
			if _, err := c.run(ctx, networksetupBin, args...); err != nil {
				return fmt.Errorf("networksetup %s: %w", args[0], err)
			}
		}
	}

	c.log.Infof("system proxy set to %s:%d on %d network services", s.Host, s.Port, len(services))
	return nil
}

func (c *networksetupConfigurator) Deactivate(ctx context.Context) error {
	var snap networksetupSnapshot
	ok, err := c.store.Load(&snap)
	if err != nil {
		return err
	}
	services := snap.Services
	if !ok {
		if services, err = c.services(ctx); err != nil {
			return err
		}
	}

	for _, svc := range services {
		for _, args := range [][]string{
			{"-setwebproxystate", svc, "off"},
			{"-setsecurewebproxystate", svc, "off"},
		} {
			if _, err := c.run(ctx, networksetupBin, args...); err != nil {
				return fmt.Errorf("networksetup %s: %w", args[0], err)
			}
		}
	}

	if err := c.store.Clear(); err != nil {
		return err
	}

	c.log.Infof("system proxy disabled on %d network services", len(services))
	return nil
}

// services lists the enabled network services, skipping disabled ones,
// which networksetup prefixes with an asterisk.
func (c *networksetupConfigurator) services(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, networksetupBin, "-listallnetworkservices")
	if err != nil {
		return nil, fmt.Errorf("networksetup -listallnetworkservices: %w", err)
	}

	var services []string
	for i, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		// The first line is a legend, not a service.
		if i == 0 || line == "" || strings.HasPrefix(line, "*") {
			continue
		}
		services = append(services, line)
	}
	return services, nil
}
