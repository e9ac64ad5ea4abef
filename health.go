// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/delpha/proxy/log"
	"github.com/delpha/proxy/middleware"
)

// HealthCheckerConfig configures a proxy health probe.
type HealthCheckerConfig struct {
	// ProxyAddr is the host:port of the proxy under test.
	ProxyAddr string

	// Credentials are sent with the probe request. If nil, the probe
	// runs unauthenticated.
	Credentials *url.Userinfo

	// TestURL is fetched through the proxy. The response body is expected
	// to carry the caller's public IP address.
	TestURL string

	// Timeout bounds the whole probe including the proxy handshake.
	Timeout time.Duration
}

func DefaultHealthCheckerConfig() *HealthCheckerConfig {
	return &HealthCheckerConfig{
		TestURL: "https://ifconfig.me/ip",
		Timeout: 10 * time.Second,
	}
}

func (c *HealthCheckerConfig) Validate() error {
	if _, err := ParseProxyAddress(c.ProxyAddr); err != nil {
		return fmt.Errorf("proxy address: %w", err)
	}
	u, err := url.Parse(c.TestURL)
	if err != nil {
		return fmt.Errorf("test URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("test URL: unsupported scheme %q", u.Scheme)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// HealthResult is the outcome of a single probe.
//
// Reachable is true when the proxy responded at all, even with an
// authentication challenge. Authenticated is true only when the proxy
// accepted the probe's credentials and relayed the request.
type HealthResult struct {
	Reachable     bool          `json:"reachable"`
	Authenticated bool          `json:"authenticated"`
	Latency       time.Duration `json:"latency"`
	PublicIP      string        `json:"public_ip,omitempty"`
	Error         string        `json:"error,omitempty"`
}

func (r *HealthResult) String() string {
	switch {
	case r.Authenticated:
		return fmt.Sprintf("proxy is up, authenticated, public IP %s, latency %s", r.PublicIP, r.Latency.Round(time.Millisecond))
	case r.Reachable:
		return "proxy is up but rejected the credentials"
	default:
		return fmt.Sprintf("proxy is unreachable: %s", r.Error)
	}
}

// HealthChecker probes a proxy by fetching a test URL through it.
type HealthChecker struct {
	config HealthCheckerConfig
	log    log.Logger
	client *http.Client
}

func NewHealthChecker(cfg *HealthCheckerConfig, logger log.Logger) (*HealthChecker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	addr, err := ParseProxyAddress(cfg.ProxyAddr)
	if err != nil {
		return nil, err
	}
	proxyURL := &url.URL{
		Scheme: "http",
		Host:   addr,
		User:   cfg.Credentials,
	}

	return &HealthChecker{
		config: *cfg,
		log:    logger,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:             http.ProxyURL(proxyURL),
				DisableKeepAlives: true,
			},
		},
	}, nil
}

// Check runs a single probe and classifies the outcome.
// It never returns an error, failures are encoded in the result.
func (c *HealthChecker) Check(ctx context.Context) *HealthResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.TestURL, http.NoBody)
	if err != nil {
		return &HealthResult{Error: err.Error()}
	}
	// For plain HTTP test URLs the transport does not send the proxy URL
	// credentials on its own, unlike for CONNECT.
	middleware.NewProxyBasicAuth().SetBasicAuthFromUserInfo(req, c.config.Credentials)

	start := time.Now()
	res, err := c.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		r := &HealthResult{Latency: latency, Error: err.Error()}
		// A CONNECT rejected with 407 surfaces as a transport error that
		// carries the proxy's status text.
		if strings.Contains(err.Error(), http.StatusText(http.StatusProxyAuthRequired)) {
			r.Reachable = true
		}
		c.log.Debugf("health check failed: %s", err)
		return r
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusProxyAuthRequired {
		return &HealthResult{
			Reachable: true,
			Latency:   latency,
			Error:     res.Status,
		}
	}

	r := &HealthResult{
		Reachable:     true,
		Authenticated: true,
		Latency:       latency,
	}
	if res.StatusCode != http.StatusOK {
		r.Error = res.Status
		return r
	}

	b, err := io.ReadAll(io.LimitReader(res.Body, 1024))
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.PublicIP = strings.TrimSpace(string(b))

	return r
}
