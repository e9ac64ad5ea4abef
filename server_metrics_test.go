// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/delpha/proxy/utils/golden"
)

func TestServerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newServerMetrics(reg, "test")

	m.sessionStart()
	s := &Session{}
	s.bytesUp.Add(5)
	s.bytesDown.Add(3)
	m.sessionEnd(s)

	m.reject("capacity")
	m.authFailures.Inc()

	golden.DiffPrometheusMetrics(t, reg)
}
