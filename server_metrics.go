// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serverMetrics struct {
	sessionsOpen     prometheus.Gauge
	sessionsTotal    prometheus.Counter
	sessionsRejected *prometheus.CounterVec
	bytesTotal       *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	authFailures     prometheus.Counter
}

func newServerMetrics(r prometheus.Registerer, namespace string) *serverMetrics {
	if r == nil {
		r = prometheus.NewRegistry() // dummy
	}
	f := promauto.With(r)

	return &serverMetrics{
		sessionsOpen: f.NewGauge(prometheus.GaugeOpts{
			Name:      "sessions_open",
			Namespace: namespace,
			Help:      "Number of currently served sessions",
		}),
		sessionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name:      "sessions_total",
			Namespace: namespace,
			Help:      "Number of accepted sessions",
		}),
		sessionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "sessions_rejected_total",
			Namespace: namespace,
			Help:      "Number of sessions rejected before forwarding",
		}, []string{"reason"}),
		bytesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "relay_bytes_total",
			Namespace: namespace,
			Help:      "Number of bytes relayed between clients and destinations",
		}, []string{"direction"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "errors_total",
			Namespace: namespace,
			Help:      "Number of session errors",
		}, []string{"reason"}),
		authFailures: f.NewCounter(prometheus.CounterOpts{
			Name:      "auth_failures_total",
			Namespace: namespace,
			Help:      "Number of failed proxy authentication attempts",
		}),
	}
}

func (m *serverMetrics) sessionStart() {
	m.sessionsTotal.Inc()
	m.sessionsOpen.Inc()
}

func (m *serverMetrics) sessionEnd(s *Session) {
	m.sessionsOpen.Dec()
	m.bytesTotal.WithLabelValues("up").Add(float64(s.BytesUp()))
	m.bytesTotal.WithLabelValues("down").Add(float64(s.BytesDown()))
}

func (m *serverMetrics) reject(reason string) {
	m.sessionsRejected.WithLabelValues(reason).Inc()
}

func (m *serverMetrics) error(err error) {
	m.errorsTotal.WithLabelValues(errorReason(err)).Inc()
}
