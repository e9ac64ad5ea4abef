// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"net/http/httptest"
	"testing"

	"github.com/gavv/httpexpect/v2"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeServer struct {
	addr     string
	sessions int
}

func (s *fakeServer) Addr() string {
	return s.addr
}

func (s *fakeServer) Sessions() int {
	return s.sessions
}

func TestAPIHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newServerMetrics(reg, "test")
	m.sessionStart()

	h := NewAPIHandler(reg, &fakeServer{addr: "localhost:3128", sessions: 3}, "address=localhost:3128\n")
	srv := httptest.NewServer(h)
	defer srv.Close()

	e := httpexpect.Default(t, srv.URL)

	e.GET("/healthz").Expect().Status(200).Body().IsEqual("OK")
	e.GET("/readyz").Expect().Status(200).Body().IsEqual("OK")
	e.GET("/sessionz").Expect().Status(200).Body().Contains("open sessions: 3")
	e.GET("/configz").Expect().Status(200).Body().Contains("address=localhost:3128")
	e.GET("/metrics").Expect().Status(200).Body().Contains("test_sessions_total 1")

	v := e.GET("/version").Expect().Status(200).JSON().Object()
	v.ContainsKey("version")
	v.ContainsKey("commit")
}

func TestAPIHandlerNotReady(t *testing.T) {
	h := NewAPIHandler(prometheus.NewRegistry(), &fakeServer{addr: ""}, "")
	srv := httptest.NewServer(h)
	defer srv.Close()

	e := httpexpect.Default(t, srv.URL)
	e.GET("/readyz").Expect().Status(503)
}
