// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package golden compares prometheus metrics against golden files.
// On mismatch the golden file is updated so the diff can be reviewed with git.
package golden

import (
	"bytes"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// WaitMetrics is the time to wait for the metrics to be updated.
// Somehow, the metrics are not updated immediately at all times.
var WaitMetrics = 10 * time.Millisecond

func DiffPrometheusMetrics(t *testing.T, p prometheus.Gatherer, filter ...func(*dto.MetricFamily) bool) {
	t.Helper()

	time.Sleep(WaitMetrics)

	goldenFile := "testdata/" + strings.ReplaceAll(t.Name(), "/", "_") + ".golden.txt"
	golden, err := os.ReadFile(goldenFile)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if runtime.GOOS == "windows" {
		golden = bytes.ReplaceAll(golden, []byte{'\r'}, nil)
	}

	got := dumpPrometheusMetrics(t, p, filter...)

	if diff := cmp.Diff(string(golden), got); diff != "" {
		t.Errorf("unexpected metrics (-want +got):\n%s", diff)
		if err := os.WriteFile(goldenFile, []byte(got), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func dumpPrometheusMetrics(t *testing.T, p prometheus.Gatherer, filter ...func(*dto.MetricFamily) bool) string {
	t.Helper()

	mfs, err := p.Gather()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range mfs {
		ok := true
		for _, f := range filter {
			if !f(mf) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			t.Fatal(err)
		}
	}
	return buf.String()
}

// MetricFamilyNameFilter keeps only metric families with one of the given names.
func MetricFamilyNameFilter(names ...string) func(*dto.MetricFamily) bool {
	return func(mf *dto.MetricFamily) bool {
		for _, n := range names {
			if mf.GetName() == n {
				return true
			}
		}
		return false
	}
}
