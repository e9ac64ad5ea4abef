// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package stdlog

import (
	"bytes"
	"strings"
	"testing"

	plog "github.com/delpha/proxy/log"
)

func TestLoggerNamed(t *testing.T) {
	var buf bytes.Buffer

	l := New(&plog.Config{Level: plog.DebugLevel})
	l.log.SetOutput(&buf)
	l.log.SetFlags(0)

	n := l.Named("test")
	n.Errorf("error")
	n.Infof("info")
	n.Debugf("debug")

	want := "[test] [ERROR] error\n[test] [INFO] info\n[test] [DEBUG] debug\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer

	l := New(&plog.Config{Level: plog.ErrorLevel})
	l.log.SetOutput(&buf)
	l.log.SetFlags(0)

	n := l.Named("test")
	n.Infof("info")
	n.Debugf("debug")
	n.Errorf("error")

	if got := buf.String(); strings.Contains(got, "info") || strings.Contains(got, "debug") {
		t.Errorf("unexpected output %q", got)
	}
}

func TestLoggerOnError(t *testing.T) {
	var calls []string

	l := New(&plog.Config{Level: plog.ErrorLevel}, WithOnError(func(name string) {
		calls = append(calls, name)
	}))
	l.log.SetOutput(&bytes.Buffer{})

	n := l.Named("test")
	n.Errorf("error")
	n.Infof("info")

	if len(calls) != 1 || calls[0] != "test" {
		t.Errorf("unexpected calls %v", calls)
	}
}
