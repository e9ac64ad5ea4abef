// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package version holds build information stamped at link time.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set at build time with -ldflags "-X ...".
var (
	Version = "devel"
	Commit  = "unknown"
	Time    = "unknown"
)

// Info is the version information in a form suitable for JSON encoding.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Time    string `json:"time"`
	Go      string `json:"go"`
}

func Get() Info {
	return Info{
		Version: Version,
		Commit:  Commit,
		Time:    Time,
		Go:      runtime.Version(),
	}
}

func (i Info) String() string {
	b := new(strings.Builder)
	fmt.Fprintln(b, "Version:\t", i.Version)
	fmt.Fprintln(b, "Git commit:\t", i.Commit)
	fmt.Fprintln(b, "Built time:\t", i.Time)
	fmt.Fprintln(b, "Go version:\t", i.Go)
	fmt.Fprintln(b, "Go OS/Arch:\t", runtime.GOOS+"/"+runtime.GOARCH)
	return b.String()
}
