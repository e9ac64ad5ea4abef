// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"context"
	"net"
	"time"
)

// Listen creates a TCP listener with keep-alive probes enabled.
func Listen(network, address string) (net.Listener, error) {
	lc := net.ListenConfig{
		KeepAlive: 3 * time.Minute,
	}
	return lc.Listen(context.Background(), network, address)
}
