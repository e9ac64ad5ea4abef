// Copyright 2024-2026 Delpha, all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package proxy implements a forward HTTP proxy protected with Basic
// Authentication, a health checker that probes a proxy through itself,
// and helpers to point the local system at the proxy.
package proxy
