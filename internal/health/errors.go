// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package health

import "errors"

// errFailureRecorded is fed to the breaker to register one failed session.
// It never leaves this package.
var errFailureRecorded = errors.New("health: source attempt failed")
