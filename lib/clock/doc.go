// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts wall-clock reads for testability.
//
// Production code injects [Real]; tests inject [Fake] and move time
// explicitly with [FakeClock.Advance] or [FakeClock.Set]. The planner
// uses it to decide whether a secret's expires_at has passed, so tests
// can cover expiry without sleeping or depending on the date.
package clock
