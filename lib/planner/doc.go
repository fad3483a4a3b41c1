// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package planner drives a loaded manifest through key resolution,
// decryption, and installation, and aggregates one [Result] per
// descriptor into a [Report].
//
// Each descriptor is an independent unit of work. A descriptor whose
// authorized keys are not present on this host is skipped
// ([SkippedNoKey]); that is the normal case in a fleet where each host
// receives only its own secrets. Any error while reading ciphertext,
// decrypting, or installing becomes a [Failed] result carrying an
// [ErrorKind]; the remaining descriptors still run.
//
// Descriptors run with bounded parallelism (errgroup with a limit).
// Destinations are unique per manifest and the key resolver is safe
// for concurrent lookups, so units need no coordination beyond the
// limit. Results keep manifest order.
//
// Cancelling the context stops new units from starting: descriptors
// not yet started are recorded as Failed with kind [KindCanceled].
// Units already in flight finish their atomic install.
//
// Plaintext buffers are closed on every path out of a unit. Log lines
// name descriptors by ID only.
package planner
