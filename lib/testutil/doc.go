// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test fixtures for the secrets
// pipeline: host keys, ciphertext, manifests, and keystores on disk.
//
// [AgeIdentity] and [SSHEd25519Key] generate fresh host keys. [Encrypt]
// seals plaintext to recipients through lib/sealed, exactly as a
// configuration evaluator would. [WriteManifest] writes a JSON manifest
// from a slice of [Entry] values, and [WriteKeystore] lays identity
// files out in a keystore directory. [CurrentOwner] returns the user
// and group names of the test process, the only ownership an
// unprivileged test can install files with.
//
// [RequireClosed] encapsulates the timeout safety valve pattern
// (select with time.After fallback) so that individual tests do not
// need direct time.After calls.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
