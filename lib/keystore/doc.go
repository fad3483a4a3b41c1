// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package keystore opens the host's decryption keys and matches them
// against the authorized key sets of secret descriptors.
//
// A keystore location is either a single key file or a directory of
// key files. Two kinds of key file are recognized:
//
//   - age identity files (AGE-SECRET-KEY-1..., one identity per line,
//     "#" comments allowed). Each identity is addressed by its
//     recipient string, "age1..." or "age1pq1...".
//   - unencrypted OpenSSH private keys (ed25519 and RSA), typically
//     /etc/ssh/ssh_host_ed25519_key. Each key is addressed by its
//     authorized_keys line without comment ("ssh-ed25519 AAAA...");
//     the "SHA256:..." fingerprint is accepted as an alias.
//
// Everything else in a directory (public keys, known_hosts, files that
// do not parse) is skipped with a debug log. An empty keystore is
// valid: every descriptor is then skipped by the planner.
//
// Key file contents are read into [secret.Buffer] values and stay
// there until [Keystore.Close], which zeroes them. The age identity
// values derived from them necessarily hold their own heap copies of
// the scalar, which age gives no way to zero. Close drops every
// reference to them, and they are never logged or serialized.
//
// [Keystore.Resolve] is read-only and safe for concurrent use.
package keystore
