// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// install-secrets decrypts the secrets in a fleet manifest that this
// host holds keys for and installs them atomically with the requested
// ownership and permissions.
//
// Usage:
//
//	install-secrets install --manifest PATH [--keystore PATH] [--config PATH]
//	                        [--parallel N] [--json] [--verbose]
//	install-secrets plan --manifest PATH [--keystore PATH] [--json]
//	install-secrets version
//
// Exit status of install: 0 when every secret meant for this host is
// installed (secrets for other hosts are skipped, which is not a
// failure); 1 when any secret failed to decrypt or install; 2 when the
// configuration, the manifest, or the keystore is unusable, in which
// case nothing is written.
//
// The summary goes to stdout (styled text on a terminal, or JSON with
// --json). Logs go to stderr. Neither ever contains secret content.
package main
