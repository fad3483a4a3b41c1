// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the
// install-secrets binary.
//
// Three package-level variables are injected at build time via
// -ldflags -X: [GitCommit], [BuildTime], and [Version]. They default
// to "unknown" / "0.1.0-dev" in development builds and test runs.
//
// [Info] formats them for the version subcommand; [Full] adds the Go
// toolchain and platform, which is what operators paste into bug
// reports.
package version
