// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for install-secrets.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a [pflag.FlagSet] factory, and a
// Run function. Commands are assembled into a tree in
// cmd/install-secrets and dispatched via [Command.Execute], which
// handles flag parsing, subcommand routing, and structured help output
// with examples.
//
// Flags are declared on parameter structs with flag, desc, and default
// struct tags and bound by [FlagsFromParams]. Embedding [JSONOutput]
// adds the --json flag.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3).
//
// [ExitError] carries a handled non-zero exit code, and
// [NewCommandLogger] builds the slog logger every command logs through.
package cli
