// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for
// install-secrets.
//
// Configuration is loaded from a single file specified by either the
// INSTALL_SECRETS_CONFIG environment variable (via [Load]) or a
// --config flag (via [LoadFile]). There are no fallbacks, no
// ~/.config discovery, and no automatic file search. [Resolve] applies
// that precedence for the CLI and returns [Default] when neither is
// given, since a host with only an SSH host key needs no configuration
// at all.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
//
// This package depends on no other packages in this module.
package config
