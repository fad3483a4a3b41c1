// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/fleet-secrets/cmd/install-secrets/cli"
	"github.com/bureau-foundation/fleet-secrets/lib/config"
	"github.com/bureau-foundation/fleet-secrets/lib/keystore"
	"github.com/bureau-foundation/fleet-secrets/lib/manifest"
)

// sourceParams are the flags shared by install and plan.
type sourceParams struct {
	cli.JSONOutput
	Manifest string `flag:"manifest,m" desc:"path to the secret manifest (.json, .jsonc, .yaml, .cbor)"`
	Keystore string `flag:"keystore,k" desc:"key file or directory of key files (default from config, else /etc/ssh/ssh_host_ed25519_key)"`
	Config   string `flag:"config" desc:"path to config file (default: $INSTALL_SECRETS_CONFIG)"`
	Verbose  bool   `flag:"verbose,v" desc:"enable debug logging"`
}

// session is everything a command needs once configuration, manifest,
// and keystore have been loaded.
type session struct {
	config      *config.Config
	logger      *slog.Logger
	descriptors []manifest.Descriptor
	keystore    *keystore.Keystore
}

// openSession loads configuration, then the manifest, then the
// keystore. Any failure is configuration-class and happens before
// anything is decrypted or written. The caller must Close the
// returned session.
func openSession(params *sourceParams, command string, stderr io.Writer) (*session, error) {
	cfg, err := config.Resolve(params.Config)
	if err != nil {
		return nil, err
	}
	if params.Keystore != "" {
		cfg.Keystore = params.Keystore
	}
	if params.Manifest != "" {
		cfg.Manifest = params.Manifest
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Manifest == "" {
		return nil, errors.New("--manifest is required")
	}

	level, _ := cfg.SlogLevel()
	if params.Verbose {
		level = slog.LevelDebug
	}
	logger := cli.NewCommandLogger(stderr, level).With("command", command)

	descriptors, err := manifest.Load(cfg.Manifest)
	if err != nil {
		return nil, err
	}
	logger.Debug("manifest loaded", "manifest", cfg.Manifest, "secrets", len(descriptors))

	store, err := keystore.Open(cfg.Keystore, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("keystore opened", "keystore", cfg.Keystore, "keys", store.Len())

	return &session{
		config:      cfg,
		logger:      logger,
		descriptors: descriptors,
		keystore:    store,
	}, nil
}

// Close zeroes the keystore's key material.
func (s *session) Close() error {
	return s.keystore.Close()
}
