// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"encoding/json"
	"os"
	"os/user"
	"path/filepath"
	"testing"
)

// Entry is one manifest entry as a configuration evaluator emits it.
// Fields mirror the manifest schema; zero values are omitted so tests
// can produce entries with missing fields.
type Entry struct {
	ID             string   `json:"id,omitempty"`
	Source         string   `json:"source,omitempty"`
	Data           string   `json:"data,omitempty"`
	Destination    string   `json:"destination,omitempty"`
	Owner          string   `json:"owner,omitempty"`
	Group          string   `json:"group,omitempty"`
	Mode           string   `json:"mode,omitempty"`
	AuthorizedKeys []string `json:"authorized_keys,omitempty"`
	Compression    string   `json:"compression,omitempty"`
	ExpiresAt      string   `json:"expires_at,omitempty"`
}

// WriteManifest writes entries as a JSON manifest named name inside
// directory and returns its path.
func WriteManifest(t *testing.T, directory, name string, entries ...Entry) string {
	t.Helper()
	data, err := json.MarshalIndent(map[string]any{
		"version": 1,
		"secrets": entries,
	}, "", "  ")
	if err != nil {
		t.Fatalf("marshaling manifest: %v", err)
	}
	path := filepath.Join(directory, name)
	WriteFile(t, path, data, 0o644)
	return path
}

// WriteFile writes data to path with mode, creating parent directories.
func WriteFile(t *testing.T, path string, data []byte, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// WriteKeystore creates a keystore directory containing one file per
// entry of files (name to contents), each with mode 0600.
func WriteKeystore(t *testing.T, files map[string][]byte) string {
	t.Helper()
	directory := filepath.Join(t.TempDir(), "keys")
	if err := os.Mkdir(directory, 0o700); err != nil {
		t.Fatalf("creating keystore: %v", err)
	}
	for name, contents := range files {
		WriteFile(t, filepath.Join(directory, name), contents, 0o600)
	}
	return directory
}

// CurrentOwner returns the user and group names of the test process.
// Falls back to numeric IDs when the names do not resolve (minimal
// containers without /etc/group entries).
func CurrentOwner(t *testing.T) (string, string) {
	t.Helper()
	current, err := user.Current()
	if err != nil {
		t.Fatalf("looking up current user: %v", err)
	}
	userName := current.Username
	if userName == "" {
		userName = current.Uid
	}
	groupName := current.Gid
	if group, err := user.LookupGroupId(current.Gid); err == nil && group.Name != "" {
		groupName = group.Name
	}
	return userName, groupName
}
