// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"

	"github.com/bureau-foundation/fleet-secrets/lib/testutil"
)

type harness struct {
	t         *testing.T
	directory string
	keystore  string
	local     *age.X25519Identity
	foreign   *age.X25519Identity
	owner     string
	group     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("INSTALL_SECRETS_CONFIG", "")
	local := testutil.AgeIdentity(t)
	owner, group := testutil.CurrentOwner(t)
	return &harness{
		t:         t,
		directory: t.TempDir(),
		keystore: testutil.WriteKeystore(t, map[string][]byte{
			"host.key": []byte(local.String() + "\n"),
		}),
		local:   local,
		foreign: testutil.AgeIdentity(t),
		owner:   owner,
		group:   group,
	}
}

func (h *harness) entry(id, plaintext string, identity *age.X25519Identity) testutil.Entry {
	h.t.Helper()
	recipient := identity.Recipient().String()
	source := filepath.Join(h.directory, "store", id+".age")
	testutil.WriteFile(h.t, source, testutil.Encrypt(h.t, []byte(plaintext), recipient), 0o644)
	return testutil.Entry{
		ID:             id,
		Source:         source,
		Destination:    h.destination(id),
		Owner:          h.owner,
		Group:          h.group,
		Mode:           "0400",
		AuthorizedKeys: []string{recipient},
	}
}

func (h *harness) destination(id string) string {
	return filepath.Join(h.directory, "run", "secrets", id)
}

// run executes the command line and returns its exit status and output.
func (h *harness) run(args ...string) (int, string, string) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return exitCode(err, &stderr), stdout.String(), stderr.String()
}

func TestInstallSkipsSecretsForOtherHosts(t *testing.T) {
	h := newHarness(t)
	manifestPath := testutil.WriteManifest(t, h.directory, "secrets.json",
		h.entry("db-password", "hunter2", h.local),
		h.entry("other-host", "not ours", h.foreign),
	)

	code, stdout, stderr := h.run("install", "--manifest", manifestPath, "--keystore", h.keystore)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr)
	}

	content, err := os.ReadFile(h.destination("db-password"))
	if err != nil {
		t.Fatalf("reading installed secret: %v", err)
	}
	if string(content) != "hunter2" {
		t.Errorf("installed content = %q, want %q", content, "hunter2")
	}
	info, err := os.Stat(h.destination("db-password"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o400 {
		t.Errorf("mode = %o, want 400", info.Mode().Perm())
	}

	if _, err := os.Lstat(h.destination("other-host")); !os.IsNotExist(err) {
		t.Errorf("skipped secret destination exists (err=%v)", err)
	}

	if !strings.Contains(stdout, "1 installed (0 unchanged), 1 skipped, 0 failed") {
		t.Errorf("summary missing counts:\n%s", stdout)
	}
	if strings.Contains(stdout+stderr, "hunter2") {
		t.Error("plaintext appeared in command output")
	}
}

func TestInstallRerunReportsUnchanged(t *testing.T) {
	h := newHarness(t)
	manifestPath := testutil.WriteManifest(t, h.directory, "secrets.json",
		h.entry("api-token", "token-value", h.local),
	)

	if code, _, stderr := h.run("install", "-m", manifestPath, "-k", h.keystore); code != 0 {
		t.Fatalf("first run exit code = %d\nstderr: %s", code, stderr)
	}
	code, stdout, stderr := h.run("install", "-m", manifestPath, "-k", h.keystore)
	if code != 0 {
		t.Fatalf("second run exit code = %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "1 installed (1 unchanged)") {
		t.Errorf("second run summary = %q, want 1 unchanged", stdout)
	}
}

func TestInstallFailureExitsOne(t *testing.T) {
	h := newHarness(t)
	broken := h.entry("broken", "unused", h.local)
	broken.Source = filepath.Join(h.directory, "store", "missing.age")
	manifestPath := testutil.WriteManifest(t, h.directory, "secrets.json",
		broken,
		h.entry("healthy", "fine", h.local),
	)

	code, stdout, stderr := h.run("install", "--manifest", manifestPath, "--keystore", h.keystore)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "failed broken (SourceUnreadable)") {
		t.Errorf("summary does not name the failure:\n%s", stdout)
	}
	if _, err := os.Stat(h.destination("healthy")); err != nil {
		t.Errorf("healthy secret not installed after a sibling failed: %v", err)
	}
	if strings.Contains(stderr, "error:") {
		t.Errorf("handled failure printed a top-level error:\n%s", stderr)
	}
}

func TestInstallInvalidManifestWritesNothing(t *testing.T) {
	h := newHarness(t)
	first := h.entry("first", "one", h.local)
	second := h.entry("second", "two", h.local)
	second.Destination = first.Destination
	manifestPath := testutil.WriteManifest(t, h.directory, "secrets.json", first, second)

	code, _, stderr := h.run("install", "--manifest", manifestPath, "--keystore", h.keystore)
	if code != exitUsage {
		t.Fatalf("exit code = %d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr, "error:") {
		t.Errorf("stderr = %q, want an error line", stderr)
	}
	if _, err := os.Lstat(filepath.Dir(first.Destination)); !os.IsNotExist(err) {
		t.Errorf("destination directory was created for an invalid manifest (err=%v)", err)
	}
}

func TestInstallConfigurationErrors(t *testing.T) {
	h := newHarness(t)
	manifestPath := testutil.WriteManifest(t, h.directory, "secrets.json",
		h.entry("db-password", "hunter2", h.local),
	)

	tests := []struct {
		name string
		args []string
	}{
		{"no manifest", []string{"install", "--keystore", h.keystore}},
		{"missing keystore", []string{"install", "-m", manifestPath, "-k", filepath.Join(h.directory, "absent")}},
		{"missing manifest", []string{"install", "-m", filepath.Join(h.directory, "absent.json"), "-k", h.keystore}},
		{"unknown flag", []string{"install", "--manifset", manifestPath}},
		{"extra argument", []string{"install", "-m", manifestPath, "-k", h.keystore, "extra"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			code, _, stderr := h.run(test.args...)
			if code != exitUsage {
				t.Errorf("exit code = %d, want %d\nstderr: %s", code, exitUsage, stderr)
			}
		})
	}
	if _, err := os.Lstat(h.destination("db-password")); !os.IsNotExist(err) {
		t.Errorf("secret installed despite configuration errors (err=%v)", err)
	}
}

func TestInstallJSONSummary(t *testing.T) {
	h := newHarness(t)
	manifestPath := testutil.WriteManifest(t, h.directory, "secrets.json",
		h.entry("db-password", "hunter2", h.local),
		h.entry("other-host", "not ours", h.foreign),
	)

	code, stdout, stderr := h.run("install", "-m", manifestPath, "-k", h.keystore, "--json", "--parallel", "2")
	if code != 0 {
		t.Fatalf("exit code = %d\nstderr: %s", code, stderr)
	}

	var summary installSummary
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("parsing JSON summary: %v\n%s", err, stdout)
	}
	if summary.Installed != 1 || summary.Skipped != 1 || summary.Failed != 0 {
		t.Errorf("counts = %+v, want 1 installed and 1 skipped", summary)
	}
	if len(summary.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(summary.Results))
	}
	if summary.Results[0].ID != "db-password" || summary.Results[1].ID != "other-host" {
		t.Errorf("results not in manifest order: %+v", summary.Results)
	}
	if !strings.Contains(stdout, `"outcome": "skipped"`) {
		t.Errorf("outcome not rendered as text:\n%s", stdout)
	}
}

func TestInstallUsesConfigFile(t *testing.T) {
	h := newHarness(t)
	manifestPath := testutil.WriteManifest(t, h.directory, "secrets.json",
		h.entry("db-password", "hunter2", h.local),
	)
	configPath := filepath.Join(h.directory, "config.yaml")
	testutil.WriteFile(t, configPath, []byte(
		"keystore: "+h.keystore+"\nmanifest: "+manifestPath+"\nparallelism: 4\n",
	), 0o644)

	code, _, stderr := h.run("install", "--config", configPath)
	if code != 0 {
		t.Fatalf("exit code = %d\nstderr: %s", code, stderr)
	}
	if _, err := os.Stat(h.destination("db-password")); err != nil {
		t.Errorf("secret not installed from config-file settings: %v", err)
	}
}

func TestPlanWritesNothing(t *testing.T) {
	h := newHarness(t)
	manifestPath := testutil.WriteManifest(t, h.directory, "secrets.json",
		h.entry("db-password", "hunter2", h.local),
		h.entry("other-host", "not ours", h.foreign),
	)

	code, stdout, stderr := h.run("plan", "-m", manifestPath, "-k", h.keystore)
	if code != 0 {
		t.Fatalf("exit code = %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "install db-password -> "+h.destination("db-password")) {
		t.Errorf("plan does not list db-password for install:\n%s", stdout)
	}
	if !strings.Contains(stdout, "other-host") {
		t.Errorf("plan does not list other-host:\n%s", stdout)
	}
	if _, err := os.Lstat(filepath.Dir(h.destination("db-password"))); !os.IsNotExist(err) {
		t.Errorf("plan created the destination directory (err=%v)", err)
	}
}

func TestPlanJSON(t *testing.T) {
	h := newHarness(t)
	manifestPath := testutil.WriteManifest(t, h.directory, "secrets.json",
		h.entry("other-host", "not ours", h.foreign),
	)

	code, stdout, stderr := h.run("plan", "-m", manifestPath, "-k", h.keystore, "--json")
	if code != 0 {
		t.Fatalf("exit code = %d\nstderr: %s", code, stderr)
	}
	var summary planSummary
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("parsing JSON plan: %v\n%s", err, stdout)
	}
	if len(summary.Secrets) != 1 || summary.Secrets[0].Keys == nil {
		t.Fatalf("plan = %+v", summary)
	}
	if !strings.Contains(stdout, `"keys": []`) {
		t.Errorf("skipped secret keys should render as an empty list:\n%s", stdout)
	}
}

func TestVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"version"}, &stdout, &stderr); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "install-secrets ") {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"instal"}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if code := exitCode(err, &stderr); code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
}
