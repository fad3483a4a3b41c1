// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/fleet-secrets/lib/codec"
	"github.com/bureau-foundation/fleet-secrets/lib/sealed"
)

const validJSONC = `{
	// Emitted by the fleet evaluator.
	"version": 1,
	"secrets": [
		{
			"id": "db-password",
			"source": "ciphertext/db-password.age",
			"destination": "/run/secrets/db-password",
			"owner": "postgres",
			"group": "postgres",
			"mode": "0400",
			"authorized_keys": ["ssh-ed25519 AAAAC3 root@db-01", "age1xyz"],
		},
		{
			"id": "tls-key",
			"source": "/srv/ciphertext/tls.age",
			"destination": "/etc/nginx/tls//key.pem",
			"owner": 0,
			"group": 33,
			"mode": 440,
			"authorized_keys": [],
			"compression": "zstd",
			"created_at": "2026-01-01T00:00:00Z",
			"expires_at": "2027-01-01T00:00:00Z",
		},
	],
}`

func TestParseJSONC(t *testing.T) {
	descriptors, err := Parse([]byte(validJSONC), FormatJSON, "/etc/fleet")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(descriptors) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(descriptors))
	}

	first := descriptors[0]
	if first.ID != "db-password" {
		t.Errorf("ID = %q", first.ID)
	}
	if first.Source != "/etc/fleet/ciphertext/db-password.age" {
		t.Errorf("relative source not resolved: %q", first.Source)
	}
	if first.Mode != 0o400 {
		t.Errorf("Mode = %#o, want 0400", first.Mode)
	}
	if first.Owner != "postgres" || first.Group != "postgres" {
		t.Errorf("Owner/Group = %q/%q", first.Owner, first.Group)
	}
	if len(first.AuthorizedKeys) != 2 {
		t.Errorf("AuthorizedKeys = %v", first.AuthorizedKeys)
	}
	if first.Compression != sealed.CompressionNone {
		t.Errorf("Compression = %q, want none", first.Compression)
	}

	second := descriptors[1]
	if second.Destination != "/etc/nginx/tls/key.pem" {
		t.Errorf("destination not cleaned: %q", second.Destination)
	}
	if second.Owner != "0" || second.Group != "33" {
		t.Errorf("numeric Owner/Group = %q/%q", second.Owner, second.Group)
	}
	if second.Mode != 0o440 {
		t.Errorf("numeric Mode = %#o, want 0440", second.Mode)
	}
	if second.Compression != sealed.CompressionZstd {
		t.Errorf("Compression = %q", second.Compression)
	}
	wantExpiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	if !second.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", second.ExpiresAt, wantExpiry)
	}
	if second.CreatedAt.IsZero() {
		t.Error("CreatedAt not parsed")
	}
}

func TestParseYAML(t *testing.T) {
	data := `
version: 1
secrets:
  - id: api-token
    source: token.age
    destination: /run/secrets/api-token
    owner: app
    group: app
    mode: 0640
    authorized_keys:
      - age1abc
    expires_at: 2027-06-01T12:00:00Z
`
	descriptors, err := Parse([]byte(data), FormatYAML, "/srv")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(descriptors) != 1 {
		t.Fatalf("got %d descriptors", len(descriptors))
	}
	descriptor := descriptors[0]
	if descriptor.Mode != 0o640 {
		t.Errorf("Mode = %#o, want 0640", descriptor.Mode)
	}
	if descriptor.Source != "/srv/token.age" {
		t.Errorf("Source = %q", descriptor.Source)
	}
	if descriptor.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not parsed")
	}
}

func TestParseCBOR(t *testing.T) {
	ciphertext := []byte("age-encryption.org/v1\n-> X25519 fake\n")
	data, err := codec.Marshal(map[string]any{
		"version": 1,
		"secrets": []any{
			map[string]any{
				"id":              "inline",
				"data":            ciphertext,
				"destination":     "/run/secrets/inline",
				"owner":           1000,
				"group":           "users",
				"mode":            "600",
				"authorized_keys": []string{"age1abc"},
				"compression":     "lz4",
			},
		},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	descriptors, err := Parse(data, FormatCBOR, "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	descriptor := descriptors[0]
	if string(descriptor.Data) != string(ciphertext) {
		t.Errorf("Data = %q", descriptor.Data)
	}
	if descriptor.Owner != "1000" {
		t.Errorf("Owner = %q", descriptor.Owner)
	}
	if descriptor.Mode != 0o600 {
		t.Errorf("Mode = %#o", descriptor.Mode)
	}
	if descriptor.Compression != sealed.CompressionLZ4 {
		t.Errorf("Compression = %q", descriptor.Compression)
	}
}

func TestParseInlineData(t *testing.T) {
	ciphertext := []byte{0x01, 0x02, 0x03, 0xff}
	encoded := base64.StdEncoding.EncodeToString(ciphertext)
	armored := "-----BEGIN AGE ENCRYPTED FILE-----\nYWdl\n-----END AGE ENCRYPTED FILE-----\n"

	for _, test := range []struct {
		name string
		data string
		want string
	}{
		{"base64", encoded, string(ciphertext)},
		{"base64 wrapped", encoded[:4] + "\n" + encoded[4:], string(ciphertext)},
		{"armored", armored, armored},
	} {
		t.Run(test.name, func(t *testing.T) {
			manifest := `{"secrets": [{"id": "a", "data": ` + quote(test.data) + `,
				"destination": "/run/a", "owner": "root", "group": "root", "mode": "0400"}]}`
			descriptors, err := Parse([]byte(manifest), FormatJSON, "")
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if string(descriptors[0].Data) != test.want {
				t.Errorf("Data = %q, want %q", descriptors[0].Data, test.want)
			}
			if descriptors[0].Source != "" {
				t.Errorf("Source = %q, want empty", descriptors[0].Source)
			}
		})
	}
}

func TestParseEmptySecretsList(t *testing.T) {
	descriptors, err := Parse([]byte(`{"version": 1, "secrets": []}`), FormatJSON, "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(descriptors) != 0 {
		t.Errorf("got %d descriptors, want 0", len(descriptors))
	}
}

func TestParseMissingFields(t *testing.T) {
	complete := map[string]string{
		"id":          `"x"`,
		"source":      `"x.age"`,
		"destination": `"/run/x"`,
		"owner":       `"root"`,
		"group":       `"root"`,
		"mode":        `"0400"`,
	}
	for field := range complete {
		t.Run(field, func(t *testing.T) {
			var parts []string
			for name, value := range complete {
				if name != field {
					parts = append(parts, quote(name)+": "+value)
				}
			}
			manifest := `{"secrets": [{` + strings.Join(parts, ", ") + `}]}`

			_, err := Parse([]byte(manifest), FormatJSON, "")
			var missing *MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("error = %v, want *MissingFieldError", err)
			}
			if missing.Field != field {
				t.Errorf("Field = %q, want %q", missing.Field, field)
			}
			if missing.Index != 0 {
				t.Errorf("Index = %d, want 0", missing.Index)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	entry := func(overrides string) string {
		return `{"secrets": [{"id": "x", "destination": "/run/x", "owner": "root",
			"group": "root", "mode": "0400", ` + overrides + `}]}`
	}
	tests := []struct {
		name     string
		manifest string
		field    string
	}{
		{"malformed JSON", `{"secrets": [`, ""},
		{"no secrets list", `{"version": 1}`, "secrets"},
		{"wrong version", `{"version": 2, "secrets": []}`, "version"},
		{"string version", `{"version": "one", "secrets": []}`, "version"},
		{"relative destination", strings.Replace(entry(`"source": "a"`), `"/run/x"`, `"run/x"`, 1), "destination"},
		{"root destination", strings.Replace(entry(`"source": "a"`), `"/run/x"`, `"/"`, 1), "destination"},
		{"source and data", entry(`"source": "a", "data": "YWdl"`), "source"},
		{"bad base64", entry(`"data": "not base64!"`), "data"},
		{"bad mode string", entry(`"source": "a", "mode": "rw-------"`), "mode"},
		{"mode beyond permission bits", entry(`"source": "a", "mode": "4755"`), "mode"},
		{"negative mode", entry(`"source": "a", "mode": -1`), "mode"},
		{"fractional owner", entry(`"source": "a", "owner": 1.5`), "owner"},
		{"unknown compression", entry(`"source": "a", "compression": "brotli"`), "compression"},
		{"bad expiry", entry(`"source": "a", "expires_at": "next tuesday"`), "expires_at"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.manifest), FormatJSON, "")
			var parseError *ParseError
			if !errors.As(err, &parseError) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if parseError.Field != test.field {
				t.Errorf("Field = %q, want %q (error: %v)", parseError.Field, test.field, err)
			}
		})
	}
}

func TestParseNumericModeIsOctal(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
	}{
		{"JSON bare digits", FormatJSON, `{"secrets": [{"id": "x", "source": "a", "destination": "/run/x",
			"owner": "root", "group": "root", "mode": 400}]}`},
		{"YAML bare digits", FormatYAML, "secrets:\n  - {id: x, source: a, destination: /run/x, owner: root, group: root, mode: 400}\n"},
		{"YAML leading zero", FormatYAML, "secrets:\n  - {id: x, source: a, destination: /run/x, owner: root, group: root, mode: 0400}\n"},
		{"YAML 0o prefix", FormatYAML, "secrets:\n  - {id: x, source: a, destination: /run/x, owner: root, group: root, mode: 0o400}\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			descriptors, err := Parse([]byte(test.data), test.format, "/srv")
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if descriptors[0].Mode != 0o400 {
				t.Errorf("Mode = %#o, want 0400", descriptors[0].Mode)
			}
		})
	}

	// Digits that are not octal must fail rather than fall back to
	// decimal.
	_, err := Parse([]byte(`{"secrets": [{"id": "x", "source": "a", "destination": "/run/x",
		"owner": "root", "group": "root", "mode": 800}]}`), FormatJSON, "")
	var parseError *ParseError
	if !errors.As(err, &parseError) || parseError.Field != "mode" {
		t.Errorf("mode 800: error = %v, want *ParseError on mode", err)
	}
}

func TestParseRejectsUnexpectedInput(t *testing.T) {
	const entry = `{"id": "x", "source": "a", "destination": "/run/x", "owner": "root", "group": "root", "mode": "0400"`
	unknownCBOR, err := codec.Marshal(map[string]any{
		"secrets": []any{map[string]any{
			"id": "x", "source": "a", "destination": "/run/x", "owner": "root", "group": "root",
			"mode": "0400", "authorised_keys": []string{"age1abc"},
		}},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	validCBOR, err := codec.Marshal(map[string]any{"secrets": []any{}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	tests := []struct {
		name   string
		format Format
		data   []byte
	}{
		{"JSON trailing document", FormatJSON, []byte(`{"secrets": []} {"secrets": []}`)},
		{"JSON truncated trailing document", FormatJSON, []byte(`{"secrets": []} {"secrets": garbage`)},
		{"JSON misspelled entry field", FormatJSON, []byte(`{"secrets": [` + entry + `, "authorised_keys": ["age1abc"]}]}`)},
		{"JSON unknown top-level field", FormatJSON, []byte(`{"secret": []}`)},
		{"YAML misspelled entry field", FormatYAML, []byte("secrets:\n  - id: x\n    authorised_keys: [age1abc]\n")},
		{"YAML second document", FormatYAML, []byte("secrets: []\n---\nsecrets: []\n")},
		{"CBOR misspelled entry field", FormatCBOR, unknownCBOR},
		{"CBOR trailing bytes", FormatCBOR, append(append([]byte{}, validCBOR...), validCBOR...)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			descriptors, err := Parse(test.data, test.format, "")
			var parseError *ParseError
			if !errors.As(err, &parseError) {
				t.Fatalf("Parse = %d descriptors, error %v; want *ParseError", len(descriptors), err)
			}
			if parseError.Index != -1 {
				t.Errorf("Index = %d, want -1 for a whole-document error", parseError.Index)
			}
		})
	}
}

func TestParseDuplicateID(t *testing.T) {
	manifest := `{"secrets": [
		{"id": "x", "source": "a", "destination": "/run/a", "owner": "root", "group": "root", "mode": "0400"},
		{"id": "x", "source": "b", "destination": "/run/b", "owner": "root", "group": "root", "mode": "0400"}
	]}`
	_, err := Parse([]byte(manifest), FormatJSON, "")
	var parseError *ParseError
	if !errors.As(err, &parseError) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if parseError.Index != 1 || parseError.Field != "id" {
		t.Errorf("Index/Field = %d/%q, want 1/id", parseError.Index, parseError.Field)
	}
}

func TestParseDuplicateDestination(t *testing.T) {
	manifest := `{"secrets": [
		{"id": "first", "source": "a", "destination": "/run/secrets/token", "owner": "root", "group": "root", "mode": "0400"},
		{"id": "second", "source": "b", "destination": "/run/secrets/./token", "owner": "root", "group": "root", "mode": "0400"}
	]}`
	_, err := Parse([]byte(manifest), FormatJSON, "")
	var duplicate *DuplicateDestinationError
	if !errors.As(err, &duplicate) {
		t.Fatalf("error = %v, want *DuplicateDestinationError", err)
	}
	if duplicate.Destination != "/run/secrets/token" {
		t.Errorf("Destination = %q", duplicate.Destination)
	}
	if duplicate.FirstID != "first" || duplicate.SecondID != "second" {
		t.Errorf("IDs = %q, %q", duplicate.FirstID, duplicate.SecondID)
	}
}

func TestParseNestedDestination(t *testing.T) {
	manifest := `{"secrets": [
		{"id": "inner", "source": "a", "destination": "/run/secrets/app/key", "owner": "root", "group": "root", "mode": "0400"},
		{"id": "sibling", "source": "b", "destination": "/run/secrets/app-key", "owner": "root", "group": "root", "mode": "0400"},
		{"id": "outer", "source": "c", "destination": "/run/secrets/app", "owner": "root", "group": "root", "mode": "0400"}
	]}`
	_, err := Parse([]byte(manifest), FormatJSON, "")
	var parseError *ParseError
	if !errors.As(err, &parseError) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if parseError.ID != "inner" || parseError.Field != "destination" {
		t.Errorf("ID/Field = %q/%q, want inner/destination", parseError.ID, parseError.Field)
	}
}

func TestLoad(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "secrets.jsonc")
	if err := os.WriteFile(path, []byte(validJSONC), 0o644); err != nil {
		t.Fatal(err)
	}

	descriptors, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := filepath.Join(directory, "ciphertext", "db-password.age")
	if descriptors[0].Source != want {
		t.Errorf("Source = %q, want %q", descriptors[0].Source, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	_, err := Load(path)
	var parseError *ParseError
	if !errors.As(err, &parseError) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error does not wrap fs.ErrNotExist: %v", err)
	}
	if parseError.Path != path {
		t.Errorf("Path = %q", parseError.Path)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"secrets.json":  FormatJSON,
		"secrets.jsonc": FormatJSON,
		"secrets.YAML":  FormatYAML,
		"secrets.yml":   FormatYAML,
		"secrets.cbor":  FormatCBOR,
		"secrets":       FormatJSON,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		value any
		want  fs.FileMode
		ok    bool
	}{
		{"0400", 0o400, true},
		{"400", 0o400, true},
		{"0o640", 0o640, true},
		{" 0600 ", 0o600, true},
		{"0", 0, true},
		{256, 0o400, true},
		{json.Number("400"), 0o400, true},
		{json.Number("0640"), 0o640, true},
		{json.Number("1.5"), 0, false},
		{json.Number("9"), 0, false},
		{uint64(0o777), 0o777, true},
		{"0800", 0, false},
		{"01000", 0, false},
		{"", 0, false},
		{true, 0, false},
	}
	for _, test := range tests {
		got, err := ParseMode(test.value)
		if (err == nil) != test.ok {
			t.Errorf("ParseMode(%v) error = %v, want ok=%v", test.value, err, test.ok)
			continue
		}
		if test.ok && got != test.want {
			t.Errorf("ParseMode(%v) = %#o, want %#o", test.value, got, test.want)
		}
	}
}

func TestDescriptorExpired(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{"no expiry", time.Time{}, false},
		{"future", now.Add(time.Hour), false},
		{"exactly now", now, true},
		{"past", now.Add(-time.Hour), true},
	}
	for _, test := range tests {
		descriptor := Descriptor{ExpiresAt: test.expires}
		if got := descriptor.Expired(now); got != test.want {
			t.Errorf("%s: Expired = %v, want %v", test.name, got, test.want)
		}
	}
}

func TestDescriptorCiphertext(t *testing.T) {
	directory := t.TempDir()
	source := filepath.Join(directory, "secret.age")
	if err := os.WriteFile(source, []byte("ciphertext bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	fromFile := Descriptor{Source: source}
	data, err := fromFile.Ciphertext(1024)
	if err != nil {
		t.Fatalf("Ciphertext: %v", err)
	}
	if string(data) != "ciphertext bytes" {
		t.Errorf("Ciphertext = %q", data)
	}

	if _, err := fromFile.Ciphertext(4); err == nil {
		t.Error("Ciphertext over limit succeeded")
	}

	inline := Descriptor{Data: []byte("inline")}
	if data, err := inline.Ciphertext(1); err != nil || string(data) != "inline" {
		t.Errorf("inline Ciphertext = %q, %v", data, err)
	}

	missing := Descriptor{Source: filepath.Join(directory, "absent.age")}
	if _, err := missing.Ciphertext(1024); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing source error = %v, want fs.ErrNotExist", err)
	}

	directorySource := Descriptor{Source: directory}
	if _, err := directorySource.Ciphertext(1024); err == nil {
		t.Error("Ciphertext of a directory succeeded")
	}
}

func TestErrorMessagesOmitData(t *testing.T) {
	manifest := `{"secrets": [{"id": "x", "data": "c2VjcmV0", "source": "a",
		"destination": "/run/x", "owner": "root", "group": "root", "mode": "0400"}]}`
	_, err := Parse([]byte(manifest), FormatJSON, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "c2VjcmV0") {
		t.Errorf("error message includes inline data: %v", err)
	}
}

func quote(s string) string {
	var builder strings.Builder
	builder.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			builder.WriteString(`\"`)
		case '\\':
			builder.WriteString(`\\`)
		case '\n':
			builder.WriteString(`\n`)
		default:
			builder.WriteRune(r)
		}
	}
	builder.WriteByte('"')
	return builder.String()
}
