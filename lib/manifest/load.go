// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/fleet-secrets/lib/codec"
)

// Format identifies a manifest encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

// FormatFromPath picks the manifest format from a file extension.
// Unrecognized extensions are treated as JSON, which is what the
// configuration evaluator emits by default.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".cbor":
		return FormatCBOR
	default:
		return FormatJSON
	}
}

// SupportedVersion is the only manifest schema version understood.
const SupportedVersion = 1

type rawManifest struct {
	Version any        `json:"version" yaml:"version"`
	Secrets []rawEntry `json:"secrets" yaml:"secrets"`
}

// rawEntry is the undecoded shape of one entry. Fields whose encoding
// varies between formats (numbers written as strings, timestamps that
// YAML resolves natively, byte strings in CBOR) are decoded as any and
// converted during validation.
type rawEntry struct {
	ID             string    `json:"id" yaml:"id"`
	Source         string    `json:"source" yaml:"source"`
	Data           any       `json:"data" yaml:"data"`
	Destination    string    `json:"destination" yaml:"destination"`
	Owner          any       `json:"owner" yaml:"owner"`
	Group          any       `json:"group" yaml:"group"`
	Mode           modeValue `json:"mode" yaml:"mode"`
	AuthorizedKeys []string  `json:"authorized_keys" yaml:"authorized_keys"`
	Compression    string    `json:"compression" yaml:"compression"`
	CreatedAt      any       `json:"created_at" yaml:"created_at"`
	ExpiresAt      any       `json:"expires_at" yaml:"expires_at"`
}

// modeValue is a mode as written. Numeric literals in JSON and YAML
// keep their digits as a string, so "mode": 400 reads as octal the way
// chmod would. CBOR integers have no literal form and stay numeric.
type modeValue struct {
	value any
}

func (m *modeValue) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&m.value); err != nil {
		return err
	}
	if number, ok := m.value.(json.Number); ok {
		m.value = number.String()
	}
	return nil
}

func (m *modeValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		switch node.ShortTag() {
		case "!!int", "!!float":
			m.value = node.Value
			return nil
		}
	}
	return node.Decode(&m.value)
}

func (m *modeValue) UnmarshalCBOR(data []byte) error {
	return codec.Unmarshal(data, &m.value)
}

// Load reads and validates the manifest at path. The format is chosen
// by extension, and relative source paths resolve against the
// manifest's directory.
func Load(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Index: -1, Err: err}
	}

	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, &ParseError{Path: path, Index: -1, Err: err}
	}

	descriptors, err := parse(data, FormatFromPath(path), filepath.Dir(absolute), path)
	if err != nil {
		return nil, err
	}
	return descriptors, nil
}

// Parse decodes and validates manifest data in the given format.
// Relative source paths resolve against baseDirectory.
func Parse(data []byte, format Format, baseDirectory string) ([]Descriptor, error) {
	return parse(data, format, baseDirectory, "")
}

func parse(data []byte, format Format, baseDirectory, path string) ([]Descriptor, error) {
	raw, err := decode(data, format)
	if err != nil {
		return nil, &ParseError{Path: path, Index: -1, Err: err}
	}
	return validate(raw, baseDirectory, path)
}

func decode(data []byte, format Format) (*rawManifest, error) {
	var raw rawManifest
	switch format {
	case FormatJSON, "":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.UseNumber()
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
		if err := requireEOF(decoder.Decode(&json.RawMessage{})); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
	case FormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
		if err := requireEOF(decoder.Decode(&yaml.Node{})); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	case FormatCBOR:
		// Trailing bytes and unknown keys are rejected by the codec.
		if err := codec.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing CBOR: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown manifest format %q", format)
	}
	return &raw, nil
}

// requireEOF turns the result of decoding past the manifest document
// into an error unless the input was exhausted.
func requireEOF(err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	default:
		return errors.New("unexpected data after the manifest document")
	}
}
