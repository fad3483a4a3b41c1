// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/fleet-secrets/lib/sealed"
)

// validate converts raw entries into descriptors, stopping at the
// first invalid entry. Destination conflicts are checked across the
// whole manifest before returning.
func validate(raw *rawManifest, baseDirectory, path string) ([]Descriptor, error) {
	if raw.Version != nil {
		version, ok := integerValue(raw.Version)
		if !ok || version != SupportedVersion {
			return nil, &ParseError{Path: path, Index: -1, Field: "version",
				Err: fmt.Errorf("unsupported manifest version %v (want %d)", raw.Version, SupportedVersion)}
		}
	}
	if raw.Secrets == nil {
		return nil, &ParseError{Path: path, Index: -1, Field: "secrets", Err: errors.New("no secrets list")}
	}

	descriptors := make([]Descriptor, 0, len(raw.Secrets))
	ids := make(map[string]int, len(raw.Secrets))
	destinations := make(map[string]string, len(raw.Secrets))

	for index, entry := range raw.Secrets {
		descriptor, err := validateEntry(entry, index, baseDirectory, path)
		if err != nil {
			return nil, err
		}

		if first, exists := ids[descriptor.ID]; exists {
			return nil, &ParseError{Path: path, Index: index, ID: descriptor.ID, Field: "id",
				Err: fmt.Errorf("duplicate id (first used at secrets[%d])", first)}
		}
		ids[descriptor.ID] = index

		if firstID, exists := destinations[descriptor.Destination]; exists {
			return nil, &DuplicateDestinationError{
				Path:        path,
				Destination: descriptor.Destination,
				FirstID:     firstID,
				SecondID:    descriptor.ID,
			}
		}
		destinations[descriptor.Destination] = descriptor.ID

		descriptors = append(descriptors, descriptor)
	}

	if err := checkNesting(descriptors, path); err != nil {
		return nil, err
	}
	return descriptors, nil
}

func validateEntry(entry rawEntry, index int, baseDirectory, path string) (Descriptor, error) {
	id := strings.TrimSpace(entry.ID)
	missing := func(field string) error {
		return &MissingFieldError{Path: path, Index: index, ID: id, Field: field}
	}
	invalid := func(field string, err error) error {
		return &ParseError{Path: path, Index: index, ID: id, Field: field, Err: err}
	}

	if id == "" {
		return Descriptor{}, missing("id")
	}
	descriptor := Descriptor{ID: id}

	if entry.Destination == "" {
		return Descriptor{}, missing("destination")
	}
	if !filepath.IsAbs(entry.Destination) {
		return Descriptor{}, invalid("destination", fmt.Errorf("%q is not an absolute path", entry.Destination))
	}
	descriptor.Destination = filepath.Clean(entry.Destination)
	if descriptor.Destination == "/" {
		return Descriptor{}, invalid("destination", errors.New("destination cannot be the filesystem root"))
	}

	hasData := entry.Data != nil && entry.Data != ""
	switch {
	case entry.Source != "" && hasData:
		return Descriptor{}, invalid("source", errors.New("source and data are mutually exclusive"))
	case entry.Source != "":
		descriptor.Source = entry.Source
		if !filepath.IsAbs(descriptor.Source) {
			descriptor.Source = filepath.Join(baseDirectory, descriptor.Source)
		}
	case hasData:
		data, err := inlineCiphertext(entry.Data)
		if err != nil {
			return Descriptor{}, invalid("data", err)
		}
		descriptor.Data = data
	default:
		return Descriptor{}, missing("source")
	}

	owner, err := principal(entry.Owner)
	if err != nil {
		return Descriptor{}, invalid("owner", err)
	}
	if owner == "" {
		return Descriptor{}, missing("owner")
	}
	descriptor.Owner = owner

	group, err := principal(entry.Group)
	if err != nil {
		return Descriptor{}, invalid("group", err)
	}
	if group == "" {
		return Descriptor{}, missing("group")
	}
	descriptor.Group = group

	if entry.Mode.value == nil || entry.Mode.value == "" {
		return Descriptor{}, missing("mode")
	}
	mode, err := ParseMode(entry.Mode.value)
	if err != nil {
		return Descriptor{}, invalid("mode", err)
	}
	descriptor.Mode = mode

	for _, key := range entry.AuthorizedKeys {
		if key = strings.TrimSpace(key); key != "" {
			descriptor.AuthorizedKeys = append(descriptor.AuthorizedKeys, key)
		}
	}

	compression, err := sealed.ParseCompression(entry.Compression)
	if err != nil {
		return Descriptor{}, invalid("compression", err)
	}
	descriptor.Compression = compression

	if descriptor.CreatedAt, err = timestamp(entry.CreatedAt); err != nil {
		return Descriptor{}, invalid("created_at", err)
	}
	if descriptor.ExpiresAt, err = timestamp(entry.ExpiresAt); err != nil {
		return Descriptor{}, invalid("expires_at", err)
	}

	return descriptor, nil
}

// checkNesting rejects a destination that lies inside another
// destination. Installing the outer file would make the inner path
// impossible to create.
func checkNesting(descriptors []Descriptor, path string) error {
	order := make([]int, len(descriptors))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return descriptors[order[a]].Destination < descriptors[order[b]].Destination
	})

	for position := 1; position < len(order); position++ {
		outer := descriptors[order[position-1]]
		for _, candidate := range order[position:] {
			inner := descriptors[candidate]
			if !strings.HasPrefix(inner.Destination, outer.Destination) {
				break
			}
			if strings.HasPrefix(inner.Destination, outer.Destination+"/") {
				return &ParseError{Path: path, Index: candidate, ID: inner.ID, Field: "destination",
					Err: fmt.Errorf("destination %s is inside destination %s of %q", inner.Destination, outer.Destination, outer.ID)}
			}
		}
	}
	return nil
}

// ParseMode converts a manifest mode value into permission bits. A
// string or json.Number is read as octal digits ("0400", "400",
// "0o400"); an integer is taken as the numeric mode value. Only the
// nine permission bits may be set.
func ParseMode(value any) (fs.FileMode, error) {
	var bits uint64
	if number, ok := value.(json.Number); ok {
		value = number.String()
	}
	switch typed := value.(type) {
	case string:
		text := strings.TrimSpace(typed)
		text = strings.TrimPrefix(strings.TrimPrefix(text, "0o"), "0O")
		parsed, err := strconv.ParseUint(text, 8, 32)
		if err != nil {
			return 0, fmt.Errorf("mode %q is not an octal number", typed)
		}
		bits = parsed
	default:
		number, ok := integerValue(value)
		if !ok || number < 0 {
			return 0, fmt.Errorf("mode %v is not a non-negative integer", value)
		}
		bits = uint64(number)
	}
	if bits&^uint64(fs.ModePerm) != 0 {
		return 0, fmt.Errorf("mode %#o has bits outside 0777", bits)
	}
	return fs.FileMode(bits), nil
}

// integerValue extracts an integer from the numeric types the three
// decoders produce.
func integerValue(value any) (int64, bool) {
	switch typed := value.(type) {
	case int:
		return int64(typed), true
	case int64:
		return typed, true
	case uint64:
		if typed > math.MaxInt64 {
			return 0, false
		}
		return int64(typed), true
	case float64:
		if typed != math.Trunc(typed) || math.Abs(typed) > 1<<53 {
			return 0, false
		}
		return int64(typed), true
	case json.Number:
		number, err := typed.Int64()
		return number, err == nil
	default:
		return 0, false
	}
}

// principal converts an owner or group value into a name or decimal
// ID string. Absent values return "".
func principal(value any) (string, error) {
	switch typed := value.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(typed), nil
	default:
		number, ok := integerValue(value)
		if !ok || number < 0 || number > math.MaxUint32 {
			return "", fmt.Errorf("%v is neither a name nor a valid numeric ID", value)
		}
		return strconv.FormatInt(number, 10), nil
	}
}

// inlineCiphertext decodes a "data" value. Armored text is kept as is
// for the decryption engine to unwrap; other strings are base64. CBOR
// manifests may carry the ciphertext as a byte string.
func inlineCiphertext(value any) ([]byte, error) {
	switch typed := value.(type) {
	case []byte:
		return typed, nil
	case string:
		if sealed.IsArmored([]byte(typed)) {
			return []byte(typed), nil
		}
		compact := strings.Join(strings.Fields(typed), "")
		decoded, err := base64.StdEncoding.DecodeString(compact)
		if err != nil {
			return nil, fmt.Errorf("inline data is neither armored nor base64: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("inline data has type %T, want string", value)
	}
}

// timestamp parses an optional RFC 3339 time. YAML resolves unquoted
// timestamps to time.Time on its own.
func timestamp(value any) (time.Time, error) {
	switch typed := value.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return typed, nil
	case string:
		if typed == "" {
			return time.Time{}, nil
		}
		parsed, err := time.Parse(time.RFC3339, typed)
		if err != nil {
			return time.Time{}, fmt.Errorf("%q is not an RFC 3339 timestamp", typed)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("timestamp has type %T, want string", value)
	}
}
