// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"strings"
)

// ParseError reports a manifest that is structurally invalid: bad
// syntax, a field with the wrong type or an invalid value, duplicate
// IDs, or conflicting fields.
type ParseError struct {
	// Path is the manifest file, empty when parsing from memory.
	Path string

	// Index is the entry's position in "secrets", or -1 for errors
	// about the manifest as a whole.
	Index int

	// ID is the entry's id when known.
	ID string

	// Field names the offending field, empty when not field-specific.
	Field string

	Err error
}

func (e *ParseError) Error() string {
	return location(e.Path, e.Index, e.ID, e.Field) + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingFieldError reports an entry that lacks a required field.
type MissingFieldError struct {
	Path  string
	Index int
	ID    string
	Field string
}

func (e *MissingFieldError) Error() string {
	return location(e.Path, e.Index, e.ID, "") + "missing required field " + e.Field
}

// DuplicateDestinationError reports two entries that would install to
// the same path.
type DuplicateDestinationError struct {
	Path        string
	Destination string
	FirstID     string
	SecondID    string
}

func (e *DuplicateDestinationError) Error() string {
	return fmt.Sprintf("%sdestination %s is claimed by both %q and %q",
		location(e.Path, -1, "", ""), e.Destination, e.FirstID, e.SecondID)
}

func location(path string, index int, id, field string) string {
	var builder strings.Builder
	builder.WriteString("manifest")
	if path != "" {
		builder.WriteString(" ")
		builder.WriteString(path)
	}
	if index >= 0 {
		fmt.Fprintf(&builder, " secrets[%d]", index)
		if id != "" {
			fmt.Fprintf(&builder, " %q", id)
		}
	}
	if field != "" {
		builder.WriteString(" ")
		builder.WriteString(field)
	}
	builder.WriteString(": ")
	return builder.String()
}
