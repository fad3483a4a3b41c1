// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/bureau-foundation/fleet-secrets/lib/sealed"
)

// Descriptor is one validated manifest entry. Descriptors are
// immutable after loading.
type Descriptor struct {
	// ID uniquely identifies the secret within the manifest. It is the
	// only descriptor field that appears in logs and summaries.
	ID string

	// Source is the absolute path of the ciphertext file. Empty when
	// the ciphertext is inline.
	Source string

	// Data is inline ciphertext, either binary age or ASCII armor.
	// Empty when Source is set.
	Data []byte

	// Destination is the absolute, cleaned path the plaintext is
	// installed at.
	Destination string

	// Owner and Group are user and group names, or decimal IDs.
	Owner string
	Group string

	// Mode holds permission bits only.
	Mode fs.FileMode

	// AuthorizedKeys lists the key identifiers the secret was
	// encrypted to.
	AuthorizedKeys []string

	Compression sealed.Compression

	// CreatedAt and ExpiresAt are zero when absent.
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the descriptor carries an expiry at or
// before now.
func (d *Descriptor) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && !now.Before(d.ExpiresAt)
}

// Ciphertext returns the descriptor's ciphertext, reading Source when
// the ciphertext is not inline. Reads are bounded by limit bytes.
func (d *Descriptor) Ciphertext(limit int64) ([]byte, error) {
	if d.Source == "" {
		return d.Data, nil
	}

	file, err := os.Open(d.Source)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", d.Source, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", d.Source)
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%s is %d bytes, over the %d byte ciphertext limit", d.Source, info.Size(), limit)
	}

	data := make([]byte, info.Size())
	if _, err := io.ReadFull(file, data); err != nil {
		return nil, fmt.Errorf("reading %s: %w", d.Source, err)
	}
	return data, nil
}

// LogValue renders the descriptor as its identifying, non-secret
// fields.
func (d *Descriptor) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", d.ID),
		slog.String("destination", d.Destination),
	)
}
