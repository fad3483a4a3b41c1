// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"
	"os"
)

// ReadFile reads the file at path into a protected buffer. Files larger
// than limit bytes return ErrTooLarge. The file contents never pass
// through a heap allocation.
//
// Errors from opening the file are returned unwrapped so callers can
// test them with errors.Is(err, fs.ErrNotExist) and friends.
func ReadFile(path string, limit int) (*Buffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > int64(limit) {
		return nil, fmt.Errorf("%s: %w", path, ErrTooLarge)
	}

	buffer, err := NewFromReader(file, limit)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return buffer, nil
}
