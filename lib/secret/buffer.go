// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds sensitive data in memory that is locked against
// swapping, excluded from core dumps, and zeroed on close.
//
// A Buffer must not be copied after creation (the embedded mutex makes
// go vet's copylocks check catch this). After Close, any access to the
// buffer's contents panics.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

// New allocates a zero-filled secret buffer of the given size. A size
// of zero yields an empty buffer with no backing mapping.
//
// The caller must call Close when the secret is no longer needed.
func New(size int) (*Buffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("secret: buffer size must not be negative, got %d", size)
	}
	if size == 0 {
		return &Buffer{}, nil
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap failed: %w", err)
	}

	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock failed: %w", err)
	}

	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP) failed: %w", err)
	}

	return &Buffer{data: data}, nil
}

// NewFromBytes copies source into a new protected buffer and then zeros
// source in place, so the caller's slice no longer holds the secret.
func NewFromBytes(source []byte) (*Buffer, error) {
	buffer, err := New(len(source))
	if err != nil {
		Zero(source)
		return nil, err
	}
	copy(buffer.data, source)
	Zero(source)
	return buffer, nil
}

// ErrTooLarge is returned by NewFromReader and ReadFile when the input
// exceeds the caller's limit.
var ErrTooLarge = errors.New("secret: input exceeds size limit")

// NewFromReader reads all of reader into a protected buffer. At most
// limit bytes are accepted; larger inputs return ErrTooLarge. Growth
// happens by allocating a larger protected region and closing the old
// one, so no intermediate copy ever lands on the Go heap.
func NewFromReader(reader io.Reader, limit int) (*Buffer, error) {
	if limit <= 0 {
		var extra [1]byte
		n, err := io.ReadFull(reader, extra[:])
		if n > 0 {
			return nil, ErrTooLarge
		}
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("secret: reading input: %w", err)
		}
		return New(0)
	}
	capacity := min(4096, limit)

	current, err := New(capacity)
	if err != nil {
		return nil, err
	}
	length := 0
	for {
		if length == len(current.data) {
			if length >= limit {
				// One more byte decides between "exactly at limit" and "over".
				var extra [1]byte
				n, readErr := reader.Read(extra[:])
				if n > 0 {
					current.Close()
					return nil, ErrTooLarge
				}
				if readErr == io.EOF {
					break
				}
				if readErr != nil {
					current.Close()
					return nil, fmt.Errorf("secret: reading input: %w", readErr)
				}
				continue
			}
			next, err := New(min(len(current.data)*2, limit))
			if err != nil {
				current.Close()
				return nil, err
			}
			copy(next.data, current.data[:length])
			current.Close()
			current = next
		}

		n, readErr := reader.Read(current.data[length:])
		length += n
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			current.Close()
			return nil, fmt.Errorf("secret: reading input: %w", readErr)
		}
	}

	if length == len(current.data) {
		return current, nil
	}
	exact, err := New(length)
	if err != nil {
		current.Close()
		return nil, err
	}
	copy(exact.data, current.data[:length])
	current.Close()
	return exact, nil
}

// Bytes returns the secret data. The returned slice points directly
// into the mmap region; do not hold references to it beyond the
// lifetime of the Buffer. Panics if the buffer has been closed.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.data
}

// Len returns the size of the secret data.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.data)
}

// WriteTo writes the secret data to writer. Implements io.WriterTo.
// Panics if the buffer has been closed.
func (b *Buffer) WriteTo(writer io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}
	n, err := writer.Write(b.data)
	return int64(n), err
}

// Equal reports whether the buffer holds exactly other, in constant
// time with respect to the contents.
func (b *Buffer) Equal(other []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}
	return subtle.ConstantTimeCompare(b.data, other) == 1
}

// Close zeros the buffer contents, unlocks and unmaps the memory.
// Close is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.data == nil {
		return nil
	}

	Zero(b.data)

	// The memory is released at process exit regardless, so only the
	// first failure is reported.
	var firstError error
	if err := unix.Munlock(b.data); err != nil {
		firstError = fmt.Errorf("secret: munlock failed: %w", err)
	}
	if err := unix.Munmap(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secret: munmap failed: %w", err)
	}

	b.data = nil
	return firstError
}

// Zero overwrites data with zeros. Use it on heap slices that briefly
// held secret material before it moved into a Buffer.
func Zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}
