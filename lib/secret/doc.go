// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for decryption keys and
// decrypted secret material.
//
// [Buffer] allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock (preventing swap), and marks it
// excluded from core dumps via madvise(MADV_DONTDUMP). On Close, the
// memory is zeroed, unlocked, and unmapped. Because the memory lives
// outside the Go heap, the garbage collector cannot copy or relocate
// it.
//
// Constructors:
//
//   - [New] -- allocates a zero-filled buffer of a given size
//   - [NewFromBytes] -- copies into protected memory, zeros the source
//   - [NewFromReader] -- reads from an io.Reader with a size limit
//   - [ReadFile] -- reads a file straight into protected memory
//
// Access via [Buffer.Bytes] (slice into the mmap region). [Buffer.Equal]
// uses constant-time comparison. [Buffer.WriteTo] implements
// io.WriterTo so plaintext reaches its destination file without a heap
// intermediary. After Close, any access panics. Close is idempotent.
//
// A zero-length Buffer is valid (an encrypted empty file decrypts to
// one) and owns no mapping.
//
// Depends on golang.org/x/sys/unix. Imported by lib/keystore for key
// material and lib/sealed for plaintext.
package secret
