// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed is the decryption engine for fleet secrets. It wraps
// filippo.io/age: secrets are age files encrypted to one or more host
// recipients (native age1... X25519 keys or OpenSSH host keys through
// filippo.io/age/agessh).
//
// age is authenticated encryption: the header carries an HMAC over the
// recipient stanzas and the payload is ChaCha20-Poly1305 in 64 KiB
// chunks. Tampered ciphertext fails with [DecryptionError] (or
// [KeyMismatchError] when the damage lands in the wrapped file key)
// and never yields plaintext.
//
// Decrypted plaintext is returned as a [secret.Buffer] (mmap-backed,
// locked against swap, excluded from core dumps, zeroed on Close). The
// age payload reader streams straight into that buffer, and so does
// the optional decompression stage, so the full plaintext never sits
// on the Go heap. The age reader's 64 KiB chunk buffer and the zstd or
// lz4 decoder window are the exception: those libraries own them, and
// they are released to the garbage collector without being zeroed.
//
// Key exports:
//
//   - [Decrypt] -- ciphertext (binary or ASCII-armored) to secret.Buffer
//   - [Encrypt] / [Armor] -- the inverse, used by fixture tooling and tests
//   - [ParseRecipient] -- age1... and ssh-... recipient strings
//   - [Compression] -- optional plaintext compression (zstd, lz4)
//
// Depends on lib/secret for secure memory allocation.
package sealed
