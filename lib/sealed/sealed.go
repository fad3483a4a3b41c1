// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"filippo.io/age/agessh"
	"filippo.io/age/armor"

	"github.com/bureau-foundation/fleet-secrets/lib/secret"
)

// MaxPlaintextSize bounds a single decrypted secret. Plaintext lives
// in mlocked memory, and RLIMIT_MEMLOCK on most hosts is a few MiB to
// a few tens of MiB.
const MaxPlaintextSize = 16 << 20

// DecryptionError reports that ciphertext could not be opened: a
// malformed or truncated age file, a header or payload that fails
// authentication, or a payload that does not decompress.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return "decryption failed: " + e.Err.Error()
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// KeyMismatchError reports that keys were offered but none of them
// unwraps the ciphertext's file key. This is the error for a secret
// that lists this host's key as authorized but was encrypted to a
// different (often rotated) key.
type KeyMismatchError struct {
	Err error
}

func (e *KeyMismatchError) Error() string {
	if e.Err == nil {
		return "no offered key matches the ciphertext recipients"
	}
	return "no offered key matches the ciphertext recipients: " + e.Err.Error()
}

func (e *KeyMismatchError) Unwrap() error { return e.Err }

// Decrypt opens an age file with the given identities and returns the
// plaintext in a secret.Buffer. ciphertext may be binary or
// ASCII-armored. When compression is not CompressionNone the decrypted
// payload is decompressed before it is returned.
//
// The caller must call Close on the returned buffer.
func Decrypt(ciphertext []byte, compression Compression, identities ...age.Identity) (*secret.Buffer, error) {
	if len(identities) == 0 {
		return nil, &KeyMismatchError{}
	}

	var source io.Reader = bytes.NewReader(ciphertext)
	if isArmored(ciphertext) {
		source = armor.NewReader(source)
	}

	payload, err := age.Decrypt(source, identities...)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, &KeyMismatchError{Err: err}
		}
		return nil, &DecryptionError{Err: err}
	}

	// The payload is authenticated chunk by chunk as it is read. A
	// failure part way through closes the partially filled buffer,
	// which zeros whatever was already decrypted.
	plaintext, err := secret.NewFromReader(payload, MaxPlaintextSize)
	if err != nil {
		return nil, &DecryptionError{Err: err}
	}

	if compression == "" || compression == CompressionNone {
		return plaintext, nil
	}
	defer plaintext.Close()

	expanded, err := decompress(plaintext, compression)
	if err != nil {
		return nil, &DecryptionError{Err: fmt.Errorf("decompressing %s payload: %w", compression, err)}
	}
	return expanded, nil
}

// Encrypt encrypts plaintext to the given recipient strings (age1...
// or ssh-ed25519/ssh-rsa authorized-key lines), compressing it first
// when compression asks for it. The result is a binary age file.
func Encrypt(plaintext []byte, compression Compression, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := ParseRecipient(key)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, recipient)
	}

	if compression != "" && compression != CompressionNone {
		compressed, err := compress(plaintext, compression)
		if err != nil {
			return nil, err
		}
		plaintext = compressed
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// Armor wraps a binary age file in the PEM-like ASCII armor that
// `age --armor` produces, suitable for embedding in text manifests.
func Armor(ciphertext []byte) ([]byte, error) {
	var output bytes.Buffer
	writer := armor.NewWriter(&output)
	if _, err := writer.Write(ciphertext); err != nil {
		return nil, fmt.Errorf("armoring ciphertext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing armor: %w", err)
	}
	return output.Bytes(), nil
}

// ParseRecipient parses an age X25519 recipient (age1...), a hybrid
// post-quantum recipient (age1pq1...), or an SSH public key in
// authorized_keys format (ssh-ed25519 AAAA..., ssh-rsa AAAA...).
func ParseRecipient(key string) (age.Recipient, error) {
	key = strings.TrimSpace(key)
	switch {
	case strings.HasPrefix(key, "ssh-"):
		recipient, err := agessh.ParseRecipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing ssh recipient %q: %w", key, err)
		}
		return recipient, nil
	case strings.HasPrefix(key, "age1pq1"):
		recipient, err := age.ParseHybridRecipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing hybrid recipient %q: %w", key, err)
		}
		return recipient, nil
	}
	recipient, err := age.ParseX25519Recipient(key)
	if err != nil {
		return nil, fmt.Errorf("parsing age recipient %q: %w", key, err)
	}
	return recipient, nil
}

// IsArmored reports whether data starts with the age armor header,
// ignoring leading whitespace.
func IsArmored(data []byte) bool {
	return isArmored(data)
}

func isArmored(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte(armor.Header))
}
