// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest loads and validates the secret manifest: the list
// of secret descriptors a host is asked to install.
//
// A manifest is emitted by the fleet's configuration evaluator. It is
// authored as JSON (comments and trailing commas allowed), YAML, or
// CBOR, chosen by file extension:
//
//	{
//	  "version": 1,
//	  "secrets": [
//	    {
//	      "id": "db-password",
//	      "source": "secrets/db-password.age",
//	      "destination": "/run/secrets/db-password",
//	      "owner": "postgres",
//	      "group": "postgres",
//	      "mode": "0400",
//	      "authorized_keys": ["ssh-ed25519 AAAA...", "age1..."]
//	    }
//	  ]
//	}
//
// Each entry names its ciphertext either by "source" (a file path,
// relative paths resolve against the manifest's directory) or inline
// by "data" (base64 or ASCII-armored age ciphertext). Optional fields
// are "compression" ("none", "zstd", "lz4"), "created_at" and
// "expires_at" (RFC 3339).
//
// [Load] and [Parse] validate the whole manifest before returning
// anything: a malformed entry, a missing field, or two entries that
// would write the same destination fail the entire load with
// [*ParseError], [*MissingFieldError], or [*DuplicateDestinationError].
// Nothing is decrypted or written until a manifest loads cleanly.
package manifest
