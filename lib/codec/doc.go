// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration used for
// binary secret manifests.
//
// Configuration evaluators that emit large manifests (inline
// ciphertext for hundreds of secrets) may prefer CBOR over JSON: the
// ciphertext travels as a byte string instead of base64 text. The
// manifest loader decodes `.cbor` files through this package so that
// decoding options live in one place.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same logical manifest always produces identical bytes, which keeps
// manifest digests stable across evaluator runs.
//
// Types decoded from both JSON and CBOR carry only `json` tags;
// fxamacker/cbor reads `json` tags as a fallback when `cbor` tags are
// absent.
package codec
