// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Manifests never use non-string map keys. Without this,
		// any-typed targets decode maps as map[interface{}]interface{},
		// which nothing downstream understands.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// Duplicate keys in a manifest entry are an evaluator bug;
		// silently taking the last value would hide it.
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
		// Bounds the damage a corrupt manifest can do to the loader.
		MaxNestedLevels: 16,
		// A misspelled key would otherwise decode as an absent field.
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
