// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"io"
)

// JSONOutput is embedded in a command's parameter struct to give it a
// --json flag (bound by [BindFlags]) and the [JSONOutput.EmitJSON]
// helper.
type JSONOutput struct {
	OutputJSON bool `json:"-" flag:"json" desc:"print the summary as JSON"`
}

// EmitJSON writes result to w as indented JSON when --json was given.
// The boolean reports whether it did; when false the caller renders
// text instead. Summary types should build empty slices rather than
// nil so lists encode as [].
func (j *JSONOutput) EmitJSON(w io.Writer, result any) (bool, error) {
	if !j.OutputJSON {
		return false, nil
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return true, encoder.Encode(result)
}
