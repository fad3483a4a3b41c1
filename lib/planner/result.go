// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/fleet-secrets/lib/install"
	"github.com/bureau-foundation/fleet-secrets/lib/sealed"
)

// Outcome is the final state of one descriptor.
type Outcome int

const (
	// Installed means the plaintext is at the destination with the
	// requested metadata, either written by this run or already there.
	Installed Outcome = iota

	// SkippedNoKey means none of the descriptor's authorized keys are
	// available on this host. Not an error.
	SkippedNoKey

	// Failed means an error prevented installation. The destination
	// is unchanged, except after an *install.InstallError with
	// Replaced set.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Installed:
		return "installed"
	case SkippedNoKey:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalText renders the outcome by name in JSON summaries.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses a name produced by MarshalText.
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "installed":
		*o = Installed
	case "skipped":
		*o = SkippedNoKey
	case "failed":
		*o = Failed
	default:
		return fmt.Errorf("unknown outcome %q", text)
	}
	return nil
}

// ErrorKind classifies a failure with a stable name for summaries and
// logs.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindDecryption       ErrorKind = "DecryptionError"
	KindKeyMismatch      ErrorKind = "KeyMismatchError"
	KindInstall          ErrorKind = "InstallError"
	KindSourceUnreadable ErrorKind = "SourceUnreadable"
	KindCanceled         ErrorKind = "Canceled"
)

// sourceError marks ciphertext read failures for classify.
type sourceError struct{ err error }

func (e *sourceError) Error() string { return "reading ciphertext: " + e.err.Error() }
func (e *sourceError) Unwrap() error { return e.err }

// classify maps a unit's error to its kind.
func classify(err error) ErrorKind {
	var (
		source      *sourceError
		decryption  *sealed.DecryptionError
		keyMismatch *sealed.KeyMismatchError
		installErr  *install.InstallError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &source):
		return KindSourceUnreadable
	case errors.As(err, &keyMismatch):
		return KindKeyMismatch
	case errors.As(err, &decryption):
		return KindDecryption
	case errors.As(err, &installErr):
		return KindInstall
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInstall
	}
}

// Result is the outcome for one descriptor.
type Result struct {
	ID          string
	Destination string
	Outcome     Outcome

	// Unchanged is set on Installed results when the destination
	// already held the content and nothing was written.
	Unchanged bool

	// Expired is set when the descriptor's expires_at has passed. The
	// secret is still installed.
	Expired bool

	// Kind and Err are set on Failed results.
	Kind ErrorKind
	Err  error
}

// Report aggregates the results of a run.
type Report struct {
	// Results has exactly one entry per descriptor, in manifest order.
	Results []Result

	Installed int
	Unchanged int
	Skipped   int
	Failed    int
}

func newReport(results []Result) *Report {
	report := &Report{Results: results}
	for _, result := range results {
		switch result.Outcome {
		case Installed:
			report.Installed++
			if result.Unchanged {
				report.Unchanged++
			}
		case SkippedNoKey:
			report.Skipped++
		case Failed:
			report.Failed++
		}
	}
	return report
}

// Success reports whether no descriptor failed. Skipped descriptors do
// not count against success.
func (r *Report) Success() bool { return r.Failed == 0 }

// Failures returns the failed results in manifest order.
func (r *Report) Failures() []Result {
	var failures []Result
	for _, result := range r.Results {
		if result.Outcome == Failed {
			failures = append(failures, result)
		}
	}
	return failures
}
