// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/fleet-secrets/lib/clock"
	"github.com/bureau-foundation/fleet-secrets/lib/install"
	"github.com/bureau-foundation/fleet-secrets/lib/keystore"
	"github.com/bureau-foundation/fleet-secrets/lib/manifest"
	"github.com/bureau-foundation/fleet-secrets/lib/sealed"
)

// DefaultMaxCiphertextSize bounds how much ciphertext is read per
// descriptor. Compressed and armored payloads stay well under this
// for any plaintext within sealed.MaxPlaintextSize.
const DefaultMaxCiphertextSize = 2 * sealed.MaxPlaintextSize

// KeyResolver finds the local keys matching a descriptor's authorized
// key list. *keystore.Keystore implements it.
type KeyResolver interface {
	Resolve(authorized []string) []*keystore.Key
}

// Installer persists plaintext. *install.Installer implements it.
type Installer interface {
	Install(request install.Request) (install.Outcome, error)
}

// Options configures a Planner.
type Options struct {
	// Parallelism is the maximum number of descriptors processed at
	// once. Values below 1 mean 1.
	Parallelism int

	// Clock supplies the time for expiry checks. Nil means the real
	// clock.
	Clock clock.Clock

	// MaxCiphertextSize bounds ciphertext reads. Zero means
	// DefaultMaxCiphertextSize.
	MaxCiphertextSize int64

	// Logger receives one line per descriptor. Nil discards.
	Logger *slog.Logger
}

// Planner runs descriptors through resolve, decrypt, and install.
type Planner struct {
	keys              KeyResolver
	installer         Installer
	parallelism       int
	clock             clock.Clock
	maxCiphertextSize int64
	logger            *slog.Logger
}

// New returns a Planner that resolves keys with keys and writes with
// installer.
func New(keys KeyResolver, installer Installer, options Options) *Planner {
	if options.Parallelism < 1 {
		options.Parallelism = 1
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.MaxCiphertextSize <= 0 {
		options.MaxCiphertextSize = DefaultMaxCiphertextSize
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Planner{
		keys:              keys,
		installer:         installer,
		parallelism:       options.Parallelism,
		clock:             options.Clock,
		maxCiphertextSize: options.MaxCiphertextSize,
		logger:            options.Logger,
	}
}

// Run processes every descriptor and returns the aggregated report. It
// never stops early on a per-descriptor error; only ctx cancellation
// prevents descriptors from being attempted.
func (p *Planner) Run(ctx context.Context, descriptors []manifest.Descriptor) *Report {
	results := make([]Result, len(descriptors))

	var group errgroup.Group
	group.SetLimit(p.parallelism)
	for index := range descriptors {
		descriptor := &descriptors[index]
		if ctx.Err() != nil {
			results[index] = p.canceled(descriptor, ctx.Err())
			continue
		}
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[index] = p.canceled(descriptor, err)
				return nil
			}
			results[index] = p.process(descriptor)
			return nil
		})
	}
	group.Wait()

	report := newReport(results)
	p.logger.Info("secrets run complete",
		"installed", report.Installed,
		"unchanged", report.Unchanged,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report
}

func (p *Planner) canceled(descriptor *manifest.Descriptor, err error) Result {
	result := Result{
		ID:          descriptor.ID,
		Destination: descriptor.Destination,
		Outcome:     Failed,
		Kind:        KindCanceled,
		Err:         err,
	}
	p.logResult(result)
	return result
}

// process is one atomic unit: resolve, read, decrypt, install. The
// plaintext buffer is closed before returning on every path.
func (p *Planner) process(descriptor *manifest.Descriptor) Result {
	result := Result{ID: descriptor.ID, Destination: descriptor.Destination}
	fail := func(err error) Result {
		result.Outcome = Failed
		result.Err = err
		result.Kind = classify(err)
		p.logResult(result)
		return result
	}

	keys := p.keys.Resolve(descriptor.AuthorizedKeys)
	if len(keys) == 0 {
		result.Outcome = SkippedNoKey
		p.logResult(result)
		return result
	}

	ciphertext, err := descriptor.Ciphertext(p.maxCiphertextSize)
	if err != nil {
		return fail(&sourceError{err: err})
	}

	plaintext, err := sealed.Decrypt(ciphertext, descriptor.Compression, keystore.Identities(keys)...)
	if err != nil {
		return fail(err)
	}
	defer plaintext.Close()

	if descriptor.Expired(p.clock.Now()) {
		result.Expired = true
		p.logger.Warn("installing expired secret",
			"id", descriptor.ID,
			"expired_at", descriptor.ExpiresAt.Format(time.RFC3339),
		)
	}

	outcome, err := p.installer.Install(install.Request{
		Destination: descriptor.Destination,
		Owner:       descriptor.Owner,
		Group:       descriptor.Group,
		Mode:        descriptor.Mode,
		Plaintext:   plaintext,
	})
	if err != nil {
		return fail(err)
	}

	result.Outcome = Installed
	result.Unchanged = outcome == install.Unchanged
	p.logResult(result)
	return result
}

func (p *Planner) logResult(result Result) {
	switch result.Outcome {
	case Failed:
		p.logger.Warn("secret failed", "id", result.ID, "outcome", result.Outcome.String(), "kind", string(result.Kind))
		p.logger.Debug("secret failure detail", "id", result.ID, "error", result.Err)
	case SkippedNoKey:
		p.logger.Info("secret skipped", "id", result.ID, "outcome", result.Outcome.String())
	default:
		p.logger.Info("secret installed", "id", result.ID, "outcome", result.Outcome.String(), "unchanged", result.Unchanged)
	}
}

// Decision is what Plan predicts for one descriptor.
type Decision struct {
	ID          string
	Destination string

	// Outcome is Installed if a matching key is present, otherwise
	// SkippedNoKey.
	Outcome Outcome

	// Keys lists the matching local key identifiers.
	Keys []string

	Expired bool
}

// Plan reports which descriptors this host would install and with
// which keys, without reading ciphertext or touching the filesystem.
func (p *Planner) Plan(descriptors []manifest.Descriptor) []Decision {
	now := p.clock.Now()
	decisions := make([]Decision, len(descriptors))
	for index := range descriptors {
		descriptor := &descriptors[index]
		decision := Decision{
			ID:          descriptor.ID,
			Destination: descriptor.Destination,
			Outcome:     SkippedNoKey,
			Expired:     descriptor.Expired(now),
		}
		for _, key := range p.keys.Resolve(descriptor.AuthorizedKeys) {
			decision.Keys = append(decision.Keys, key.ID)
		}
		if len(decision.Keys) > 0 {
			decision.Outcome = Installed
		}
		decisions[index] = decision
	}
	return decisions
}
