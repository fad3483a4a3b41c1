// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"filippo.io/age"
	"filippo.io/age/agessh"
	"golang.org/x/crypto/ssh"

	"github.com/bureau-foundation/fleet-secrets/lib/secret"
)

// maxKeyFileSize bounds how much of a single file is read when probing
// for key material. Host keys are a few kilobytes; RSA-4096 in OpenSSH
// format is under 4 KiB.
const maxKeyFileSize = 64 << 10

// UnavailableError reports that the keystore location could not be
// opened or read at all. It is fatal for the run.
type UnavailableError struct {
	Location string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("keystore %s unavailable: %v", e.Location, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Key is one decryption key available on this host.
type Key struct {
	// ID is the identifier descriptors use in authorized_keys.
	ID string

	// Fingerprint is the SHA256 fingerprint of an SSH key, empty for
	// age identities.
	Fingerprint string

	// Path is the file the key was loaded from.
	Path string

	identity age.Identity
}

// Identity returns the age identity used to unwrap file keys.
func (k *Key) Identity() age.Identity { return k.identity }

// String returns the key identifier. Key material is never included.
func (k *Key) String() string { return k.ID }

// LogValue implements slog.LogValuer so that a Key passed as a log
// attribute renders as its identifier and source path only.
func (k *Key) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", k.ID),
		slog.String("path", k.Path),
	)
}

// Keystore holds the keys loaded from one location for the duration of
// a run.
type Keystore struct {
	location string
	logger   *slog.Logger

	mu      sync.RWMutex
	keys    []*Key
	byID    map[string]*Key
	buffers []*secret.Buffer
	closed  bool
}

// Open loads every key found at location. A nil logger discards log
// output.
func Open(location string, logger *slog.Logger) (*Keystore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if location == "" {
		return nil, &UnavailableError{Location: location, Err: errors.New("no keystore location configured")}
	}

	info, err := os.Stat(location)
	if err != nil {
		return nil, &UnavailableError{Location: location, Err: err}
	}

	store := &Keystore{
		location: location,
		logger:   logger.With("keystore", location),
		byID:     make(map[string]*Key),
	}

	if !info.IsDir() {
		if err := store.loadFile(location); err != nil {
			store.Close()
			return nil, &UnavailableError{Location: location, Err: err}
		}
		store.logger.Debug("keystore opened", "keys", len(store.keys))
		return store, nil
	}

	entries, err := os.ReadDir(location)
	if err != nil {
		return nil, &UnavailableError{Location: location, Err: err}
	}

	var candidates, unreadable int
	var lastErr error
	for _, entry := range entries {
		if !isCandidate(entry) {
			continue
		}
		candidates++
		path := filepath.Join(location, entry.Name())
		if err := store.loadFile(path); err != nil {
			unreadable++
			lastErr = err
			store.logger.Warn("skipping unreadable key file", "path", path, "error", err)
		}
	}
	if candidates > 0 && unreadable == candidates {
		store.Close()
		return nil, &UnavailableError{Location: location, Err: fmt.Errorf("no key file could be read: %w", lastErr)}
	}

	store.logger.Debug("keystore opened", "keys", len(store.keys), "files", candidates)
	return store, nil
}

// isCandidate filters directory entries down to files that might hold
// private key material.
func isCandidate(entry fs.DirEntry) bool {
	if entry.IsDir() {
		return false
	}
	name := entry.Name()
	switch {
	case strings.HasPrefix(name, "."):
		return false
	case strings.HasSuffix(name, ".pub"):
		return false
	case name == "known_hosts", name == "authorized_keys":
		return false
	}
	return true
}

// loadFile reads path and adds any keys it contains. A file that reads
// fine but holds no usable key is skipped, not an error; only read
// failures are returned.
func (s *Keystore) loadFile(path string) error {
	buffer, err := secret.ReadFile(path, maxKeyFileSize)
	if err != nil {
		return err
	}

	var keys []*Key
	contents := buffer.Bytes()
	switch {
	case bytes.Contains(contents, []byte("AGE-SECRET-KEY-")):
		keys, err = parseAgeIdentities(path, contents)
	case bytes.Contains(contents, []byte("PRIVATE KEY-----")):
		var key *Key
		key, err = parseSSHKey(path, contents)
		if key != nil {
			keys = []*Key{key}
		}
	default:
		s.logger.Debug("skipping file without key material", "path", path)
		buffer.Close()
		return nil
	}
	if err != nil {
		s.logger.Debug("skipping unusable key file", "path", path, "error", err)
		buffer.Close()
		return nil
	}

	s.buffers = append(s.buffers, buffer)
	for _, key := range keys {
		if _, exists := s.byID[key.ID]; exists {
			continue
		}
		s.keys = append(s.keys, key)
		s.byID[key.ID] = key
		if key.Fingerprint != "" {
			s.byID[key.Fingerprint] = key
		}
		s.logger.Debug("loaded key", "key", key)
	}
	return nil
}

func parseAgeIdentities(path string, contents []byte) ([]*Key, error) {
	identities, err := age.ParseIdentities(bytes.NewReader(contents))
	if err != nil {
		return nil, err
	}
	keys := make([]*Key, 0, len(identities))
	for _, identity := range identities {
		var id string
		switch typed := identity.(type) {
		case *age.X25519Identity:
			id = typed.Recipient().String()
		case *age.HybridIdentity:
			id = typed.Recipient().String()
		default:
			continue
		}
		keys = append(keys, &Key{ID: id, Path: path, identity: identity})
	}
	return keys, nil
}

func parseSSHKey(path string, contents []byte) (*Key, error) {
	raw, err := ssh.ParseRawPrivateKey(contents)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, errors.New("passphrase-protected keys are not supported")
		}
		return nil, err
	}

	var identity age.Identity
	var publicKey ssh.PublicKey
	switch private := raw.(type) {
	case *ed25519.PrivateKey:
		ed, err := agessh.NewEd25519Identity(*private)
		if err != nil {
			return nil, err
		}
		publicKey, err = ssh.NewPublicKey(private.Public())
		if err != nil {
			return nil, err
		}
		// The identity keeps only the derived curve25519 scalar.
		secret.Zero(*private)
		identity = ed
	case *rsa.PrivateKey:
		rsaIdentity, err := agessh.NewRSAIdentity(private)
		if err != nil {
			return nil, err
		}
		publicKey, err = ssh.NewPublicKey(&private.PublicKey)
		if err != nil {
			return nil, err
		}
		identity = rsaIdentity
	default:
		return nil, fmt.Errorf("unsupported ssh key type %T", raw)
	}

	return &Key{
		ID:          authorizedKeyID(publicKey),
		Fingerprint: ssh.FingerprintSHA256(publicKey),
		Path:        path,
		identity:    identity,
	}, nil
}

func authorizedKeyID(publicKey ssh.PublicKey) string {
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(publicKey)))
}

// NormalizeID reduces a key identifier as written in a manifest to the
// form keys are indexed by: surrounding whitespace is trimmed and the
// comment field of an authorized_keys line is dropped.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, "ssh-") && !strings.HasPrefix(id, "ecdsa-") {
		return id
	}
	fields := strings.Fields(id)
	if len(fields) < 2 {
		return id
	}
	return fields[0] + " " + fields[1]
}

// Keys returns every loaded key, sorted by identifier.
func (s *Keystore) Keys() []*Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]*Key, len(s.keys))
	copy(keys, s.keys)
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys
}

// Len returns the number of loaded keys.
func (s *Keystore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Resolve returns the locally available keys whose identifiers appear
// in authorized, in the order of authorized and without duplicates. An
// empty result means this host is not an intended recipient.
func (s *Keystore) Resolve(authorized []string) []*Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}

	var resolved []*Key
	seen := make(map[*Key]bool)
	for _, id := range authorized {
		key, ok := s.byID[NormalizeID(id)]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		resolved = append(resolved, key)
	}
	return resolved
}

// Identities returns the age identities of keys, for passing to the
// decryption engine.
func Identities(keys []*Key) []age.Identity {
	identities := make([]age.Identity, len(keys))
	for i, key := range keys {
		identities[i] = key.identity
	}
	return identities
}

// Close zeroes the key file buffers and drops the parsed identities,
// including from Keys already handed out: Identity returns nil after
// Close. Resolve returns nothing after Close. Safe to call more than
// once.
func (s *Keystore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, buffer := range s.buffers {
		if err := buffer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.buffers = nil
	for _, key := range s.keys {
		key.identity = nil
	}
	s.keys = nil
	s.byID = nil
	return errors.Join(errs...)
}
