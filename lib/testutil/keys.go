// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"strings"
	"testing"

	"filippo.io/age"
	"golang.org/x/crypto/ssh"

	"github.com/bureau-foundation/fleet-secrets/lib/sealed"
)

// AgeIdentity generates a fresh age X25519 identity. Its String() is
// the identity file line and Recipient().String() the key identifier.
func AgeIdentity(t *testing.T) *age.X25519Identity {
	t.Helper()
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generating age identity: %v", err)
	}
	return identity
}

// SSHKey is a generated OpenSSH key pair.
type SSHKey struct {
	// PrivatePEM is the private key in OpenSSH PEM format, as found in
	// /etc/ssh/ssh_host_*_key.
	PrivatePEM []byte

	// AuthorizedKey is the public key as an authorized_keys line
	// without a comment ("ssh-ed25519 AAAA...").
	AuthorizedKey string

	// Fingerprint is the SHA256 fingerprint ("SHA256:...").
	Fingerprint string
}

// SSHEd25519Key generates an unencrypted OpenSSH ed25519 key pair.
func SSHEd25519Key(t *testing.T) SSHKey {
	t.Helper()
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating ed25519 key: %v", err)
	}
	return marshalSSHKey(t, privateKey, "")
}

// SSHRSAKey generates an unencrypted OpenSSH RSA key pair.
func SSHRSAKey(t *testing.T) SSHKey {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}
	return marshalSSHKey(t, privateKey, "")
}

// SSHEncryptedEd25519Key generates a passphrase-protected ed25519 key.
func SSHEncryptedEd25519Key(t *testing.T, passphrase string) SSHKey {
	t.Helper()
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating ed25519 key: %v", err)
	}
	return marshalSSHKey(t, privateKey, passphrase)
}

func marshalSSHKey(t *testing.T, privateKey any, passphrase string) SSHKey {
	t.Helper()

	var block *pem.Block
	var err error
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(privateKey, "")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(privateKey, "", []byte(passphrase))
	}
	if err != nil {
		t.Fatalf("marshaling ssh private key: %v", err)
	}

	signer, err := ssh.NewSignerFromKey(privateKey)
	if err != nil {
		t.Fatalf("creating ssh signer: %v", err)
	}
	publicKey := signer.PublicKey()

	return SSHKey{
		PrivatePEM:    pem.EncodeToMemory(block),
		AuthorizedKey: strings.TrimSpace(string(ssh.MarshalAuthorizedKey(publicKey))),
		Fingerprint:   ssh.FingerprintSHA256(publicKey),
	}
}

// Encrypt seals plaintext to the given recipient strings.
func Encrypt(t *testing.T, plaintext []byte, recipients ...string) []byte {
	t.Helper()
	return EncryptCompressed(t, plaintext, sealed.CompressionNone, recipients...)
}

// EncryptCompressed seals plaintext to recipients after compressing it.
func EncryptCompressed(t *testing.T, plaintext []byte, compression sealed.Compression, recipients ...string) []byte {
	t.Helper()
	ciphertext, err := sealed.Encrypt(plaintext, compression, recipients)
	if err != nil {
		t.Fatalf("encrypting fixture: %v", err)
	}
	return ciphertext
}
