// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/zephyr-sh/zephyr/internal/audit"
)

const (
	sigSuffix  = ".sig"
	hashSuffix = ".sha256"
)

var (
	// ErrNoPublicKey is returned when signature verification has no key to check against.
	ErrNoPublicKey = errors.New("no public key configured")
	// ErrBadSignature is returned when a detached signature does not verify.
	ErrBadSignature = errors.New("signature verification failed")
	// ErrHashMismatch is the sentinel error wrapped by HashError.
	ErrHashMismatch = errors.New("hash mismatch")
	// ErrMalformedHash is returned when a hash file has no SHA-256 digest.
	ErrMalformedHash = errors.New("malformed hash file")
)

type (
	// Verifier checks detached OpenPGP signatures against a fixed keyring.
	Verifier struct {
		keyring openpgp.EntityList
	}

	// HashError reports a SHA-256 mismatch.
	HashError struct {
		File     string
		Expected string
		Got      string
	}
)

// Error implements the error interface.
func (e *HashError) Error() string {
	return fmt.Sprintf("sha256 mismatch for %s: expected %s, got %s", e.File, e.Expected, e.Got)
}

// Unwrap returns ErrHashMismatch so callers can use errors.Is.
func (e *HashError) Unwrap() error { return ErrHashMismatch }

// NewVerifier parses an armored or binary OpenPGP public keyring.
func NewVerifier(key []byte) (*Verifier, error) {
	if len(bytes.TrimSpace(key)) == 0 {
		return nil, ErrNoPublicKey
	}
	var (
		keyring openpgp.EntityList
		err     error
	)
	if isArmored(key) {
		keyring, err = openpgp.ReadArmoredKeyRing(bytes.NewReader(key))
	} else {
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(key))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	return &Verifier{keyring: keyring}, nil
}

// VerifySignature checks the detached signature in sigPath over file. The
// signature may be armored or binary. It returns the signer's primary key ID
// in hex.
func (v *Verifier) VerifySignature(file, sigPath string) (string, error) {
	if v == nil || len(v.keyring) == 0 {
		return "", ErrNoPublicKey
	}
	sig, err := os.ReadFile(sigPath)
	if err != nil {
		return "", fmt.Errorf("failed to read signature: %w", err)
	}
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("failed to open signed file: %w", err)
	}
	defer f.Close()

	var signer *openpgp.Entity
	if isArmored(sig) {
		signer, err = openpgp.CheckArmoredDetachedSignature(v.keyring, f, bytes.NewReader(sig), nil)
	} else {
		signer, err = openpgp.CheckDetachedSignature(v.keyring, f, bytes.NewReader(sig), nil)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	return signer.PrimaryKey.KeyIdString(), nil
}

// VerifyHash checks file against the SHA-256 digest in hashPath. The hash file
// may be in sha256sum format ("<hex>  <name>") or hold the bare hex digest.
// Digests are compared in constant time.
func VerifyHash(file, hashPath string) error {
	hf, err := os.Open(hashPath)
	if err != nil {
		return fmt.Errorf("failed to open hash file: %w", err)
	}
	defer hf.Close()

	expectedHex, err := parseHashFile(hf)
	if err != nil {
		return err
	}
	expected, err := hex.DecodeString(expectedHex)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedHash, err)
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("failed to hash %s: %w", file, err)
	}
	got := h.Sum(nil)

	if subtle.ConstantTimeCompare(got, expected) != 1 {
		return &HashError{File: file, Expected: expectedHex, Got: hex.EncodeToString(got)}
	}
	return nil
}

// parseHashFile returns the first SHA-256 hex digest in r.
func parseHashFile(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		digest, _, _ := strings.Cut(line, " ")
		digest = strings.ToLower(digest)
		if !isHexDigest(digest) {
			return "", fmt.Errorf("%w: %q is not a SHA-256 digest", ErrMalformedHash, digest)
		}
		return digest, nil
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("failed to read hash file: %w", err)
	}
	return "", fmt.Errorf("%w: file is empty", ErrMalformedHash)
}

func isHexDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func isArmored(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("-----BEGIN PGP"))
}

const opVerify = "verify"

// VerifyResult describes a verified archive.
type VerifyResult struct {
	Location    string
	SignerKeyID string
}

// Verify fetches a tarball with its .sig and .sha256 companions and checks
// both without extracting or installing anything. The outcome is audited.
func (p *Pipeline) Verify(ctx context.Context, location string) (*VerifyResult, error) {
	ev := audit.Event{Action: audit.ActionVerify, Source: location}
	if p.verifier == nil {
		return nil, p.recordOutcome(ev, opVerify, &Error{Kind: KindTrustGate, Op: opVerify, Err: ErrNoPublicKey})
	}

	st, err := newStage(p.cfg.TempDir)
	if err != nil {
		return nil, p.recordOutcome(ev, opVerify, &Error{Kind: KindEnvironment, Op: opVerify, Err: err})
	}
	defer func() {
		if cleanupErr := st.Cleanup(); cleanupErr != nil {
			p.logger.Warn("failed to remove staging directory", "dir", st.root, "error", cleanupErr)
		}
	}()

	keyID, _, err := p.fetchVerified(ctx, st, location, opVerify)
	if err != nil {
		return nil, p.recordOutcome(ev, opVerify, err)
	}
	ev.SignatureVerified = true
	if err := p.recordOutcome(ev, opVerify, nil); err != nil {
		return nil, err
	}
	return &VerifyResult{Location: location, SignerKeyID: keyID}, nil
}
