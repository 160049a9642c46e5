package hashchain

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Algorithm tags stored alongside each record. Changing an algorithm
// means adding a new tag, never re-hashing historical records: old
// records verify against the algorithm active at creation time.
const (
	AlgorithmHMACSHA256 = "hmac-sha256.v1"
	AlgorithmEd25519    = "ed25519.v1"
)

var (
	ErrSignatureMismatch   = errors.New("signature mismatch")
	ErrUnknownAlgorithm    = errors.New("unknown signature algorithm")
	ErrInvalidKeyMaterial  = errors.New("invalid key material")
	ErrMalformedSignature  = errors.New("malformed signature encoding")
	errVerifyOnlyNoPrivKey = errors.New("signer holds no private key")
)

// Signer produces and checks signatures under one algorithm and one key.
type Signer interface {
	Algorithm() string
	Sign(data []byte) (string, error)
	Verify(data []byte, signature string) error
}

// HMACSigner is a keyed-MAC signer. It provides same-process integrity,
// not non-repudiation: anyone holding the key can forge.
type HMACSigner struct {
	key []byte
}

// NewHMACSigner creates an HMAC-SHA256 signer.
func NewHMACSigner(key []byte) (*HMACSigner, error) {
	if len(key) == 0 {
		return nil, ErrInvalidKeyMaterial
	}

	return &HMACSigner{key: key}, nil
}

// Algorithm returns the signer's algorithm tag.
func (s *HMACSigner) Algorithm() string {
	return AlgorithmHMACSHA256
}

// Sign returns the hex HMAC-SHA256 of data.
func (s *HMACSigner) Sign(data []byte) (string, error) {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)

	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks a signature in constant time.
func (s *HMACSigner) Verify(data []byte, signature string) error {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return ErrMalformedSignature
	}

	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)

	if !hmac.Equal(mac.Sum(nil), want) {
		return ErrSignatureMismatch
	}

	return nil
}

// Ed25519Signer signs with an asymmetric key so exported bundles can be
// verified by a third party holding only the public key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewEd25519Signer creates a signer from a 32-byte seed.
func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: ed25519 seed must be %d bytes", ErrInvalidKeyMaterial, ed25519.SeedSize)
	}

	priv := ed25519.NewKeyFromSeed(seed)

	return &Ed25519Signer{
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// NewEd25519Verifier creates a verify-only signer from a public key.
func NewEd25519Verifier(pub []byte) (*Ed25519Signer, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: ed25519 public key must be %d bytes", ErrInvalidKeyMaterial, ed25519.PublicKeySize)
	}

	return &Ed25519Signer{pub: ed25519.PublicKey(pub)}, nil
}

// Algorithm returns the signer's algorithm tag.
func (s *Ed25519Signer) Algorithm() string {
	return AlgorithmEd25519
}

// Sign returns the hex Ed25519 signature of data.
func (s *Ed25519Signer) Sign(data []byte) (string, error) {
	if s.priv == nil {
		return "", errVerifyOnlyNoPrivKey
	}

	return hex.EncodeToString(ed25519.Sign(s.priv, data)), nil
}

// Verify checks an Ed25519 signature.
func (s *Ed25519Signer) Verify(data []byte, signature string) error {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return ErrMalformedSignature
	}

	if !ed25519.Verify(s.pub, data, sig) {
		return ErrSignatureMismatch
	}

	return nil
}

// KeyProvider resolves signers by purpose and, for historical records,
// by the algorithm/key-version tags stored on the record.
type KeyProvider interface {
	// ActiveSigner returns the signer new records are sealed with, plus
	// its key version tag.
	ActiveSigner(purpose string) (Signer, string, error)
	// VerifierFor returns a signer able to verify a record created under
	// the given algorithm and key version.
	VerifierFor(purpose, algorithm, keyVersion string) (Signer, error)
}
