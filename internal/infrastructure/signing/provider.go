package signing

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/iho/chainledger/internal/hashchain"
)

var (
	ErrMalformedKeySet = errors.New("malformed signing key set")
	ErrUnknownPurpose  = errors.New("unknown signing purpose")
	ErrUnknownKey      = errors.New("unknown key version for purpose")
	ErrNoActiveKey     = errors.New("active key version not present in key set")
)

// PurposeConfig describes the key material for one signing purpose.
type PurposeConfig struct {
	// Keys is a comma-separated list of version:secret pairs. Retired
	// versions stay listed so old records keep verifying.
	Keys string
	// ActiveKey is the version new records are signed with.
	ActiveKey string
	// Ed25519Seed is an optional hex-encoded 32-byte seed. When set,
	// the active signer for this purpose is Ed25519 under ActiveKey.
	Ed25519Seed string
}

type purposeKeys struct {
	active  string
	hmac    map[string]*hashchain.HMACSigner
	ed25519 map[string]*hashchain.Ed25519Signer
}

// Provider resolves signers from statically configured key material.
// It satisfies hashchain.KeyProvider.
type Provider struct {
	purposes map[string]*purposeKeys
}

// NewProvider builds a provider from per-purpose key configuration.
func NewProvider(purposes map[string]PurposeConfig) (*Provider, error) {
	p := &Provider{purposes: make(map[string]*purposeKeys, len(purposes))}

	for purpose, cfg := range purposes {
		keys, err := buildPurposeKeys(purpose, cfg)
		if err != nil {
			return nil, err
		}
		p.purposes[purpose] = keys
	}

	return p, nil
}

func buildPurposeKeys(purpose string, cfg PurposeConfig) (*purposeKeys, error) {
	keys := &purposeKeys{
		active:  cfg.ActiveKey,
		hmac:    make(map[string]*hashchain.HMACSigner),
		ed25519: make(map[string]*hashchain.Ed25519Signer),
	}

	for _, pair := range strings.Split(cfg.Keys, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		version, secret, ok := strings.Cut(pair, ":")
		if !ok || version == "" || secret == "" {
			return nil, fmt.Errorf("%w: purpose %q entry %q", ErrMalformedKeySet, purpose, pair)
		}

		signer, err := hashchain.NewHMACSigner([]byte(secret))
		if err != nil {
			return nil, fmt.Errorf("purpose %q version %q: %w", purpose, version, err)
		}
		keys.hmac[version] = signer
	}

	if cfg.Ed25519Seed != "" {
		seed, err := hex.DecodeString(cfg.Ed25519Seed)
		if err != nil {
			return nil, fmt.Errorf("%w: purpose %q ed25519 seed is not hex", ErrMalformedKeySet, purpose)
		}

		signer, err := hashchain.NewEd25519Signer(seed)
		if err != nil {
			return nil, fmt.Errorf("purpose %q: %w", purpose, err)
		}
		keys.ed25519[cfg.ActiveKey] = signer
	}

	if _, hmacOK := keys.hmac[cfg.ActiveKey]; !hmacOK {
		if _, edOK := keys.ed25519[cfg.ActiveKey]; !edOK {
			return nil, fmt.Errorf("%w: purpose %q version %q", ErrNoActiveKey, purpose, cfg.ActiveKey)
		}
	}

	return keys, nil
}

// ActiveSigner returns the signer new records are sealed with. Ed25519
// takes precedence over HMAC when both are configured for the active
// version.
func (p *Provider) ActiveSigner(purpose string) (hashchain.Signer, string, error) {
	keys, ok := p.purposes[purpose]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownPurpose, purpose)
	}

	if signer, ok := keys.ed25519[keys.active]; ok {
		return signer, keys.active, nil
	}

	if signer, ok := keys.hmac[keys.active]; ok {
		return signer, keys.active, nil
	}

	return nil, "", fmt.Errorf("%w: purpose %q version %q", ErrNoActiveKey, purpose, keys.active)
}

// VerifierFor returns a signer able to verify records created under the
// given algorithm and key version.
func (p *Provider) VerifierFor(purpose, algorithm, keyVersion string) (hashchain.Signer, error) {
	keys, ok := p.purposes[purpose]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPurpose, purpose)
	}

	switch algorithm {
	case hashchain.AlgorithmHMACSHA256:
		signer, ok := keys.hmac[keyVersion]
		if !ok {
			return nil, fmt.Errorf("%w: purpose %q version %q", ErrUnknownKey, purpose, keyVersion)
		}
		return signer, nil
	case hashchain.AlgorithmEd25519:
		signer, ok := keys.ed25519[keyVersion]
		if !ok {
			return nil, fmt.Errorf("%w: purpose %q version %q", ErrUnknownKey, purpose, keyVersion)
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("%w: %q", hashchain.ErrUnknownAlgorithm, algorithm)
	}
}
