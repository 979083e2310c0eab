package pass

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
)

// Verification failure modes.
var (
	ErrUnknownKey   = errors.New("pass: unknown key id")
	ErrBadSignature = errors.New("pass: signature verification failed")
)

// Signer signs pass payloads with per-kid Ed25519 keys. The signature is the
// raw Ed25519 signature over the base64url payload segment, itself encoded
// base64url without padding — the same string the codec round-trips.
type Signer struct {
	kid  string
	priv ed25519.PrivateKey
}

// NewSigner creates a signer from a base64url-encoded Ed25519 private key.
func NewSigner(kid, encodedKey string) (*Signer, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return &Signer{kid: kid, priv: ed25519.PrivateKey(raw)}, nil
}

// GenerateSigner creates a signer with a fresh random key. Used by tests and
// local development; production keys come from configuration.
func GenerateSigner(kid string) (*Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Signer{kid: kid, priv: priv}, nil
}

// KID returns the signer's key id.
func (s *Signer) KID() string { return s.kid }

// PublicKey returns the base64url-encoded public half for verifier setup.
func (s *Signer) PublicKey() string {
	return base64.RawURLEncoding.EncodeToString(s.priv.Public().(ed25519.PublicKey))
}

// Sign fills in the pass's kid and signature. All other fields must already
// be set; the signature covers uid, kid, iat and ver.
func (s *Signer) Sign(p domain.Pass) domain.Pass {
	p.KID = s.kid
	sig := ed25519.Sign(s.priv, []byte(EncodePayload(p)))
	p.Signature = base64.RawURLEncoding.EncodeToString(sig)
	return p
}

// Verifier checks pass signatures against a set of known public keys.
type Verifier struct {
	keys map[string]ed25519.PublicKey // kid -> key
}

// NewVerifier creates a verifier from kid -> base64url public key pairs.
func NewVerifier(keys map[string]string) (*Verifier, error) {
	v := &Verifier{keys: make(map[string]ed25519.PublicKey, len(keys))}
	for kid, encoded := range keys {
		raw, err := base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode public key %q: %w", kid, err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("public key %q must be %d bytes, got %d", kid, ed25519.PublicKeySize, len(raw))
		}
		v.keys[kid] = ed25519.PublicKey(raw)
	}
	return v, nil
}

// Verify checks that the pass's signature was produced by the key its kid
// names. The pass must have come through Decode or Sign.
func (v *Verifier) Verify(p domain.Pass) error {
	key, ok := v.keys[p.KID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, p.KID)
	}
	sig, err := base64.RawURLEncoding.DecodeString(p.Signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	if !ed25519.Verify(key, []byte(EncodePayload(p)), sig) {
		return ErrBadSignature
	}
	return nil
}
