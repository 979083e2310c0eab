// Package pass implements the OnePass entry-pass token: a compact base64url
// token displayed as a QR code, plus server-side signing and verification.
//
// The token text format is fixed:
//
//	onepass:user:v1.<base64url(payload-json)>.<base64url(signature)>
//
// where payload-json is {"uid":...,"kid":...,"iat":...,"ver":...} in exactly
// that field order. Decode is a pure format parser and performs no
// cryptographic checks; those belong to Verifier. Domain validity (iat > 0,
// ver > 0, ...) is likewise not Decode's concern — IsComplete is the single
// place that decides whether a pass is usable. Keep that split: scanners must
// be able to parse a shape-valid token and report "incomplete" separately
// from "unreadable".
package pass

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
)

// TokenPrefix starts every OnePass user token.
const TokenPrefix = "onepass:user:v1."

// Decode failure modes. Callers must treat any of these as "cannot trust
// this QR code" and never use a partially decoded pass.
var (
	ErrBadPrefix          = errors.New("pass: token does not start with onepass:user:v1.")
	ErrBadTokenFormat     = errors.New("pass: token body is not payload.signature")
	ErrEmptySignature     = errors.New("pass: signature segment is empty")
	ErrBadSignatureFormat = errors.New("pass: signature contains non-base64url characters")
	ErrBadPayload         = errors.New("pass: payload is not valid base64url JSON")
)

// payload is the signed portion of the token. Field order is the wire
// contract; encoding/json preserves declaration order.
type payload struct {
	UID string `json:"uid"`
	KID string `json:"kid"`
	IAT int64  `json:"iat"`
	Ver int    `json:"ver"`
}

// Encode serializes a pass into its QR token text. The signature is taken
// from the pass as-is; it is assumed to already be base64url-encoded.
func Encode(p domain.Pass) string {
	body, _ := json.Marshal(payload{UID: p.UID, KID: p.KID, IAT: p.IssuedAt, Ver: p.Version})
	return TokenPrefix + base64.RawURLEncoding.EncodeToString(body) + "." + p.Signature
}

// EncodePayload returns just the base64url payload segment for a pass.
// Signers sign exactly this string.
func EncodePayload(p domain.Pass) string {
	body, _ := json.Marshal(payload{UID: p.UID, KID: p.KID, IAT: p.IssuedAt, Ver: p.Version})
	return base64.RawURLEncoding.EncodeToString(body)
}

// Decode parses a scanned token back into a Pass. It validates format only:
// prefix, two-segment body, signature charset, payload base64url + JSON
// shape. It deliberately accepts domain-invalid values (iat <= 0, ver <= 0);
// use IsComplete for that.
func Decode(text string) (domain.Pass, error) {
	if !strings.HasPrefix(text, TokenPrefix) {
		return domain.Pass{}, ErrBadPrefix
	}

	body := text[len(TokenPrefix):]
	payloadPart, sigPart, found := strings.Cut(body, ".")
	if !found {
		return domain.Pass{}, ErrBadTokenFormat
	}

	if sigPart == "" {
		return domain.Pass{}, ErrEmptySignature
	}
	if !isBase64URL(sigPart) {
		return domain.Pass{}, ErrBadSignatureFormat
	}

	raw, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return domain.Pass{}, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}

	var pl payload
	if err := json.Unmarshal(raw, &pl); err != nil {
		return domain.Pass{}, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	if pl.UID == "" || pl.KID == "" {
		return domain.Pass{}, fmt.Errorf("%w: missing uid or kid", ErrBadPayload)
	}

	return domain.Pass{
		UID:       pl.UID,
		KID:       pl.KID,
		IssuedAt:  pl.IAT,
		Version:   pl.Ver,
		Signature: sigPart,
	}, nil
}

// IsComplete reports whether a pass satisfies the domain invariants: uid and
// kid non-blank, issuedAt and version positive, signature well-formed
// base64url. Decode succeeding does not imply this.
func IsComplete(p domain.Pass) bool {
	if strings.TrimSpace(p.UID) == "" || strings.TrimSpace(p.KID) == "" {
		return false
	}
	if p.IssuedAt <= 0 || p.Version <= 0 {
		return false
	}
	if p.Signature == "" || !isBase64URL(p.Signature) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(p.Signature)
	return err == nil
}

func isBase64URL(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
