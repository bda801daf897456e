package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// digestDomain separates state digests from every other hash domain in the
// system. Bump the version suffix if the canonical form ever changes.
const digestDomain = "redix/state/v1"

// CanonicalJSON renders a document value as RFC 8785 (JCS) canonical JSON:
// sorted keys, shortest-round-trip number serialization, canonical string
// escaping. Equal documents always produce identical bytes.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal for canonicalization: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return canon, nil
}

// Digest returns the domain-separated SHA-256 of the canonical form of s,
// hex encoded. Whole-number floats and ints digest identically (RFC 8785
// number formatting), so a document survives a JSON round trip with its
// digest intact.
func (s State) Digest() (string, error) {
	if s == nil {
		s = Empty()
	}
	canon, err := CanonicalJSON(map[string]any(s))
	if err != nil {
		return "", err
	}
	return HashWithDomain(digestDomain, canon), nil
}

// HashWithDomain computes SHA-256 over domain || 0x00 || data, hex encoded.
// The NUL separator keeps digests from different domains incomparable even
// for identical payload bytes.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
