package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the encoding to change without colliding.
const (
	DomainResult = "labelcheck/result/v1"
	DomainReport = "labelcheck/report/v2"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest hashes the canonical encoding of v under domain.
func Digest(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// ResultID computes the identity of one (scenario, backend) outcome.
// Two runs that produce the same outcome for the same pair get the same ID.
func ResultID(scenario string, index int, backend, status, kind string) (string, error) {
	return Digest(DomainResult, map[string]any{
		"scenario": scenario,
		"index":    index,
		"backend":  backend,
		"status":   status,
		"kind":     kind,
	})
}

// MustResultID is like ResultID but panics on error.
// ResultID only fails on invalid UTF-8, which suite validation rules out.
func MustResultID(scenario string, index int, backend, status, kind string) string {
	id, err := ResultID(scenario, index, backend, status, kind)
	if err != nil {
		panic(err)
	}
	return id
}
