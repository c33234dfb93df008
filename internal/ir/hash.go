package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the hashing scheme to change without collisions.
const (
	DomainSource   = "pyrs/source/v1"
	DomainCacheKey = "pyrs/cache-key/v1"
	DomainIR       = "pyrs/ir/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SourceHash returns the content hash of source text. The text is NFC
// normalized first so visually identical sources share a hash.
func SourceHash(source string) string {
	return hashWithDomain(DomainSource, []byte(norm.NFC.String(source)))
}

// CacheKey returns the identity of one transpile request: the source hash
// combined with every option that can change the output.
func CacheKey(source string, options map[string]any) (string, error) {
	obj := map[string]any{
		"source":          SourceHash(source),
		"options":         options,
		"ir_version":      IRVersion,
		"codegen_version": CodegenVersion,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CacheKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCacheKey, canonical), nil
}

// ModuleHash returns the content hash of a module's canonical dump.
func ModuleHash(m *Module) (string, error) {
	canonical, err := MarshalCanonical(Dump(m))
	if err != nil {
		return "", fmt.Errorf("ModuleHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainIR, canonical), nil
}

// MustCacheKey is like CacheKey but panics on error.
// Use only in tests or when options are known to be valid.
func MustCacheKey(source string, options map[string]any) string {
	key, err := CacheKey(source, options)
	if err != nil {
		panic(err)
	}
	return key
}
