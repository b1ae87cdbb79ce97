// Package keyhash builds deterministic cache keys from request content.
//
// Keys are assembled from three parts: the endpoint name, a digest of the
// normalized content, and an optional digest of extra parameters. The same
// (endpoint, content, params) triple always produces the same key, in any
// process, on any machine, so independently deployed instances agree on
// cache keys without coordination.
package keyhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// DigestLen is the number of hex characters kept from each SHA-256 digest.
// 16 hex chars (64 bits) keeps keys readable in logs while making accidental
// collisions vanishingly unlikely at cache-sized populations.
const DigestLen = 16

// HashContent returns a deterministic digest of text. Leading and trailing
// whitespace is trimmed before hashing, so padding variants of the same
// content share a key.
func HashContent(text string) string {
	return digest([]byte(strings.TrimSpace(text)))
}

// HashParams returns a deterministic digest of an arbitrary parameter value.
// The value is reduced to canonical JSON before hashing: objects that are
// equal under key reordering hash identically. Values that cannot be
// marshalled (channels, funcs) hash as their Go string representation, which
// keeps the function total; such values should not appear in request params.
func HashParams(params any) string {
	return digest([]byte(CanonicalJSON(params)))
}

// CanonicalJSON renders v as JSON with object keys in sorted order at every
// nesting level. encoding/json sorts map keys, so marshalling v, decoding
// into generic maps/slices, and marshalling again yields a canonical form
// regardless of struct field order or the caller's original key order.
func CanonicalJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return string(raw)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return string(raw)
	}
	return string(canonical)
}

// BuildKey joins the endpoint and digests into a single cache key,
// "endpoint:contentHash" or "endpoint:contentHash:paramsHash". The digest
// parts are fixed-length lowercase hex and the endpoint is escaped, so the
// separator can never occur inside a component and distinct triples can
// never collide by concatenation.
func BuildKey(endpoint, contentHash string, paramsHash ...string) string {
	parts := []string{escapeEndpoint(endpoint), contentHash}
	for _, p := range paramsHash {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ":")
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:DigestLen]
}

// escapeEndpoint percent-escapes the separator (and the escape character
// itself) in an endpoint name.
func escapeEndpoint(endpoint string) string {
	endpoint = strings.ReplaceAll(endpoint, "%", "%25")
	return strings.ReplaceAll(endpoint, ":", "%3A")
}
