// Package idhash computes deterministic identifiers and fingerprints.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ConfigFingerprint computes a stable fingerprint of a configuration value.
// Formula: SHA256(canonical JSON of v), where canonical JSON has object keys
// sorted at every level and no insignificant whitespace.
// Returns hex-encoded hash (64 characters).
func ConfigFingerprint(v any) (string, error) {
	data, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// CanonicalJSON encodes v with object keys sorted at every level.
// Struct field order does not affect the output.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	// Decoding into interface{} turns every object into a map, and maps
	// are encoded with sorted keys.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return json.Marshal(generic)
}
