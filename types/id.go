// Package types defines core data structures and configuration for the
// GameDin consensus engine.
package types

import (
	"encoding/hex"
	"encoding/json"
	"errors"
)

// ValidatorID is an opaque, caller-assigned validator identity.
type ValidatorID string

// Valid reports whether the id is usable as a registry key.
func (id ValidatorID) Valid() bool {
	return len(id) > 0 && len(id) <= MaxValidatorIDLen
}

// RoundID identifies a consensus round. Round ids are assigned
// monotonically by the round manager and never reused.
type RoundID uint64

// Hash is a 32-byte content hash (proposal hashes, list ids).
type Hash [32]byte

// EmptyHash is the zero hash.
var EmptyHash = Hash{}

// ErrBadHash is returned when a hex string does not decode to a hash.
var ErrBadHash = errors.New("malformed hash")

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns a truncated representation for logs.
func (h Hash) Short() string {
	s := h.String()
	if len(s) > 8 {
		return s[:8] + "..."
	}
	return s
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == EmptyHash
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into the hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash decodes a 64-character hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(h) {
		return EmptyHash, ErrBadHash
	}
	copy(h[:], raw)
	return h, nil
}
