// Package crypto provides content hashing for the consensus engine.
package crypto

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/MKWorldWide/gamedin-consensus/types"
)

// Hash256 computes the SHA-256 hash of data.
func Hash256(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// HashConcat computes the hash of concatenated byte slices.
func HashConcat(parts ...[]byte) types.Hash {
	h := sha256.New()
	for _, part := range parts {
		h.Write(part)
	}
	var hash types.Hash
	copy(hash[:], h.Sum(nil))
	return hash
}

// ListContentID derives the content-addressed id of a unique list from
// its publisher, name, member set and version. Member order is part of
// the content: lists publish an ordered member set.
func ListContentID(publisher types.ValidatorID, name string, members []types.ValidatorID, version uint64) types.Hash {
	h := sha256.New()
	h.Write([]byte(publisher))
	h.Write([]byte{0})
	h.Write([]byte(name))
	h.Write([]byte{0})
	for _, m := range members {
		h.Write([]byte(m))
		h.Write([]byte{0})
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, version)
	h.Write(buf)

	var hash types.Hash
	copy(hash[:], h.Sum(nil))
	return hash
}
