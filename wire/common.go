package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Error definitions for the transaction data model.
var ErrInvalidHashLength = errors.New("invalid hash string length")

// HashSize of array used to store hashes.  See Hash.
const HashSize = 32

// Hash is used throughout the mempool data structures.  It typically
// represents the double sha256 of data.
type Hash [HashSize]byte

// String returns the Hash as the hexadecimal string of the byte-reversed
// hash.
func (hash Hash) String() string {
	for i := 0; i < HashSize/2; i++ {
		hash[i], hash[HashSize-1-i] = hash[HashSize-1-i], hash[i]
	}
	return hex.EncodeToString(hash[:])
}

// IsZero reports whether the hash is the all-zero value used for the null
// outpoint hash of a coinbase input.
func (hash Hash) IsZero() bool {
	return hash == Hash{}
}

// Bytes returns the hash's raw internal byte order, suitable for feeding
// into a rolling filter or an on-disk key.
func (hash Hash) Bytes() []byte {
	return hash[:]
}

// NewHashFromStr creates a Hash from a hash string.  The string is the
// hexadecimal string of a byte-reversed hash, matching String above.
func NewHashFromStr(s string) (*Hash, error) {
	if len(s) > HashSize*2 {
		return nil, fmt.Errorf("hash string too long: %w", ErrInvalidHashLength)
	}

	decoded, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}

	var ret Hash
	copy(ret[HashSize-len(decoded):], decoded)
	for i := 0; i < HashSize/2; i++ {
		ret[i], ret[HashSize-1-i] = ret[HashSize-1-i], ret[i]
	}
	return &ret, nil
}

// DoubleHashH calculates hash(hash(b)) and returns the resulting bytes as a
// Hash.
func DoubleHashH(b []byte) Hash {
	first := sha256.Sum256(b)
	return Hash(sha256.Sum256(first[:]))
}
