package mempool

import (
	"crypto/sha256"
	"math"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// RollingFilter is a bounded, approximate set of recently-rejected
// transaction hashes. Membership tests may false-positive but never
// false-negative; the filter is reset wholesale on block connection so a
// transaction rejected under stale chain state gets a fresh chance.
//
// The bit-hashing scheme (a seeded sha256 indexing a bit array) is
// adapted from a BIP37 bloom filter; the backing array here is a
// bitset.BitSet instead of hand-rolled byte twiddling.
type RollingFilter struct {
	mu        sync.Mutex
	bits      *bitset.BitSet
	size      uint
	hashFuncs uint32
	tweak     uint32
}

// NewRollingFilter creates a filter sized for numElements entries at the
// given false-positive rate.
func NewRollingFilter(numElements uint32, falsePositiveRate float64, tweak uint32) *RollingFilter {
	if numElements == 0 {
		numElements = 1
	}

	size := optimalBitSize(numElements, falsePositiveRate)
	hashFuncs := optimalHashFuncs(size, numElements)

	return &RollingFilter{
		bits:      bitset.New(size),
		size:      size,
		hashFuncs: hashFuncs,
		tweak:     tweak,
	}
}

func optimalBitSize(n uint32, p float64) uint {
	const ln2Squared = 0.4804530139182014 // math.Ln2 * math.Ln2
	bits := -1.0 * float64(n) * math.Log(p) / ln2Squared
	if bits < 8 {
		bits = 8
	}
	return uint(bits)
}

func optimalHashFuncs(sizeBits uint, n uint32) uint32 {
	const ln2 = 0.6931471805599453
	k := uint32(float64(sizeBits) / float64(n) * ln2)
	if k == 0 {
		k = 1
	}
	if k > 30 {
		k = 30
	}
	return k
}

// Add inserts data's membership into the filter.
func (f *RollingFilter) Add(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := uint32(0); i < f.hashFuncs; i++ {
		f.bits.Set(f.index(i, data))
	}
}

// Contains reports whether data is possibly in the filter. A false
// result is definitive; a true result may be a false positive.
func (f *RollingFilter) Contains(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := uint32(0); i < f.hashFuncs; i++ {
		if !f.bits.Test(f.index(i, data)) {
			return false
		}
	}
	return true
}

// Reset clears the filter, called on block connection so rejections tied
// to stale chain state don't linger.
func (f *RollingFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bits.ClearAll()
}

func (f *RollingFilter) index(hashIndex uint32, data []byte) uint {
	h := sha256.New()
	seed := hashIndex*0xfba4c795 + f.tweak
	seedBytes := []byte{byte(seed), byte(seed >> 8), byte(seed >> 16), byte(seed >> 24)}
	h.Write(seedBytes)
	h.Write(data)
	sum := h.Sum(nil)

	v := uint32(sum[0]) | uint32(sum[1])<<8 | uint32(sum[2])<<16 | uint32(sum[3])<<24
	return uint(v) % f.size
}
