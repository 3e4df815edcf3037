package mempool

import (
	"sync"

	"obsidianmempool/wire"
)

// feeBucketCount is the number of fee-rate buckets the estimator
// tracks, each one a power-of-two band in fee units per 1000 bytes (the
// rate the mempool passes to ProcessTransaction).
const feeBucketCount = 32

// feeBucket accumulates how many transactions landing in its fee-rate
// band confirmed within how many blocks, the raw material an
// estimate-fee query turns into a target-confirmation answer.
type feeBucket struct {
	floor       int64
	txCount     int64
	totalBlocks int64
}

// FeeEstimator is an opaque-from-the-mempool's-perspective collaborator
// that watches transactions enter, leave, and confirm, and can answer
// "what fee rate clears in N blocks" queries. The mempool only calls
// its three hooks; bucket bookkeeping is this type's own concern.
type FeeEstimator struct {
	mu      sync.Mutex
	buckets [feeBucketCount]feeBucket
	pending map[wire.Hash]pendingFee
}

type pendingFee struct {
	rate   int64
	height int32
}

// NewFeeEstimator builds an estimator with its buckets seeded across
// increasing powers of two, from 1 up to 2^31 fee units per 1000 bytes.
func NewFeeEstimator() *FeeEstimator {
	fe := &FeeEstimator{pending: make(map[wire.Hash]pendingFee)}
	floor := int64(1)
	for i := range fe.buckets {
		fe.buckets[i].floor = floor
		floor *= 2
	}
	return fe
}

func (fe *FeeEstimator) bucketFor(rate int64) int {
	for i := feeBucketCount - 1; i >= 0; i-- {
		if rate >= fe.buckets[i].floor {
			return i
		}
	}
	return 0
}

// ProcessTransaction records a freshly admitted entry's fee rate as
// pending confirmation, keyed by hash so a later ProcessBlock or
// RemoveTransaction can find it again.
func (fe *FeeEstimator) ProcessTransaction(hash wire.Hash, height int32, rate int64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.pending[hash] = pendingFee{rate: rate, height: height}
}

// RemoveTransaction discards a pending observation without crediting
// any bucket, used when an entry leaves the pool without confirming
// (eviction, reorg, conflict).
func (fe *FeeEstimator) RemoveTransaction(hash wire.Hash) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	delete(fe.pending, hash)
}

// ProcessBlock credits every confirmed hash's bucket with the number of
// blocks it took to confirm, then discards the pending observation.
func (fe *FeeEstimator) ProcessBlock(height int32, confirmed []wire.Hash) {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	for _, hash := range confirmed {
		p, ok := fe.pending[hash]
		if !ok {
			continue
		}
		delete(fe.pending, hash)

		blocks := int64(height - p.height)
		if blocks < 1 {
			blocks = 1
		}
		b := &fe.buckets[fe.bucketFor(p.rate)]
		b.txCount++
		b.totalBlocks += blocks
	}
}

// EstimateFee returns the lowest bucket floor whose observed average
// confirmation delay is at or under targetBlocks, or 0 if no bucket has
// enough data yet.
func (fe *FeeEstimator) EstimateFee(targetBlocks int32) int64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	for i := 0; i < feeBucketCount; i++ {
		b := fe.buckets[i]
		if b.txCount == 0 {
			continue
		}
		avg := float64(b.totalBlocks) / float64(b.txCount)
		if avg <= float64(targetBlocks) {
			return b.floor
		}
	}
	return 0
}

// feeEstimatorSnapshot is the gob-friendly persisted form of an
// estimator's bucket state; pending observations are not persisted
// since they describe in-flight entries the cache reloads separately.
type feeEstimatorSnapshot struct {
	Buckets [feeBucketCount]feeBucketSnapshot
}

// feeBucketSnapshot mirrors feeBucket with exported fields, which gob
// requires.
type feeBucketSnapshot struct {
	Floor, TxCount, TotalBlocks int64
}

// Serialize returns the opaque fee-estimator blob stored under the
// cache's F key.
func (fe *FeeEstimator) Serialize() ([]byte, error) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	var snap feeEstimatorSnapshot
	for i, b := range fe.buckets {
		snap.Buckets[i] = feeBucketSnapshot{Floor: b.floor, TxCount: b.txCount, TotalBlocks: b.totalBlocks}
	}
	return gobEncode(snap)
}

// Deserialize restores bucket state from a blob written by Serialize.
func (fe *FeeEstimator) Deserialize(data []byte) error {
	var snap feeEstimatorSnapshot
	if err := gobDecode(data, &snap); err != nil {
		return err
	}
	fe.mu.Lock()
	defer fe.mu.Unlock()
	for i, b := range snap.Buckets {
		fe.buckets[i] = feeBucket{floor: b.Floor, txCount: b.TxCount, totalBlocks: b.TotalBlocks}
	}
	return nil
}
