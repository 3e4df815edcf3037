package mempool

import (
	"time"

	"obsidianmempool/wire"
)

// MempoolEntry wraps a candidate transaction with the bookkeeping the
// admission pipeline and eviction comparator need: when and at what
// height it entered, its own fee/size/sigops, and the descendant-updated
// fee/size sums used to value it as part of a package.
type MempoolEntry struct {
	Tx         *wire.MsgTx
	Hash       wire.Hash
	Time       time.Time
	Height     int32
	Fee        int64
	Size       int64
	SigOpCost  int64
	Priority   float64
	OriginPeer int32

	// DeltaFee is the entry's own fee, adjustable by Prioritise.
	DeltaFee int64

	// DescFee/DescSize are the descendant-updated sums: this entry's own
	// DeltaFee/Size plus every in-pool descendant's, maintained by
	// updateAncestors as entries are added and removed.
	DescFee  int64
	DescSize int64
}

// NewMempoolEntry builds an entry for tx. DescFee/DescSize start equal to
// the entry's own fee/size; ancestor traversals add to them as
// descendants are tracked.
func NewMempoolEntry(tx *wire.MsgTx, fee int64, height int32, sigOpCost int64, originPeer int32, now time.Time) *MempoolEntry {
	size := tx.VSize()
	return &MempoolEntry{
		Tx:         tx,
		Hash:       tx.TxHash(),
		Time:       now,
		Height:     height,
		Fee:        fee,
		Size:       size,
		SigOpCost:  sigOpCost,
		OriginPeer: originPeer,
		DeltaFee:   fee,
		DescFee:    fee,
		DescSize:   size,
	}
}

// MemUsage approximates the entry's resident memory footprint: the
// transaction's virtual size (Size) plus a fixed per-entry bookkeeping
// overhead, used to keep the mempool's size accounting independent of the
// Go runtime's actual allocation.
func (e *MempoolEntry) MemUsage() int64 {
	const entryOverhead = 200
	return e.Size + entryOverhead
}

// Rate returns the entry's own fee rate in fee units per byte.
func (e *MempoolEntry) Rate() float64 {
	if e.Size == 0 {
		return 0
	}
	return float64(e.DeltaFee) / float64(e.Size)
}

// DescRate returns the descendant-package fee rate in fee units per byte.
func (e *MempoolEntry) DescRate() float64 {
	if e.DescSize == 0 {
		return 0
	}
	return float64(e.DescFee) / float64(e.DescSize)
}

// IsFree reports whether the entry's coin-age priority, aged forward to
// height, still clears the free-relay threshold, the condition under
// which the contextual-verify step allows a below-min-fee transaction
// to pass on priority instead of being rejected outright. Priority is
// frozen at the height it was computed against; elapsed blocks since
// then accrue additional age for the entry's own input value, the same
// approximation bitcoind-style priority recompute uses when a
// transaction has sat in the pool across new blocks.
func (e *MempoolEntry) IsFree(height int32) bool {
	elapsed := height - e.Height
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed == 0 {
		return e.Priority >= freePriorityThreshold
	}

	var totalOut int64
	for _, out := range e.Tx.TxOut {
		totalOut += out.Value
	}
	inputValue := e.Fee + totalOut
	effective := e.Priority + float64(inputValue)*float64(elapsed)/float64(e.Size)
	return effective >= freePriorityThreshold
}
