package mempool

import "container/heap"

// feeHeapItem is one candidate for eviction: the entries a limitSize pass
// is considering, ordered by cmpRate.
type feeHeapItem struct {
	entry *MempoolEntry
	index int
}

// cmpRate picks the lesser of an entry's own fee rate and its
// descendant-package rate, so a low-fee parent can't hide behind a
// high-fee child. The package view wins whenever descFee*size <
// deltaFee*descSize, which is a cross-multiplied form of descRate <
// rate that avoids floating point in the comparison.
func cmpRate(e *MempoolEntry) (num, den int64) {
	num, den = e.DeltaFee, e.Size
	if den == 0 {
		den = 1
	}
	descNum, descSize := e.DescFee, e.DescSize
	if descSize == 0 {
		descSize = 1
	}
	if descNum*den < num*descSize {
		return descNum, descSize
	}
	return num, den
}

// feeHeap is a min-heap over feeHeapItem ordered by cmpRate ascending,
// with ties broken by older entry time first so limitSize evicts the
// oldest of equally-priced entries.
type feeHeap []*feeHeapItem

func (h feeHeap) Len() int { return len(h) }

func (h feeHeap) Less(i, j int) bool {
	aNum, aDen := cmpRate(h[i].entry)
	bNum, bDen := cmpRate(h[j].entry)
	lhs := aNum * bDen
	rhs := bNum * aDen
	if lhs != rhs {
		return lhs < rhs
	}
	return h[i].entry.Time.Before(h[j].entry.Time)
}

func (h feeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *feeHeap) Push(x any) {
	item := x.(*feeHeapItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *feeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// newFeeHeap builds a ready-to-pop min-heap from the given entries.
func newFeeHeap(entries []*MempoolEntry) *feeHeap {
	h := make(feeHeap, 0, len(entries))
	for _, e := range entries {
		h = append(h, &feeHeapItem{entry: e})
	}
	heap.Init(&h)
	return &h
}

// popLowest removes and returns the lowest-rate entry, or nil if empty.
func (h *feeHeap) popLowest() *MempoolEntry {
	if h.Len() == 0 {
		return nil
	}
	item := heap.Pop(h).(*feeHeapItem)
	return item.entry
}
