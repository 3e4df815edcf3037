package mempool

import (
	"testing"
	"time"
)

func entryWithRate(deltaFee, size int64, t time.Time) *MempoolEntry {
	return &MempoolEntry{
		DeltaFee: deltaFee, Size: size,
		DescFee: deltaFee, DescSize: size,
		Time: t,
	}
}

func TestFeeHeapPopsLowestRateFirst(t *testing.T) {
	base := time.Unix(1000, 0)
	low := entryWithRate(1, 100, base)
	mid := entryWithRate(5, 100, base)
	high := entryWithRate(10, 100, base)

	h := newFeeHeap([]*MempoolEntry{mid, high, low})

	if got := h.popLowest(); got != low {
		t.Fatalf("expected low-rate entry first, got fee=%d", got.DeltaFee)
	}
	if got := h.popLowest(); got != mid {
		t.Fatalf("expected mid-rate entry second, got fee=%d", got.DeltaFee)
	}
	if got := h.popLowest(); got != high {
		t.Fatalf("expected high-rate entry last, got fee=%d", got.DeltaFee)
	}
	if got := h.popLowest(); got != nil {
		t.Fatalf("expected nil from an empty heap, got %v", got)
	}
}

func TestFeeHeapPackageRateOverridesOwnRate(t *testing.T) {
	base := time.Unix(1000, 0)

	// Own rate looks high (10/100) but the descendant package rate is
	// low (1/1000): the package view should win and this entry should
	// be considered cheaper than a flat 2/100 entry.
	parent := &MempoolEntry{DeltaFee: 10, Size: 100, DescFee: 1, DescSize: 1000, Time: base}
	flat := entryWithRate(2, 100, base)

	h := newFeeHeap([]*MempoolEntry{flat, parent})

	if got := h.popLowest(); got != parent {
		t.Fatalf("expected package-rate entry to be evicted first")
	}
}

func TestFeeHeapTiesBreakOnOlderTime(t *testing.T) {
	older := entryWithRate(5, 100, time.Unix(1000, 0))
	newer := entryWithRate(5, 100, time.Unix(2000, 0))

	h := newFeeHeap([]*MempoolEntry{newer, older})

	if got := h.popLowest(); got != older {
		t.Fatalf("expected the older of two equal-rate entries to pop first")
	}
}
