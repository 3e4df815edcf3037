package mempool

import (
	"testing"

	"obsidianmempool/wire"
)

func TestFeeEstimatorEstimatesFromConfirmations(t *testing.T) {
	fe := NewFeeEstimator()
	h := wire.Hash{9}

	fe.ProcessTransaction(h, 100, 64)
	fe.ProcessBlock(101, []wire.Hash{h})

	if got := fe.EstimateFee(5); got == 0 {
		t.Fatalf("expected a nonzero estimate after a fast confirmation")
	}
}

func TestFeeEstimatorRemoveDropsPending(t *testing.T) {
	fe := NewFeeEstimator()
	h := wire.Hash{10}

	fe.ProcessTransaction(h, 100, 64)
	fe.RemoveTransaction(h)
	fe.ProcessBlock(101, []wire.Hash{h})

	if got := fe.EstimateFee(100); got != 0 {
		t.Fatalf("expected no data to have been credited, got estimate %d", got)
	}
}

func TestFeeEstimatorSerializeRoundTrip(t *testing.T) {
	fe := NewFeeEstimator()
	h := wire.Hash{11}
	fe.ProcessTransaction(h, 100, 64)
	fe.ProcessBlock(101, []wire.Hash{h})

	data, err := fe.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	restored := NewFeeEstimator()
	if err := restored.Deserialize(data); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if restored.EstimateFee(5) != fe.EstimateFee(5) {
		t.Fatalf("restored estimator disagrees with original")
	}
}
