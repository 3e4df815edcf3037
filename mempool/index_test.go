package mempool

import (
	"testing"
	"time"

	"obsidianmempool/wire"
)

func TestTxIndexAddAndRemove(t *testing.T) {
	idx := NewTxIndex()

	parentOut := wire.OutPoint{Hash: wire.Hash{1}, Index: 0}
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: parentOut})
	tx.AddTxOut(&wire.TxOut{Value: 10, PkScript: make([]byte, 20)})

	entry := NewMempoolEntry(tx, 1, 5, 1, 0, time.Unix(0, 0))

	view := NewCoinView()
	parentScript := make([]byte, 20)
	parentScript[0] = 0xFF
	view.AddCoin(parentOut, &Coin{Output: &wire.TxOut{Value: 11, PkScript: parentScript}})

	idx.AddEntry(entry, view)

	if got := idx.Lookup(parentScript); len(got) != 1 {
		t.Fatalf("expected input address to be indexed, got %d hits", len(got))
	}
	if got := idx.Lookup(tx.TxOut[0].PkScript); len(got) != 1 {
		t.Fatalf("expected output address to be indexed, got %d hits", len(got))
	}

	idx.RemoveEntry(entry.Hash)
	if got := idx.Lookup(parentScript); len(got) != 0 {
		t.Fatalf("expected index to be empty after removal, got %d hits", len(got))
	}
}

func TestCoinIndexRetiresSpentParent(t *testing.T) {
	idx := NewCoinIndex()

	parentOut := wire.OutPoint{Hash: wire.Hash{2}, Index: 0}
	script := make([]byte, 20)
	script[1] = 0xAB
	idx.addCoin(parentOut, &wire.TxOut{Value: 5, PkScript: script}, 1)

	if got := idx.Lookup(script); len(got) != 1 {
		t.Fatalf("expected parent coin present before spend, got %d", len(got))
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: parentOut})
	tx.AddTxOut(&wire.TxOut{Value: 4, PkScript: make([]byte, 20)})
	entry := NewMempoolEntry(tx, 1, 2, 1, 0, time.Unix(0, 0))

	idx.AddEntry(entry)

	if got := idx.Lookup(script); len(got) != 0 {
		t.Fatalf("expected spent parent coin to be retired, got %d", len(got))
	}
}
