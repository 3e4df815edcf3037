package mempool

import (
	"testing"

	"obsidianmempool/wire"
)

func newTestOrphanPool() *Mempool {
	return &Mempool{
		byHash:  make(map[wire.Hash]*MempoolEntry),
		orphans: make(map[wire.Hash]*Orphan),
		waiting: make(map[wire.Hash]map[wire.Hash]struct{}),
		spent:   make(map[[36]byte]*MempoolEntry),
		rejects: NewRollingFilter(1000, 0.001, 0),
		events:  make(chan Event, 16),
		cfg:     testConfig(),
		params:  testParams(),
	}
}

func testTx(seed byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	var parent wire.Hash
	parent[0] = seed
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: parent, Index: 0}, Sequence: wire.SequenceFinal})
	tx.AddTxOut(&wire.TxOut{Value: 100, PkScript: []byte{0x01}})
	return tx
}

func TestMaybeOrphanEnrolls(t *testing.T) {
	m := newTestOrphanPool()
	tx := testTx(0xAA)

	missing := m.maybeOrphan(tx, []wire.OutPoint{tx.TxIn[0].PreviousOutPoint}, 7)
	if len(missing) != 1 {
		t.Fatalf("expected one missing parent, got %d", len(missing))
	}
	if _, ok := m.orphans[tx.TxHash()]; !ok {
		t.Fatalf("orphan not recorded")
	}
	if _, ok := m.waiting[missing[0]][tx.TxHash()]; !ok {
		t.Fatalf("waiting set missing orphan entry")
	}
}

func TestResolveOrphansDecrementsMissing(t *testing.T) {
	m := newTestOrphanPool()
	tx := testTx(0xBB)
	parentHash := tx.TxIn[0].PreviousOutPoint.Hash

	m.maybeOrphan(tx, []wire.OutPoint{tx.TxIn[0].PreviousOutPoint}, 3)

	ready := m.resolveOrphans(parentHash)
	if len(ready) != 1 {
		t.Fatalf("expected orphan to become ready, got %d ready", len(ready))
	}
	if _, ok := m.waiting[parentHash]; ok {
		t.Fatalf("waiting entry should be deleted once resolved")
	}
}

func TestRemoveOrphanClearsWaiting(t *testing.T) {
	m := newTestOrphanPool()
	tx := testTx(0xCC)
	parentHash := tx.TxIn[0].PreviousOutPoint.Hash
	m.maybeOrphan(tx, []wire.OutPoint{tx.TxIn[0].PreviousOutPoint}, 1)

	m.removeOrphan(tx.TxHash())

	if _, ok := m.orphans[tx.TxHash()]; ok {
		t.Fatalf("orphan should be gone")
	}
	if _, ok := m.waiting[parentHash]; ok {
		t.Fatalf("empty waiting set should be deleted")
	}
}

func TestLimitOrphansEnforcesCap(t *testing.T) {
	m := newTestOrphanPool()
	for i := byte(0); i < 10; i++ {
		tx := testTx(i)
		m.maybeOrphan(tx, []wire.OutPoint{tx.TxIn[0].PreviousOutPoint}, 0)
	}

	m.limitOrphans()

	if len(m.orphans) > m.cfg.MaxOrphans {
		t.Fatalf("orphans = %d, want <= %d", len(m.orphans), m.cfg.MaxOrphans)
	}
}
