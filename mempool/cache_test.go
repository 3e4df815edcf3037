package mempool

import (
	"path/filepath"
	"testing"
	"time"

	"obsidianmempool/wire"
)

func openTestCache(t *testing.T) *MempoolCache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mempool.db")
	c, err := OpenMempoolCache(path)
	if err != nil {
		t.Fatalf("OpenMempoolCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestMempoolCacheInitWipesOnTipMismatch(t *testing.T) {
	c := openTestCache(t)

	tip1 := wire.Hash{1}
	wiped, err := c.Init(tip1)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !wiped {
		t.Fatalf("expected first Init on an empty cache to report wiped")
	}

	wiped, err = c.Init(tip1)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if wiped {
		t.Fatalf("expected Init against the same tip to not wipe")
	}

	tip2 := wire.Hash{2}
	wiped, err = c.Init(tip2)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !wiped {
		t.Fatalf("expected Init against a different tip to wipe")
	}
}

func TestMempoolCachePutFlushLoad(t *testing.T) {
	c := openTestCache(t)
	tip := wire.Hash{5}
	if _, err := c.Init(tip); err != nil {
		t.Fatalf("Init: %v", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: wire.Hash{6}, Index: 0}})
	tx.AddTxOut(&wire.TxOut{Value: 5, PkScript: []byte{0x01}})
	entry := NewMempoolEntry(tx, 1, 10, 1, 0, time.Unix(100, 0))

	if err := c.PutEntry(entry); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	if err := c.Flush(tip); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	loaded, _, err := c.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 loaded entry, got %d", len(loaded))
	}
	if loaded[0].Hash != entry.Hash {
		t.Fatalf("loaded entry hash mismatch")
	}
}

func TestMempoolCacheDeleteEntry(t *testing.T) {
	c := openTestCache(t)
	tip := wire.Hash{7}
	c.Init(tip)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: wire.Hash{8}, Index: 0}})
	tx.AddTxOut(&wire.TxOut{Value: 1, PkScript: []byte{0x01}})
	entry := NewMempoolEntry(tx, 1, 1, 1, 0, time.Unix(1, 0))

	c.PutEntry(entry)
	c.Flush(tip)
	c.DeleteEntry(entry.Hash)
	c.Flush(tip)

	loaded, _, err := c.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected entry to be gone after delete+flush, got %d", len(loaded))
	}
}
