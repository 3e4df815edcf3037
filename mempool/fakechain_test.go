package mempool

import (
	"context"

	"obsidianmempool/wire"
)

// fakeChain is a minimal in-memory Chain test double: a UTXO map with
// no real consensus logic, enough to drive admission through its full
// pipeline in tests without a real blockchain database.
type fakeChain struct {
	height     int32
	tip        wire.Hash
	medianTime int64
	hasCSV     bool
	hasWitness bool
	synced     bool
	coins      map[[36]byte]*Coin
	known      map[wire.Hash]bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		synced: true,
		coins:  make(map[[36]byte]*Coin),
		known:  make(map[wire.Hash]bool),
	}
}

func (c *fakeChain) Tip() wire.Hash       { return c.tip }
func (c *fakeChain) Height() int32        { return c.height }
func (c *fakeChain) HasCSV() bool         { return c.hasCSV }
func (c *fakeChain) HasWitness() bool     { return c.hasWitness }
func (c *fakeChain) Synced() bool         { return c.synced }
func (c *fakeChain) MedianTime(wire.Hash) int64 { return c.medianTime }

func (c *fakeChain) HasCoins(tx *wire.MsgTx) (bool, error) {
	return c.known[tx.TxHash()], nil
}

func (c *fakeChain) ReadCoin(op wire.OutPoint) (*Coin, error) {
	return c.coins[op.Key()], nil
}

func (c *fakeChain) VerifyLocks(tip wire.Hash, tx *wire.MsgTx, view *CoinView, flags uint32) (bool, error) {
	return true, nil
}

func (c *fakeChain) VerifyFinal(tip wire.Hash, tx *wire.MsgTx, flags uint32) bool {
	return tx.IsFinal(c.height+1, c.medianTime)
}

func (c *fakeChain) addCoin(op wire.OutPoint, value int64) {
	c.coins[op.Key()] = &Coin{Output: &wire.TxOut{Value: value, PkScript: []byte{0x01}}}
}

// fakeVerifier always approves: script verification is a collaborator
// the mempool defers to, not a property these admission-pipeline tests
// are exercising.
type fakeVerifier struct{}

func (fakeVerifier) VerifyAsync(ctx context.Context, tx *wire.MsgTx, view *CoinView, flags uint32) (bool, error) {
	return true, nil
}
