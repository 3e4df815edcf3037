package mempool

import "obsidianmempool/wire"

// Coin is an unspent output as seen during admission: either a
// confirmed UTXO read from the chain or an in-mempool parent output
// not yet confirmed.
type Coin struct {
	Output      *wire.TxOut
	Height      int32
	IsCoinbase  bool
	InMempool   bool
}

// CoinView is the per-admission scratch set built in pipeline step 8:
// every resolved input coin, keyed by the outpoint it satisfies. Inputs
// left unresolved (neither an in-pool parent output nor a chain UTXO)
// are simply absent, which maybeOrphan interprets as a missing parent.
type CoinView struct {
	coins map[[36]byte]*Coin
}

// NewCoinView returns an empty view.
func NewCoinView() *CoinView {
	return &CoinView{coins: make(map[[36]byte]*Coin)}
}

// HasEntry reports whether outpoint already has a resolved coin.
func (v *CoinView) HasEntry(outpoint wire.OutPoint) bool {
	_, ok := v.coins[outpoint.Key()]
	return ok
}

// AddCoin records a resolved coin for outpoint.
func (v *CoinView) AddCoin(outpoint wire.OutPoint, coin *Coin) {
	v.coins[outpoint.Key()] = coin
}

// AddEntry is an alias of AddCoin kept for parity with the chain
// collaborator's vocabulary. buildCoinView itself calls AddCoin for both
// in-pool parent outputs and chain coins.
func (v *CoinView) AddEntry(outpoint wire.OutPoint, coin *Coin) {
	v.AddCoin(outpoint, coin)
}

// AddIndex records that tx's input i, at the given height, consumed the
// coin now in the view; used by secondary indices to invert
// address-to-coin lookups. The base view itself has no index to update
// and exists only so callers implementing the full collaborator
// contract have a no-op default.
func (v *CoinView) AddIndex(tx *wire.MsgTx, i int, height int32) {}

// Get returns the resolved coin for outpoint, if any.
func (v *CoinView) Get(outpoint wire.OutPoint) (*Coin, bool) {
	c, ok := v.coins[outpoint.Key()]
	return c, ok
}

// Unresolved returns every outpoint referenced by tx's inputs that the
// view could not resolve.
func (v *CoinView) Unresolved(tx *wire.MsgTx) []wire.OutPoint {
	var missing []wire.OutPoint
	for _, in := range tx.TxIn {
		if !v.HasEntry(in.PreviousOutPoint) {
			missing = append(missing, in.PreviousOutPoint)
		}
	}
	return missing
}

// buildCoinView implements admission step 8: for each input, prefer an
// in-mempool parent's output; otherwise defer to the chain. Unresolved
// inputs are left absent rather than erroring, since that absence is
// itself meaningful to the orphan classification step that follows.
func (m *Mempool) buildCoinView(tx *wire.MsgTx) (*CoinView, error) {
	view := NewCoinView()

	for _, in := range tx.TxIn {
		op := in.PreviousOutPoint

		if parent, ok := m.byHash[op.Hash]; ok {
			if int(op.Index) < len(parent.Tx.TxOut) {
				view.AddCoin(op, &Coin{
					Output:    parent.Tx.TxOut[op.Index],
					Height:    parent.Height,
					InMempool: true,
				})
				continue
			}
		}

		coin, err := m.chain.ReadCoin(op)
		if err != nil {
			return nil, err
		}
		if coin != nil {
			view.AddCoin(op, coin)
		}
	}

	return view, nil
}
