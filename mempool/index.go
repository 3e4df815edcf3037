package mempool

import "obsidianmempool/wire"

// addressKey is the 20-byte Hash160 this simplified locking-script
// model uses directly as a PkScript, making it double as the address
// the secondary indices key on.
type addressKey [20]byte

func addressOf(pkScript []byte) (addressKey, bool) {
	var key addressKey
	if len(pkScript) != len(key) {
		return key, false
	}
	copy(key[:], pkScript)
	return key, true
}

// IndexedCoin is a CoinIndex record: an unspent output plus the height
// it entered the pool at (−1 for height means still unconfirmed).
type IndexedCoin struct {
	Outpoint wire.OutPoint
	Output   *wire.TxOut
	Height   int32
}

// TxIndex maps an address to every in-pool transaction that spends or
// pays it, with an inverse lookup so removal doesn't require a full
// scan.
type TxIndex struct {
	byAddress map[addressKey]map[wire.Hash]*MempoolEntry
	byTx      map[wire.Hash][]addressKey
}

func NewTxIndex() *TxIndex {
	return &TxIndex{
		byAddress: make(map[addressKey]map[wire.Hash]*MempoolEntry),
		byTx:      make(map[wire.Hash][]addressKey),
	}
}

// AddEntry indexes entry under every address its inputs spend from
// (resolved via view) and every address its outputs pay to.
func (idx *TxIndex) AddEntry(entry *MempoolEntry, view *CoinView) {
	var addrs []addressKey
	seen := make(map[addressKey]struct{})

	add := func(pkScript []byte) {
		key, ok := addressOf(pkScript)
		if !ok {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		addrs = append(addrs, key)
	}

	for _, in := range entry.Tx.TxIn {
		if coin, ok := view.Get(in.PreviousOutPoint); ok {
			add(coin.Output.PkScript)
		}
	}
	for _, out := range entry.Tx.TxOut {
		add(out.PkScript)
	}

	for _, key := range addrs {
		set, ok := idx.byAddress[key]
		if !ok {
			set = make(map[wire.Hash]*MempoolEntry)
			idx.byAddress[key] = set
		}
		set[entry.Hash] = entry
	}
	idx.byTx[entry.Hash] = addrs
}

// RemoveEntry drops hash from every address bucket it was filed under.
func (idx *TxIndex) RemoveEntry(hash wire.Hash) {
	for _, key := range idx.byTx[hash] {
		set := idx.byAddress[key]
		delete(set, hash)
		if len(set) == 0 {
			delete(idx.byAddress, key)
		}
	}
	delete(idx.byTx, hash)
}

// Lookup returns every entry touching the given address-shaped script.
func (idx *TxIndex) Lookup(pkScript []byte) []*MempoolEntry {
	key, ok := addressOf(pkScript)
	if !ok {
		return nil
	}
	set := idx.byAddress[key]
	out := make([]*MempoolEntry, 0, len(set))
	for _, e := range set {
		out = append(out, e)
	}
	return out
}

// CoinIndex maps an address to its unspent (within the pool's view)
// outputs. Unlike TxIndex, a coin is removed the moment some in-pool
// entry spends it, and restored if that spender later leaves.
type CoinIndex struct {
	byAddress map[addressKey]map[[36]byte]*IndexedCoin
	byCoin    map[[36]byte]addressKey
}

func NewCoinIndex() *CoinIndex {
	return &CoinIndex{
		byAddress: make(map[addressKey]map[[36]byte]*IndexedCoin),
		byCoin:    make(map[[36]byte]addressKey),
	}
}

func (idx *CoinIndex) addCoin(op wire.OutPoint, out *wire.TxOut, height int32) {
	key, ok := addressOf(out.PkScript)
	if !ok {
		return
	}
	set, ok := idx.byAddress[key]
	if !ok {
		set = make(map[[36]byte]*IndexedCoin)
		idx.byAddress[key] = set
	}
	k := op.Key()
	set[k] = &IndexedCoin{Outpoint: op, Output: out, Height: height}
	idx.byCoin[k] = key
}

func (idx *CoinIndex) removeCoin(op wire.OutPoint) {
	k := op.Key()
	key, ok := idx.byCoin[k]
	if !ok {
		return
	}
	delete(idx.byCoin, k)
	set := idx.byAddress[key]
	delete(set, k)
	if len(set) == 0 {
		delete(idx.byAddress, key)
	}
}

// AddEntry records entry's own outputs as newly-unspent coins and
// retires each input's spent parent outpoint, since it is no longer
// unspent once entry exists.
func (idx *CoinIndex) AddEntry(entry *MempoolEntry) {
	for _, in := range entry.Tx.TxIn {
		idx.removeCoin(in.PreviousOutPoint)
	}
	for i, out := range entry.Tx.TxOut {
		idx.addCoin(wire.OutPoint{Hash: entry.Hash, Index: uint32(i)}, out, entry.Height)
	}
}

// RemoveEntry retires entry's own outputs and restores any parent coin
// entry had consumed, provided that parent is still itself in the pool
// (view supplies the parent's output data to reconstruct the record).
func (idx *CoinIndex) RemoveEntry(entry *MempoolEntry, view *CoinView) {
	for i := range entry.Tx.TxOut {
		idx.removeCoin(wire.OutPoint{Hash: entry.Hash, Index: uint32(i)})
	}
	for _, in := range entry.Tx.TxIn {
		if coin, ok := view.Get(in.PreviousOutPoint); ok && coin.InMempool {
			idx.addCoin(in.PreviousOutPoint, coin.Output, coin.Height)
		}
	}
}

// Lookup returns every unspent coin indexed under the given
// address-shaped script.
func (idx *CoinIndex) Lookup(pkScript []byte) []*IndexedCoin {
	key, ok := addressOf(pkScript)
	if !ok {
		return nil
	}
	set := idx.byAddress[key]
	out := make([]*IndexedCoin, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}
