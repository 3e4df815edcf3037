package mempool

import (
	"math/rand"

	"obsidianmempool/wire"
)

// Orphan is a transaction admitted while one or more of its parents are
// not yet visible. The transaction is kept as serialized bytes rather
// than a parsed *wire.MsgTx to bound the memory an orphan flood can
// claim; it is only decoded again when every missing parent has
// arrived and the orphan is replayed through admission.
type Orphan struct {
	Hash       wire.Hash
	Bytes      []byte
	Missing    int
	OriginPeer int32
}

func encodeTx(tx *wire.MsgTx) ([]byte, error) {
	return gobEncode(tx)
}

func decodeTx(data []byte) (*wire.MsgTx, error) {
	var tx wire.MsgTx
	if err := gobDecode(data, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// maybeOrphan is admission step 9: given the set of input outpoints
// that CoinView construction left unresolved, decide whether tx should
// be buffered as an orphan. It returns the missing parent hashes when
// tx is enrolled, or nil if tx was dropped (previously-rejected parent,
// or oversize) or if there was nothing missing at all.
func (m *Mempool) maybeOrphan(tx *wire.MsgTx, unresolved []wire.OutPoint, originPeer int32) []wire.Hash {
	if len(unresolved) == 0 {
		return nil
	}

	missingSet := make(map[wire.Hash]struct{})
	for _, op := range unresolved {
		if _, known := m.byHash[op.Hash]; known {
			continue
		}
		if m.rejects.Contains(op.Hash[:]) {
			m.rejects.Add(tx.TxHash().Bytes())
			return nil
		}
		missingSet[op.Hash] = struct{}{}
	}
	if len(missingSet) == 0 {
		return nil
	}

	if tx.Weight() > m.params.MaxTxWeight {
		return nil
	}

	data, err := encodeTx(tx)
	if err != nil {
		return nil
	}

	hash := tx.TxHash()
	missing := make([]wire.Hash, 0, len(missingSet))
	for h := range missingSet {
		missing = append(missing, h)
	}

	m.orphans[hash] = &Orphan{
		Hash:       hash,
		Bytes:      data,
		Missing:    len(missing),
		OriginPeer: originPeer,
	}
	for _, parent := range missing {
		set, ok := m.waiting[parent]
		if !ok {
			set = make(map[wire.Hash]struct{})
			m.waiting[parent] = set
		}
		set[hash] = struct{}{}
	}

	m.emit(Event{Type: EventAddOrphan, Hash: hash, OriginPeer: originPeer})
	m.limitOrphans()
	return missing
}

// limitOrphans enforces maxOrphans by deleting uniformly-random entries
// until the pool is back at or below the cap.
func (m *Mempool) limitOrphans() {
	for len(m.orphans) > m.cfg.MaxOrphans {
		i := rand.Intn(len(m.orphans))
		var victim wire.Hash
		for h := range m.orphans {
			if i == 0 {
				victim = h
				break
			}
			i--
		}
		m.removeOrphan(victim)
	}
}

// resolveOrphans returns the orphans whose missing-parent count has
// reached zero now that parent has arrived, removing the waiting entry
// for parent entirely.
func (m *Mempool) resolveOrphans(parent wire.Hash) []*Orphan {
	waiters, ok := m.waiting[parent]
	if !ok {
		return nil
	}
	delete(m.waiting, parent)

	var ready []*Orphan
	for hash := range waiters {
		orphan, ok := m.orphans[hash]
		if !ok {
			continue
		}
		orphan.Missing--
		if orphan.Missing <= 0 {
			ready = append(ready, orphan)
		}
	}
	return ready
}

// handleOrphans replays every orphan unblocked by parent's arrival
// through admission, carrying the orphan's original origin peer. A
// VerifyError on replay is swallowed: the orphan is discarded, added to
// the reject filter when it carries no witness data, and a bad-orphan
// event is emitted with the original peer id.
func (m *Mempool) handleOrphans(parent wire.Hash) {
	ready := m.resolveOrphans(parent)
	for _, orphan := range ready {
		m.removeOrphan(orphan.Hash)

		tx, err := decodeTx(orphan.Bytes)
		if err != nil {
			continue
		}

		if _, verr := m.insertTx(tx, orphan.OriginPeer, m.chain.Height()+1); verr != nil {
			if !tx.HasWitness() && !verr.Malleated {
				m.rejects.Add(orphan.Hash.Bytes())
			}
			m.emit(Event{Type: EventBadOrphan, Tx: tx, Hash: orphan.Hash, OriginPeer: orphan.OriginPeer, Err: verr})
		}
	}
}

// removeOrphan deletes hash from orphans and from every waiting set it
// appears in, dropping any waiting entry left empty.
func (m *Mempool) removeOrphan(hash wire.Hash) {
	if _, ok := m.orphans[hash]; !ok {
		return
	}
	delete(m.orphans, hash)
	for parent, set := range m.waiting {
		delete(set, hash)
		if len(set) == 0 {
			delete(m.waiting, parent)
		}
	}
	m.emit(Event{Type: EventRemoveOrphan, Hash: hash})
}
