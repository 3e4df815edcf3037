package mempool

import "obsidianmempool/wire"

// AddBlock reconciles the pool against a newly connected block: every
// non-coinbase transaction it contains is either removed (if already
// pooled) or, if it arrived as an orphan or was never seen, has its
// in-pool conflicts evicted and any orphans waiting on it promoted.
// The reject filter is cleared since it no longer describes anything
// relevant to the new tip.
func (m *Mempool) AddBlock(block *wire.MsgBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var confirmed []wire.Hash

	for i := len(block.Transactions) - 1; i >= 0; i-- {
		tx := block.Transactions[i]
		if tx.IsCoinbase() {
			continue
		}
		hash := tx.TxHash()

		if entry, ok := m.byHash[hash]; ok {
			m.removeEntry(entry, EventConfirmed, nil)
			confirmed = append(confirmed, hash)
			continue
		}

		m.removeOrphan(hash)
		m.removeDoubleSpends(tx)

		if _, waited := m.waiting[hash]; waited {
			m.handleOrphans(hash)
		}
	}

	m.rejects.Reset()

	if m.feeEstimator != nil {
		m.feeEstimator.ProcessBlock(block.Height, confirmed)
	}

	m.tip = block.BlockHash()
	m.flushCache()
}

// RemoveBlock reconciles the pool against a disconnected block: every
// non-coinbase transaction it contains that isn't already pooled is
// reinstated as unconfirmed (height −1). A per-tx failure is emitted as
// an error event but does not abort the rest of the batch.
func (m *Mempool) RemoveBlock(block *wire.MsgBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tx := range block.Transactions {
		if tx.IsCoinbase() {
			continue
		}
		hash := tx.TxHash()
		if _, ok := m.byHash[hash]; ok {
			continue
		}

		if _, verr := m.insertTx(tx, -1, -1); verr != nil {
			m.emit(Event{Type: EventError, Tx: tx, Hash: hash, Err: verr})
		}
	}

	m.rejects.Reset()
	m.tip = block.PrevHash()
	m.flushCache()
}

// HandleReorg scans every pooled entry for conditions a reorg can
// introduce that admission would never have allowed: a transaction no
// longer final at the new tip, a v2+ transaction with any input whose
// sequence lock is not disabled (whether or not that lock is still
// satisfied), or a spend of a coinbase output that the shortened
// chain no longer considers mature. A bare pooled coinbase can never
// occur through real admission (coinbase is rejected outright at step
// 2) but is still caught here for defense in depth. Every offending
// entry is evicted.
func (m *Mempool) HandleReorg() {
	m.mu.Lock()
	defer m.mu.Unlock()

	height := m.chain.Height() + 1
	mtp := m.chain.MedianTime(m.tip)

	var toEvict []*MempoolEntry
	for _, entry := range m.byHash {
		if !entry.Tx.IsFinal(height, mtp) {
			toEvict = append(toEvict, entry)
			continue
		}
		if entry.Tx.Version >= 2 && hasActiveSequenceLock(entry.Tx) {
			toEvict = append(toEvict, entry)
			continue
		}
		if entry.Tx.IsCoinbase() {
			toEvict = append(toEvict, entry)
			continue
		}
		if m.spendsImmatureCoinbase(entry, height) {
			toEvict = append(toEvict, entry)
		}
	}

	for _, entry := range toEvict {
		m.evictEntry(entry)
	}
}

// spendsImmatureCoinbase rebuilds entry's coin view against the
// post-reorg chain and reports whether check_inputs now rejects it as
// spending a coinbase that hasn't reached coinbaseMaturity at height,
// a violation the shortened chain can introduce even though entry was
// mature when it was admitted.
func (m *Mempool) spendsImmatureCoinbase(entry *MempoolEntry, height int32) bool {
	view, err := m.buildCoinView(entry.Tx)
	if err != nil {
		m.log.WithError(err).WithField("hash", entry.Hash).
			Warn("failed to rebuild coin view during reorg maturity recheck")
		return false
	}
	if len(view.Unresolved(entry.Tx)) > 0 {
		return false
	}
	_, err = checkInputs(entry.Tx, view, height)
	if err == nil {
		return false
	}
	verr, ok := err.(*VerifyError)
	return ok && verr.Reason == "bad-txns-premature-spend-of-coinbase"
}

func hasActiveSequenceLock(tx *wire.MsgTx) bool {
	for _, in := range tx.TxIn {
		if in.Sequence&sequenceLockDisableFlag == 0 {
			return true
		}
	}
	return false
}

// Reset empties every in-memory structure, resets the fee estimator,
// and wipes the on-disk cache if one is configured.
func (m *Mempool) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byHash = make(map[wire.Hash]*MempoolEntry)
	m.spent = make(map[[36]byte]*MempoolEntry)
	m.orphans = make(map[wire.Hash]*Orphan)
	m.waiting = make(map[wire.Hash]map[wire.Hash]struct{})
	m.rejects.Reset()
	m.size = 0

	if m.feeEstimator != nil {
		m.feeEstimator = NewFeeEstimator()
	}
	if m.cache != nil {
		m.cache.Init(m.tip)
	}
}

func (m *Mempool) flushCache() {
	if m.cache == nil {
		return
	}
	if m.feeEstimator != nil {
		blob, err := m.feeEstimator.Serialize()
		if err != nil {
			m.log.WithError(err).Warn("failed to serialize fee estimator for persistence")
		} else {
			m.cache.PutFeeEstimator(blob)
		}
	}
	if err := m.cache.Flush(m.tip); err != nil {
		m.log.WithError(err).Warn("failed to flush mempool cache")
		return
	}
	m.log.WithField("tip", m.tip).Debug("flushed mempool cache")
}
