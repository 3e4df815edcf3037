package mempool

import "obsidianmempool/wire"

// countAncestors walks every parent of entry's inputs transitively,
// returning the number of distinct in-pool ancestors found. The walk
// stops as soon as the count exceeds maxAncestors since callers only
// care whether the cap is respected, not the exact count beyond it.
func (m *Mempool) countAncestors(entry *MempoolEntry, maxAncestors int) int {
	visited := make(map[wire.Hash]struct{})
	m.walkAncestorsBounded(entry, visited, maxAncestors)
	return len(visited)
}

func (m *Mempool) walkAncestorsBounded(entry *MempoolEntry, visited map[wire.Hash]struct{}, maxAncestors int) {
	for _, in := range entry.Tx.TxIn {
		if len(visited) > maxAncestors {
			return
		}
		parentHash := in.PreviousOutPoint.Hash
		if parentHash == entry.Hash {
			continue
		}
		parent, ok := m.byHash[parentHash]
		if !ok {
			continue
		}
		if _, seen := visited[parentHash]; seen {
			continue
		}
		visited[parentHash] = struct{}{}
		m.walkAncestorsBounded(parent, visited, maxAncestors)
	}
}

// updateAncestors walks every ancestor of entry and applies f(parent,
// child), where child is always the entry whose ancestors are being
// walked (not the immediate link in the traversal) so a callback can
// accumulate a single descendant's contribution into every ancestor
// regardless of how many hops away it is.
func (m *Mempool) updateAncestors(entry *MempoolEntry, f func(parent, child *MempoolEntry)) {
	visited := make(map[wire.Hash]struct{})
	m.walkAncestors(entry, visited, func(parent *MempoolEntry) {
		f(parent, entry)
	})
}

func (m *Mempool) walkAncestors(entry *MempoolEntry, visited map[wire.Hash]struct{}, visit func(parent *MempoolEntry)) {
	for _, in := range entry.Tx.TxIn {
		parentHash := in.PreviousOutPoint.Hash
		if parentHash == entry.Hash {
			continue
		}
		parent, ok := m.byHash[parentHash]
		if !ok {
			continue
		}
		if _, seen := visited[parentHash]; seen {
			continue
		}
		visited[parentHash] = struct{}{}
		visit(parent)
		m.walkAncestors(parent, visited, visit)
	}
}

// countDescendants walks every in-pool spender of entry's outputs,
// transitively, returning the distinct count.
func (m *Mempool) countDescendants(entry *MempoolEntry) int {
	visited := make(map[wire.Hash]struct{})
	m.walkDescendants(entry, visited, func(*MempoolEntry) {})
	return len(visited)
}

// getDescendants returns every entry, transitively, that spends an
// output of entry or one of its descendants.
func (m *Mempool) getDescendants(entry *MempoolEntry) []*MempoolEntry {
	visited := make(map[wire.Hash]struct{})
	var out []*MempoolEntry
	m.walkDescendants(entry, visited, func(child *MempoolEntry) {
		out = append(out, child)
	})
	return out
}

func (m *Mempool) walkDescendants(entry *MempoolEntry, visited map[wire.Hash]struct{}, visit func(child *MempoolEntry)) {
	for i := range entry.Tx.TxOut {
		op := wire.OutPoint{Hash: entry.Hash, Index: uint32(i)}
		child, ok := m.spent[op.Key()]
		if !ok {
			continue
		}
		if _, seen := visited[child.Hash]; seen {
			continue
		}
		visited[child.Hash] = struct{}{}
		visit(child)
		m.walkDescendants(child, visited, visit)
	}
}

// hasDepends reports whether any in-pool entry spends one of entry's
// outputs, the condition limitSize uses to exclude an entry from the
// expiry pass.
func (m *Mempool) hasDepends(entry *MempoolEntry) bool {
	for i := range entry.Tx.TxOut {
		op := wire.OutPoint{Hash: entry.Hash, Index: uint32(i)}
		if _, ok := m.spent[op.Key()]; ok {
			return true
		}
	}
	return false
}

// addFee folds child's own fee/size into parent's descendant-updated
// sums, used when child is freshly inserted into the pool.
func addFee(parent, child *MempoolEntry) {
	parent.DescFee += child.DeltaFee
	parent.DescSize += child.Size
}

// removeFee reverses a prior addFee-style contribution by subtracting
// child's full descendant-package sums from parent, used when child
// (and everything that had accumulated under it) leaves the pool.
func removeFee(parent, child *MempoolEntry) {
	parent.DescFee -= child.DescFee
	parent.DescSize -= child.DescSize
}

// prePrioritise removes entry's current contribution from every
// ancestor's descendant sums, to be called before mutating entry's own
// DeltaFee/DescFee so the two updates bracket a consistent rebuild.
func (m *Mempool) prePrioritise(entry *MempoolEntry) {
	m.updateAncestors(entry, func(parent, child *MempoolEntry) {
		parent.DescFee -= child.DeltaFee
		parent.DescSize -= child.Size
	})
}

// postPrioritise re-applies entry's (now updated) contribution to
// every ancestor's descendant sums after DeltaFee/DescFee have been
// adjusted.
func (m *Mempool) postPrioritise(entry *MempoolEntry) {
	m.updateAncestors(entry, addFee)
}

// Prioritise adjusts entry's fee delta by deltaFee, propagating the
// change through every in-pool ancestor's descendant-fee accounting.
// It never fails: an unknown hash is simply a no-op.
func (m *Mempool) Prioritise(hash wire.Hash, deltaFee int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.byHash[hash]
	if !ok {
		return
	}

	m.prePrioritise(entry)
	entry.DeltaFee += deltaFee
	entry.DescFee += deltaFee
	m.postPrioritise(entry)
}
