// Package mempool implements an unconfirmed-transaction pool for a
// UTXO-based node: admission, orphan resolution, spent-output
// bookkeeping, ancestor/descendant accounting, capacity-bounded
// eviction, and reconciliation against block connection, disconnection,
// and chain reorganization.
package mempool

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"obsidianmempool/chaincfg"
	"obsidianmempool/config"
	"obsidianmempool/wire"
)

// maxSanityScriptSize is the hard upper bound a script must fit under
// to pass admission's first, cheapest sanity gate; the tighter
// standardness cap in verify.go only applies when require_standard is
// set.
const maxSanityScriptSize = 10000

// Mempool is the core unconfirmed-transaction pool. All exported
// methods are safe for concurrent use.
type Mempool struct {
	mu        sync.Mutex
	hashLocks *keyedMutex

	byHash  map[wire.Hash]*MempoolEntry
	spent   map[[36]byte]*MempoolEntry
	orphans map[wire.Hash]*Orphan
	waiting map[wire.Hash]map[wire.Hash]struct{}
	rejects *RollingFilter
	size    int64
	tip     wire.Hash

	cfg    config.MempoolConfig
	params chaincfg.Params

	chain        Chain
	verifier     ScriptVerifier
	feeEstimator *FeeEstimator
	coinIndex    *CoinIndex
	txIndex      *TxIndex
	cache        *MempoolCache

	events chan Event

	freeCount    float64
	lastFreeTime time.Time

	log *logrus.Entry
}

// Option configures an optional collaborator at construction time.
type Option func(*Mempool)

// WithFeeEstimator attaches a fee estimator; admission and block
// reconciliation forward to it when set.
func WithFeeEstimator(fe *FeeEstimator) Option {
	return func(m *Mempool) { m.feeEstimator = fe }
}

// WithCache attaches on-disk persistence.
func WithCache(c *MempoolCache) Option {
	return func(m *Mempool) { m.cache = c }
}

// WithIndices enables the optional address-keyed secondary indices.
func WithIndices() Option {
	return func(m *Mempool) {
		m.coinIndex = NewCoinIndex()
		m.txIndex = NewTxIndex()
	}
}

// WithLogger overrides the default logger.
func WithLogger(log *logrus.Entry) Option {
	return func(m *Mempool) { m.log = log }
}

// NewMempool builds a ready-to-use pool backed by chain for confirmed
// coin lookups and verifier for script verification. If a cache Option
// supplies persistence, the cache is initialized against chain's current
// tip and any persisted entries are reloaded.
func NewMempool(cfg config.MempoolConfig, params chaincfg.Params, chain Chain, verifier ScriptVerifier, opts ...Option) (*Mempool, error) {
	m := &Mempool{
		hashLocks: newKeyedMutex(),
		byHash:    make(map[wire.Hash]*MempoolEntry),
		spent:     make(map[[36]byte]*MempoolEntry),
		orphans:   make(map[wire.Hash]*Orphan),
		waiting:   make(map[wire.Hash]map[wire.Hash]struct{}),
		rejects:   NewRollingFilter(100000, 0.000001, 0),
		cfg:       cfg,
		params:    params,
		chain:     chain,
		verifier:  verifier,
		events:    make(chan Event, 1024),
		tip:       chain.Tip(),
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}

	for _, opt := range opts {
		opt(m)
	}

	if cfg.IndexAddress && m.coinIndex == nil {
		m.coinIndex = NewCoinIndex()
		m.txIndex = NewTxIndex()
	}

	if m.cache != nil {
		if err := m.loadFromCache(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Mempool) loadFromCache() error {
	if _, err := m.cache.Init(m.tip); err != nil {
		return err
	}

	entries, feeBlob, err := m.cache.LoadAll()
	if err != nil {
		return err
	}

	if m.feeEstimator != nil && feeBlob != nil {
		if err := m.feeEstimator.Deserialize(feeBlob); err != nil {
			m.log.WithError(err).Warn("failed to restore fee estimator state from cache")
		}
	}

	for _, entry := range entries {
		m.trackEntry(entry, nil)
	}
	for _, entry := range entries {
		m.updateAncestors(entry, addFee)
	}

	return nil
}

// Tip returns the block hash the pool's state is currently valid
// against.
func (m *Mempool) Tip() wire.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tip
}

// Size returns the current total memory usage across every pooled
// entry.
func (m *Mempool) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Has reports whether hash is a tracked, non-orphan entry.
func (m *Mempool) Has(hash wire.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byHash[hash]
	return ok
}

// AddTx runs the full admission pipeline against tx on behalf of
// originPeer. It returns the hashes of any missing parents if tx was
// buffered as an orphan, or a VerifyError on outright rejection. Both
// are nil on successful admission.
func (m *Mempool) AddTx(tx *wire.MsgTx, originPeer int32) ([]wire.Hash, *VerifyError) {
	hash := tx.TxHash()

	m.hashLocks.Lock(hash)
	defer m.hashLocks.Unlock(hash)

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insertTx(tx, originPeer, m.chain.Height()+1)
}

// insertTx is the shared admission body used by AddTx, orphan replay,
// and block-disconnection reinstatement. Callers must already hold mu.
func (m *Mempool) insertTx(tx *wire.MsgTx, originPeer int32, height int32) ([]wire.Hash, *VerifyError) {
	hash := tx.TxHash()

	if verr := sanityCheck(tx); verr != nil {
		m.rejectTx(tx, verr)
		return nil, verr
	}

	if tx.IsCoinbase() {
		verr := newVerifyError(tx, ErrInvalid, "coinbase as individual tx", 100)
		m.rejectTx(tx, verr)
		return nil, verr
	}

	if m.cfg.RequireStandard {
		if verr := m.standardnessGate(tx); verr != nil {
			if !verr.Malleated {
				m.rejectTx(tx, verr)
			}
			return nil, verr
		}
	}

	if !m.cfg.ReplaceByFee && tx.IsRBF() {
		verr := newVerifyError(tx, ErrNonStandard, "replace-by-fee not enabled", 0)
		m.rejectTx(tx, verr)
		return nil, verr
	}

	if !m.chain.VerifyFinal(m.tip, tx, chaincfg.StandardLockTimeFlags) {
		verr := newVerifyError(tx, ErrNonStandard, "non-final", 0)
		m.rejectTx(tx, verr)
		return nil, verr
	}

	if _, ok := m.byHash[hash]; ok {
		return nil, newVerifyError(tx, ErrAlreadyKnown, "txn-already-in-mempool", 0)
	}
	if _, ok := m.orphans[hash]; ok {
		return nil, newVerifyError(tx, ErrAlreadyKnown, "txn-already-known-orphan", 0)
	}
	hasCoins, err := m.chain.HasCoins(tx)
	if err != nil {
		return nil, newVerifyError(tx, ErrInvalid, err.Error(), 0)
	}
	if hasCoins {
		return nil, newVerifyError(tx, ErrAlreadyKnown, "txn-already-known", 0)
	}

	if m.isDoubleSpend(tx) {
		verr := newVerifyError(tx, ErrDuplicate, "bad-txns-inputs-spent", 0)
		m.emit(Event{Type: EventConflict, Tx: tx, Hash: hash, OriginPeer: originPeer})
		m.rejectTx(tx, verr)
		return nil, verr
	}

	view, err := m.buildCoinView(tx)
	if err != nil {
		return nil, newVerifyError(tx, ErrInvalid, err.Error(), 0)
	}

	if unresolved := view.Unresolved(tx); len(unresolved) > 0 {
		missing := m.maybeOrphan(tx, unresolved, originPeer)
		return missing, nil
	}

	entry := NewMempoolEntry(tx, 0, height, countSigOps(tx), originPeer, time.Now())
	entry.Fee, err = computeFee(tx, view)
	if err != nil {
		verr := toVerifyError(tx, err)
		m.rejectTx(tx, verr)
		return nil, verr
	}
	entry.DeltaFee = entry.Fee
	entry.DescFee = entry.Fee
	entry.Priority = computePriority(tx, view, m.chain.Height())

	if verr := m.verifyContext(entry, view); verr != nil {
		if !verr.Malleated {
			m.rejectTx(tx, verr)
		}
		return nil, verr
	}

	m.trackEntry(entry, view)
	m.updateAncestors(entry, addFee)

	if height == -1 {
		m.emit(Event{Type: EventUnconfirmed, Tx: tx, Hash: hash, OriginPeer: originPeer})
	} else {
		m.emit(Event{Type: EventTx, Tx: tx, Hash: hash, OriginPeer: originPeer})
	}
	m.emit(Event{Type: EventAddEntry, Tx: tx, Entry: entry, Hash: hash, OriginPeer: originPeer})

	if m.cache != nil {
		m.cache.PutEntry(entry)
		m.cache.MaybeFlush(entry.Time, m.tip)
	}
	if m.feeEstimator != nil {
		ratePerKB := int64(0)
		if entry.Size > 0 {
			ratePerKB = entry.Fee * 1000 / entry.Size
		}
		m.feeEstimator.ProcessTransaction(hash, height, ratePerKB)
	}

	m.handleOrphans(hash)

	if m.size > m.cfg.MaxSize {
		m.limitSize()
		if _, ok := m.byHash[hash]; !ok {
			return nil, newVerifyError(tx, ErrInsufficientFee, "mempool full", 0)
		}
	}

	return nil, nil
}

// rejectTx adds tx's hash to the reject filter unless it carries
// witness data or the failure was flagged as malleation, per the
// anti-poisoning rule admission step 10's closing paragraph describes.
func (m *Mempool) rejectTx(tx *wire.MsgTx, verr *VerifyError) {
	m.log.WithFields(logrus.Fields{
		"hash":   tx.TxHash(),
		"type":   verr.Type,
		"reason": verr.Reason,
	}).Debug("rejecting transaction")

	if tx.HasWitness() || verr.Malleated {
		return
	}
	m.rejects.Add(tx.TxHash().Bytes())
}

func sanityCheck(tx *wire.MsgTx) *VerifyError {
	if len(tx.TxIn) == 0 || len(tx.TxOut) == 0 {
		return newVerifyError(tx, ErrInvalid, "bad-txns-vin-or-vout-empty", 100)
	}
	if tx.Size() == 0 || tx.Weight() <= 0 {
		return newVerifyError(tx, ErrInvalid, "bad-txns-size", 100)
	}

	seen := make(map[[36]byte]struct{}, len(tx.TxIn))
	var totalOut int64
	for _, in := range tx.TxIn {
		key := in.PreviousOutPoint.Key()
		if _, dup := seen[key]; dup {
			return newVerifyError(tx, ErrInvalid, "bad-txns-inputs-duplicate", 100)
		}
		seen[key] = struct{}{}

		if in.PreviousOutPoint.Hash.IsZero() {
			return newVerifyError(tx, ErrInvalid, "bad-txns-prevout-null", 100)
		}
		if len(in.SignatureScript) > maxSanityScriptSize {
			return newVerifyError(tx, ErrInvalid, "bad-txns-scriptsig-size", 100)
		}
	}

	for _, out := range tx.TxOut {
		if out.Value < 0 {
			return newVerifyError(tx, ErrInvalid, "bad-txns-vout-negative", 100)
		}
		if totalOut+out.Value < totalOut {
			return newVerifyError(tx, ErrInvalid, "bad-txns-vout-toolarge", 100)
		}
		totalOut += out.Value
		if len(out.PkScript) > maxSanityScriptSize {
			return newVerifyError(tx, ErrInvalid, "bad-txns-scriptpubkey-size", 100)
		}
	}

	return nil
}

// standardnessGate enforces admission step 3's version and
// activation-height checks. Witness data carried before segwit
// activation is a soft rejection (malleated = true) so the reject
// cache is not poisoned by a transaction that will become valid again
// once the node catches up.
func (m *Mempool) standardnessGate(tx *wire.MsgTx) *VerifyError {
	if tx.Version < 1 || tx.Version > 2 {
		return newVerifyError(tx, ErrNonStandard, "version", 0)
	}
	if tx.Version >= 2 && m.chain.Height() < m.params.CSVActivationHeight {
		return newVerifyError(tx, ErrNonStandard, "premature-version2", 0)
	}
	if tx.HasWitness() && m.chain.Height() < m.params.SegwitActivationHeight {
		return newMalleatedError(tx, ErrNonStandard, "no-witness-yet", 0)
	}
	if !isStandardTx(tx) {
		return newVerifyError(tx, ErrNonStandard, "scriptpubkey-or-script-non-standard", 0)
	}
	return nil
}

func (m *Mempool) isDoubleSpend(tx *wire.MsgTx) bool {
	for _, in := range tx.TxIn {
		if _, ok := m.spent[in.PreviousOutPoint.Key()]; ok {
			return true
		}
	}
	return false
}

// trackEntry inserts entry into by_hash, spent, size accounting, and
// the optional secondary indices.
func (m *Mempool) trackEntry(entry *MempoolEntry, view *CoinView) {
	m.byHash[entry.Hash] = entry
	for _, in := range entry.Tx.TxIn {
		m.spent[in.PreviousOutPoint.Key()] = entry
	}
	m.size += entry.MemUsage()

	if m.txIndex != nil && view != nil {
		m.txIndex.AddEntry(entry, view)
	}
	if m.coinIndex != nil {
		m.coinIndex.AddEntry(entry)
	}
}

// untrackEntry removes entry from every primary structure, the inverse
// of trackEntry. CoinIndex removal needs to know which of entry's
// inputs still resolve to an in-pool parent, so when no view is passed
// (every current removal path passes nil) one is rebuilt from current
// pool/chain state before indexing is updated.
func (m *Mempool) untrackEntry(entry *MempoolEntry, view *CoinView) {
	delete(m.byHash, entry.Hash)
	for _, in := range entry.Tx.TxIn {
		if cur, ok := m.spent[in.PreviousOutPoint.Key()]; ok && cur.Hash == entry.Hash {
			delete(m.spent, in.PreviousOutPoint.Key())
		}
	}
	m.size -= entry.MemUsage()

	if m.txIndex != nil {
		m.txIndex.RemoveEntry(entry.Hash)
	}
	if m.coinIndex != nil {
		if view == nil {
			var err error
			view, err = m.buildCoinView(entry.Tx)
			if err != nil {
				m.log.WithError(err).WithField("hash", entry.Hash).
					Warn("failed to rebuild coin view while removing entry from coin index")
				view = NewCoinView()
			}
		}
		m.coinIndex.RemoveEntry(entry, view)
	}
}

// removeEntry removes entry from the pool on confirmation: ancestors'
// descendant sums are corrected, the cache is told to drop it, and a
// typed event is emitted (normally EventConfirmed).
func (m *Mempool) removeEntry(entry *MempoolEntry, eventType EventType, block *wire.MsgBlock) {
	m.updateAncestors(entry, removeFee)
	m.untrackEntry(entry, nil)

	if m.cache != nil {
		m.cache.DeleteEntry(entry.Hash)
	}
	if m.feeEstimator != nil {
		m.feeEstimator.RemoveTransaction(entry.Hash)
	}

	m.emit(Event{Type: eventType, Tx: entry.Tx, Entry: entry, Hash: entry.Hash, Block: block})
}

// evictEntry removes entry and every in-pool descendant (recursively,
// since a descendant's only input may be the very output being
// evicted), used by eviction, reorg sanitization, and conflict cleanup.
func (m *Mempool) evictEntry(entry *MempoolEntry) {
	m.log.WithField("hash", entry.Hash).Info("evicting mempool entry")

	for _, child := range m.getDescendants(entry) {
		if _, ok := m.byHash[child.Hash]; !ok {
			continue
		}
		m.untrackEntry(child, nil)
		if m.cache != nil {
			m.cache.DeleteEntry(child.Hash)
		}
		if m.feeEstimator != nil {
			m.feeEstimator.RemoveTransaction(child.Hash)
		}
		m.emit(Event{Type: EventRemoveEntry, Tx: child.Tx, Entry: child, Hash: child.Hash})
	}

	m.updateAncestors(entry, removeFee)
	m.untrackEntry(entry, nil)
	if m.cache != nil {
		m.cache.DeleteEntry(entry.Hash)
	}
	if m.feeEstimator != nil {
		m.feeEstimator.RemoveTransaction(entry.Hash)
	}
	m.emit(Event{Type: EventRemoveEntry, Tx: entry.Tx, Entry: entry, Hash: entry.Hash})
}

// removeDoubleSpends evicts every in-pool entry that spends any input
// tx itself consumes, called once tx confirms so a pooled conflict
// left dangling by the block doesn't linger.
func (m *Mempool) removeDoubleSpends(tx *wire.MsgTx) {
	seen := make(map[wire.Hash]struct{})
	for _, in := range tx.TxIn {
		spender, ok := m.spent[in.PreviousOutPoint.Key()]
		if !ok {
			continue
		}
		if spender.Hash == tx.TxHash() {
			continue
		}
		if _, done := seen[spender.Hash]; done {
			continue
		}
		seen[spender.Hash] = struct{}{}
		m.emit(Event{Type: EventDoubleSpend, Tx: spender.Tx, Entry: spender, Hash: spender.Hash})
		m.evictEntry(spender)
	}
}

// limitSize is the two-pass eviction routine triggered when size
// exceeds max_size: entries past expiry with no in-pool dependents are
// dropped outright, then the lowest cmp_rate entries are evicted until
// size falls to 90% of max_size. Callers check whether their own
// entry of interest survived by looking it up afterward.
func (m *Mempool) limitSize() {
	now := time.Now()
	var candidates []*MempoolEntry

	for _, entry := range m.byHash {
		if _, ok := m.byHash[entry.Hash]; !ok {
			continue
		}
		if m.cfg.ExpiryTime > 0 && !m.hasDepends(entry) && now.Sub(entry.Time) >= m.cfg.ExpiryTime {
			m.evictEntry(entry)
			continue
		}
		candidates = append(candidates, entry)
	}

	target := m.cfg.MaxSize - m.cfg.MaxSize/10
	h := newFeeHeap(candidates)
	for m.size > target {
		victim := h.popLowest()
		if victim == nil {
			break
		}
		if _, ok := m.byHash[victim.Hash]; !ok {
			continue
		}
		m.evictEntry(victim)
	}
}

func computeFee(tx *wire.MsgTx, view *CoinView) (int64, error) {
	var totalIn int64
	for _, in := range tx.TxIn {
		coin, ok := view.Get(in.PreviousOutPoint)
		if !ok {
			return 0, fmt.Errorf("mempool: unresolved input")
		}
		totalIn += coin.Output.Value
	}
	var totalOut int64
	for _, out := range tx.TxOut {
		totalOut += out.Value
	}
	if totalOut > totalIn {
		return 0, newVerifyError(tx, ErrInvalid, "bad-txns-in-belowout", 100)
	}
	return totalIn - totalOut, nil
}

func toVerifyError(tx *wire.MsgTx, err error) *VerifyError {
	if verr, ok := err.(*VerifyError); ok {
		return verr
	}
	return newVerifyError(tx, ErrInvalid, err.Error(), 0)
}
