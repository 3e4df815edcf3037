package mempool

import (
	"encoding/binary"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"obsidianmempool/wire"
)

// cacheVersion is stamped into the V key on every fresh init; a
// mismatch on open means the on-disk layout or semantics changed and
// the cache must be wiped rather than trusted.
const cacheVersion uint32 = 2

// cacheFlushThrottle is the minimum interval between batch flushes
// triggered by ordinary admissions; block boundaries flush
// unconditionally regardless of this throttle.
const cacheFlushThrottle = 10 * time.Second

var (
	cacheBucketMeta    = []byte("meta")
	cacheBucketEntries = []byte("entries")
	cacheKeyVersion    = []byte("V")
	cacheKeyTip        = []byte("R")
	cacheKeyFee        = []byte("F")
)

// entryRecord is the gob-encoded form of a MempoolEntry's e(hash) blob.
// Field order is free to differ from the wire layout a byte-exact spec
// might demand so long as it round-trips, which a gob record does by
// construction.
type entryRecord struct {
	TxBytes    []byte
	Size       int64
	Fee        int64
	Priority   float64
	Height     int32
	Time       int64
	DeltaFee   int64
	SigOpCost  int64
	DescFee    int64
	DescSize   int64
	OriginPeer int32
}

func newEntryRecord(e *MempoolEntry) (*entryRecord, error) {
	txBytes, err := encodeTx(e.Tx)
	if err != nil {
		return nil, err
	}
	return &entryRecord{
		TxBytes:    txBytes,
		Size:       e.Size,
		Fee:        e.Fee,
		Priority:   e.Priority,
		Height:     e.Height,
		Time:       e.Time.Unix(),
		DeltaFee:   e.DeltaFee,
		SigOpCost:  e.SigOpCost,
		DescFee:    e.DescFee,
		DescSize:   e.DescSize,
		OriginPeer: e.OriginPeer,
	}, nil
}

func (r *entryRecord) toEntry() (*MempoolEntry, error) {
	tx, err := decodeTx(r.TxBytes)
	if err != nil {
		return nil, err
	}
	return &MempoolEntry{
		Tx:         tx,
		Hash:       tx.TxHash(),
		Time:       time.Unix(r.Time, 0),
		Height:     r.Height,
		Fee:        r.Fee,
		Size:       r.Size,
		SigOpCost:  r.SigOpCost,
		Priority:   r.Priority,
		OriginPeer: r.OriginPeer,
		DeltaFee:   r.DeltaFee,
		DescFee:    r.DescFee,
		DescSize:   r.DescSize,
	}, nil
}

type pendingWrite struct {
	record *entryRecord
	delete bool
}

// MempoolCache is the optional on-disk persistence layer: a bbolt
// key/value store holding the schema version, the tip the cache is
// valid against, an opaque fee-estimator blob, and one entry record per
// pooled transaction. Writes batch in memory and flush on a throttle or
// at block boundaries, per the rolling-batch design this package
// carries forward from the teacher's own storage layer.
type MempoolCache struct {
	mu        sync.Mutex
	db        *bbolt.DB
	pending   map[wire.Hash]pendingWrite
	pendingFee []byte
	lastFlush time.Time
}

// OpenMempoolCache opens (creating if necessary) a bbolt-backed cache
// at path.
func OpenMempoolCache(path string) (*MempoolCache, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(cacheBucketMeta); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(cacheBucketEntries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &MempoolCache{db: db, pending: make(map[wire.Hash]pendingWrite)}, nil
}

// Close releases the underlying database handle.
func (c *MempoolCache) Close() error {
	return c.db.Close()
}

// Init verifies the stored version and tip against the live chain tip.
// On any mismatch (missing version, version drift, or a different
// tip) the cache is wiped and re-initialized fresh against tip rather
// than trusted, since its entries would otherwise describe a pool that
// no longer corresponds to reality.
func (c *MempoolCache) Init(tip wire.Hash) (wiped bool, err error) {
	err = c.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(cacheBucketMeta)

		storedVersion := meta.Get(cacheKeyVersion)
		storedTip := meta.Get(cacheKeyTip)

		valid := len(storedVersion) == 4 &&
			binary.LittleEndian.Uint32(storedVersion) == cacheVersion &&
			len(storedTip) == 32 && wire.Hash(storedTip[:32]) == tip

		if valid {
			return nil
		}

		wiped = true
		if err := tx.DeleteBucket(cacheBucketEntries); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		if _, err := tx.CreateBucket(cacheBucketEntries); err != nil {
			return err
		}

		var vb [4]byte
		binary.LittleEndian.PutUint32(vb[:], cacheVersion)
		if err := meta.Put(cacheKeyVersion, vb[:]); err != nil {
			return err
		}
		return meta.Put(cacheKeyTip, tip[:])
	})
	return wiped, err
}

// PutEntry queues entry for the next flush.
func (c *MempoolCache) PutEntry(e *MempoolEntry) error {
	record, err := newEntryRecord(e)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[e.Hash] = pendingWrite{record: record}
	return nil
}

// DeleteEntry queues a removal for the next flush.
func (c *MempoolCache) DeleteEntry(hash wire.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[hash] = pendingWrite{delete: true}
}

// PutFeeEstimator queues the opaque fee-estimator blob for the next
// flush.
func (c *MempoolCache) PutFeeEstimator(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingFee = data
}

// MaybeFlush flushes the pending batch if at least cacheFlushThrottle
// has elapsed since the last flush, the throttle admission calls
// through; block boundaries should call Flush directly instead.
func (c *MempoolCache) MaybeFlush(now time.Time, tip wire.Hash) error {
	c.mu.Lock()
	due := now.Sub(c.lastFlush) >= cacheFlushThrottle
	c.mu.Unlock()
	if !due {
		return nil
	}
	return c.Flush(tip)
}

// Flush commits every queued entry write/delete, the fee-estimator
// blob if set, and the tip pointer, unconditionally.
func (c *MempoolCache) Flush(tip wire.Hash) error {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[wire.Hash]pendingWrite)
	feeBlob := c.pendingFee
	c.pendingFee = nil
	c.mu.Unlock()

	err := c.db.Update(func(tx *bbolt.Tx) error {
		entries := tx.Bucket(cacheBucketEntries)
		for hash, w := range pending {
			if w.delete {
				if err := entries.Delete(hash[:]); err != nil {
					return err
				}
				continue
			}
			data, err := gobEncode(w.record)
			if err != nil {
				return err
			}
			if err := entries.Put(hash[:], data); err != nil {
				return err
			}
		}

		meta := tx.Bucket(cacheBucketMeta)
		if feeBlob != nil {
			if err := meta.Put(cacheKeyFee, feeBlob); err != nil {
				return err
			}
		}
		return meta.Put(cacheKeyTip, tip[:])
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.lastFlush = time.Now()
	c.mu.Unlock()
	return nil
}

// LoadAll returns every persisted entry plus the stored fee-estimator
// blob, for the two-pass reload sequence (track, then update
// ancestors) the owning Mempool performs at startup.
func (c *MempoolCache) LoadAll() ([]*MempoolEntry, []byte, error) {
	var entries []*MempoolEntry
	var feeBlob []byte

	err := c.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(cacheBucketMeta)
		if v := meta.Get(cacheKeyFee); v != nil {
			feeBlob = append([]byte(nil), v...)
		}

		return tx.Bucket(cacheBucketEntries).ForEach(func(k, v []byte) error {
			var record entryRecord
			if err := gobDecode(v, &record); err != nil {
				return err
			}
			entry, err := record.toEntry()
			if err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, feeBlob, err
}
