package mempool

import (
	"encoding/binary"
	"errors"
	"sync"

	"go.etcd.io/bbolt"

	"obsidianmempool/wire"
)

// sequenceLockDisableFlag marks an input's sequence number as opting
// out of BIP68 relative-locktime enforcement entirely.
const sequenceLockDisableFlag = 1 << 31

// sequenceLockTypeFlag selects time-based (set) vs height-based
// (unset) relative locktime within the low 16 bits of Sequence.
const sequenceLockTypeFlag = 1 << 22

const sequenceLockMask = 0x0000ffff

// sequenceLockGranularity is the left-shift BIP68 applies to a
// time-based relative locktime value, expressed in units of 512
// seconds, to turn it into seconds before comparing it against
// median-time-past.
const sequenceLockGranularity = 9

// Chain is the UTXO-backed blockchain database collaborator the
// mempool consults for everything it does not track itself: confirmed
// coin lookups, tip/height/median-time, and the two stateful checks
// (finality, sequence locks) that require chain context the mempool
// alone does not have.
type Chain interface {
	Tip() wire.Hash
	Height() int32
	HasCSV() bool
	HasWitness() bool
	Synced() bool
	MedianTime(tip wire.Hash) int64
	HasCoins(tx *wire.MsgTx) (bool, error)
	ReadCoin(outpoint wire.OutPoint) (*Coin, error)
	VerifyLocks(tip wire.Hash, tx *wire.MsgTx, view *CoinView, flags uint32) (bool, error)
	VerifyFinal(tip wire.Hash, tx *wire.MsgTx, flags uint32) bool
}

var (
	chainBucketUTXO = []byte("utxo")
	chainBucketMeta = []byte("meta")
	chainKeyTip     = []byte("tip")
	chainKeyHeight  = []byte("height")
)

// BoltChain is a reference Chain implementation backing the UTXO set
// with a bbolt key/value store, keyed by the same 36-byte outpoint
// layout the mempool itself uses for its spent map.
type BoltChain struct {
	mu         sync.RWMutex
	db         *bbolt.DB
	params     chainParams
	height     int32
	tip        wire.Hash
	medianTime int64
	synced     bool
}

type chainParams struct {
	hasCSV     bool
	hasWitness bool
}

// NewBoltChain opens (creating if necessary) a bbolt-backed chain store
// at path.
func NewBoltChain(path string, hasCSV, hasWitness bool) (*BoltChain, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(chainBucketUTXO); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(chainBucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &BoltChain{db: db, params: chainParams{hasCSV: hasCSV, hasWitness: hasWitness}}
	if err := c.loadMeta(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *BoltChain) loadMeta() error {
	return c.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(chainBucketMeta)
		if v := meta.Get(chainKeyTip); v != nil {
			copy(c.tip[:], v)
		}
		if v := meta.Get(chainKeyHeight); len(v) == 4 {
			c.height = int32(binary.LittleEndian.Uint32(v))
		}
		return nil
	})
}

// Close releases the underlying database handle.
func (c *BoltChain) Close() error {
	return c.db.Close()
}

// SetTip advances the chain's view of its own tip, height, and median
// time, used by the embedding node after connecting or disconnecting a
// block.
func (c *BoltChain) SetTip(tip wire.Hash, height int32, medianTime int64, synced bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tip = tip
	c.height = height
	c.medianTime = medianTime
	c.synced = synced

	return c.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(chainBucketMeta)
		if err := meta.Put(chainKeyTip, tip[:]); err != nil {
			return err
		}
		var hb [4]byte
		binary.LittleEndian.PutUint32(hb[:], uint32(height))
		return meta.Put(chainKeyHeight, hb[:])
	})
}

// PutCoin records an unspent output, used when connecting a block's
// outputs into the confirmed UTXO set.
func (c *BoltChain) PutCoin(outpoint wire.OutPoint, coin *Coin) error {
	data, err := encodeCoin(coin)
	if err != nil {
		return err
	}
	key := outpoint.Key()
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(chainBucketUTXO).Put(key[:], data)
	})
}

// DeleteCoin removes an outpoint from the confirmed UTXO set, used when
// one of its own inputs spends it in a later block.
func (c *BoltChain) DeleteCoin(outpoint wire.OutPoint) error {
	key := outpoint.Key()
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(chainBucketUTXO).Delete(key[:])
	})
}

func (c *BoltChain) Tip() wire.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tip
}

func (c *BoltChain) Height() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

func (c *BoltChain) HasCSV() bool     { return c.params.hasCSV }
func (c *BoltChain) HasWitness() bool { return c.params.hasWitness }

func (c *BoltChain) Synced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}

func (c *BoltChain) MedianTime(tip wire.Hash) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.medianTime
}

// HasCoins reports whether the chain already has unspent coins
// recorded for any output of tx, the admission-step-6 on-chain
// known-ness check.
func (c *BoltChain) HasCoins(tx *wire.MsgTx) (bool, error) {
	hash := tx.TxHash()
	found := false
	err := c.db.View(func(dbTx *bbolt.Tx) error {
		bucket := dbTx.Bucket(chainBucketUTXO)
		for i := range tx.TxOut {
			op := wire.OutPoint{Hash: hash, Index: uint32(i)}
			key := op.Key()
			if bucket.Get(key[:]) != nil {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

// ReadCoin returns the confirmed coin at outpoint, or nil if it is
// absent or already spent.
func (c *BoltChain) ReadCoin(outpoint wire.OutPoint) (*Coin, error) {
	key := outpoint.Key()
	var coin *Coin
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(chainBucketUTXO).Get(key[:])
		if data == nil {
			return nil
		}
		decoded, err := decodeCoin(data)
		if err != nil {
			return err
		}
		coin = decoded
		return nil
	})
	return coin, err
}

// VerifyFinal checks BIP65/BIP68 absolute finality of tx against the
// chain's height and median-time-past as of tip.
func (c *BoltChain) VerifyFinal(tip wire.Hash, tx *wire.MsgTx, flags uint32) bool {
	height := c.Height() + 1
	mtp := c.MedianTime(tip)
	return tx.IsFinal(height, mtp)
}

// VerifyLocks checks BIP68 relative sequence locks: for every CSV-aware
// input (tx version >= 2 and sequence not disabled), the referenced
// coin's confirmation height (or its confirmation time, shifted per
// BIP68) must already have elapsed relative to the chain's tip.
func (c *BoltChain) VerifyLocks(tip wire.Hash, tx *wire.MsgTx, view *CoinView, flags uint32) (bool, error) {
	if tx.Version < 2 || !c.HasCSV() {
		return true, nil
	}

	height := c.Height()
	mtp := c.MedianTime(tip)

	for _, in := range tx.TxIn {
		if in.Sequence&sequenceLockDisableFlag != 0 {
			continue
		}

		coin, ok := view.Get(in.PreviousOutPoint)
		if !ok {
			return false, errors.New("mempool: sequence lock check on unresolved input")
		}
		if coin.InMempool {
			// An unconfirmed parent has not accrued any relative
			// locktime yet; treat its depth as the next block.
			coin = &Coin{Height: height + 1}
		}

		locktime := in.Sequence & sequenceLockMask
		if in.Sequence&sequenceLockTypeFlag != 0 {
			threshold := int64(locktime) << sequenceLockGranularity
			elapsed := mtp - chainBlockTimeAt(coin.Height)
			if elapsed < threshold {
				return false, nil
			}
			continue
		}

		if int64(height)-int64(coin.Height) < int64(locktime) {
			return false, nil
		}
	}

	return true, nil
}

// chainBlockTimeAt is a placeholder hook a full chain database would
// back with its block index; the mempool itself never calls it
// directly, only BoltChain.VerifyLocks for time-based sequence locks.
func chainBlockTimeAt(height int32) int64 {
	return 0
}

func encodeCoin(coin *Coin) ([]byte, error) {
	return gobEncode(coin)
}

func decodeCoin(data []byte) (*Coin, error) {
	var coin Coin
	if err := gobDecode(data, &coin); err != nil {
		return nil, err
	}
	return &coin, nil
}
