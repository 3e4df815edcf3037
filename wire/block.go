package wire

import (
	"bytes"
	"encoding/gob"
	"time"
)

// BlockHeader carries the fields of a block needed to identify it and its
// place in the chain. Proof-of-work fields belong to the mining subsystem
// and are not part of this model.
type BlockHeader struct {
	Version    int32
	PrevBlock  Hash
	MerkleRoot Hash
	Timestamp  time.Time
}

// MsgBlock is a connected or disconnected block as seen by the mempool:
// a header plus its transactions, coinbase first.
type MsgBlock struct {
	Header       BlockHeader
	Height       int32
	Transactions []*MsgTx
}

// AddTransaction adds a transaction to the block.
func (msg *MsgBlock) AddTransaction(tx *MsgTx) {
	msg.Transactions = append(msg.Transactions, tx)
}

// NewMsgBlock returns a new block with no transactions.
func NewMsgBlock(header *BlockHeader, height int32) *MsgBlock {
	return &MsgBlock{
		Header:       *header,
		Height:       height,
		Transactions: make([]*MsgTx, 0, 64),
	}
}

// BlockHash calculates the hash of the block header.
func (h *BlockHeader) BlockHash() Hash {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	enc.Encode(h)
	return DoubleHashH(buf.Bytes())
}

// BlockHash returns the hash of the block's header.
func (msg *MsgBlock) BlockHash() Hash {
	return msg.Header.BlockHash()
}

// PrevHash returns the hash of the block this one connects onto.
func (msg *MsgBlock) PrevHash() Hash {
	return msg.Header.PrevBlock
}
