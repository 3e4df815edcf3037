package wire

// TxVersion defines the default version of a transaction.
const TxVersion = 1

// LockTimeThreshold is the number below which a LockTime value is
// interpreted as a block height, and above which it is interpreted as a
// Unix timestamp.
const LockTimeThreshold = 500000000

// SequenceFinal is the sequence number that marks an input (and, if every
// input carries it, the whole transaction) as final regardless of LockTime.
const SequenceFinal = 0xffffffff

// MaxRBFSequence is the lowest sequence value that does not signal
// replace-by-fee; any sequence strictly below it signals. A final
// transaction always uses SequenceFinal or SequenceFinal-1 instead.
const MaxRBFSequence = 0xfffffffe

// OutPoint tracks a previous transaction output consumed by a TxIn. It
// serializes to a fixed 36-byte lookup key (32-byte hash, 4-byte
// little-endian index).
type OutPoint struct {
	Hash  Hash
	Index uint32
}

// Key returns the fixed 36-byte serialization used to index outpoints in
// maps and on-disk keys.
func (o OutPoint) Key() [36]byte {
	var k [36]byte
	copy(k[:32], o.Hash[:])
	k[32] = byte(o.Index)
	k[33] = byte(o.Index >> 8)
	k[34] = byte(o.Index >> 16)
	k[35] = byte(o.Index >> 24)
	return k
}

// TxIn defines a transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Witness          [][]byte
	Sequence         uint32
}

// IsFinal reports whether this input's sequence number opts the owning
// transaction out of relative/absolute locktime enforcement.
func (ti *TxIn) IsFinal() bool {
	return ti.Sequence == SequenceFinal
}

// IsRBF reports whether this input signals replace-by-fee (BIP125): any
// sequence strictly below MaxRBFSequence.
func (ti *TxIn) IsRBF() bool {
	return ti.Sequence < MaxRBFSequence
}

// TxOut defines a transaction output.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// MsgTx represents a candidate or confirmed transaction.
type MsgTx struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// AddTxIn adds a transaction input to the message.
func (msg *MsgTx) AddTxIn(ti *TxIn) {
	msg.TxIn = append(msg.TxIn, ti)
}

// AddTxOut adds a transaction output to the message.
func (msg *MsgTx) AddTxOut(to *TxOut) {
	msg.TxOut = append(msg.TxOut, to)
}

// NewMsgTx returns a new transaction with no inputs or outputs.
func NewMsgTx(version int32) *MsgTx {
	return &MsgTx{
		Version: version,
		TxIn:    make([]*TxIn, 0, 8),
		TxOut:   make([]*TxOut, 0, 8),
	}
}

// IsCoinbase returns true if this is a coinbase transaction: exactly one
// input referencing the null outpoint.
func (msg *MsgTx) IsCoinbase() bool {
	return len(msg.TxIn) == 1 &&
		msg.TxIn[0].PreviousOutPoint.Index == 0xffffffff &&
		msg.TxIn[0].PreviousOutPoint.Hash.IsZero()
}

// HasWitness reports whether any input carries segregated witness data.
func (msg *MsgTx) HasWitness() bool {
	for _, in := range msg.TxIn {
		if len(in.Witness) > 0 {
			return true
		}
	}
	return false
}

// IsRBF reports whether any input signals replace-by-fee.
func (msg *MsgTx) IsRBF() bool {
	for _, in := range msg.TxIn {
		if in.IsRBF() {
			return true
		}
	}
	return false
}

// baseSize returns the non-witness serialized size, used by both Size and
// the segwit-weighted VSize.
func (msg *MsgTx) baseSize() int64 {
	size := int64(4 + 1 + 1 + 4) // version, input count, output count, locktime

	for _, in := range msg.TxIn {
		size += 36 + 1 + int64(len(in.SignatureScript)) + 4
	}
	for _, out := range msg.TxOut {
		size += 8 + 1 + int64(len(out.PkScript))
	}

	return size
}

func (msg *MsgTx) witnessSize() int64 {
	var size int64
	for _, in := range msg.TxIn {
		size += 1
		for _, item := range in.Witness {
			size += 1 + int64(len(item))
		}
	}
	return size
}

// Size returns the full serialized size in bytes, including witness data.
func (msg *MsgTx) Size() int64 {
	size := msg.baseSize()
	if msg.HasWitness() {
		size += 2 + msg.witnessSize() // segwit marker + flag
	}
	return size
}

// Weight returns the BIP141 transaction weight: base size weighted 4x plus
// witness size weighted 1x.
func (msg *MsgTx) Weight() int64 {
	base := msg.baseSize()
	if !msg.HasWitness() {
		return base * 4
	}
	return base*4 + 2 + msg.witnessSize()
}

// VSize returns the segwit-weighted virtual size: ceil(Weight / 4).
func (msg *MsgTx) VSize() int64 {
	return (msg.Weight() + 3) / 4
}

// IsFinal reports whether the transaction satisfies BIP65/BIP68 absolute
// finality at the given chain height and median time past: either every
// input opts out via SequenceFinal, or LockTime has already been reached.
func (msg *MsgTx) IsFinal(height int32, medianTimePast int64) bool {
	if msg.LockTime == 0 {
		return true
	}

	var reached bool
	if msg.LockTime < LockTimeThreshold {
		reached = int64(msg.LockTime) <= int64(height)
	} else {
		reached = int64(msg.LockTime) <= medianTimePast
	}
	if reached {
		return true
	}

	for _, in := range msg.TxIn {
		if !in.IsFinal() {
			return false
		}
	}
	return true
}

// TxHash computes the transaction's identifying hash over its non-witness
// serialization, so malleating the witness does not change the hash.
func (msg *MsgTx) TxHash() Hash {
	data := make([]byte, 0, msg.baseSize())

	data = append(data, byte(msg.Version), byte(msg.Version>>8), byte(msg.Version>>16), byte(msg.Version>>24))
	data = append(data, byte(len(msg.TxIn)))

	for _, txIn := range msg.TxIn {
		data = append(data, txIn.PreviousOutPoint.Hash[:]...)
		data = append(data, byte(txIn.PreviousOutPoint.Index), byte(txIn.PreviousOutPoint.Index>>8),
			byte(txIn.PreviousOutPoint.Index>>16), byte(txIn.PreviousOutPoint.Index>>24))
		data = append(data, txIn.SignatureScript...)
		data = append(data, byte(txIn.Sequence), byte(txIn.Sequence>>8),
			byte(txIn.Sequence>>16), byte(txIn.Sequence>>24))
	}

	data = append(data, byte(len(msg.TxOut)))
	for _, txOut := range msg.TxOut {
		data = append(data, byte(txOut.Value), byte(txOut.Value>>8), byte(txOut.Value>>16), byte(txOut.Value>>24),
			byte(txOut.Value>>32), byte(txOut.Value>>40), byte(txOut.Value>>48), byte(txOut.Value>>56))
		data = append(data, txOut.PkScript...)
	}

	data = append(data, byte(msg.LockTime), byte(msg.LockTime>>8), byte(msg.LockTime>>16), byte(msg.LockTime>>24))

	return DoubleHashH(data)
}

// NewCoinbaseTx creates a coinbase transaction for the given height and
// reward, paid to minerPkScript (a raw locking script in this simplified
// model).
func NewCoinbaseTx(height int32, reward int64, minerPkScript []byte) *MsgTx {
	coinbaseScript := []byte{byte(height >> 8), byte(height & 0xff)}
	txIn := &TxIn{
		PreviousOutPoint: OutPoint{
			Hash:  Hash{},
			Index: 0xffffffff,
		},
		SignatureScript: coinbaseScript,
		Sequence:        SequenceFinal,
	}

	txOut := &TxOut{
		Value:    reward,
		PkScript: minerPkScript,
	}

	tx := NewMsgTx(TxVersion)
	tx.AddTxIn(txIn)
	tx.AddTxOut(txOut)

	return tx
}
