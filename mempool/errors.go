package mempool

import (
	"fmt"

	"obsidianmempool/wire"
)

// VerifyErrorType classifies why admission rejected a transaction, letting
// callers branch without parsing the reason string.
type VerifyErrorType string

const (
	ErrInvalid         VerifyErrorType = "invalid"
	ErrNonStandard     VerifyErrorType = "nonstandard"
	ErrAlreadyKnown    VerifyErrorType = "alreadyknown"
	ErrDuplicate       VerifyErrorType = "duplicate"
	ErrInsufficientFee VerifyErrorType = "insufficientfee"
	ErrHighFee         VerifyErrorType = "highfee"
)

// VerifyError is the single externally-visible failure class of the
// admission pipeline. Score follows the misbehavior-scoring convention:
// higher means more likely malicious, capped at 100 for consensus
// violations such as a coinbase entering the pool.
type VerifyError struct {
	Tx        *wire.MsgTx
	Type      VerifyErrorType
	Reason    string
	Score     int
	Malleated bool
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}

func newVerifyError(tx *wire.MsgTx, typ VerifyErrorType, reason string, score int) *VerifyError {
	return &VerifyError{Tx: tx, Type: typ, Reason: reason, Score: score}
}

func newMalleatedError(tx *wire.MsgTx, typ VerifyErrorType, reason string, score int) *VerifyError {
	return &VerifyError{Tx: tx, Type: typ, Reason: reason, Score: score, Malleated: true}
}
