package mempool

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math"

	"obsidianmempool/chaincfg"
	"obsidianmempool/crypto"
	"obsidianmempool/wire"
)

// coinbaseMaturity is the number of confirmations a coinbase output
// must accrue before it can be spent.
const coinbaseMaturity = 100

// maxStandardScriptSize bounds a single locking or signature script
// under the standardness gate.
const maxStandardScriptSize = 1650

// absurdFeeMultiple is how many times min_relay_fee a fee must exceed
// before reject_absurd_fees kicks in.
const absurdFeeMultiple = 10000

// satoshiPerCoin, blocksPerDayEstimate, and txSizeEstimate reproduce the
// classic coin-age priority threshold: a transaction may relay fee-free
// when its priority (sum of input value times depth, divided by size)
// exceeds one coin aged a day through a transaction of average size.
const (
	satoshiPerCoin        = 100000000
	blocksPerDayEstimate  = 144.0
	txSizeEstimate        = 250.0
	freePriorityThreshold = satoshiPerCoin * blocksPerDayEstimate / txSizeEstimate
)

// freeRelayDecay is the per-second decay bitcoind-style free-relay
// throttles apply: an exponentially decaying window of about ten
// minutes, in which the count falls to roughly 1/e every 600 seconds.
const freeRelayDecay = 1.0 / 600.0

// ScriptVerifier performs full script/signature verification, the
// collaborator the mempool defers to rather than embedding its own
// interpreter. Implementations may run verification on a worker pool;
// VerifyAsync must respect ctx cancellation.
type ScriptVerifier interface {
	VerifyAsync(ctx context.Context, tx *wire.MsgTx, view *CoinView, flags uint32) (bool, error)
}

// P2PKHVerifier is a reference ScriptVerifier for the simplified
// locking-script model this package uses: a SignatureScript is a
// concatenation of a DER signature and a 33-byte compressed public key,
// and a PkScript is the Hash160 of that public key. It has no general
// script interpreter; it is sufficient to exercise the admission
// pipeline's verification step end to end.
type P2PKHVerifier struct{}

func (P2PKHVerifier) VerifyAsync(ctx context.Context, tx *wire.MsgTx, view *CoinView, flags uint32) (bool, error) {
	digest := crypto.Hash256(tx.TxHash().Bytes())

	for _, in := range tx.TxIn {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		coin, ok := view.Get(in.PreviousOutPoint)
		if !ok {
			return false, fmt.Errorf("mempool: missing coin for script verification")
		}

		sig, pubKeyBytes, ok := splitSigScript(in.SignatureScript)
		if !ok {
			return false, nil
		}

		pubKey, err := crypto.BytesToPublicKey(pubKeyBytes)
		if err != nil {
			return false, nil
		}

		if !pubKeyMatchesScript(pubKey, coin.Output.PkScript) {
			return false, nil
		}

		if flags&chaincfg.VerifyCleanStack != 0 && len(in.Witness) > 0 {
			// Treated here only as a stand-in for the real
			// clean-stack rule; this reference verifier has no stack
			// to inspect.
			continue
		}

		if !crypto.Verify(pubKey, digest, sig) {
			return false, nil
		}
	}

	return true, nil
}

func splitSigScript(script []byte) (sig, pubKey []byte, ok bool) {
	const pubKeyLen = 33
	if len(script) <= pubKeyLen {
		return nil, nil, false
	}
	split := len(script) - pubKeyLen
	return script[:split], script[split:], true
}

func pubKeyMatchesScript(pubKey *ecdsa.PublicKey, pkScript []byte) bool {
	want := crypto.Hash160(crypto.PublicKeyToBytes(pubKey))
	if len(pkScript) != len(want) {
		return false
	}
	for i := range want {
		if pkScript[i] != want[i] {
			return false
		}
	}
	return true
}

// countSigOps approximates the transaction's signature-operation cost:
// one unit per input, since the reference script model carries exactly
// one signature check per spend.
func countSigOps(tx *wire.MsgTx) int64 {
	return int64(len(tx.TxIn))
}

// isStandardScript rejects empty locking/unlocking scripts and scripts
// beyond maxStandardScriptSize. It does not check the script's shape:
// any non-empty script within the size bound passes.
func isStandardScript(script []byte) bool {
	return len(script) > 0 && len(script) <= maxStandardScriptSize
}

// isStandardTx runs the per-input/per-output standardness gates used
// by admission step 3 when require_standard is set.
func isStandardTx(tx *wire.MsgTx) bool {
	for _, in := range tx.TxIn {
		if !isStandardScript(in.SignatureScript) {
			return false
		}
	}
	for _, out := range tx.TxOut {
		if !isStandardScript(out.PkScript) {
			return false
		}
	}
	return true
}

// checkInputs enforces value conservation (outputs cannot exceed the
// sum of resolved input coins) and coinbase maturity, returning the
// transaction's fee (inputs minus outputs) on success.
func checkInputs(tx *wire.MsgTx, view *CoinView, spendHeight int32) (int64, error) {
	var totalIn int64
	for _, in := range tx.TxIn {
		coin, ok := view.Get(in.PreviousOutPoint)
		if !ok {
			return 0, fmt.Errorf("mempool: unresolved input during check_inputs")
		}
		if coin.IsCoinbase && spendHeight-coin.Height < coinbaseMaturity {
			return 0, newVerifyError(tx, ErrInvalid, "bad-txns-premature-spend-of-coinbase", 0)
		}
		if coin.Output.Value < 0 {
			return 0, newVerifyError(tx, ErrInvalid, "bad-txns-inputvalue-negative", 100)
		}
		totalIn += coin.Output.Value
	}

	var totalOut int64
	for _, out := range tx.TxOut {
		if out.Value < 0 {
			return 0, newVerifyError(tx, ErrInvalid, "bad-txns-outputvalue-negative", 100)
		}
		totalOut += out.Value
	}

	if totalOut > totalIn {
		return 0, newVerifyError(tx, ErrInvalid, "bad-txns-in-belowout", 100)
	}

	return totalIn - totalOut, nil
}

// computePriority weighs each resolved input's value by its confirmation
// depth at curHeight, the classic coin-age priority used to decide
// whether a below-min-fee transaction still qualifies to relay free.
// An input sourced from an unconfirmed in-mempool parent contributes no
// depth, matching chainDepth's treatment of an unconfirmed coin.
func computePriority(tx *wire.MsgTx, view *CoinView, curHeight int32) float64 {
	size := tx.VSize()
	if size == 0 {
		return 0
	}
	var weightedSum int64
	for _, in := range tx.TxIn {
		coin, ok := view.Get(in.PreviousOutPoint)
		if !ok || coin.InMempool {
			continue
		}
		weightedSum += coin.Output.Value * int64(chainDepth(coin.Height, curHeight))
	}
	return float64(weightedSum) / float64(size)
}

// chainDepth returns how many confirmations target has accrued relative
// to current, or zero if target is still unconfirmed.
func chainDepth(target, current int32) int32 {
	if target < 0 {
		return 0
	}
	return current - target + 1
}

// verifyContext is admission step 10: every check that requires the
// resolved CoinView and chain-relative state, run after an entry has
// been provisionally constructed but before it is tracked.
func (m *Mempool) verifyContext(entry *MempoolEntry, view *CoinView) *VerifyError {
	tx := entry.Tx

	ok, err := m.chain.VerifyLocks(m.tip, tx, view, chaincfg.StandardLockTimeFlags)
	if err != nil {
		return newVerifyError(tx, ErrInvalid, err.Error(), 0)
	}
	if !ok {
		return newVerifyError(tx, ErrNonStandard, "non-BIP68-final", 0)
	}

	if m.cfg.RequireStandard && !isStandardTx(tx) {
		return newVerifyError(tx, ErrNonStandard, "scriptpubkey-or-script-non-standard", 0)
	}

	if entry.SigOpCost > m.params.MaxTxSigOpsCost {
		return newVerifyError(tx, ErrNonStandard, "bad-txns-too-many-sigops", 0)
	}

	minFee := m.cfg.MinRelayTxFee * entry.Size / 1000
	if minFee == 0 {
		minFee = m.cfg.MinRelayTxFee
	}
	if entry.Fee < minFee {
		if !m.cfg.RelayPriority || !entry.IsFree(m.chain.Height()) {
			return newVerifyError(tx, ErrInsufficientFee, "min relay fee not met", 0)
		}
		if rejected := m.throttleFreeRelay(entry); rejected {
			return newVerifyError(tx, ErrInsufficientFee, "rate limited free transaction", 0)
		}
	}

	if m.cfg.RejectAbsurdFees && entry.Fee > absurdFeeMultiple*m.cfg.MinRelayTxFee {
		return newVerifyError(tx, ErrHighFee, "absurdly-high-fee", 0)
	}

	if m.countAncestors(entry, m.cfg.MaxAncestors)+1 > m.cfg.MaxAncestors {
		return newVerifyError(tx, ErrNonStandard, "too-long-mempool-chain", 0)
	}

	if _, err := checkInputs(tx, view, m.chain.Height()+1); err != nil {
		if verr, ok := err.(*VerifyError); ok {
			return verr
		}
		return newVerifyError(tx, ErrInvalid, err.Error(), 0)
	}

	return m.verifyScripts(tx, view)
}

// verifyScripts implements the STANDARD_VERIFY_FLAGS then
// witness-relaxed fallback described by admission step 10's last bullet:
// a tx that only passes once VERIFY_WITNESS/VERIFY_CLEANSTACK are
// dropped, but fails again with VERIFY_CLEANSTACK reinstated, is
// concluded to be segwit-malleated rather than genuinely invalid.
func (m *Mempool) verifyScripts(tx *wire.MsgTx, view *CoinView) *VerifyError {
	ctx := context.Background()

	ok, err := m.verifier.VerifyAsync(ctx, tx, view, chaincfg.StandardVerifyFlags)
	if err != nil {
		return newVerifyError(tx, ErrInvalid, err.Error(), 0)
	}
	if ok {
		return nil
	}

	relaxed := chaincfg.StandardVerifyFlags &^ (chaincfg.VerifyWitness | chaincfg.VerifyCleanStack)
	ok, err = m.verifier.VerifyAsync(ctx, tx, view, relaxed)
	if err != nil || !ok {
		return newVerifyError(tx, ErrInvalid, "mandatory-script-verify-flag-failed", 100)
	}

	// Passed without witness/clean-stack but failed with them both
	// reinstated above: reinstating clean-stack alone tells the cases
	// apart. A tx that still passes is genuinely invalid; one that fails
	// again is concluded to be segwit-malleated.
	withCleanStack := relaxed | chaincfg.VerifyCleanStack
	ok, err = m.verifier.VerifyAsync(ctx, tx, view, withCleanStack)
	if err == nil && ok {
		return newVerifyError(tx, ErrInvalid, "mandatory-script-verify-flag-failed", 100)
	}

	return newMalleatedError(tx, ErrInvalid, "non-mandatory-script-verify-flag (Witness)", 0)
}

// throttleFreeRelay applies the decaying free-relay rate limiter and
// reports whether entry should be rejected for exceeding it.
func (m *Mempool) throttleFreeRelay(entry *MempoolEntry) bool {
	now := entry.Time
	elapsed := now.Sub(m.lastFreeTime).Seconds()
	if elapsed > 0 {
		m.freeCount *= math.Pow(1-freeRelayDecay, elapsed)
	}
	m.lastFreeTime = now

	limit := float64(m.cfg.FreeTxRelayLimit) * 10000
	if m.freeCount > limit {
		return true
	}
	m.freeCount += float64(entry.Size)
	return false
}
