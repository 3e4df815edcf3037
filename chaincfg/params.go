// Package chaincfg carries the consensus-activation and relay-policy
// constants the mempool's admission pipeline checks against. Block
// subsidy, genesis, and proof-of-work parameters belong to chain
// selection and mining, not the mempool, and are not modeled here.
package chaincfg

// Lock-time and sequence-lock flags, mirroring Bitcoin's
// STANDARD_LOCKTIME_VERIFY_FLAGS / STANDARD_SCRIPT_VERIFY_FLAGS split
// between "standard" policy and consensus-mandatory behavior.
const (
	LockTimeVerifySequence = 1 << iota
	LockTimeMedianTimePast
)

// StandardLockTimeFlags is the flag set `verify_final`/`verify_locks` use
// for mempool admission: both relative sequence locks and the
// median-time-past interpretation of absolute locktimes are enforced.
const StandardLockTimeFlags = LockTimeVerifySequence | LockTimeMedianTimePast

// Script verification flags, a trimmed analog of Bitcoin's
// STANDARD_SCRIPT_VERIFY_FLAGS: the two that matter to the admission
// pipeline's segwit-malleation retry logic.
const (
	VerifyWitness = 1 << iota
	VerifyCleanStack
)

// StandardVerifyFlags is the flag set the first script-verification pass
// runs with.
const StandardVerifyFlags = VerifyWitness | VerifyCleanStack

// Params defines per-network consensus-activation and relay-policy
// parameters consulted by the mempool.
type Params struct {
	Name string

	// CSVActivationHeight is the height at which BIP68/112/113 relative
	// locktime/sequence-lock rules become consensus.
	CSVActivationHeight int32

	// SegwitActivationHeight is the height at which witness data becomes
	// valid; transactions carrying witness data before this height are
	// rejected as non-standard (softly, so the reject filter isn't
	// poisoned — see mempool's malleation handling).
	SegwitActivationHeight int32

	// MaxTxWeight bounds a single transaction's BIP141 weight units.
	MaxTxWeight int64

	// MaxTxSigOpsCost bounds a single transaction's weighted sigop count.
	MaxTxSigOpsCost int64

	// MinRelayTxFee is the minimum fee rate, in satoshis per 1000 bytes,
	// required to relay (and admit into the mempool) a transaction.
	MinRelayTxFee int64

	// FreeTxRelayLimit bounds the free-relay throttle in the contextual
	// verify step: at most FreeTxRelayLimit * 10000 bytes of decaying
	// free-transaction throughput per rolling window.
	FreeTxRelayLimit int64

	// MaxOrphanTxSize is an orphan weight bound in the same unit as
	// MaxTxWeight. The mempool does not read it: the orphan pool drops
	// transactions heavier than MaxTxWeight.
	MaxOrphanTxSize int64
}

// MainNetParams are the consensus-activation and policy parameters used by
// default.
var MainNetParams = Params{
	Name:                   "mainnet",
	CSVActivationHeight:    419328,
	SegwitActivationHeight: 481824,
	MaxTxWeight:            400000,
	MaxTxSigOpsCost:        80000,
	MinRelayTxFee:          1000,
	FreeTxRelayLimit:       15,
	MaxOrphanTxSize:        100000,
}
