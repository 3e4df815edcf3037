package mempool

import (
	"context"
	"testing"

	"obsidianmempool/crypto"
	"obsidianmempool/wire"
)

func TestP2PKHVerifierRoundTrip(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	parentHash := wire.Hash{1}
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: parentHash, Index: 0}, Sequence: wire.SequenceFinal})
	tx.AddTxOut(&wire.TxOut{Value: 90, PkScript: []byte{0x01}})

	digest := crypto.Hash256(tx.TxHash().Bytes())
	sig, err := crypto.Sign(priv, digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	pubKeyBytes := crypto.PublicKeyToBytes(pub)
	tx.TxIn[0].SignatureScript = append(append([]byte{}, sig...), pubKeyBytes...)

	view := NewCoinView()
	view.AddCoin(tx.TxIn[0].PreviousOutPoint, &Coin{
		Output: &wire.TxOut{Value: 100, PkScript: crypto.Hash160(pubKeyBytes)},
	})

	verifier := P2PKHVerifier{}
	ok, err := verifier.VerifyAsync(context.Background(), tx, view, 0)
	if err != nil {
		t.Fatalf("VerifyAsync: %v", err)
	}
	if !ok {
		t.Fatalf("expected a correctly signed P2PKH spend to verify")
	}
}

func TestP2PKHVerifierRejectsWrongKey(t *testing.T) {
	_, pub, _ := crypto.GenerateKeyPair()
	otherPriv, otherPub, _ := crypto.GenerateKeyPair()

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: wire.Hash{2}, Index: 0}, Sequence: wire.SequenceFinal})
	tx.AddTxOut(&wire.TxOut{Value: 10, PkScript: []byte{0x01}})

	digest := crypto.Hash256(tx.TxHash().Bytes())
	sig, _ := crypto.Sign(otherPriv, digest)
	tx.TxIn[0].SignatureScript = append(append([]byte{}, sig...), crypto.PublicKeyToBytes(otherPub)...)

	view := NewCoinView()
	// Output expects the *first* key's hash, not the signer's.
	view.AddCoin(tx.TxIn[0].PreviousOutPoint, &Coin{
		Output: &wire.TxOut{Value: 10, PkScript: crypto.Hash160(crypto.PublicKeyToBytes(pub))},
	})

	verifier := P2PKHVerifier{}
	ok, err := verifier.VerifyAsync(context.Background(), tx, view, 0)
	if err != nil {
		t.Fatalf("VerifyAsync: %v", err)
	}
	if ok {
		t.Fatalf("expected verification to fail when pkScript doesn't match the signer's key")
	}
}

func TestCheckInputsRejectsValueCreation(t *testing.T) {
	tx := wire.NewMsgTx(wire.TxVersion)
	op := wire.OutPoint{Hash: wire.Hash{3}, Index: 0}
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: op})
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x01}})

	view := NewCoinView()
	view.AddCoin(op, &Coin{Output: &wire.TxOut{Value: 100}})

	if _, err := checkInputs(tx, view, 10); err == nil {
		t.Fatalf("expected an error when outputs exceed inputs")
	}
}

func TestCheckInputsRejectsImmatureCoinbase(t *testing.T) {
	tx := wire.NewMsgTx(wire.TxVersion)
	op := wire.OutPoint{Hash: wire.Hash{4}, Index: 0}
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: op})
	tx.AddTxOut(&wire.TxOut{Value: 10, PkScript: []byte{0x01}})

	view := NewCoinView()
	view.AddCoin(op, &Coin{Output: &wire.TxOut{Value: 100}, IsCoinbase: true, Height: 100})

	if _, err := checkInputs(tx, view, 105); err == nil {
		t.Fatalf("expected an error spending an immature coinbase output")
	}
}

func TestIsStandardTxRejectsOversizeScript(t *testing.T) {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{SignatureScript: make([]byte, maxStandardScriptSize+1)})
	tx.AddTxOut(&wire.TxOut{PkScript: []byte{0x01}})

	if isStandardTx(tx) {
		t.Fatalf("expected oversize signature script to be flagged non-standard")
	}
}
