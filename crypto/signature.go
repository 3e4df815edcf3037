// Package crypto provides the hashing and secp256k1 signing primitives
// used by the mempool's reference script verifier. Address encoding,
// mnemonic/seed derivation, and WIF import/export belong to the wallet
// subsystem and are out of scope here.
package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/ripemd160"
)

// Signature is an ECDSA (r, s) pair, DER-encoded for storage in a
// signature script.
type Signature struct {
	R, S *big.Int
}

// GenerateKeyPair generates a new ECDSA key pair on the secp256k1 curve.
func GenerateKeyPair() (*ecdsa.PrivateKey, *ecdsa.PublicKey, error) {
	privateKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, nil, err
	}

	ecdsaKey := privateKey.ToECDSA()
	return ecdsaKey, &ecdsaKey.PublicKey, nil
}

// Sign creates a DER-encoded signature over hash using the private key.
func Sign(privateKey *ecdsa.PrivateKey, hash []byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, privateKey, hash)
	if err != nil {
		return nil, err
	}

	return asn1.Marshal(Signature{R: r, S: s})
}

// Verify checks a DER-encoded signature against a hash and public key.
func Verify(publicKey *ecdsa.PublicKey, hash, signature []byte) bool {
	var sig Signature
	if _, err := asn1.Unmarshal(signature, &sig); err != nil {
		return false
	}

	return ecdsa.Verify(publicKey, hash, sig.R, sig.S)
}

// PublicKeyToBytes converts a public key to its 33-byte compressed form.
func PublicKeyToBytes(pubKey *ecdsa.PublicKey) []byte {
	x := pubKey.X.Bytes()
	prefix := byte(0x02)
	if pubKey.Y.Bit(0) == 1 {
		prefix = 0x03
	}

	paddedX := make([]byte, 33)
	paddedX[0] = prefix
	copy(paddedX[33-len(x):], x)

	return paddedX
}

// BytesToPublicKey parses a 33-byte compressed public key.
func BytesToPublicKey(pubKeyBytes []byte) (*ecdsa.PublicKey, error) {
	if len(pubKeyBytes) != 33 {
		return nil, fmt.Errorf("invalid public key length")
	}

	pubKey, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return nil, err
	}

	return pubKey.ToECDSA(), nil
}

// Hash256 performs double SHA256, the hash function transaction IDs and
// signature digests are built from.
func Hash256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// Hash160 performs SHA256 followed by RIPEMD160, the hash function
// standard P2PKH scripts embed.
func Hash160(data []byte) []byte {
	hash := sha256.Sum256(data)
	ripemd := ripemd160.New()
	ripemd.Write(hash[:])
	return ripemd.Sum(nil)
}
