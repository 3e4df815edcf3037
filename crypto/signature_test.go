package crypto

import "testing"

func TestSignAndVerify(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	hash := Hash256([]byte("verify me"))

	sig, err := Sign(priv, hash)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if !Verify(pub, hash, sig) {
		t.Fatalf("Verify rejected a signature produced by Sign")
	}
}

func TestVerifyRejectsWrongHash(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	sig, err := Sign(priv, Hash256([]byte("original")))
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if Verify(pub, Hash256([]byte("tampered")), sig) {
		t.Fatalf("Verify accepted a signature over a different hash")
	}
}

func TestPublicKeyRoundTrip(t *testing.T) {
	_, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	encoded := PublicKeyToBytes(pub)
	decoded, err := BytesToPublicKey(encoded)
	if err != nil {
		t.Fatalf("BytesToPublicKey failed: %v", err)
	}

	if decoded.X.Cmp(pub.X) != 0 || decoded.Y.Cmp(pub.Y) != 0 {
		t.Fatalf("round-tripped public key does not match original")
	}
}

func TestHash160Length(t *testing.T) {
	h := Hash160([]byte("obsidian"))
	if len(h) != 20 {
		t.Fatalf("Hash160 returned %d bytes, want 20", len(h))
	}
}
