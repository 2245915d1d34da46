package crypto

import (
	"testing"

	"github.com/nanospec/nanocore/primitives"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	var hash primitives.BlockHash
	hash[0] = 0xaa
	sig := Sign(priv, hash)
	if err := Verify(pub, hash, sig); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestVerifyTamperedHashFails(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	var hash primitives.BlockHash
	hash[0] = 0xaa
	sig := Sign(priv, hash)
	hash[0] = 0xab
	if err := Verify(pub, hash, sig); err == nil {
		t.Error("expected verification failure on tampered hash")
	}
}

func TestVerifyTamperedSignatureFails(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	var hash primitives.BlockHash
	hash[0] = 0xaa
	sig := Sign(priv, hash)
	sig[0] ^= 0xff
	if err := Verify(pub, hash, sig); err == nil {
		t.Error("expected verification failure on tampered signature")
	}
}

func TestKeyHexRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	priv2, err := PrivKeyFromHex(priv.Hex())
	if err != nil {
		t.Fatalf("PrivKeyFromHex: %v", err)
	}
	if priv2.Hex() != priv.Hex() {
		t.Error("private key hex round trip mismatch")
	}
	pub2, err := PubKeyFromHex(pub.Hex())
	if err != nil {
		t.Fatalf("PubKeyFromHex: %v", err)
	}
	if pub2.Hex() != pub.Hex() {
		t.Error("public key hex round trip mismatch")
	}
}

func TestPublicDerivesFromPrivate(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if priv.Public().Hex() != pub.Hex() {
		t.Error("priv.Public() should match the generated public key")
	}
}

func TestWorkValidateAgainstThreshold(t *testing.T) {
	root := []byte("some-root-bytes-32-long-aaaaaaaa")
	var best Work
	var bestVal uint64
	for i := 0; i < 100000; i++ {
		var w Work
		w[0] = byte(i)
		w[1] = byte(i >> 8)
		w[2] = byte(i >> 16)
		v := w.Value(root)
		if v > bestVal {
			bestVal = v
			best = w
		}
	}
	if !best.Validate(root, Threshold(bestVal)) {
		t.Error("best-found work should validate against its own value as threshold")
	}
	if best.Validate(root, Threshold(bestVal+1)) {
		t.Error("work should not validate against a threshold above its value")
	}
}

func TestWorkRootSelection(t *testing.T) {
	var account primitives.Account
	account[0] = 0x01
	var previous primitives.BlockHash
	previous[0] = 0x02

	if got := WorkRoot(primitives.BlockHash{}, account); string(got) != string(account[:]) {
		t.Error("open block (zero previous) should use account as work root")
	}
	if got := WorkRoot(previous, account); string(got) != string(previous[:]) {
		t.Error("non-open block should use previous hash as work root")
	}
}

func TestAccountReinterpretsPublicKey(t *testing.T) {
	_, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	acct := pub.Account()
	back := KeyFromAccount(acct)
	if back.Hex() != pub.Hex() {
		t.Error("Account/KeyFromAccount round trip mismatch")
	}
}
