package primitives

import (
	"math/big"
	"testing"
)

func TestAccountHexRoundTrip(t *testing.T) {
	var a Account
	a[0] = 0xde
	a[31] = 0xef
	decoded, err := AccountFromHex(a.Hex())
	if err != nil {
		t.Fatalf("AccountFromHex: %v", err)
	}
	if decoded != a {
		t.Errorf("round trip mismatch: got %x want %x", decoded, a)
	}
}

func TestAccountFromHexBadLength(t *testing.T) {
	if _, err := AccountFromHex("deadbeef"); err == nil {
		t.Error("expected error for short account hex")
	}
}

func TestAccountIsZero(t *testing.T) {
	var a Account
	if !a.IsZero() {
		t.Error("zero-valued Account should be IsZero")
	}
	a[5] = 1
	if a.IsZero() {
		t.Error("non-zero Account should not be IsZero")
	}
}

func TestBlockHashRoundTrip(t *testing.T) {
	var h BlockHash
	h[0] = 0x01
	decoded, err := BlockHashFromHex(h.Hex())
	if err != nil {
		t.Fatalf("BlockHashFromHex: %v", err)
	}
	if decoded != h {
		t.Errorf("round trip mismatch: got %x want %x", decoded, h)
	}
}

func TestAmountAddSub(t *testing.T) {
	a := AmountFromUint64(100)
	b := AmountFromUint64(40)
	sum := a.Add(b)
	if sum.Big().Int64() != 140 {
		t.Errorf("Add: got %s want 140", sum)
	}
	diff := a.Sub(b)
	if diff.Big().Int64() != 60 {
		t.Errorf("Sub: got %s want 60", diff)
	}
}

func TestAmountSubUnderflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on underflow")
		}
	}()
	a := AmountFromUint64(1)
	b := AmountFromUint64(2)
	_ = a.Sub(b)
}

func TestAmountCmp(t *testing.T) {
	a := AmountFromUint64(5)
	b := AmountFromUint64(10)
	if a.Cmp(b) >= 0 {
		t.Error("5 should be less than 10")
	}
	if b.Cmp(a) <= 0 {
		t.Error("10 should be greater than 5")
	}
	if a.Cmp(a) != 0 {
		t.Error("5 should equal 5")
	}
}

func TestAmountFromBigMax128Bits(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	amt := AmountFromBig(max)
	if amt.Big().Cmp(max) != 0 {
		t.Errorf("max 128-bit amount did not round trip: got %s want %s", amt.Big(), max)
	}
}

func TestAmountFromBigOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on overflow")
		}
	}()
	tooBig := new(big.Int).Lsh(big.NewInt(1), 129)
	_ = AmountFromBig(tooBig)
}

func TestZeroAmountIsZero(t *testing.T) {
	if !ZeroAmount.IsZero() {
		t.Error("ZeroAmount should be IsZero")
	}
	if !AmountFromUint64(0).IsZero() {
		t.Error("AmountFromUint64(0) should be IsZero")
	}
}
