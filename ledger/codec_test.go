package ledger

import (
	"testing"

	"github.com/nanospec/nanocore/crypto"
	"github.com/nanospec/nanocore/primitives"
)

func TestStateBlockEncodeDecodeRoundTrip(t *testing.T) {
	b := &StateBlock{
		Balance: primitives.AmountFromUint64(100),
	}
	b.Acct[0] = 0x01
	b.Prev[0] = 0x02
	b.Representative[0] = 0x03
	b.Link[0] = 0x04
	b.Sig[0] = 0x05
	b.W[0] = 0x06

	enc, err := EncodeBlock(b)
	if err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	if len(enc) != EncodedBlockSize(BlockTypeState) {
		t.Errorf("encoded length = %d, want %d", len(enc), EncodedBlockSize(BlockTypeState))
	}
	decoded, err := DecodeBlock(enc)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	sb, ok := decoded.(*StateBlock)
	if !ok {
		t.Fatalf("decoded type = %T, want *StateBlock", decoded)
	}
	if sb.Acct != b.Acct || sb.Prev != b.Prev || sb.Representative != b.Representative ||
		sb.Balance.Cmp(b.Balance) != 0 || sb.Link != b.Link || sb.Sig != b.Sig || sb.W != b.W {
		t.Errorf("round trip mismatch: got %+v, want %+v", sb, b)
	}
}

func TestLegacyBlockEncodeDecodeRoundTrip(t *testing.T) {
	cases := []*LegacyBlock{
		{Kind: BlockTypeLegacySend, Balance: primitives.AmountFromUint64(5)},
		{Kind: BlockTypeLegacyReceive},
		{Kind: BlockTypeLegacyOpen},
		{Kind: BlockTypeLegacyChange},
	}
	for _, b := range cases {
		b.Prev[0] = 0x11
		b.Destination[0] = 0x22
		b.Source[0] = 0x33
		b.Representative[0] = 0x44
		b.Sig[0] = 0x55
		b.W[0] = 0x66
		bound := b.WithAccount(accountWithByte(0x77))

		enc, err := EncodeBlock(bound)
		if err != nil {
			t.Fatalf("EncodeBlock(%v): %v", b.Kind, err)
		}
		if len(enc) != EncodedBlockSize(b.Kind) {
			t.Errorf("%v: encoded length = %d, want %d", b.Kind, len(enc), EncodedBlockSize(b.Kind))
		}
		decoded, err := DecodeBlock(enc)
		if err != nil {
			t.Fatalf("DecodeBlock(%v): %v", b.Kind, err)
		}
		lb, ok := decoded.(*LegacyBlock)
		if !ok {
			t.Fatalf("decoded type = %T, want *LegacyBlock", decoded)
		}
		if lb.Kind != bound.Kind || lb.Sig != bound.Sig || lb.W != bound.W {
			t.Errorf("%v: round trip mismatch on shared fields: got %+v", b.Kind, lb)
		}
		if lb.Account() != bound.Account() {
			t.Errorf("%v: account round trip mismatch: got %x want %x", b.Kind, lb.Account(), bound.Account())
		}
		switch b.Kind {
		case BlockTypeLegacySend:
			if lb.Prev != bound.Prev || lb.Destination != bound.Destination || lb.Balance.Cmp(bound.Balance) != 0 {
				t.Errorf("send fields mismatch: got %+v", lb)
			}
		case BlockTypeLegacyReceive:
			if lb.Prev != bound.Prev || lb.Source != bound.Source {
				t.Errorf("receive fields mismatch: got %+v", lb)
			}
		case BlockTypeLegacyOpen:
			if lb.Source != bound.Source || lb.Representative != bound.Representative {
				t.Errorf("open fields mismatch: got %+v", lb)
			}
		case BlockTypeLegacyChange:
			if lb.Prev != bound.Prev || lb.Representative != bound.Representative {
				t.Errorf("change fields mismatch: got %+v", lb)
			}
		}
	}
}

func accountWithByte(b byte) primitives.Account {
	var a primitives.Account
	a[0] = b
	return a
}

func TestSidebandEncodeDecodeRoundTrip(t *testing.T) {
	sb := &Sideband{
		Height:    7,
		Timestamp: 1234567,
		Balance:   primitives.AmountFromUint64(9000),
		Details: Details{
			Epoch:     primitives.Epoch1,
			IsSend:    true,
			IsReceive: false,
			IsEpoch:   false,
		},
		SourceEpoch: primitives.Epoch0,
	}
	sb.Successor[0] = 0x01
	sb.Account[0] = 0x02

	enc := EncodeSideband(sb)
	decoded, err := DecodeSideband(enc)
	if err != nil {
		t.Fatalf("DecodeSideband: %v", err)
	}
	if decoded.Height != sb.Height || decoded.Timestamp != sb.Timestamp ||
		decoded.Successor != sb.Successor || decoded.Account != sb.Account ||
		decoded.Balance.Cmp(sb.Balance) != 0 || decoded.Details != sb.Details ||
		decoded.SourceEpoch != sb.SourceEpoch {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, sb)
	}
}

func TestDecodeSidebandShortRowErrors(t *testing.T) {
	if _, err := DecodeSideband([]byte{0x01, 0x02}); err == nil {
		t.Error("expected error decoding a truncated sideband row")
	}
}

func TestAccountInfoEncodeDecodeRoundTrip(t *testing.T) {
	info := &AccountInfo{
		Representative:    accountWithByte(0x09),
		Balance:           primitives.AmountFromUint64(42),
		ModifiedTimestamp: 99,
		BlockCount:        3,
		Epoch:             primitives.Epoch2,
	}
	info.Head[0] = 0x01
	info.Open[0] = 0x02

	enc := EncodeAccountInfo(info)
	decoded := DecodeAccountInfo(enc)
	if decoded.Head != info.Head || decoded.Open != info.Open || decoded.Representative != info.Representative ||
		decoded.Balance.Cmp(info.Balance) != 0 || decoded.ModifiedTimestamp != info.ModifiedTimestamp ||
		decoded.BlockCount != info.BlockCount || decoded.Epoch != info.Epoch {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, info)
	}
}

func TestPendingEntryEncodeDecodeRoundTrip(t *testing.T) {
	p := &PendingEntry{
		Source:      accountWithByte(0x05),
		Amount:      primitives.AmountFromUint64(777),
		SourceEpoch: primitives.Epoch1,
	}
	enc := EncodePendingEntry(p)
	decoded := DecodePendingEntry(enc)
	if decoded.Source != p.Source || decoded.Amount.Cmp(p.Amount) != 0 || decoded.SourceEpoch != p.SourceEpoch {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, p)
	}
}

func TestDecodeBlockEmptyRowErrors(t *testing.T) {
	if _, err := DecodeBlock(nil); err == nil {
		t.Error("expected error decoding an empty block row")
	}
}

func TestDecodeBlockUnknownTagErrors(t *testing.T) {
	if _, err := DecodeBlock([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error decoding an unknown block tag")
	}
}

func TestWorkRootUsesStateBlockFields(t *testing.T) {
	b := &StateBlock{}
	b.Acct[0] = 0x01
	if root := crypto.WorkRoot(b.Previous(), b.Account()); string(root) != string(b.Acct[:]) {
		t.Error("open state block should use account as work root")
	}
	b.Prev[0] = 0x02
	if root := crypto.WorkRoot(b.Previous(), b.Account()); string(root) != string(b.Prev[:]) {
		t.Error("non-open state block should use previous hash as work root")
	}
}
