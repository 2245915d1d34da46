package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/nanospec/nanocore/primitives"
)

// Every block variant has a fixed on-disk width once its tag byte is known,
// so EncodeBlock needs no length prefix: DecodeBlock reads the tag, knows
// exactly how many bytes follow, and leaves any remainder (the sideband
// that Store.Apply appends after it) for the caller to decode separately.

const (
	sizeAccount   = 32
	sizeHash      = 32
	sizeAmount    = 16
	sizeSig       = 64
	sizeWork      = 8
	sizeStateBody = sizeAccount + sizeHash + sizeAccount + sizeAmount + sizeHash + sizeSig + sizeWork
)

// EncodeBlock serializes block to its fixed-width on-disk form.
func EncodeBlock(block Block) ([]byte, error) {
	switch b := block.(type) {
	case *StateBlock:
		buf := make([]byte, 1+sizeStateBody)
		buf[0] = byte(BlockTypeState)
		off := 1
		off += copy(buf[off:], b.Acct[:])
		off += copy(buf[off:], b.Prev[:])
		off += copy(buf[off:], b.Representative[:])
		off += copy(buf[off:], b.Balance[:])
		off += copy(buf[off:], b.Link[:])
		off += copy(buf[off:], b.Sig[:])
		copy(buf[off:], b.W[:])
		return buf, nil
	case *LegacyBlock:
		return encodeLegacy(b), nil
	default:
		return nil, fmt.Errorf("ledger: unknown block implementation %T", block)
	}
}

func encodeLegacy(b *LegacyBlock) []byte {
	var body []byte
	switch b.Kind {
	case BlockTypeLegacySend:
		body = concat(b.account[:], b.Prev[:], b.Destination[:], b.Balance[:])
	case BlockTypeLegacyReceive:
		body = concat(b.account[:], b.Prev[:], b.Source[:])
	case BlockTypeLegacyOpen:
		body = concat(b.account[:], b.Source[:], b.Representative[:])
	case BlockTypeLegacyChange:
		body = concat(b.account[:], b.Prev[:], b.Representative[:])
	}
	buf := make([]byte, 0, 1+len(body)+sizeSig+sizeWork)
	buf = append(buf, byte(b.Kind))
	buf = append(buf, body...)
	buf = append(buf, b.Sig[:]...)
	buf = append(buf, b.W[:]...)
	return buf
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// legacyBodySize returns the body width (account + variant-specific fields,
// excluding tag/sig/work) for kind.
func legacyBodySize(kind BlockType) int {
	switch kind {
	case BlockTypeLegacySend:
		return sizeAccount + sizeHash + sizeAccount + sizeAmount
	case BlockTypeLegacyReceive:
		return sizeAccount + sizeHash + sizeHash
	case BlockTypeLegacyOpen:
		return sizeAccount + sizeHash + sizeAccount
	case BlockTypeLegacyChange:
		return sizeAccount + sizeHash + sizeAccount
	default:
		return 0
	}
}

// DecodeBlock reads one block from the front of data and returns it; any
// trailing bytes (the sideband) are left for DecodeSideband.
func DecodeBlock(data []byte) (Block, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("ledger: empty block row")
	}
	tag := BlockType(data[0])
	rest := data[1:]

	if tag == BlockTypeState {
		if len(rest) < sizeStateBody {
			return nil, fmt.Errorf("ledger: short state block row")
		}
		var b StateBlock
		off := 0
		off += copy(b.Acct[:], rest[off:off+sizeAccount])
		off += copy(b.Prev[:], rest[off:off+sizeHash])
		off += copy(b.Representative[:], rest[off:off+sizeAccount])
		off += copy(b.Balance[:], rest[off:off+sizeAmount])
		off += copy(b.Link[:], rest[off:off+sizeHash])
		off += copy(b.Sig[:], rest[off:off+sizeSig])
		copy(b.W[:], rest[off:off+sizeWork])
		return &b, nil
	}

	bodySize := legacyBodySize(tag)
	if bodySize == 0 || len(rest) < bodySize+sizeSig+sizeWork {
		return nil, fmt.Errorf("ledger: unknown or short legacy block row (tag %d)", tag)
	}
	b := LegacyBlock{Kind: tag}
	off := 0
	off += copy(b.account[:], rest[off:off+sizeAccount])
	switch tag {
	case BlockTypeLegacySend:
		off += copy(b.Prev[:], rest[off:off+sizeHash])
		off += copy(b.Destination[:], rest[off:off+sizeAccount])
		off += copy(b.Balance[:], rest[off:off+sizeAmount])
	case BlockTypeLegacyReceive:
		off += copy(b.Prev[:], rest[off:off+sizeHash])
		off += copy(b.Source[:], rest[off:off+sizeHash])
	case BlockTypeLegacyOpen:
		off += copy(b.Source[:], rest[off:off+sizeHash])
		off += copy(b.Representative[:], rest[off:off+sizeAccount])
	case BlockTypeLegacyChange:
		off += copy(b.Prev[:], rest[off:off+sizeHash])
		off += copy(b.Representative[:], rest[off:off+sizeAccount])
	}
	off += copy(b.Sig[:], rest[off:off+sizeSig])
	copy(b.W[:], rest[off:off+sizeWork])
	return &b, nil
}

// EncodedBlockSize returns the on-disk width of a block with the given
// tag, used to locate the sideband appended after it in a blocks-table row.
func EncodedBlockSize(tag BlockType) int {
	if tag == BlockTypeState {
		return 1 + sizeStateBody
	}
	return 1 + legacyBodySize(tag) + sizeSig + sizeWork
}

const sizeDetails = 1 + 1 + 1 + 1 // epoch, is_send, is_receive, is_epoch
const sizeSideband = 8 + 8 + sizeHash + sizeAccount + sizeAmount + sizeDetails + 1

// EncodeSideband serializes a Sideband to its fixed-width on-disk form
// (spec §3 "Sideband"; field order grounded on the original
// implementation's BlockSideband layout).
func EncodeSideband(sb *Sideband) []byte {
	buf := make([]byte, sizeSideband)
	binary.BigEndian.PutUint64(buf[0:8], sb.Height)
	binary.BigEndian.PutUint64(buf[8:16], sb.Timestamp)
	off := 16
	off += copy(buf[off:], sb.Successor[:])
	off += copy(buf[off:], sb.Account[:])
	off += copy(buf[off:], sb.Balance[:])
	buf[off] = byte(sb.Details.Epoch)
	buf[off+1] = boolByte(sb.Details.IsSend)
	buf[off+2] = boolByte(sb.Details.IsReceive)
	buf[off+3] = boolByte(sb.Details.IsEpoch)
	off += sizeDetails
	buf[off] = byte(sb.SourceEpoch)
	return buf
}

// DecodeSideband reads a Sideband from data (typically the tail of a
// blocks-table row, after EncodedBlockSize(tag) bytes of block body).
func DecodeSideband(data []byte) (Sideband, error) {
	if len(data) < sizeSideband {
		return Sideband{}, fmt.Errorf("ledger: short sideband row")
	}
	var sb Sideband
	sb.Height = binary.BigEndian.Uint64(data[0:8])
	sb.Timestamp = binary.BigEndian.Uint64(data[8:16])
	off := 16
	copy(sb.Successor[:], data[off:off+sizeHash])
	off += sizeHash
	copy(sb.Account[:], data[off:off+sizeAccount])
	off += sizeAccount
	copy(sb.Balance[:], data[off:off+sizeAmount])
	off += sizeAmount
	sb.Details.Epoch = primitives.Epoch(data[off])
	sb.Details.IsSend = data[off+1] != 0
	sb.Details.IsReceive = data[off+2] != 0
	sb.Details.IsEpoch = data[off+3] != 0
	off += sizeDetails
	sb.SourceEpoch = primitives.Epoch(data[off])
	return sb, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

const sizeAccountInfo = sizeHash + sizeHash + sizeAccount + sizeAmount + 8 + 8 + 1

// EncodeAccountInfo serializes an AccountInfo row (spec §3 "Account info").
func EncodeAccountInfo(info *AccountInfo) []byte {
	buf := make([]byte, sizeAccountInfo)
	off := 0
	off += copy(buf[off:], info.Head[:])
	off += copy(buf[off:], info.Open[:])
	off += copy(buf[off:], info.Representative[:])
	off += copy(buf[off:], info.Balance[:])
	binary.BigEndian.PutUint64(buf[off:off+8], info.ModifiedTimestamp)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], info.BlockCount)
	off += 8
	buf[off] = byte(info.Epoch)
	return buf
}

// DecodeAccountInfo deserializes an AccountInfo row. Callers distinguish
// "account unopened" by checking store.ErrNotFound before calling this.
func DecodeAccountInfo(data []byte) AccountInfo {
	var info AccountInfo
	off := 0
	copy(info.Head[:], data[off:off+sizeHash])
	off += sizeHash
	copy(info.Open[:], data[off:off+sizeHash])
	off += sizeHash
	copy(info.Representative[:], data[off:off+sizeAccount])
	off += sizeAccount
	copy(info.Balance[:], data[off:off+sizeAmount])
	off += sizeAmount
	info.ModifiedTimestamp = binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	info.BlockCount = binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	info.Epoch = primitives.Epoch(data[off])
	return info
}

const sizePendingEntry = sizeAccount + sizeAmount + 1

// EncodePendingEntry serializes a PendingEntry row.
func EncodePendingEntry(p *PendingEntry) []byte {
	buf := make([]byte, sizePendingEntry)
	off := 0
	off += copy(buf[off:], p.Source[:])
	off += copy(buf[off:], p.Amount[:])
	buf[off] = byte(p.SourceEpoch)
	return buf
}

// DecodePendingEntry deserializes a PendingEntry row.
func DecodePendingEntry(data []byte) PendingEntry {
	var p PendingEntry
	off := 0
	copy(p.Source[:], data[off:off+sizeAccount])
	off += sizeAccount
	copy(p.Amount[:], data[off:off+sizeAmount])
	off += sizeAmount
	p.SourceEpoch = primitives.Epoch(data[off])
	return p
}
