package vote

import (
	"fmt"

	"github.com/nanospec/nanocore/primitives"
)

// EncodeVote serializes v as account(32) || timestamp(8) || hash_count(1) ||
// hashes(32 each) || signature(64), the ConfirmAck payload body (spec
// §4.9 "ConfirmAck (a vote)").
func EncodeVote(v *Vote) []byte {
	buf := make([]byte, 0, 32+8+1+len(v.Hashes)*32+64)
	buf = append(buf, v.Account[:]...)
	var ts [8]byte
	putUint64(ts[:], v.Timestamp)
	buf = append(buf, ts[:]...)
	buf = append(buf, byte(len(v.Hashes)))
	for _, h := range v.Hashes {
		buf = append(buf, h[:]...)
	}
	buf = append(buf, v.Signature[:]...)
	return buf
}

// DecodeVote parses a ConfirmAck payload.
func DecodeVote(data []byte) (*Vote, error) {
	const head = 32 + 8 + 1
	if len(data) < head {
		return nil, fmt.Errorf("vote: short payload (%d bytes)", len(data))
	}
	v := &Vote{}
	copy(v.Account[:], data[:32])
	v.Timestamp = getUint64(data[32:40])
	count := int(data[40])
	if count == 0 || count > MaxHashesPerVote {
		return nil, fmt.Errorf("vote: bad hash count %d", count)
	}
	want := head + count*32 + primitives.SignatureSize
	if len(data) != want {
		return nil, fmt.Errorf("vote: payload length %d, want %d", len(data), want)
	}
	off := head
	v.Hashes = make([]primitives.BlockHash, count)
	for i := 0; i < count; i++ {
		copy(v.Hashes[i][:], data[off:off+32])
		off += 32
	}
	copy(v.Signature[:], data[off:])
	return v, nil
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
