package p2p

import (
	"fmt"

	"github.com/nanospec/nanocore/chainparams"
	"github.com/nanospec/nanocore/ledger"
	"github.com/nanospec/nanocore/primitives"
	"github.com/nanospec/nanocore/transport"
)

// confirmReqKindBlock tags a ConfirmReq payload carrying a full candidate
// block rather than a root-hash pair list (spec §4.9 "ConfirmReq (either a
// block or up to 12 (root,hash) pairs asking for a vote)"). A pair-list
// payload's first byte is instead its pair count, which is always >= 1, so
// the zero tag unambiguously marks the block variant.
const confirmReqKindBlock = 0x00

// ConfirmReqPair is one (qualified root, candidate hash) entry of a
// root-hash-list ConfirmReq: root is the previous hash for a non-open
// candidate or the account for an open one, matching
// election.QualifiedRoot's two forms collapsed onto the wire as one
// 32-byte value (the pipeline only needs Hash to ask the vote generator
// for a vote; Root is carried so a future responder could disambiguate a
// hash across two different roots).
type ConfirmReqPair struct {
	Root primitives.BlockHash
	Hash primitives.BlockHash
}

// maxConfirmReqPairs mirrors vote.MaxHashesPerVote (spec §4.9, §8 "maximum
// hashes per vote = 12"): a ConfirmReq never asks for more votes than a
// single ConfirmAck could carry back.
const maxConfirmReqPairs = 12

// EncodeConfirmReqBlock builds a block-carrying ConfirmReq payload.
func EncodeConfirmReqBlock(blk ledger.Block) ([]byte, error) {
	body, err := ledger.EncodeBlock(blk)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 1+len(body))
	buf = append(buf, confirmReqKindBlock)
	buf = append(buf, body...)
	return buf, nil
}

// EncodeConfirmReqRoots builds a root-hash-list ConfirmReq payload.
func EncodeConfirmReqRoots(pairs []ConfirmReqPair) ([]byte, error) {
	if len(pairs) == 0 || len(pairs) > maxConfirmReqPairs {
		return nil, fmt.Errorf("p2p: confirm_req root list must have 1-%d pairs, got %d", maxConfirmReqPairs, len(pairs))
	}
	buf := make([]byte, 0, 1+len(pairs)*64)
	buf = append(buf, byte(len(pairs)))
	for _, p := range pairs {
		buf = append(buf, p.Root[:]...)
		buf = append(buf, p.Hash[:]...)
	}
	return buf, nil
}

// DecodeConfirmReqRoots parses a root-hash-list ConfirmReq payload (the
// caller has already ruled out the block variant via confirmReqKindBlock).
func DecodeConfirmReqRoots(payload []byte) ([]ConfirmReqPair, error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("p2p: empty confirm_req payload")
	}
	count := int(payload[0])
	if count == 0 || count > maxConfirmReqPairs {
		return nil, fmt.Errorf("p2p: bad confirm_req pair count %d", count)
	}
	want := 1 + count*64
	if len(payload) != want {
		return nil, fmt.Errorf("p2p: confirm_req payload length %d, want %d", len(payload), want)
	}
	out := make([]ConfirmReqPair, count)
	off := 1
	for i := 0; i < count; i++ {
		copy(out[i].Root[:], payload[off:off+32])
		copy(out[i].Hash[:], payload[off+32:off+64])
		off += 64
	}
	return out, nil
}

// sizeTelemetryAck is the fixed width of a TelemetryAck payload: protocol
// version, network selector, peering port, and the genesis block hash
// (spec §4.10 "TelemetryReq/Ack"; fields grounded on what a peer needs to
// sanity-check it is talking to a compatible node on the same network,
// the same subset chainparams.Params already tracks).
const sizeTelemetryAck = 1 + 1 + 2 + 32

// EncodeTelemetryAck builds this node's TelemetryAck payload from the
// network parameters selected at startup.
func EncodeTelemetryAck(params *chainparams.Params) []byte {
	buf := make([]byte, sizeTelemetryAck)
	buf[0] = transport.ProtocolVersion
	buf[1] = byte(params.Network)
	buf[2] = byte(params.PeeringPort >> 8)
	buf[3] = byte(params.PeeringPort)
	copy(buf[4:], params.GenesisBlockHash[:])
	return buf
}

// TelemetryAck is the decoded form of a peer's TelemetryAck payload.
type TelemetryAck struct {
	ProtocolVersion uint8
	Network         chainparams.Network
	PeeringPort     uint16
	GenesisBlock    primitives.BlockHash
}

// DecodeTelemetryAck parses a TelemetryAck payload.
func DecodeTelemetryAck(data []byte) (TelemetryAck, error) {
	if len(data) != sizeTelemetryAck {
		return TelemetryAck{}, fmt.Errorf("p2p: bad telemetry_ack length %d", len(data))
	}
	ack := TelemetryAck{
		ProtocolVersion: data[0],
		Network:         chainparams.Network(data[1]),
		PeeringPort:     uint16(data[2])<<8 | uint16(data[3]),
	}
	copy(ack.GenesisBlock[:], data[4:])
	return ack, nil
}
