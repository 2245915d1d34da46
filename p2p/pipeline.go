package p2p

import (
	"context"
	"log"

	"github.com/nanospec/nanocore/blockproc"
	"github.com/nanospec/nanocore/chainparams"
	"github.com/nanospec/nanocore/election"
	"github.com/nanospec/nanocore/ledger"
	"github.com/nanospec/nanocore/primitives"
	"github.com/nanospec/nanocore/transport"
	"github.com/nanospec/nanocore/vote"
)

// PipelineConfig bounds the admission queue and duplicate-filter sizing
// (spec §6 "block_processor.max_queued_per_source" family applied to the
// transport layer's own queue).
type PipelineConfig struct {
	QueueCapacity      int
	DedupMaxElements   uint64
	KeepaliveFanoutLen int
}

// Pipeline implements spec §4.10: ingress validation per channel, a
// duplicate-publish filter, a bounded priority admission queue, and a
// worker pool dispatching admitted frames to their destination subsystem.
// Grounded on the teacher's network.Node handler table, split here into an
// admit stage (runs inline on each channel's read goroutine) and a dispatch
// stage (runs on dedicated worker goroutines), matching spec §5's "network
// I/O... must never perform a blocking ledger write on the reactor".
type Pipeline struct {
	cfg    PipelineConfig
	params *chainparams.Params

	registry *transport.Registry
	queue    *AdmissionQueue
	dedup    *DedupFilter

	blocks  *blockproc.Processor
	votes   *vote.Router
	elect   *election.Engine
	peers   *PeerStore
	rep     *Representative

	stopCh chan struct{}
}

// New wires a Pipeline over registry, dispatching to the given subsystems.
// rep may be nil on a non-voting node.
func New(cfg PipelineConfig, params *chainparams.Params, registry *transport.Registry, blocks *blockproc.Processor, votes *vote.Router, elect *election.Engine, peers *PeerStore, rep *Representative) (*Pipeline, error) {
	dedup, err := NewDedupFilter(cfg.DedupMaxElements)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:      cfg,
		params:   params,
		registry: registry,
		queue:    NewAdmissionQueue(cfg.QueueCapacity),
		dedup:    dedup,
		blocks:   blocks,
		votes:    votes,
		elect:    elect,
		peers:    peers,
		rep:      rep,
		stopCh:   make(chan struct{}),
	}
	for _, t := range []transport.MessageType{
		transport.MessagePublish,
		transport.MessageConfirmReq,
		transport.MessageConfirmAck,
		transport.MessageKeepalive,
		transport.MessageTelemetryReq,
		transport.MessageTelemetryAck,
		transport.MessageBulkPull,
		transport.MessageBulkPullAccount,
		transport.MessageBulkPush,
		transport.MessageFrontierReq,
		transport.MessageAscPullReq,
		transport.MessageAscPullAck,
	} {
		registry.Handle(t, p.admit)
	}
	return p, nil
}

// admit runs inline on the channel's read goroutine: validate the header's
// network/version window, drop duplicate Publish payloads pre-parse, then
// push onto the bounded admission queue (spec §4.10's ingress stage).
func (p *Pipeline) admit(ch *transport.Channel, h transport.Header, payload []byte) {
	if chainparams.Network(h.Network) != p.params.Network {
		return
	}
	if h.VersionUsing < transport.ProtocolVersionMin || h.VersionMin > transport.ProtocolVersion {
		return
	}
	if h.Type == transport.MessagePublish && p.dedup.Seen(payload) {
		return
	}
	p.queue.Push(inbound{ch: ch, header: h, payload: payload})
}

// Run drains the admission queue on count worker goroutines until ctx is
// canceled.
func (p *Pipeline) Run(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(p.stopCh)
		close(done)
	}()
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	<-done
}

func (p *Pipeline) worker() {
	for {
		item, ok := p.queue.Pop(p.stopCh)
		if !ok {
			return
		}
		p.dispatch(item)
	}
}

// dispatch implements spec §4.10's routing table.
func (p *Pipeline) dispatch(item inbound) {
	switch item.header.Type {
	case transport.MessagePublish:
		p.dispatchPublish(item)
	case transport.MessageConfirmReq:
		p.dispatchConfirmReq(item)
	case transport.MessageConfirmAck:
		p.dispatchConfirmAck(item)
	case transport.MessageKeepalive:
		p.dispatchKeepalive(item)
	case transport.MessageTelemetryReq:
		p.dispatchTelemetryReq(item)
	case transport.MessageTelemetryAck:
		// Telemetry exchange has no reaction on receipt in this node
		// (nothing is stored or logged); a full telemetry store is bootstrap-
		// adjacent and out of scope (spec §1 non-goal "no bootstrap-
		// strategy heuristics").
	case transport.MessageBulkPull, transport.MessageBulkPullAccount,
		transport.MessageBulkPush, transport.MessageFrontierReq,
		transport.MessageAscPullReq, transport.MessageAscPullAck:
		log.Printf("[p2p] bootstrap message %s from channel %d ignored (no bootstrap server wired)", item.header.Type, item.ch.ID)
	}
}

func (p *Pipeline) dispatchPublish(item inbound) {
	blk, err := ledger.DecodeBlock(item.payload)
	if err != nil {
		log.Printf("[p2p] bad publish payload from channel %d: %v", item.ch.ID, err)
		return
	}
	p.blocks.Submit(blk, blockproc.SourceLive)
}

func (p *Pipeline) dispatchConfirmReq(item inbound) {
	if len(item.payload) > 0 && item.payload[0] == confirmReqKindBlock {
		blk, err := ledger.DecodeBlock(item.payload[1:])
		if err != nil {
			log.Printf("[p2p] bad confirm_req block from channel %d: %v", item.ch.ID, err)
			return
		}
		p.blocks.Submit(blk, blockproc.SourceLive)
		if p.rep != nil {
			p.reply(item.ch, p.rep.VoteFor([]primitives.BlockHash{blk.Hash()}))
		}
		return
	}

	pairs, err := DecodeConfirmReqRoots(item.payload)
	if err != nil {
		log.Printf("[p2p] bad confirm_req root list from channel %d: %v", item.ch.ID, err)
		return
	}
	if p.rep == nil {
		return
	}
	hashes := make([]primitives.BlockHash, 0, len(pairs))
	for _, pr := range pairs {
		hashes = append(hashes, pr.Hash)
	}
	p.reply(item.ch, p.rep.VoteFor(hashes))
}

func (p *Pipeline) dispatchConfirmAck(item inbound) {
	v, err := vote.DecodeVote(item.payload)
	if err != nil {
		log.Printf("[p2p] bad confirm_ack from channel %d: %v", item.ch.ID, err)
		return
	}
	if err := p.votes.Process(v); err != nil {
		log.Printf("[p2p] vote from channel %d: %v", item.ch.ID, err)
	}
}

func (p *Pipeline) dispatchKeepalive(item inbound) {
	endpoints, err := DecodeKeepalive(item.payload)
	if err != nil {
		log.Printf("[p2p] bad keepalive from channel %d: %v", item.ch.ID, err)
		return
	}
	for _, ep := range endpoints {
		p.peers.Observe(ep)
	}
}

func (p *Pipeline) dispatchTelemetryReq(item inbound) {
	ack := EncodeTelemetryAck(p.params)
	hdr := transport.Header{Type: transport.MessageTelemetryAck}
	if err := item.ch.Send(hdr, ack, transport.TrafficGeneric, false); err != nil {
		log.Printf("[p2p] send telemetry_ack on channel %d: %v", item.ch.ID, err)
	}
}

func (p *Pipeline) reply(ch *transport.Channel, v *vote.Vote) {
	hdr := transport.Header{Type: transport.MessageConfirmAck}
	if err := ch.Send(hdr, vote.EncodeVote(v), transport.TrafficVotes, false); err != nil {
		log.Printf("[p2p] send confirm_ack on channel %d: %v", ch.ID, err)
	}
}
