// Package blockproc is the bounded single-consumer block queue (spec §4.5):
// a fair scheduler keyed by source feeds the single writer that runs the
// ledger validator and inserter for every candidate block the node sees.
// Grounded on the teacher's core.Mempool — a thread-safe bounded pool with
// an insertion-ordered admission list — generalized from one flat queue to
// one bounded queue per source with round-robin draining between them.
package blockproc

import (
	"context"
	"log"
	"sync"

	"github.com/nanospec/nanocore/chainparams"
	"github.com/nanospec/nanocore/events"
	"github.com/nanospec/nanocore/ledger"
	"github.com/nanospec/nanocore/store"
)

// Source identifies where a candidate block came from, for fairness and
// for logging (spec §4.5 "fair scheduler keyed by source").
type Source uint8

const (
	SourceLive Source = iota
	SourceBootstrap
	SourceLocal
	SourceForced
)

func (s Source) String() string {
	switch s {
	case SourceLive:
		return "live"
	case SourceBootstrap:
		return "bootstrap"
	case SourceLocal:
		return "local"
	case SourceForced:
		return "forced"
	default:
		return "unknown"
	}
}

var allSources = [...]Source{SourceLive, SourceBootstrap, SourceLocal, SourceForced}

// Config bounds the processor (spec §4.5 table).
type Config struct {
	MaxQueuedPerSource int
	BatchSize          int
}

// entry is one queued candidate block.
type entry struct {
	block  ledger.Block
	source Source
}

// Processor is the node's sole ledger writer. Exactly one exists per node
// (spec §4.5 "Exactly one block processor exists per node; it is the sole
// writer for the ledger tables").
type Processor struct {
	cfg     Config
	db      store.DB
	params  *chainparams.Params
	emitter *events.Emitter
	weights *ledger.WeightTable
	now     func() uint64

	mu       sync.Mutex
	queues   map[Source][]entry
	overfill map[Source]uint64
	notify   chan struct{}

	unchecked *UncheckedBuffer
}

// New creates a Processor over db. now supplies the validator's wall-clock
// seconds and is injectable so tests can pin it. weights receives the
// representative-weight adjustment of every accepted block (spec §4.4).
func New(cfg Config, db store.DB, params *chainparams.Params, emitter *events.Emitter, weights *ledger.WeightTable, now func() uint64) *Processor {
	return &Processor{
		cfg:       cfg,
		db:        db,
		params:    params,
		emitter:   emitter,
		weights:   weights,
		now:       now,
		queues:    make(map[Source][]entry),
		overfill:  make(map[Source]uint64),
		notify:    make(chan struct{}, 1),
		unchecked: NewUncheckedBuffer(),
	}
}

// Submit enqueues block from source. Returns false if that source's queue
// is full (spec §4.5 "further submissions are dropped with an 'overfill'
// counter increment").
func (p *Processor) Submit(block ledger.Block, source Source) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queues[source]) >= p.cfg.MaxQueuedPerSource {
		p.overfill[source]++
		return false
	}
	p.queues[source] = append(p.queues[source], entry{block: block, source: source})
	select {
	case p.notify <- struct{}{}:
	default:
	}
	return true
}

// Overfill returns the overfill counter for source, for diagnostics.
func (p *Processor) Overfill(source Source) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overfill[source]
}

// pop drains up to n entries from the queues in round-robin source order
// (spec §4.5 step 1 "respecting source fairness").
func (p *Processor) pop(n int) []entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []entry
	for len(out) < n {
		progressed := false
		for _, src := range allSources {
			q := p.queues[src]
			if len(q) == 0 {
				continue
			}
			out = append(out, q[0])
			p.queues[src] = q[1:]
			progressed = true
			if len(out) >= n {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

// Run drives the worker loop until ctx is canceled (spec §4.5 "The
// worker"). It should run in its own goroutine.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.notify:
			p.drainOnce()
		}
	}
}

// drainOnce runs one batch: pop up to BatchSize entries, open one ledger
// Store (one write transaction), validate+insert each, commit once (spec
// §4.5 step 2), then emit the BlockInserted events of the committed batch.
func (p *Processor) drainOnce() {
	batch := p.pop(p.cfg.BatchSize)
	if len(batch) == 0 {
		return
	}
	lstore := ledger.NewStore(p.db)
	var inserted []events.Event
	for _, e := range batch {
		if ev, ok := p.processOne(lstore, e); ok {
			inserted = append(inserted, ev)
		}
	}
	if err := lstore.Commit(); err != nil {
		log.Printf("[blockproc] FATAL: batch commit failed: %v", err)
	} else {
		for _, ev := range inserted {
			p.emitter.Emit(ev)
		}
	}

	// Re-notify in case more entries arrived while this batch ran, or the
	// queues were not fully drained by BatchSize.
	p.mu.Lock()
	more := false
	for _, q := range p.queues {
		if len(q) > 0 {
			more = true
			break
		}
	}
	p.mu.Unlock()
	if more {
		select {
		case p.notify <- struct{}{}:
		default:
		}
	}
}

func (p *Processor) processOne(lstore *ledger.Store, e entry) (events.Event, bool) {
	view, err := lstore.ViewFor(e.block, p.now())
	if err != nil {
		log.Printf("[blockproc] view assembly failed for %s: %v", e.block.Hash(), err)
		return events.Event{}, false
	}
	instr, err := ledger.Validate(e.block, view, p.params)
	if err != nil {
		p.handleRejectOrGap(e, err)
		return events.Event{}, false
	}
	if err := lstore.Apply(instr); err != nil {
		log.Printf("[blockproc] apply failed for %s: %v", e.block.Hash(), err)
		return events.Event{}, false
	}
	if p.weights != nil {
		p.weights.Adjust(instr.OldRepresentative, instr.OldBalance, instr.NewAccount.Representative, instr.NewAccount.Balance)
	}
	p.unchecked.Satisfy(e.block.Hash(), func(dep ledger.Block) {
		p.Submit(dep, e.source)
	})
	return events.Event{
		Type: events.EventBlockInserted,
		Data: map[string]any{
			"hash":     e.block.Hash().Hex(),
			"account":  instr.Account.Hex(),
			"height":   instr.NewAccount.BlockCount,
			"source":   e.source.String(),
			"previous": e.block.Previous().Hex(),
			"is_open":  instr.NewAccount.Open == e.block.Hash(),
		},
	}, true
}

// handleRejectOrGap implements spec §4.5 step 4: non-terminal Gap errors go
// into the unchecked buffer keyed by the missing dependency; everything
// else is terminal and only logged.
func (p *Processor) handleRejectOrGap(e entry, err error) {
	var gap ledger.Gap
	if as(err, &gap) {
		dep := missingDependencyHash(e.block, gap)
		p.unchecked.Add(dep, e.block)
		log.Printf("[blockproc] %s: %v (waiting on %s)", e.block.Hash(), err, dep)
		return
	}
	log.Printf("[blockproc] rejected %s: %v", e.block.Hash(), err)
}

// missingDependencyHash names the hash processOne's dependents are keyed
// on, matching which gap fired (spec §4.5: "keyed by the missing
// dependency").
func missingDependencyHash(block ledger.Block, gap ledger.Gap) string {
	switch gap {
	case ledger.GapSource, ledger.GapEpochOpenPending:
		return ledger.Link(block).Hex()
	default:
		return block.Previous().Hex()
	}
}

// as reports whether err is a ledger.Gap, storing it in target. It is a
// plain type assertion and does not unwrap wrapped errors; ledger.Validate
// returns its Gap values unwrapped.
func as(err error, target *ledger.Gap) bool {
	g, ok := err.(ledger.Gap)
	if !ok {
		return false
	}
	*target = g
	return true
}
