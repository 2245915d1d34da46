package p2p

import (
	"sync"

	"github.com/nanospec/nanocore/transport"
)

// inbound is one parsed-header frame waiting for the pipeline worker.
type inbound struct {
	ch      *transport.Channel
	header  transport.Header
	payload []byte
}

// priorityOf ranks a message type for admission-queue overflow (spec §4.10
// "Keepalive < Telemetry < Publish < ConfirmReq < ConfirmAck"); higher
// values survive overload longer.
func priorityOf(t transport.MessageType) int {
	switch t {
	case transport.MessageConfirmAck:
		return 4
	case transport.MessageConfirmReq:
		return 3
	case transport.MessagePublish:
		return 2
	case transport.MessageTelemetryReq, transport.MessageTelemetryAck:
		return 1
	case transport.MessageKeepalive:
		return 0
	default:
		return 1
	}
}

// AdmissionQueue is the bounded inbound queue the message pipeline worker
// drains (spec §4.10, §5 "per-channel fair queue... drained by the message
// pipeline worker"). On overflow the lowest-priority frame already queued
// is evicted to make room for an admitted one, rather than rejecting the
// new arrival outright, so a burst of low-priority traffic cannot starve
// out the high-priority types that follow it.
type AdmissionQueue struct {
	cap int

	mu       sync.Mutex
	notEmpty chan struct{}
	items    []inbound
	overflow uint64
}

// NewAdmissionQueue creates a queue bounded to capacity frames.
func NewAdmissionQueue(capacity int) *AdmissionQueue {
	return &AdmissionQueue{cap: capacity, notEmpty: make(chan struct{}, 1)}
}

// Push admits item, evicting the current lowest-priority item (the oldest
// among equals) if the queue is full and item ranks at or above it; item
// then joins the tail. Returns false if item itself was the one dropped.
func (q *AdmissionQueue) Push(item inbound) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) < q.cap {
		q.items = append(q.items, item)
		q.signal()
		return true
	}

	worstIdx, worstPri := -1, priorityOf(item.header.Type)+1
	for i, it := range q.items {
		p := priorityOf(it.header.Type)
		if p < worstPri {
			worstPri = p
			worstIdx = i
		}
	}
	if worstIdx < 0 {
		q.overflow++
		return false // item is itself the lowest priority in play
	}
	q.items = append(q.items[:worstIdx], q.items[worstIdx+1:]...)
	q.items = append(q.items, item)
	q.overflow++
	q.signal()
	return true
}

func (q *AdmissionQueue) signal() {
	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
}

// Pop removes and returns the next item in FIFO arrival order, blocking on
// stop until one is available or the queue is stopped.
func (q *AdmissionQueue) Pop(stop <-chan struct{}) (inbound, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		q.mu.Unlock()

		select {
		case <-q.notEmpty:
		case <-stop:
			return inbound{}, false
		}
	}
}

// Overflow returns the running count of dropped frames (spec §4.10
// "Dropped frames increment an overflow counter").
func (q *AdmissionQueue) Overflow() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.overflow
}
