package transport

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// TrafficType selects which outbound token bucket a send draws from (spec
// §4.9 "Per traffic-type token bucket (Generic, Bootstrap, Votes, ...)").
type TrafficType uint8

const (
	TrafficGeneric TrafficType = iota
	TrafficBootstrap
	TrafficVotes
)

func (t TrafficType) String() string {
	switch t {
	case TrafficBootstrap:
		return "bootstrap"
	case TrafficVotes:
		return "votes"
	default:
		return "generic"
	}
}

// BandwidthConfig sizes one traffic type's bucket (spec §6 "bandwidth.limit,
// bandwidth.burst_ratio"). Limit is bytes/sec; burst is Limit*BurstRatio.
type BandwidthConfig struct {
	Limit      int
	BurstRatio float64
}

// Limiter is the per-channel, per-traffic-type outbound token bucket (spec
// §4.9, §5 "Outbound token buckets are lock-free per channel"). Built on
// golang.org/x/time/rate, the extended standard library module the pack's
// retrieval already pulls in alongside golang.org/x/crypto, instead of a
// hand-rolled bucket (SPEC_FULL.md DOMAIN STACK).
type Limiter struct {
	buckets map[TrafficType]*rate.Limiter
}

// NewLimiter builds one rate.Limiter per configured traffic type.
func NewLimiter(cfg map[TrafficType]BandwidthConfig) *Limiter {
	buckets := make(map[TrafficType]*rate.Limiter, len(cfg))
	for typ, c := range cfg {
		burst := int(float64(c.Limit) * c.BurstRatio)
		if burst < 1 {
			burst = 1
		}
		buckets[typ] = rate.NewLimiter(rate.Limit(c.Limit), burst)
	}
	return &Limiter{buckets: buckets}
}

func (l *Limiter) bucketFor(typ TrafficType) *rate.Limiter {
	if b, ok := l.buckets[typ]; ok {
		return b
	}
	return rate.NewLimiter(rate.Inf, 1) // unconfigured traffic types are unmetered
}

// AllowDrop reserves n bytes from typ's bucket, returning false immediately
// if unavailable rather than waiting (spec §4.9 "'drop' returns false
// immediately when the bucket is empty").
func (l *Limiter) AllowDrop(typ TrafficType, n int) bool {
	return l.bucketFor(typ).AllowN(time.Now(), n)
}

// WaitNeverDrop blocks until n bytes are available from typ's bucket or ctx
// is canceled (spec §4.9 "'never drop' blocks until tokens are available").
func (l *Limiter) WaitNeverDrop(ctx context.Context, typ TrafficType, n int) error {
	return l.bucketFor(typ).WaitN(ctx, n)
}
