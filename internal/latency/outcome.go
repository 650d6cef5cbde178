// Package latency implements the concurrent latency measurement engine:
// bounded per-target sampling with early termination, parallel execution
// across targets and threshold classification of the best result.
package latency

import (
	"context"
	"math"
	"net/netip"
)

// Target is a probe destination together with the host string it was
// resolved from.
type Target struct {
	Host string
	Addr netip.Addr
}

// Outcome is the result of a single probe attempt: either a measured
// round-trip time in seconds or no reply.
type Outcome struct {
	seconds float64
	replied bool
}

// Reply returns an outcome carrying a measured latency in seconds.
func Reply(seconds float64) Outcome {
	return Outcome{seconds: seconds, replied: true}
}

// NoReply returns the outcome of a probe that got no answer in time.
func NoReply() Outcome {
	return Outcome{}
}

// Latency returns the measured latency and whether the probe was answered.
func (o Outcome) Latency() (float64, bool) {
	return o.seconds, o.replied
}

// Replied reports whether the probe was answered.
func (o Outcome) Replied() bool {
	return o.replied
}

// Best is the minimum latency observed for one target. The zero value holds
// no latency.
type Best struct {
	seconds float64
	valid   bool
}

// Some returns a Best holding the given latency.
func Some(seconds float64) Best {
	return Best{seconds: seconds, valid: true}
}

// None returns an empty Best.
func None() Best {
	return Best{}
}

// Value returns the latency and whether one is set.
func (b Best) Value() (float64, bool) {
	return b.seconds, b.valid
}

// Valid reports whether a latency is set.
func (b Best) Valid() bool {
	return b.valid
}

// Update folds one outcome into b. Replies lower the value or leave it
// unchanged; no-reply and NaN outcomes never touch it.
func (b Best) Update(o Outcome) Best {
	v, ok := o.Latency()
	if !ok || math.IsNaN(v) {
		return b
	}
	if !b.valid || v < b.seconds {
		return Some(v)
	}
	return b
}

// ShouldContinue reports whether sampling of a target goes on after o was
// consumed. Only a reply strictly below cutoff stops it.
func ShouldContinue(o Outcome, cutoff float64) bool {
	v, ok := o.Latency()
	if !ok {
		return true
	}
	return !(v < cutoff)
}

// Sequence is a lazy, possibly infinite stream of probe outcomes for one
// target, yielded in send order. Next blocks while a probe is in flight and
// returns false once the stream is exhausted.
type Sequence interface {
	Next(ctx context.Context) (Outcome, bool)
}

// Transport opens outcome sequences for target addresses. Open fails only
// when the underlying probe mechanism cannot be set up.
type Transport interface {
	Open(addr netip.Addr) (Sequence, error)
}
