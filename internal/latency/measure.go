package latency

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/netip"

	"golang.org/x/sync/errgroup"
)

// ResultSet holds one Sample per target, in target order.
type ResultSet []Sample

// Bests returns the best latency of every target in order.
func (rs ResultSet) Bests() []Best {
	out := make([]Best, len(rs))
	for i, s := range rs {
		out[i] = s.Best
	}
	return out
}

// SetupError reports that a probe transport could not be created. It aborts
// the whole measurement before any probe is sent.
type SetupError struct {
	Addr netip.Addr
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("cannot create ICMP socket for %s - missing privileges?: %v", e.Addr, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Measure opens one sequence per target and samples all of them
// concurrently. Every sequence is opened before the first probe goes out; a
// failing Open closes the sequences opened so far and returns a *SetupError.
// An empty target list yields an empty ResultSet without using tr.
func Measure(ctx context.Context, tr Transport, targets []Target, cutoff float64) (ResultSet, error) {
	if len(targets) == 0 {
		return ResultSet{}, nil
	}

	seqs := make([]Sequence, 0, len(targets))
	for _, t := range targets {
		seq, err := tr.Open(t.Addr)
		if err != nil {
			closeAll(seqs)
			return nil, &SetupError{Addr: t.Addr, Err: err}
		}
		seqs = append(seqs, seq)
	}
	defer closeAll(seqs)

	return MeasureSequences(ctx, seqs, cutoff), nil
}

// MeasureSequences samples every sequence in its own goroutine and returns
// once all of them have concluded.
func MeasureSequences(ctx context.Context, seqs []Sequence, cutoff float64) ResultSet {
	results := make(ResultSet, len(seqs))
	if len(seqs) == 0 {
		return results
	}

	var g errgroup.Group
	for i, seq := range seqs {
		i, seq := i, seq
		g.Go(func() error {
			results[i] = SampleSequence(ctx, seq, cutoff)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func closeAll(seqs []Sequence) {
	for _, seq := range seqs {
		c, ok := seq.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			slog.Debug("close probe sequence failed", "error", err)
		}
	}
}
