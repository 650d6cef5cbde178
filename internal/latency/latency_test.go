package latency

import (
	"context"
	"errors"
	"math"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noReply marks a lost probe in fake outcome lists.
const noReply = -1.0

type fakeSequence struct {
	mu       sync.Mutex
	outcomes []Outcome
	consumed int
	closed   bool
}

func fake(values ...float64) *fakeSequence {
	s := &fakeSequence{}
	for _, v := range values {
		if v == noReply {
			s.outcomes = append(s.outcomes, NoReply())
		} else {
			s.outcomes = append(s.outcomes, Reply(v))
		}
	}
	return s
}

func (s *fakeSequence) Next(ctx context.Context) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed >= len(s.outcomes) {
		return Outcome{}, false
	}
	o := s.outcomes[s.consumed]
	s.consumed++
	return o, true
}

func (s *fakeSequence) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func sequences(fakes ...*fakeSequence) []Sequence {
	out := make([]Sequence, len(fakes))
	for i, f := range fakes {
		out[i] = f
	}
	return out
}

func requireBests(t *testing.T, rs ResultSet, expected ...Best) {
	t.Helper()
	require.Len(t, rs, len(expected))
	assert.Equal(t, expected, rs.Bests())
}

func TestMeasureSingleton(t *testing.T) {
	rs := MeasureSequences(context.Background(), sequences(fake(54.1), fake(0.2)), 1e2)
	requireBests(t, rs, Some(54.1), Some(0.2))
}

func TestMeasureCollectsMinimum(t *testing.T) {
	rs := MeasureSequences(context.Background(), sequences(
		fake(54.1, 53.0, 53.5),
		fake(noReply, 0.3, 0.2),
		fake(1.0, 2.5, 3.0),
		fake(noReply, noReply, noReply),
	), 1e-2)
	requireBests(t, rs, Some(53.0), Some(0.2), Some(1.0), None())
}

func TestMeasureFirstReplyBelowLargeCutoff(t *testing.T) {
	seq := fake(4.0, 4.0, 4.0, 4.0, 4.0, 2.0)
	rs := MeasureSequences(context.Background(), sequences(seq), 1e2)
	requireBests(t, rs, Some(4.0))
	assert.Equal(t, 1, seq.consumed)
}

func TestMeasureAttemptCap(t *testing.T) {
	seq := fake(4.0, 4.0, 4.0, 4.0, 4.0, 2.0)
	rs := MeasureSequences(context.Background(), sequences(seq), 1.0)
	requireBests(t, rs, Some(4.0))
	assert.Equal(t, MaxAttempts, seq.consumed)
	assert.Equal(t, MaxAttempts, rs[0].Attempts)
	assert.Equal(t, MaxAttempts, rs[0].Replies)
}

func TestMeasureAttemptCapCountsNoReplies(t *testing.T) {
	seq := fake(noReply, noReply, noReply, noReply, noReply, 0.001)
	rs := MeasureSequences(context.Background(), sequences(seq), 1)
	requireBests(t, rs, None())
	assert.Equal(t, MaxAttempts, seq.consumed)
	assert.Equal(t, 0, rs[0].Replies)
}

func TestMeasureStopsBelowCutoff(t *testing.T) {
	seq := fake(9.0, 8.0, 7.0, 6.0)
	rs := MeasureSequences(context.Background(), sequences(seq), 8.0)
	requireBests(t, rs, Some(7.0))
	assert.Equal(t, 3, seq.consumed, "sampling must halt at the first value below cutoff")
}

func TestMeasureMultiCutoff(t *testing.T) {
	rs := MeasureSequences(context.Background(), sequences(
		fake(7, 6, 5, 4),
		fake(8, 7, 6, 5),
		fake(9, 8, 7, 6),
	), 5.1)
	requireBests(t, rs, Some(5.0), Some(5.0), Some(6.0))
}

func TestMeasureFirstReplyBelowCutoff(t *testing.T) {
	seq := fake(noReply, 0.01, 0.005)
	rs := MeasureSequences(context.Background(), sequences(seq), 0.05)
	requireBests(t, rs, Some(0.01))
	assert.Equal(t, 2, rs[0].Attempts)
	assert.Equal(t, 1, rs[0].Replies)
}

func TestMeasureValueEqualToCutoffContinues(t *testing.T) {
	seq := fake(5.0, 5.0, 4.0)
	rs := MeasureSequences(context.Background(), sequences(seq), 5.0)
	requireBests(t, rs, Some(4.0))
	assert.Equal(t, 3, seq.consumed)
}

func TestMeasureNaNNeitherStopsNorBecomesBest(t *testing.T) {
	seq := fake(math.NaN(), 3.0, math.NaN())
	rs := MeasureSequences(context.Background(), sequences(seq), 1.0)
	requireBests(t, rs, Some(3.0))
	assert.Equal(t, 3, seq.consumed)
}

func TestMeasureTargetsAreIndependent(t *testing.T) {
	fast := fake(0.001, 0.001, 0.001)
	slow := fake(1, 1, 1, 1, 1, 1, 1)
	rs := MeasureSequences(context.Background(), sequences(fast, slow), 0.01)
	requireBests(t, rs, Some(0.001), Some(1.0))
	assert.Equal(t, 1, fast.consumed)
	assert.Equal(t, MaxAttempts, slow.consumed)
}

// gatedSequence blocks its first Next until release is closed.
type gatedSequence struct {
	release <-chan struct{}
	waited  bool
	inner   Sequence
}

func (g *gatedSequence) Next(ctx context.Context) (Outcome, bool) {
	if !g.waited {
		g.waited = true
		select {
		case <-g.release:
		case <-time.After(5 * time.Second):
			return Outcome{}, false
		}
	}
	return g.inner.Next(ctx)
}

// signalSequence closes started on its first Next.
type signalSequence struct {
	once    sync.Once
	started chan struct{}
	inner   Sequence
}

func (s *signalSequence) Next(ctx context.Context) (Outcome, bool) {
	s.once.Do(func() { close(s.started) })
	return s.inner.Next(ctx)
}

func TestMeasureRunsTargetsConcurrently(t *testing.T) {
	started := make(chan struct{})
	// The first target can only make progress once the second one started.
	first := &gatedSequence{release: started, inner: fake(0.2)}
	second := &signalSequence{started: started, inner: fake(0.3)}

	rs := MeasureSequences(context.Background(), []Sequence{first, second}, 0)
	requireBests(t, rs, Some(0.2), Some(0.3))
}

type fakeTransport struct {
	mu     sync.Mutex
	seqs   map[netip.Addr]*fakeSequence
	fail   map[netip.Addr]error
	opened []netip.Addr
}

func (f *fakeTransport) Open(addr netip.Addr) (Sequence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, addr)
	if err := f.fail[addr]; err != nil {
		return nil, err
	}
	return f.seqs[addr], nil
}

func targets(addrs ...string) []Target {
	out := make([]Target, len(addrs))
	for i, a := range addrs {
		out[i] = Target{Host: a, Addr: netip.MustParseAddr(a)}
	}
	return out
}

func TestMeasureEmptyTargets(t *testing.T) {
	tr := &fakeTransport{}
	rs, err := Measure(context.Background(), tr, nil, 1)
	require.NoError(t, err)
	assert.NotNil(t, rs)
	assert.Empty(t, rs)
	assert.Empty(t, tr.opened, "transport must not be used without targets")
}

func TestMeasureOpensEveryTarget(t *testing.T) {
	a, b := netip.MustParseAddr("192.0.2.1"), netip.MustParseAddr("2001:db8::1")
	seqA, seqB := fake(0.02), fake(noReply, 0.03)
	tr := &fakeTransport{seqs: map[netip.Addr]*fakeSequence{a: seqA, b: seqB}}

	rs, err := Measure(context.Background(), tr, targets("192.0.2.1", "2001:db8::1"), 0.01)
	require.NoError(t, err)
	requireBests(t, rs, Some(0.02), Some(0.03))
	assert.Equal(t, []netip.Addr{a, b}, tr.opened)
	assert.True(t, seqA.closed)
	assert.True(t, seqB.closed)
}

func TestMeasureSetupFailureAbortsBeforeSampling(t *testing.T) {
	a, b := netip.MustParseAddr("192.0.2.1"), netip.MustParseAddr("192.0.2.2")
	seqA := fake(0.02)
	cause := errors.New("operation not permitted")
	tr := &fakeTransport{
		seqs: map[netip.Addr]*fakeSequence{a: seqA},
		fail: map[netip.Addr]error{b: cause},
	}

	rs, err := Measure(context.Background(), tr, targets("192.0.2.1", "192.0.2.2"), 0.01)
	require.Error(t, err)
	assert.Nil(t, rs)

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, b, setupErr.Addr)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "missing privileges?")

	assert.Equal(t, 0, seqA.consumed, "no probe may be sent after a setup failure")
	assert.True(t, seqA.closed, "already opened sequences must be closed")
}

func TestBestUpdateIsMonotonic(t *testing.T) {
	b := None()
	for _, v := range []float64{5, 7, 3, 3, 4, 1} {
		prev, hadPrev := b.Value()
		b = b.Update(Reply(v))
		cur, ok := b.Value()
		require.True(t, ok)
		if hadPrev {
			assert.LessOrEqual(t, cur, prev)
		}
	}
	v, _ := b.Value()
	assert.Equal(t, 1.0, v)

	assert.Equal(t, b, b.Update(NoReply()))
}

func TestShouldContinue(t *testing.T) {
	assert.True(t, ShouldContinue(NoReply(), 1))
	assert.True(t, ShouldContinue(Reply(1), 1))
	assert.True(t, ShouldContinue(Reply(2), 1))
	assert.False(t, ShouldContinue(Reply(0.5), 1))
	assert.True(t, ShouldContinue(Reply(math.NaN()), 1))
}
