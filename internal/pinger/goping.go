package pinger

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/go-ping/ping"
	"github.com/jandubois/multiping/internal/latency"
)

// GoPing sends every probe as a single-count github.com/go-ping/ping run.
type GoPing struct {
	opts Options
}

// NewGoPing creates a GoPing transport.
func NewGoPing(opts Options) *GoPing {
	return &GoPing{opts: opts}
}

// Open checks that an ICMP socket of the configured kind can be created for
// addr. go-ping opens its own socket per run, so the probe socket is closed
// right away again.
func (g *GoPing) Open(addr netip.Addr) (latency.Sequence, error) {
	conn, _, err := listen(addr, g.opts.Unprivileged)
	if err != nil {
		return nil, err
	}
	conn.Close()
	return &goPingSequence{addr: addr.Unmap(), opts: g.opts}, nil
}

type goPingSequence struct {
	addr netip.Addr
	opts Options
	runs int
}

func (s *goPingSequence) newPinger() (*ping.Pinger, error) {
	p, err := ping.NewPinger(s.addr.String())
	if err != nil {
		return nil, fmt.Errorf("create pinger for %s: %w", s.addr, err)
	}
	p.Count = 1
	p.Timeout = s.opts.Timeout
	p.Size = s.opts.PayloadSize
	p.SetPrivileged(!s.opts.Unprivileged)
	return p, nil
}

// Next runs one single-packet go-ping session, waiting out the send interval
// first. A failed run counts as no reply.
func (s *goPingSequence) Next(ctx context.Context) (latency.Outcome, bool) {
	if s.runs > 0 && s.opts.Interval > 0 {
		select {
		case <-ctx.Done():
			return latency.Outcome{}, false
		case <-time.After(s.opts.Interval):
		}
	}
	if ctx.Err() != nil {
		return latency.Outcome{}, false
	}
	s.runs++

	p, err := s.newPinger()
	if err != nil {
		slog.Debug("go-ping setup failed", "addr", s.addr, "error", err)
		return latency.NoReply(), true
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-done:
		}
	}()
	err = p.Run()
	close(done)

	if err != nil {
		slog.Debug("go-ping run failed", "addr", s.addr, "error", err)
		return latency.NoReply(), true
	}
	stats := p.Statistics()
	if stats.PacketsRecv == 0 {
		return latency.NoReply(), true
	}
	return latency.Reply(stats.MinRtt.Seconds()), true
}
