package pinger

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/jandubois/multiping/internal/latency"
	"golang.org/x/net/icmp"
)

// Transport sends ICMP echo requests over golang.org/x/net/icmp sockets.
// Every opened sequence owns its own socket.
type Transport struct {
	opts Options
}

// New creates a Transport.
func New(opts Options) *Transport {
	return &Transport{opts: opts}
}

// Open creates the socket for addr. Failing to create it, usually for lack
// of privileges, is reported as an error.
func (t *Transport) Open(addr netip.Addr) (latency.Sequence, error) {
	conn, f, err := listen(addr, t.opts.Unprivileged)
	if err != nil {
		return nil, err
	}
	return &sequence{
		conn:    conn,
		addr:    addr.Unmap(),
		dst:     destination(addr, t.opts.Unprivileged),
		fam:     f,
		id:      newID(),
		payload: payload(t.opts.PayloadSize),
		opts:    t.opts,
	}, nil
}

type sequence struct {
	conn    *icmp.PacketConn
	addr    netip.Addr
	dst     net.Addr
	fam     family
	id      int
	seq     int
	payload []byte
	opts    Options

	lastSend time.Time
	buf      []byte
}

// Next waits for the send interval, sends one echo request and waits for
// the matching reply. It never ends on its own; it returns false only once
// ctx is done.
func (s *sequence) Next(ctx context.Context) (latency.Outcome, bool) {
	if !s.lastSend.IsZero() && s.opts.Interval > 0 {
		if wait := s.opts.Interval - time.Since(s.lastSend); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return latency.Outcome{}, false
			case <-timer.C:
			}
		}
	}
	if ctx.Err() != nil {
		return latency.Outcome{}, false
	}

	s.seq = (s.seq + 1) & 0xffff
	s.lastSend = time.Now()
	rtt, ok := s.ping(ctx)
	if !ok {
		slog.Debug("no reply", "addr", s.addr, "seq", s.seq)
		return latency.NoReply(), true
	}
	slog.Debug("reply", "addr", s.addr, "seq", s.seq, "rtt", rtt)
	return latency.Reply(rtt.Seconds()), true
}

func (s *sequence) ping(ctx context.Context) (time.Duration, bool) {
	msg := icmp.Message{
		Type: s.fam.echo,
		Code: 0,
		Body: &icmp.Echo{
			ID:   s.id,
			Seq:  s.seq,
			Data: s.payload,
		},
	}
	wire, err := msg.Marshal(nil)
	if err != nil {
		return 0, false
	}

	deadline := time.Now().Add(s.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	if _, err := s.conn.WriteTo(wire, s.dst); err != nil {
		slog.Debug("send echo failed", "addr", s.addr, "error", err)
		return 0, false
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return 0, false
	}

	if s.buf == nil {
		s.buf = make([]byte, 1500+len(s.payload))
	}
	for {
		n, peer, err := s.conn.ReadFrom(s.buf)
		if err != nil {
			return 0, false
		}
		if s.matches(peer, s.buf[:n]) {
			return time.Since(start), true
		}
	}
}

// matches reports whether a received packet is the reply to the echo
// request in flight. Datagram sockets rewrite the echo ID, so only the
// sequence number is checked there.
func (s *sequence) matches(peer net.Addr, packet []byte) bool {
	if from, ok := peerAddr(peer); ok && from != s.addr.WithZone("") && from != s.addr {
		return false
	}
	parsed, err := icmp.ParseMessage(s.fam.proto, packet)
	if err != nil || parsed.Type != s.fam.echoReply {
		return false
	}
	echo, ok := parsed.Body.(*icmp.Echo)
	if !ok || echo.Seq != s.seq {
		return false
	}
	return s.opts.Unprivileged || echo.ID == s.id
}

// Close releases the socket.
func (s *sequence) Close() error {
	return s.conn.Close()
}
