// Package pinger provides ICMP echo transports for the latency engine.
package pinger

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/netip"
	"time"

	units "github.com/docker/go-units"
	"github.com/jandubois/multiping/internal/latency"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Backend names accepted by NewTransport.
const (
	BackendICMP   = "icmp"
	BackendGoPing = "go-ping"
)

// ErrUnknownBackend is returned by NewTransport for unsupported backends.
var ErrUnknownBackend = errors.New("unknown probe backend")

const maxPayloadSize = 65000

// Options configure how echo requests are sent.
type Options struct {
	// Timeout bounds the wait for each reply.
	Timeout time.Duration
	// Interval is the minimum spacing between two sends to the same target.
	Interval time.Duration
	// PayloadSize is the echo data length in bytes.
	PayloadSize int
	// Unprivileged selects datagram ICMP sockets instead of raw ones.
	Unprivileged bool
}

// DefaultOptions mirror the usual ping defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:     2 * time.Second,
		Interval:    500 * time.Millisecond,
		PayloadSize: 56,
	}
}

// ParsePayloadSize accepts sizes like "56", "56B" or "1kB".
func ParsePayloadSize(s string) (int, error) {
	n, err := units.FromHumanSize(s)
	if err != nil {
		return 0, fmt.Errorf("invalid payload size %q: %w", s, err)
	}
	if n < 0 || n > maxPayloadSize {
		return 0, fmt.Errorf("payload size %s out of range (0-%s)", units.HumanSize(float64(n)), units.HumanSize(maxPayloadSize))
	}
	return int(n), nil
}

// NewTransport returns the transport registered under backend.
func NewTransport(backend string, opts Options) (latency.Transport, error) {
	switch backend {
	case "", BackendICMP:
		return New(opts), nil
	case BackendGoPing:
		return NewGoPing(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// family holds the per-address-family socket parameters.
type family struct {
	network   string
	listen    string
	proto     int
	echo      icmp.Type
	echoReply icmp.Type
}

func familyFor(addr netip.Addr, unprivileged bool) family {
	if addr.Is4() || addr.Is4In6() {
		f := family{
			network:   "ip4:icmp",
			listen:    "0.0.0.0",
			proto:     ipv4.ICMPTypeEcho.Protocol(),
			echo:      ipv4.ICMPTypeEcho,
			echoReply: ipv4.ICMPTypeEchoReply,
		}
		if unprivileged {
			f.network = "udp4"
		}
		return f
	}
	f := family{
		network:   "ip6:ipv6-icmp",
		listen:    "::",
		proto:     ipv6.ICMPTypeEchoRequest.Protocol(),
		echo:      ipv6.ICMPTypeEchoRequest,
		echoReply: ipv6.ICMPTypeEchoReply,
	}
	if unprivileged {
		f.network = "udp6"
	}
	return f
}

// listen opens the ICMP socket suited for addr.
func listen(addr netip.Addr, unprivileged bool) (*icmp.PacketConn, family, error) {
	f := familyFor(addr, unprivileged)
	conn, err := icmp.ListenPacket(f.network, f.listen)
	if err != nil {
		return nil, f, fmt.Errorf("listen %s: %w", f.network, err)
	}
	return conn, f, nil
}

func destination(addr netip.Addr, unprivileged bool) net.Addr {
	addr = addr.Unmap()
	ip := net.IP(addr.AsSlice())
	if unprivileged {
		return &net.UDPAddr{IP: ip, Zone: addr.Zone()}
	}
	return &net.IPAddr{IP: ip, Zone: addr.Zone()}
}

func peerAddr(peer net.Addr) (netip.Addr, bool) {
	var ip net.IP
	switch p := peer.(type) {
	case *net.IPAddr:
		ip = p.IP
	case *net.UDPAddr:
		ip = p.IP
	default:
		return netip.Addr{}, false
	}
	a, ok := netip.AddrFromSlice(ip)
	return a.Unmap(), ok
}

func payload(size int) []byte {
	const pattern = "multiping"
	data := make([]byte, size)
	for i := range data {
		data[i] = pattern[i%len(pattern)]
	}
	return data
}

func newID() int {
	return rand.Intn(0xffff)
}
