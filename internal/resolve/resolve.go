// Package resolve turns user-supplied host strings into probe targets.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"

	"github.com/jandubois/multiping/internal/latency"
)

// Family restricts which address families are probed.
type Family int

const (
	FamilyAny Family = iota
	FamilyIPv4
	FamilyIPv6
)

// FamilyFromFlags maps the -4/-6 switches to a Family. Setting both is an
// argument error.
func FamilyFromFlags(ipv4, ipv6 bool) (Family, error) {
	switch {
	case ipv4 && ipv6:
		return FamilyAny, fmt.Errorf("--ipv4 and --ipv6 are mutually exclusive")
	case ipv4:
		return FamilyIPv4, nil
	case ipv6:
		return FamilyIPv6, nil
	default:
		return FamilyAny, nil
	}
}

// Match reports whether addr belongs to the family.
func (f Family) Match(addr netip.Addr) bool {
	switch f {
	case FamilyIPv4:
		return addr.Is4() || addr.Is4In6()
	case FamilyIPv6:
		return addr.Is6() && !addr.Is4In6()
	default:
		return true
	}
}

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "any"
	}
}

// Lookuper resolves a host name. *net.Resolver satisfies it.
type Lookuper interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Targets is the outcome of resolving a host list.
type Targets struct {
	Targets  []latency.Target
	Warnings []string
}

// Resolver resolves hosts and filters the addresses by family.
type Resolver struct {
	family Family
	lookup Lookuper
}

// New creates a Resolver. A nil lookuper uses net.DefaultResolver.
func New(family Family, lookup Lookuper) *Resolver {
	if lookup == nil {
		lookup = net.DefaultResolver
	}
	return &Resolver{family: family, lookup: lookup}
}

// Resolve resolves every host in order. A host that fails to resolve adds a
// warning and no targets; the remaining hosts are still resolved.
func (r *Resolver) Resolve(ctx context.Context, hosts []string) *Targets {
	out := &Targets{}
	for _, host := range hosts {
		addrs, err := r.addresses(ctx, host)
		if err != nil {
			slog.Warn("resolve failed", "host", host, "error", err)
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", host, err))
			continue
		}
		for _, addr := range addrs {
			if !r.family.Match(addr) {
				continue
			}
			out.Targets = append(out.Targets, latency.Target{Host: host, Addr: addr})
		}
	}
	return out
}

func (r *Resolver) addresses(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{addr}, nil
	}
	addrs, err := r.lookup.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	for i, a := range addrs {
		addrs[i] = a.Unmap()
	}
	return addrs, nil
}
