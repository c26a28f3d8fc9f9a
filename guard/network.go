// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// NetworkConnector is the capability behind every outbound network
// operation. Code that dials through it is subject to the network
// guard; code that calls net.Dial directly is not.
type NetworkConnector interface {
	// Dial connects like net.Dial.
	Dial(network, address string) (net.Conn, error)

	// DialContext connects like net.Dialer.DialContext.
	DialContext(ctx context.Context, network, address string) (net.Conn, error)

	// DialErrno probes whether address is reachable and reports the
	// result as a connect errno, zero on success. A denied address
	// reports EACCES without engaging the denial handler, so
	// reachability probes survive even under a fatal handler.
	DialErrno(network, address string) syscall.Errno

	// LookupHost resolves host like net.DefaultResolver.LookupHost.
	LookupHost(ctx context.Context, host string) ([]string, error)

	// TLSClient wraps conn in a client-side TLS session like
	// tls.Client. The network guard denies this unconditionally,
	// whatever the allow rules say.
	TLSClient(conn net.Conn, config *tls.Config) (*tls.Conn, error)
}

// metadataHosts are cloud instance-metadata endpoints that stay
// blocked even when an allow rule would otherwise match them.
var metadataHosts = map[string]struct{}{
	"169.254.169.254":          {},
	"metadata.google.internal": {},
}

// localhostNames are the hosts AllowLocalhost admits.
var localhostNames = map[string]struct{}{
	"127.0.0.1": {},
	"::1":       {},
	"localhost": {},
	"0.0.0.0":   {},
}

// passthroughNetwork is the resting network capability: plain dials
// with no policy applied.
type passthroughNetwork struct{}

func (passthroughNetwork) Dial(network, address string) (net.Conn, error) {
	return net.Dial(network, address)
}

func (passthroughNetwork) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

func (passthroughNetwork) DialErrno(network, address string) syscall.Errno {
	conn, err := net.Dial(network, address)
	if err != nil {
		return dialErrno(err)
	}
	conn.Close()
	return 0
}

func (passthroughNetwork) LookupHost(ctx context.Context, host string) ([]string, error) {
	return net.DefaultResolver.LookupHost(ctx, host)
}

func (passthroughNetwork) TLSClient(conn net.Conn, config *tls.Config) (*tls.Conn, error) {
	return tls.Client(conn, config), nil
}

// dialErrno maps a dial failure onto the errno a raw connect would
// have produced. Failures that carry no errno, such as resolver
// errors, report EHOSTUNREACH.
func dialErrno(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return unix.EHOSTUNREACH
}

// hostOf extracts the host from a dial address. Addresses without a
// port pass through whole.
func hostOf(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}
	return host
}

// guardedNetwork enforces the captured policy on every call and
// forwards permitted ones to the implementation it displaced.
type guardedNetwork struct {
	reg            *Registry
	next           NetworkConnector
	allowLocalhost bool
	domains        []string
	trace          bool
}

// newGuardedNetwork captures the allow rules from p and wraps the
// registry's current network capability.
func newGuardedNetwork(r *Registry, p Policy) NetworkConnector {
	return &guardedNetwork{
		reg:            r,
		next:           r.Network(),
		allowLocalhost: p.AllowLocalhost,
		domains:        p.AllowDomains,
		trace:          p.Trace,
	}
}

// hostAllowed reports whether host may be reached under the captured
// policy. The metadata deny list wins over every allow rule; matching
// is on the lowercased host, and domain rules match as substrings.
func (g *guardedNetwork) hostAllowed(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return false
	}
	if _, denied := metadataHosts[h]; denied {
		return false
	}
	if g.allowLocalhost {
		if _, ok := localhostNames[h]; ok {
			return true
		}
	}
	for _, domain := range g.domains {
		if strings.Contains(h, domain) {
			return true
		}
	}
	return false
}

func (g *guardedNetwork) traceAllow(operation, resource string) {
	if g.trace {
		g.reg.log().Info("guard allowed", "capability", CapabilityNetwork, "operation", operation, "resource", resource)
	}
}

func (g *guardedNetwork) deny(operation string, v *Violation) error {
	if g.trace {
		g.reg.log().Warn("guard denied", "capability", CapabilityNetwork, "operation", operation, "resource", v.Resource)
	}
	return g.reg.deny(v)
}

func (g *guardedNetwork) Dial(network, address string) (net.Conn, error) {
	return g.DialContext(context.Background(), network, address)
}

func (g *guardedNetwork) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !g.hostAllowed(hostOf(address)) {
		return nil, g.deny("dial", &Violation{
			Capability: CapabilityNetwork,
			Resource:   address,
			Reason:     "network disabled: dial " + address,
		})
	}
	g.traceAllow("dial", address)
	return g.next.DialContext(ctx, network, address)
}

func (g *guardedNetwork) DialErrno(network, address string) syscall.Errno {
	if !g.hostAllowed(hostOf(address)) {
		if g.trace {
			g.reg.log().Warn("guard denied", "capability", CapabilityNetwork, "operation", "dial probe", "resource", address)
		}
		return unix.EACCES
	}
	g.traceAllow("dial probe", address)
	return g.next.DialErrno(network, address)
}

func (g *guardedNetwork) LookupHost(ctx context.Context, host string) ([]string, error) {
	if !g.hostAllowed(host) {
		return nil, g.deny("lookup", &Violation{
			Capability: CapabilityNetwork,
			Resource:   host,
			Reason:     "network disabled: lookup " + host,
		})
	}
	g.traceAllow("lookup", host)
	return g.next.LookupHost(ctx, host)
}

func (g *guardedNetwork) TLSClient(conn net.Conn, config *tls.Config) (*tls.Conn, error) {
	resource := "tls"
	if conn != nil && conn.RemoteAddr() != nil {
		resource = conn.RemoteAddr().String()
	}
	return nil, g.deny("tls handshake", &Violation{
		Capability: CapabilityNetwork,
		Resource:   resource,
		Reason:     "network disabled: tls handshake",
	})
}

