// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"slices"
	"sort"
	"strings"
)

// Policy describes which capabilities are restricted and the allow-list
// parameters for each. A Policy is a plain value: construct it once,
// never mutate it afterwards, share it freely across concurrent scopes.
// Two policies with equal fields are the same policy.
type Policy struct {
	// BlockNetwork installs the network guard: dials, host lookups,
	// and TLS handshakes are denied unless the destination host is
	// permitted by AllowLocalhost or AllowDomains.
	BlockNetwork bool

	// BlockSubprocess installs the subprocess guard: every spawn
	// entry point is denied. There is no allow-list.
	BlockSubprocess bool

	// FSReadonly installs the filesystem guard: opens in any
	// write/append/create/truncate mode are denied, as are the named
	// mutating operations (remove, rename, mkdir). Reads pass
	// through, subject to FSRoot.
	FSReadonly bool

	// FSRoot, when set, restricts read opens to paths inside the
	// symlink-resolved root. It is a parameter of the filesystem
	// guard and has no effect unless FSReadonly is set.
	FSRoot string

	// BlockNativeLoad installs the native-load guard: loading shared
	// modules whose top-level name is on the fixed FFI deny list is
	// refused before any load side effects run.
	BlockNativeLoad bool

	// AllowLocalhost permits network operations whose host is one of
	// the loopback names ("127.0.0.1", "::1", "localhost",
	// "0.0.0.0"). The metadata deny-list still wins.
	AllowLocalhost bool

	// AllowDomains permits network operations whose host contains
	// one of these strings, case-insensitively. The metadata
	// deny-list still wins.
	AllowDomains []string

	// Trace emits one structured log line per blocked attempt.
	// Tracing never changes allow/deny outcomes.
	Trace bool
}

// Normalize returns a copy of p with AllowDomains lowercased, trimmed,
// deduplicated, sorted, and empties dropped. Enter normalizes the
// policy it is given, so guards and the bootstrap payload always see
// canonical domain lists.
func (p Policy) Normalize() Policy {
	out := p
	out.AllowDomains = normalizeDomains(p.AllowDomains)
	return out
}

// String renders the policy as a compact space-separated field list,
// "unrestricted" when nothing is set.
func (p Policy) String() string {
	p = p.Normalize()
	var fields []string
	if p.BlockNetwork {
		fields = append(fields, "block_network")
	}
	if p.BlockSubprocess {
		fields = append(fields, "block_subprocess")
	}
	if p.FSReadonly {
		fields = append(fields, "fs_readonly")
	}
	if p.FSRoot != "" {
		fields = append(fields, "fs_root="+p.FSRoot)
	}
	if p.BlockNativeLoad {
		fields = append(fields, "block_native_load")
	}
	if p.AllowLocalhost {
		fields = append(fields, "allow_localhost")
	}
	if len(p.AllowDomains) > 0 {
		fields = append(fields, "allow_domains="+strings.Join(p.AllowDomains, ","))
	}
	if p.Trace {
		fields = append(fields, "trace")
	}
	if len(fields) == 0 {
		return "unrestricted"
	}
	return strings.Join(fields, " ")
}

// Equal reports whether p and other describe the same policy. Domain
// lists are compared in normalized form.
func (p Policy) Equal(other Policy) bool {
	a, b := p.Normalize(), other.Normalize()
	return a.BlockNetwork == b.BlockNetwork &&
		a.BlockSubprocess == b.BlockSubprocess &&
		a.FSReadonly == b.FSReadonly &&
		a.FSRoot == b.FSRoot &&
		a.BlockNativeLoad == b.BlockNativeLoad &&
		a.AllowLocalhost == b.AllowLocalhost &&
		a.Trace == b.Trace &&
		slices.Equal(a.AllowDomains, b.AllowDomains)
}

func normalizeDomains(domains []string) []string {
	if len(domains) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(domains))
	out := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		out = append(out, domain)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
