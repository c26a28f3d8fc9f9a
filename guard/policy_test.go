// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"slices"
	"testing"
)

func TestNormalizeDomains(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "nil stays nil",
			in:   nil,
			want: nil,
		},
		{
			name: "lowercased and sorted",
			in:   []string{"Example.COM", "api.internal"},
			want: []string{"api.internal", "example.com"},
		},
		{
			name: "duplicates collapse",
			in:   []string{"example.com", "EXAMPLE.com", "example.com"},
			want: []string{"example.com"},
		},
		{
			name: "whitespace trimmed and empties dropped",
			in:   []string{"  example.com ", "", "   "},
			want: []string{"example.com"},
		},
		{
			name: "all empty becomes nil",
			in:   []string{"", " "},
			want: nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := normalizeDomains(tt.in)
			if !slices.Equal(got, tt.want) {
				t.Errorf("normalizeDomains(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPolicyNormalizeDoesNotMutate(t *testing.T) {
	t.Parallel()

	p := Policy{AllowDomains: []string{"B.example", "a.example"}}
	p.Normalize()
	if p.AllowDomains[0] != "B.example" {
		t.Errorf("Normalize mutated the receiver: %v", p.AllowDomains)
	}
}

func TestPolicyEqual(t *testing.T) {
	t.Parallel()

	a := Policy{
		BlockNetwork: true,
		AllowDomains: []string{"Example.com", "api.internal"},
	}
	b := Policy{
		BlockNetwork: true,
		AllowDomains: []string{"api.internal", "example.COM"},
	}
	if !a.Equal(b) {
		t.Error("policies differing only in domain order and case should be equal")
	}

	c := b
	c.FSRoot = "/sandbox"
	if a.Equal(c) {
		t.Error("policies with different FSRoot should not be equal")
	}

	d := b
	d.AllowDomains = []string{"example.com"}
	if a.Equal(d) {
		t.Error("policies with different domain sets should not be equal")
	}
}

func TestPolicyString(t *testing.T) {
	t.Parallel()

	if got := (Policy{}).String(); got != "unrestricted" {
		t.Errorf("empty policy String() = %q, want %q", got, "unrestricted")
	}

	p := Policy{
		BlockNetwork:   true,
		FSReadonly:     true,
		FSRoot:         "/sandbox",
		AllowLocalhost: true,
		AllowDomains:   []string{"b.example", "A.example"},
	}
	want := "block_network fs_readonly fs_root=/sandbox allow_localhost allow_domains=a.example,b.example"
	if got := p.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
