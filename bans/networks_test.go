package bans

import (
	"net/netip"
	"testing"
)

func TestCandidates_V4Order(t *testing.T) {
	got := Candidates(netip.MustParseAddr("1.2.3.4"))
	want := []netip.Prefix{
		netip.MustParsePrefix("1.2.3.4/32"),
		netip.MustParsePrefix("1.2.3.0/24"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidate[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCandidates_V6Order(t *testing.T) {
	got := Candidates(netip.MustParseAddr("2001:db8:a:b::1"))
	want := []netip.Prefix{
		netip.MustParsePrefix("2001:db8:a:b::1/128"),
		netip.MustParsePrefix("2001:db8:a:b::/64"),
		netip.MustParsePrefix("2001:db8:a::/48"),
		netip.MustParsePrefix("2001:db8::/32"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidate[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCandidates_UnmapsV4InV6(t *testing.T) {
	plain := Candidates(netip.MustParseAddr("1.2.3.4"))
	mapped := Candidates(netip.MustParseAddr("::ffff:1.2.3.4"))

	if len(plain) != len(mapped) {
		t.Fatalf("mapped address yields %d candidates, plain yields %d", len(mapped), len(plain))
	}
	for i := range plain {
		if plain[i] != mapped[i] {
			t.Fatalf("candidate[%d]: mapped %v, plain %v", i, mapped[i], plain[i])
		}
	}
}
