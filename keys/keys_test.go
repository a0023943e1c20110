package keys

import (
	"net/netip"
	"testing"
)

func TestUserField(t *testing.T) {
	got := UserField(42, "active")
	want := "uid:42:active"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestObject_SubdomainPlaceholderDistinctFromEmpty(t *testing.T) {
	absent := Object(CategoryFile, 1, NoSubdomain, "nutpic")
	root := Object(CategoryFile, 1, Sub(""), "nutpic")

	if absent == root {
		t.Fatalf("absent and empty subdomain keys collide: %q", absent)
	}
	if absent != "fspath:1:@:nutpic" {
		t.Fatalf("absent subdomain key = %q", absent)
	}
	if root != "fspath:1::nutpic" {
		t.Fatalf("root subdomain key = %q", root)
	}
}

func TestObject_CategoriesNeverCollide(t *testing.T) {
	file := Object(CategoryFile, 7, Sub("i"), "x")
	redir := Object(CategoryRedirect, 7, Sub("i"), "x")
	if file == redir {
		t.Fatalf("file and redirect keys collide: %q", file)
	}
}

func TestIPBan_MasksPrefix(t *testing.T) {
	unmasked := netip.MustParsePrefix("1.2.3.4/24")
	masked := netip.MustParsePrefix("1.2.3.0/24")

	if IPBan(unmasked) != IPBan(masked) {
		t.Fatalf("IPBan(%v) = %q, IPBan(%v) = %q; want equal",
			unmasked, IPBan(unmasked), masked, IPBan(masked))
	}
	if got, want := IPBan(masked), "ipban:1.2.3.0/24"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDomainAndBanKeys(t *testing.T) {
	if got, want := Domain("*.example.com"), "domain_id:*.example.com"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := UserBan(9), "userban:9"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := Username("alice"), "uname:alice"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIsWildcard(t *testing.T) {
	if !IsWildcard("*.example.com") {
		t.Fatal("expected *.example.com to be a wildcard")
	}
	if IsWildcard("example.com") {
		t.Fatal("expected example.com not to be a wildcard")
	}
}
