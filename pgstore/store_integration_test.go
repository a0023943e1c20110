package pgstore

import (
	"net/netip"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Keksclan/goNutStash/keys"
)

// testStore connects to the database named by POSTGRES_DSN and seeds a
// scratch schema in temp tables. MaxConns is pinned to 1 so every query in
// the test sees the same session-local tables.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set, skipping Postgres integration test")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	cfg.MaxConns = 1
	pool, err := pgxpool.NewWithConfig(t.Context(), cfg)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	ctx := t.Context()
	stmts := []string{
		`CREATE TEMP TABLE users (
			id bigint PRIMARY KEY,
			username text NOT NULL UNIQUE,
			password_hash text NOT NULL,
			active boolean NOT NULL
		)`,
		`CREATE TEMP TABLE user_bans (
			user_id bigint NOT NULL,
			reason text NOT NULL,
			expires_at timestamptz
		)`,
		`CREATE TEMP TABLE ip_bans (
			network cidr NOT NULL,
			reason text NOT NULL,
			expires_at timestamptz
		)`,
		`CREATE TEMP TABLE domains (
			id bigint PRIMARY KEY,
			domain text NOT NULL UNIQUE
		)`,
		`CREATE TEMP TABLE files (
			domain_id bigint NOT NULL,
			subdomain text,
			shortname text NOT NULL,
			file_path text NOT NULL
		)`,
		`CREATE TEMP TABLE redirects (
			domain_id bigint NOT NULL,
			subdomain text,
			shortname text NOT NULL,
			target_url text NOT NULL
		)`,
		`INSERT INTO users VALUES
			(42, 'alice', '$argon2id$hash', true),
			(43, 'bob', '$argon2id$hash2', false)`,
		`INSERT INTO user_bans VALUES
			(43, 'spam', now() + interval '1 hour'),
			(44, 'old ban', now() - interval '1 hour')`,
		`INSERT INTO ip_bans VALUES
			('10.0.0.0/8', 'broad', NULL),
			('10.1.2.0/24', 'narrow', now() + interval '1 hour')`,
		`INSERT INTO domains VALUES
			(7, 'example.com'),
			(8, '*.example.com')`,
		`INSERT INTO files VALUES
			(7, NULL, 'cat', '/srv/files/cat.png'),
			(7, '', 'root-cat', '/srv/files/root-cat.png')`,
		`INSERT INTO redirects VALUES
			(7, NULL, 'gh', 'https://example.org/')`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("seed: %v\n%s", err, stmt)
		}
	}
	return NewFromPool(pool)
}

func TestStore_UserFacts(t *testing.T) {
	s := testStore(t)
	ctx := t.Context()

	active, ok, err := s.Active(ctx, 42)
	if err != nil || !ok || !active {
		t.Fatalf("Active(42) = (%v, %v, %v), want (true, true, nil)", active, ok, err)
	}

	name, ok, err := s.Username(ctx, 42)
	if err != nil || !ok || name != "alice" {
		t.Fatalf("Username(42) = (%q, %v, %v), want alice", name, ok, err)
	}

	id, ok, err := s.IDByUsername(ctx, "alice")
	if err != nil || !ok || id != 42 {
		t.Fatalf("IDByUsername(alice) = (%d, %v, %v), want 42", id, ok, err)
	}

	// Unknown user: no row, no error.
	if _, ok, err := s.PasswordHash(ctx, 999); err != nil || ok {
		t.Fatalf("PasswordHash(999) = (_, %v, %v), want miss", ok, err)
	}
}

func TestStore_UserBanFiltersExpired(t *testing.T) {
	s := testStore(t)
	ctx := t.Context()

	b, ok, err := s.UserBan(ctx, 43)
	if err != nil || !ok {
		t.Fatalf("UserBan(43) = (_, %v, %v), want hit", ok, err)
	}
	if b.Reason != "spam" {
		t.Fatalf("reason = %q, want spam", b.Reason)
	}
	if b.ExpiresAt.IsZero() || time.Until(b.ExpiresAt) <= 0 {
		t.Fatalf("expires_at = %v, want a future time", b.ExpiresAt)
	}

	// A ban that expired is no ban at all.
	if _, ok, err := s.UserBan(ctx, 44); err != nil || ok {
		t.Fatalf("UserBan(44) = (_, %v, %v), want miss", ok, err)
	}
}

func TestStore_IPBanNarrowestWins(t *testing.T) {
	s := testStore(t)
	ctx := t.Context()

	// 10.1.2.5/32 is inside both 10.0.0.0/8 and 10.1.2.0/24; the /24 must
	// win.
	probe := netip.PrefixFrom(netip.MustParseAddr("10.1.2.5"), 32)
	b, ok, err := s.IPBanContaining(ctx, probe)
	if err != nil || !ok {
		t.Fatalf("IPBanContaining = (_, %v, %v), want hit", ok, err)
	}
	if b.Reason != "narrow" {
		t.Fatalf("reason = %q, want narrow (the /24)", b.Reason)
	}
	if b.Network != netip.MustParsePrefix("10.1.2.0/24") {
		t.Fatalf("network = %v, want 10.1.2.0/24", b.Network)
	}

	// Only the broad permanent ban covers this one; its zero expiry must
	// come back as the zero time.
	probe = netip.PrefixFrom(netip.MustParseAddr("10.9.9.9"), 32)
	b, ok, err = s.IPBanContaining(ctx, probe)
	if err != nil || !ok {
		t.Fatalf("IPBanContaining = (_, %v, %v), want hit", ok, err)
	}
	if b.Reason != "broad" || !b.ExpiresAt.IsZero() {
		t.Fatalf("got (%q, %v), want broad permanent ban", b.Reason, b.ExpiresAt)
	}

	if _, ok, err := s.IPBanContaining(ctx, netip.MustParsePrefix("192.168.0.0/24")); err != nil || ok {
		t.Fatalf("unbanned network = (_, %v, %v), want miss", ok, err)
	}
}

func TestStore_DomainByAnyPrefersEarlierCandidate(t *testing.T) {
	s := testStore(t)
	ctx := t.Context()

	// Both '*.example.com' and 'example.com' exist; candidate order decides.
	id, domain, ok, err := s.DomainByAny(ctx, []string{"*.example.com", "example.com"})
	if err != nil || !ok {
		t.Fatalf("DomainByAny = (_, _, %v, %v), want hit", ok, err)
	}
	if id != 8 || domain != "*.example.com" {
		t.Fatalf("got (%d, %q), want (8, *.example.com)", id, domain)
	}

	id, domain, ok, err = s.DomainByAny(ctx, []string{"example.com", "*.example.com"})
	if err != nil || !ok {
		t.Fatalf("DomainByAny = (_, _, %v, %v), want hit", ok, err)
	}
	if id != 7 || domain != "example.com" {
		t.Fatalf("got (%d, %q), want (7, example.com)", id, domain)
	}

	if _, _, ok, err := s.DomainByAny(ctx, []string{"nope.test"}); err != nil || ok {
		t.Fatalf("unknown domain = (_, _, %v, %v), want miss", ok, err)
	}
}

func TestStore_ObjectsDistinguishNullAndEmptySubdomain(t *testing.T) {
	s := testStore(t)
	ctx := t.Context()

	p, ok, err := s.FilePath(ctx, 7, keys.NoSubdomain, "cat")
	if err != nil || !ok || p != "/srv/files/cat.png" {
		t.Fatalf("FilePath(no subdomain) = (%q, %v, %v)", p, ok, err)
	}

	// The NULL-subdomain row must not answer for the empty-string subdomain
	// and vice versa.
	if _, ok, err := s.FilePath(ctx, 7, keys.Sub(""), "cat"); err != nil || ok {
		t.Fatalf("FilePath(root subdomain, cat) = (_, %v, %v), want miss", ok, err)
	}
	p, ok, err = s.FilePath(ctx, 7, keys.Sub(""), "root-cat")
	if err != nil || !ok || p != "/srv/files/root-cat.png" {
		t.Fatalf("FilePath(root subdomain, root-cat) = (%q, %v, %v)", p, ok, err)
	}

	u, ok, err := s.RedirectTarget(ctx, 7, keys.NoSubdomain, "gh")
	if err != nil || !ok || u != "https://example.org/" {
		t.Fatalf("RedirectTarget = (%q, %v, %v)", u, ok, err)
	}

	taken, err := s.ShortnameTaken(ctx, 7, keys.NoSubdomain, "gh")
	if err != nil || !taken {
		t.Fatalf("ShortnameTaken(gh) = (%v, %v), want true", taken, err)
	}
	taken, err = s.ShortnameTaken(ctx, 7, keys.NoSubdomain, "free")
	if err != nil || taken {
		t.Fatalf("ShortnameTaken(free) = (%v, %v), want false", taken, err)
	}
}
