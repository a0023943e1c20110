// Package pgstore implements the authoritative-store queriers on Postgres
// using a pgx connection pool. It is the only package that speaks SQL; the
// resolvers above it see plain Go interfaces.
//
// Ban rows are filtered for expiry in SQL (`expires_at IS NULL OR
// expires_at > now()`), so an expired ban is indistinguishable from no ban
// at all. IP bans rely on the native cidr containment operator: the
// narrowest stored network containing the probe wins.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Keksclan/goNutStash/bans"
	"github.com/Keksclan/goNutStash/keys"
	"github.com/Keksclan/goNutStash/retry"
)

// Config holds the connection parameters.
type Config struct {
	// DSN is the Postgres connection string.
	DSN string

	// ConnectAttempts bounds the startup connection retry loop. Zero means
	// a single attempt.
	ConnectAttempts int

	// ConnectBaseDelay is the back-off base between attempts. Defaults to
	// one second.
	ConnectBaseDelay time.Duration

	// Logger, when set, reports connection progress. Defaults to a no-op
	// logger.
	Logger zerolog.Logger
}

// Store answers the resolver queriers from Postgres. It is safe for
// concurrent use; all methods go through the shared pool.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Connect parses the DSN, opens the pool and verifies it with a ping,
// retrying with exponential back-off. Every connection error is considered
// transient at startup: the database being slower to boot than this process
// is the normal case in a compose file, not a fatal one.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}

	baseDelay := cfg.ConnectBaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	log := cfg.Logger

	pool, err := retry.Do(ctx, retry.Config{
		MaxAttempts: cfg.ConnectAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    30 * time.Second,
		Jitter:      0.2,
		Retryable: func(err error) bool {
			log.Warn().Err(err).Msg("postgres not ready, retrying")
			return true
		},
	}, func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	})
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}

	log.Info().Msg("postgres pool ready")
	return &Store{pool: pool, log: log}, nil
}

// NewFromPool wraps an existing pool. Useful when the host application
// already manages the connection.
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, log: zerolog.Nop()}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Active implements users.Querier.
func (s *Store) Active(ctx context.Context, uid int64) (bool, bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx,
		`SELECT active FROM users WHERE id = $1`, uid).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return active, true, nil
}

// PasswordHash implements users.Querier.
func (s *Store) PasswordHash(ctx context.Context, uid int64) (string, bool, error) {
	return s.userColumn(ctx, `SELECT password_hash FROM users WHERE id = $1`, uid)
}

// Username implements users.Querier.
func (s *Store) Username(ctx context.Context, uid int64) (string, bool, error) {
	return s.userColumn(ctx, `SELECT username FROM users WHERE id = $1`, uid)
}

func (s *Store) userColumn(ctx context.Context, query string, uid int64) (string, bool, error) {
	var v string
	err := s.pool.QueryRow(ctx, query, uid).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// IDByUsername implements users.Querier.
func (s *Store) IDByUsername(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM users WHERE username = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// UserBan implements bans.Querier.
func (s *Store) UserBan(ctx context.Context, uid int64) (bans.Ban, bool, error) {
	var (
		reason  string
		expires *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT reason, expires_at FROM user_bans
		 WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > now())`,
		uid).Scan(&reason, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return bans.Ban{}, false, nil
	}
	if err != nil {
		return bans.Ban{}, false, err
	}
	b := bans.Ban{Reason: reason}
	if expires != nil {
		b.ExpiresAt = *expires
	}
	return b, true, nil
}

// IPBanContaining implements bans.Querier. With several stored networks
// containing the probe, the longest prefix (narrowest network) wins.
func (s *Store) IPBanContaining(ctx context.Context, network netip.Prefix) (bans.IPBan, bool, error) {
	var (
		matched netip.Prefix
		reason  string
		expires *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT network, reason, expires_at FROM ip_bans
		 WHERE network >>= $1::cidr AND (expires_at IS NULL OR expires_at > now())
		 ORDER BY masklen(network) DESC
		 LIMIT 1`,
		network.Masked().String()).Scan(&matched, &reason, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return bans.IPBan{}, false, nil
	}
	if err != nil {
		return bans.IPBan{}, false, err
	}
	b := bans.IPBan{Ban: bans.Ban{Reason: reason}, Network: matched}
	if expires != nil {
		b.ExpiresAt = *expires
	}
	return b, true, nil
}

// DomainByAny implements domains.Querier. With rows for more than one
// candidate the earliest candidate wins, matching the cache-pass order.
func (s *Store) DomainByAny(ctx context.Context, candidates []string) (int64, string, bool, error) {
	var (
		id     int64
		domain string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, domain FROM domains
		 WHERE domain = ANY($1)
		 ORDER BY array_position($1, domain)
		 LIMIT 1`,
		candidates).Scan(&id, &domain)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, err
	}
	return id, domain, true, nil
}

// FilePath implements objects.Querier. IS NOT DISTINCT FROM makes a NULL
// subdomain column match the absent subdomain, which plain = would not.
func (s *Store) FilePath(ctx context.Context, domainID int64, sub keys.Subdomain, shortname string) (string, bool, error) {
	return s.objectColumn(ctx,
		`SELECT file_path FROM files
		 WHERE domain_id = $1 AND subdomain IS NOT DISTINCT FROM $2 AND shortname = $3`,
		domainID, sub, shortname)
}

// RedirectTarget implements objects.Querier.
func (s *Store) RedirectTarget(ctx context.Context, domainID int64, sub keys.Subdomain, shortname string) (string, bool, error) {
	return s.objectColumn(ctx,
		`SELECT target_url FROM redirects
		 WHERE domain_id = $1 AND subdomain IS NOT DISTINCT FROM $2 AND shortname = $3`,
		domainID, sub, shortname)
}

func (s *Store) objectColumn(ctx context.Context, query string, domainID int64, sub keys.Subdomain, shortname string) (string, bool, error) {
	var v string
	err := s.pool.QueryRow(ctx, query, domainID, subParam(sub), shortname).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// ShortnameTaken reports whether a shortname is already used in either
// object table of a domain. The shortname allocator uses this to detect
// collisions.
func (s *Store) ShortnameTaken(ctx context.Context, domainID int64, sub keys.Subdomain, shortname string) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM files
		   WHERE domain_id = $1 AND subdomain IS NOT DISTINCT FROM $2 AND shortname = $3
		   UNION ALL
		   SELECT 1 FROM redirects
		   WHERE domain_id = $1 AND subdomain IS NOT DISTINCT FROM $2 AND shortname = $3
		 )`,
		domainID, subParam(sub), shortname).Scan(&taken)
	if err != nil {
		return false, err
	}
	return taken, nil
}

// subParam maps the absent subdomain to SQL NULL.
func subParam(sub keys.Subdomain) *string {
	if !sub.Present() {
		return nil
	}
	v := sub.Value()
	return &v
}
