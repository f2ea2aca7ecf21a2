package dragonite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/pulse/internal/watch"
)

// Compile-time interface checks.
var (
	_ watch.BannedSource   = (*Source)(nil)
	_ watch.DisabledSource = (*Source)(nil)
)

// Source answers watcher queries against the Dragonite database.
type Source struct {
	db             *sql.DB
	logger         *slog.Logger
	encounterLimit int64
	gmoLimit       int64
	queryTimeout   time.Duration
}

// SourceOptions tunes a Source.
type SourceOptions struct {
	EncounterLimit int64
	GMOLimit       int64
	QueryTimeout   time.Duration
}

// NewSource wraps db. The caller owns db.
func NewSource(db *sql.DB, opts SourceOptions, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	return &Source{
		db:             db,
		logger:         logger,
		encounterLimit: opts.EncounterLimit,
		gmoLimit:       opts.GMOLimit,
		queryTimeout:   opts.QueryTimeout,
	}
}

// BannedUsernames implements watch.BannedSource.
func (s *Source) BannedUsernames(ctx context.Context, provider string, window time.Duration) ([]string, error) {
	p, err := NormalizeProvider(provider)
	if err != nil {
		return nil, err
	}
	clause, err := WindowClause(window)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(bannedUsernamesQuery, clause), p)
	if err != nil {
		return nil, fmt.Errorf("dragonite: banned usernames: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u sql.NullString
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("dragonite: scan banned username: %w", err)
		}
		if name := strings.TrimSpace(u.String); u.Valid && name != "" {
			out = append(out, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dragonite: banned usernames: %w", err)
	}

	s.logger.Debug("dragonite: banned usernames",
		"provider", p, "window", window, "rows", len(out), "elapsed", time.Since(start))
	return out, nil
}

// DisabledSessions implements watch.DisabledSource.
func (s *Source) DisabledSessions(ctx context.Context, window time.Duration) ([]watch.DisabledSession, error) {
	clause, err := WindowClause(window)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(disabledSessionsQuery, clause), s.encounterLimit, s.gmoLimit)
	if err != nil {
		return nil, fmt.Errorf("dragonite: disabled sessions: %w", err)
	}
	defer rows.Close()

	var out []watch.DisabledSession
	for rows.Next() {
		var (
			user     sql.NullString
			duration sql.NullString
			enc, gmo sql.NullInt64
		)
		if err := rows.Scan(&user, &duration, &enc, &gmo); err != nil {
			return nil, fmt.Errorf("dragonite: scan disabled session: %w", err)
		}
		out = append(out, watch.DisabledSession{
			Username:   user.String,
			Encounters: enc.Int64,
			MapObjects: gmo.Int64,
			Duration:   duration.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dragonite: disabled sessions: %w", err)
	}

	s.logger.Debug("dragonite: disabled sessions", "window", window, "rows", len(out), "elapsed", time.Since(start))
	return out, nil
}
