package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists session challenges and the consumed ledger in SQLite.
// Timestamps are stored as unix nanoseconds.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// SQLiteOption configures a SQLiteStore
type SQLiteOption func(*sqliteOptions)

type sqliteOptions struct {
	purgeInterval time.Duration
}

// WithPurgeInterval sets how often expired rows are deleted.
// A non-positive interval uses DefaultCleanupInterval.
func WithPurgeInterval(interval time.Duration) SQLiteOption {
	return func(o *sqliteOptions) {
		o.purgeInterval = interval
	}
}

var (
	_ ports.SessionStore   = (*SQLiteStore)(nil)
	_ ports.ConsumedLedger = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens the database at path, creates the schema and starts
// the purge loop. Parent directories are created if needed.
func NewSQLiteStore(path string, logger *slog.Logger, opts ...SQLiteOption) (*SQLiteStore, error) {
	var o sqliteOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.purgeInterval <= 0 {
		o.purgeInterval = DefaultCleanupInterval
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.purgeLoop(ctx, o.purgeInterval)

	logger.Info("SQLite store initialized", "path", path, "purge_interval", o.purgeInterval)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS session_challenges (
			session_id   TEXT PRIMARY KEY,
			challenge    TEXT NOT NULL,
			issued_at    INTEGER NOT NULL,
			expires_at   INTEGER NOT NULL,
			retain_until INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_session_challenges_retain
			ON session_challenges(retain_until);

		CREATE TABLE IF NOT EXISTS consumed_challenges (
			id           TEXT PRIMARY KEY,
			retain_until INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_consumed_challenges_retain
			ON consumed_challenges(retain_until);
	`
	_, err := s.db.Exec(schema)
	return err
}

// PutChallenge stores the session challenge, replacing any previous one
func (s *SQLiteStore) PutChallenge(ctx context.Context, sessionID string, challenge core.Challenge, ttl time.Duration) error {
	retainUntil := time.Now().Add(ttl)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_challenges (session_id, challenge, issued_at, expires_at, retain_until)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			challenge = excluded.challenge,
			issued_at = excluded.issued_at,
			expires_at = excluded.expires_at,
			retain_until = excluded.retain_until
	`, sessionID, challenge.Value, challenge.IssuedAt.UnixNano(), challenge.ExpiresAt.UnixNano(), retainUntil.UnixNano())
	if err != nil {
		return fmt.Errorf("storing challenge: %w", err)
	}

	return nil
}

// TakeChallenge deletes the session row and returns what it held in one statement
func (s *SQLiteStore) TakeChallenge(ctx context.Context, sessionID string) (core.Challenge, error) {
	var (
		value                            string
		issuedAt, expiresAt, retainUntil int64
	)

	err := s.db.QueryRowContext(ctx, `
		DELETE FROM session_challenges
		WHERE session_id = ?
		RETURNING challenge, issued_at, expires_at, retain_until
	`, sessionID).Scan(&value, &issuedAt, &expiresAt, &retainUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Challenge{}, ports.ErrNotFound
		}
		return core.Challenge{}, fmt.Errorf("taking challenge: %w", err)
	}

	if time.Now().UnixNano() > retainUntil {
		return core.Challenge{}, ports.ErrNotFound
	}

	return core.Challenge{
		Value:     value,
		IssuedAt:  time.Unix(0, issuedAt),
		ExpiresAt: time.Unix(0, expiresAt),
	}, nil
}

// MarkConsumed inserts the id, or revives a row whose retention has lapsed.
// A live row is left untouched and reported as already consumed.
func (s *SQLiteStore) MarkConsumed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	now := time.Now()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO consumed_challenges (id, retain_until)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET retain_until = excluded.retain_until
		WHERE consumed_challenges.retain_until < ?
	`, id, now.Add(ttl).UnixNano(), now.UnixNano())
	if err != nil {
		return false, fmt.Errorf("marking challenge consumed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking challenge consumed: %w", err)
	}

	return n == 1, nil
}

// Purge deletes rows whose retention has passed and returns how many were removed
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	now := time.Now().UnixNano()
	var total int64

	for _, query := range []string{
		`DELETE FROM session_challenges WHERE retain_until < ?`,
		`DELETE FROM consumed_challenges WHERE retain_until < ?`,
	} {
		res, err := s.db.ExecContext(ctx, query, now)
		if err != nil {
			return total, fmt.Errorf("purging expired rows: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("purging expired rows: %w", err)
		}
		total += n
	}

	if total > 0 {
		s.logger.Debug("purged expired challenges", "rows", total)
	}
	return total, nil
}

// Close stops the purge loop and closes the database
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

func (s *SQLiteStore) purgeLoop(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Purge(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("failed to purge expired challenges", "error", err)
			}
		}
	}
}
