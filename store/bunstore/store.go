// Package bunstore provides a PostgreSQL-backed dlq.Store using the Bun
// ORM, for deployments that want the dead-letter archive to outlive the
// broker.
//
// Usage:
//
//	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
//	db := bun.NewDB(sqldb, pgdialect.New())
//	s := bunstore.New(db)
//	if err := s.Migrate(ctx); err != nil { ... }
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/courierhq/courier"
	"github.com/courierhq/courier/dlq"
	"github.com/courierhq/courier/id"
)

// Compile-time interface check.
var _ dlq.Store = (*Store)(nil)

// Store is a Bun implementation of dlq.Store using the PostgreSQL
// dialect. The caller owns the *bun.DB lifecycle; Store never closes it.
type Store struct {
	db     *bun.DB
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Bun-backed dead-letter archive.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Migrate creates the archive table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*dlqEntryModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/bunstore: migrate: %w", err)
	}
	return nil
}

// Push adds an entry to the archive.
func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	m := toDLQModel(entry)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if isDuplicateKey(err) {
			s.logger.Warn("dlq entry already archived", "entry_id", entry.ID.String())
			return nil
		}
		return fmt.Errorf("courier/bunstore: push: %w", err)
	}
	return nil
}

// List returns entries matching opts, oldest failure first.
func (s *Store) List(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	var models []dlqEntryModel
	q := s.db.NewSelect().Model(&models)

	if opts.Queue != "" {
		q = q.Where("queue = ?", opts.Queue)
	}
	q = q.Order("failed_at ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("courier/bunstore: list: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(models))
	for i := range models {
		e, convErr := fromDLQModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("courier/bunstore: list convert: %w", convErr)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Get retrieves an entry by ID.
func (s *Store) Get(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m := new(dlqEntryModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", entryID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, courier.ErrDLQEntryNotFound
		}
		return nil, fmt.Errorf("courier/bunstore: get: %w", err)
	}
	return fromDLQModel(m)
}

// MarkReplayed stamps ReplayedAt on an entry.
func (s *Store) MarkReplayed(ctx context.Context, entryID id.DLQID) error {
	res, err := s.db.NewUpdate().
		Model((*dlqEntryModel)(nil)).
		Set("replayed_at = ?", time.Now().UTC()).
		Where("id = ?", entryID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/bunstore: mark replayed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return courier.ErrDLQEntryNotFound
	}
	return nil
}

// Purge removes entries that failed before the given time.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*dlqEntryModel)(nil)).
		Where("failed_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("courier/bunstore: purge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Count returns the number of archived entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.db.NewSelect().Model((*dlqEntryModel)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("courier/bunstore: count: %w", err)
	}
	return int64(n), nil
}

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return false
}
