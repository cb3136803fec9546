// Package sqlstore implements store.Store on top of database/sql. The
// Postgres and SQLite backends wrap it with their own driver and migrations.
package sqlstore

import (
	"context"
	"database/sql"

	"github.com/alfredjeanlab/relay/internal/model"
	"github.com/alfredjeanlab/relay/internal/store"
	"github.com/alfredjeanlab/relay/internal/store/sqlfilter"
)

// Store implements store.Store for a database/sql handle.
type Store struct {
	db      *sql.DB
	dialect sqlfilter.Dialect
	limits  model.Limits
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New wraps an open database. The caller is responsible for the schema.
func New(db *sql.DB, dialect sqlfilter.Dialect, limits model.Limits) *Store {
	return &Store{db: db, dialect: dialect, limits: limits}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) QueryEvents(ctx context.Context, filter model.Filter) ([]*model.Event, error) {
	return queryEvents(ctx, s.db, s.dialect, s.limits, filter)
}

func (s *Store) CountEvents(ctx context.Context, filter model.Filter) (int64, error) {
	return queryCountEvents(ctx, s.db, s.dialect, s.limits, filter)
}

func (s *Store) InsertEvent(ctx context.Context, event *model.Event) (store.InsertResult, error) {
	return queryInsertEvent(ctx, s.db, s.dialect, event)
}

func (s *Store) DeleteEvent(ctx context.Context, id, author string) (int64, error) {
	return queryDeleteEvent(ctx, s.db, s.dialect, id, author)
}

func (s *Store) ScanEvents(ctx context.Context, fn func(*model.Event) error) error {
	return queryScanEvents(ctx, s.db, fn)
}
