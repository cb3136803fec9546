package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/relay/internal/model"
	"github.com/alfredjeanlab/relay/internal/store"
	"github.com/alfredjeanlab/relay/internal/store/sqlfilter"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// placeholders returns n comma-separated placeholders in the dialect's syntax.
func placeholders(dialect sqlfilter.Dialect, n int) string {
	ps := make([]string, n)
	for i := range ps {
		if dialect == sqlfilter.SQLite {
			ps[i] = "?"
		} else {
			ps[i] = fmt.Sprintf("$%d", i+1)
		}
	}
	return strings.Join(ps, ", ")
}

func queryEvents(ctx context.Context, db executor, dialect sqlfilter.Dialect, limits model.Limits, filter model.Filter) ([]*model.Event, error) {
	q := sqlfilter.Compile(filter, sqlfilter.Select, limits, dialect)

	rows, err := db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan events: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}

func queryCountEvents(ctx context.Context, db executor, dialect sqlfilter.Dialect, limits model.Limits, filter model.Filter) (int64, error) {
	q := sqlfilter.Compile(filter, sqlfilter.Count, limits, dialect)

	var total int64
	if err := db.QueryRowContext(ctx, q.SQL, q.Args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return total, nil
}

func queryInsertEvent(ctx context.Context, db executor, dialect sqlfilter.Dialect, e *model.Event) (store.InsertResult, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO events (id, pubkey, created_at, kind, tags, content, sig)
		VALUES (`+placeholders(dialect, 7)+`)
		ON CONFLICT (id) DO NOTHING`,
		e.ID,
		e.PubKey,
		e.CreatedAt,
		e.Kind,
		e.Tags.Canonical(),
		e.Content,
		e.Sig,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	if n == 0 {
		return store.Duplicate, nil
	}
	return store.Inserted, nil
}

func queryDeleteEvent(ctx context.Context, db executor, dialect sqlfilter.Dialect, id, author string) (int64, error) {
	stmt := `DELETE FROM events WHERE id = $1 AND pubkey = $2`
	if dialect == sqlfilter.SQLite {
		stmt = `DELETE FROM events WHERE id = ? AND pubkey = ?`
	}

	res, err := db.ExecContext(ctx, stmt, id, author)
	if err != nil {
		return 0, fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete event: %w", err)
	}
	return n, nil
}

func queryScanEvents(ctx context.Context, db executor, fn func(*model.Event) error) error {
	rows, err := db.QueryContext(ctx, `SELECT `+sqlfilter.Columns+` FROM events ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("scan all events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return fmt.Errorf("scan all events: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}
