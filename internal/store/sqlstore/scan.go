package sqlstore

import (
	"database/sql"

	"github.com/alfredjeanlab/relay/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEvent scans a single row into a model.Event, decoding the stored tags
// blob. The row must contain columns in the order of sqlfilter.Columns.
func scanEvent(row scannable) (*model.Event, error) {
	var (
		e       model.Event
		tags    sql.NullString
		content sql.NullString
	)

	err := row.Scan(
		&e.ID,
		&e.PubKey,
		&e.CreatedAt,
		&e.Kind,
		&tags,
		&content,
		&e.Sig,
	)
	if err != nil {
		return nil, err
	}

	e.Content = content.String
	e.Tags, err = model.ParseTags(tags.String)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
