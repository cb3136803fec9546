// Package sqlfilter compiles event filters into parameterized SQL against the
// events table. Every value is passed as a bound argument; the generated SQL
// text only ever contains column names, operators and placeholders.
package sqlfilter

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/relay/internal/model"
)

// Mode selects between row retrieval and counting.
type Mode int

const (
	Select Mode = iota
	Count
)

// Dialect selects the placeholder syntax.
type Dialect int

const (
	// Postgres uses numbered placeholders ($1, $2, ...).
	Postgres Dialect = iota
	// SQLite uses positional ? placeholders.
	SQLite
)

// Columns is the column list returned by Select queries, in scan order.
const Columns = "id, pubkey, created_at, kind, tags, content, sig"

const (
	// exactTagValueMax is the longest tag value matched exactly; longer
	// values are matched by prefix.
	exactTagValueMax = 10
	// tagPrefixLen is the number of characters kept for prefix matches.
	tagPrefixLen = 30
)

// Query is a compiled statement and its bound arguments, in order.
type Query struct {
	SQL  string
	Args []any
}

// Compile lowers f into a single statement. Predicates are AND-ed; values of
// one tag name are OR-ed. The resolved limit is always the last argument.
func Compile(f model.Filter, mode Mode, limits model.Limits, dialect Dialect) Query {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		if dialect == SQLite {
			return "?"
		}
		return fmt.Sprintf("$%d", argIdx)
	}

	inClause := func(column string, values []any) {
		if len(values) == 0 {
			return
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = nextArg()
			args = append(args, v)
		}
		whereClauses = append(whereClauses, column+" IN ("+strings.Join(placeholders, ", ")+")")
	}

	inClause("id", stringArgs(f.IDs))
	inClause("pubkey", stringArgs(f.Authors))
	inClause("kind", intArgs(f.Kinds))

	if f.Since != nil {
		whereClauses = append(whereClauses, "created_at >= "+nextArg())
		args = append(args, *f.Since)
	}
	if f.Until != nil {
		whereClauses = append(whereClauses, "created_at <= "+nextArg())
		args = append(args, *f.Until)
	}

	if f.Search != nil {
		whereClauses = append(whereClauses, "content LIKE "+nextArg()+` ESCAPE '\'`)
		args = append(args, "%"+EscapeLike(*f.Search)+"%")
	}

	for _, name := range f.TagNames() {
		values := f.Tags[name]
		if len(values) == 0 {
			continue
		}
		alternatives := make([]string, len(values))
		for i, v := range values {
			alternatives[i] = "tags LIKE " + nextArg() + ` ESCAPE '\'`
			args = append(args, TagPattern(name, v))
		}
		if len(alternatives) == 1 {
			whereClauses = append(whereClauses, alternatives[0])
		} else {
			whereClauses = append(whereClauses, "("+strings.Join(alternatives, " OR ")+")")
		}
	}

	whereSQL := "1 = 1"
	if len(whereClauses) > 0 {
		whereSQL = strings.Join(whereClauses, " AND ")
	}

	limitArg := nextArg()
	args = append(args, limits.Clamp(f.Limit))

	var sql string
	switch mode {
	case Count:
		sql = "SELECT COUNT(*) AS total FROM (SELECT id FROM events WHERE " + whereSQL +
			" ORDER BY created_at DESC LIMIT " + limitArg + ") AS matched"
	default:
		sql = "SELECT " + Columns + " FROM events WHERE " + whereSQL +
			" ORDER BY created_at DESC LIMIT " + limitArg
	}
	return Query{SQL: sql, Args: args}
}

// TagPattern builds the LIKE pattern matching a tag entry with the given name
// and value inside the canonical tags blob. Values of up to 10 characters
// must match in full, including the closing quote; longer values match on
// their first 30 characters. name is the tag name as stored, already
// without the filter key's '#' marker.
func TagPattern(name, value string) string {
	exact := true
	if r := []rune(value); len(r) > exactTagValueMax {
		exact = false
		if len(r) > tagPrefixLen {
			value = string(r[:tagPrefixLen])
		}
	}

	quoted := string(model.AppendQuoted(nil, name)) + "," + string(model.AppendQuoted(nil, value))
	if !exact {
		quoted = strings.TrimSuffix(quoted, `"`)
	}
	return "%" + EscapeLike(quoted) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes the LIKE wildcards and the escape character itself so s
// matches literally under ESCAPE '\'.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func stringArgs(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func intArgs(values []int) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
