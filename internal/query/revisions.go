package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mickamy/revisionable/internal/ident"
)

// Dialect selects placeholder and type syntax.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "dialect(" + strconv.Itoa(int(d)) + ")"
	}
}

// Placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Columns lists the revisions table columns written on insert, without context.
var Columns = []string{
	"revisionable_type",
	"revisionable_id",
	"user_type",
	"user_id",
	"key",
	"old_value",
	"new_value",
	"ip",
	"created_at",
	"updated_at",
}

// ContextColumn is written only when revisions carry a context payload.
const ContextColumn = "context"

// Insert builds a multi-row INSERT for rows rows of cols.
func Insert(d Dialect, table string, cols []string, rows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(quoteColumns(cols))
	b.WriteString(") VALUES ")
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Count counts the revisions of one entity.
// Args: type, id.
func Count(d Dialect, table string) string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, table, entityFilter(d))
}

// DeleteOldest deletes the first N revisions of one entity by id.
// Args: type, id, n.
func DeleteOldest(d Dialect, table string) string {
	return fmt.Sprintf(`DELETE FROM %s WHERE "id" IN (SELECT "id" FROM %s WHERE %s ORDER BY "id" ASC LIMIT %s)`,
		table, table, entityFilter(d), d.Placeholder(3))
}

// ClassHistory selects the latest revisions of a type.
// Args: type, limit.
func ClassHistory(d Dialect, table string) string {
	return fmt.Sprintf(`SELECT %s FROM %s WHERE "revisionable_type" = %s ORDER BY "updated_at" DESC, "id" DESC LIMIT %s`,
		selectList(d), table, d.Placeholder(1), d.Placeholder(2))
}

// EntityHistory selects every revision of one entity in insertion order.
// Args: type, id.
func EntityHistory(d Dialect, table string) string {
	return fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY "id" ASC`, selectList(d), table, entityFilter(d))
}

// DeleteRevisions deletes the revisions of one entity, restricted to keys when keys > 0.
// Args: type, id, keys...
func DeleteRevisions(d Dialect, table string, keys int) string {
	q := fmt.Sprintf(`DELETE FROM %s WHERE %s`, table, entityFilter(d))
	if keys == 0 {
		return q
	}
	ps := make([]string, keys)
	for i := range ps {
		ps[i] = d.Placeholder(i + 3)
	}
	return q + ` AND "key" IN (` + strings.Join(ps, ", ") + `)`
}

// SelectColumns lists the columns returned by the history queries, in scan order.
var SelectColumns = []string{
	"id",
	"revisionable_type",
	"revisionable_id",
	"user_type",
	"user_id",
	"key",
	"old_value",
	"new_value",
	"ip",
	"created_at",
	"updated_at",
	ContextColumn,
}

func selectList(d Dialect) string {
	parts := make([]string, len(SelectColumns))
	for i, c := range SelectColumns {
		parts[i] = ident.Quote(c)
		if c == ContextColumn && d == Postgres {
			parts[i] = ident.Quote(c) + "::text"
		}
	}
	return strings.Join(parts, ", ")
}

func entityFilter(d Dialect) string {
	return fmt.Sprintf(`"revisionable_type" = %s AND "revisionable_id" = %s`, d.Placeholder(1), d.Placeholder(2))
}

func quoteColumns(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = ident.Quote(c)
	}
	return strings.Join(q, ", ")
}
