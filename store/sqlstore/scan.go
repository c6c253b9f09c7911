package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mickamy/revisionable"
)

// scanRevisions consumes rows selected with query.SelectColumns.
func scanRevisions(rows *sql.Rows) ([]revisionable.Revision, error) {
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var out []revisionable.Revision
	for rows.Next() {
		var (
			rev                          revisionable.Revision
			userType, userID, ctxJSON    sql.NullString
			oldValue, newValue, clientIP sql.NullString
			createdAt, updatedAt         timeValue
		)
		if err := rows.Scan(
			&rev.ID,
			&rev.RevisionableType,
			&rev.RevisionableID,
			&userType,
			&userID,
			&rev.Key,
			&oldValue,
			&newValue,
			&clientIP,
			&createdAt,
			&updatedAt,
			&ctxJSON,
		); err != nil {
			return nil, fmt.Errorf("sqlstore: failed to scan revision: %w", err)
		}
		rev.UserType = stringPtr(userType)
		rev.UserID = stringPtr(userID)
		rev.OldValue = stringPtr(oldValue)
		rev.NewValue = stringPtr(newValue)
		rev.IP = stringPtr(clientIP)
		rev.CreatedAt = createdAt.t
		rev.UpdatedAt = updatedAt.t
		if ctxJSON.Valid {
			rev.Context = revisionable.NewPayload([]byte(ctxJSON.String))
		}
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: failed to read revisions: %w", err)
	}
	return out, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// sqliteTimeLayout is fixed-width so timestamps stored as text sort in time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

var timeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// timeValue scans timestamps returned either as time.Time or as text.
type timeValue struct {
	t time.Time
}

func (v *timeValue) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		v.t = time.Time{}
		return nil
	case time.Time:
		v.t = x
		return nil
	case []byte:
		return v.parse(string(x))
	case string:
		return v.parse(x)
	}
	return fmt.Errorf("sqlstore: cannot scan %T into timestamp", src)
}

func (v *timeValue) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			v.t = t
			return nil
		}
	}
	return fmt.Errorf("sqlstore: unrecognized timestamp %q", s)
}
