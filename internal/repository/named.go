package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"friends-scoreboard/internal/domain"

	"github.com/google/uuid"
)

// namedTable holds the queries shared by players and games: both are an id,
// a case-insensitively unique name and a creation time, referenced from one
// column of the match tables.
type namedTable struct {
	table     string
	entity    string
	refTable  string
	refColumn string
}

type namedRow struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

func (t namedTable) list(ctx context.Context, db *sql.DB, q domain.ListQuery) ([]namedRow, int, error) {
	where := ""
	var args []any
	if q.Search != "" {
		where = ` WHERE name LIKE ? ESCAPE '\'`
		args = append(args, likePattern(q.Search))
	}

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", t.table, err)
	}

	query := "SELECT id, name, created_at FROM " + t.table + where + " ORDER BY name COLLATE NOCASE"
	if q.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", t.table, err)
	}
	defer rows.Close()

	var out []namedRow
	for rows.Next() {
		var row namedRow
		var createdAt string
		if err := rows.Scan(&row.ID, &row.Name, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan %s: %w", t.entity, err)
		}
		row.CreatedAt = parseTime(createdAt)
		out = append(out, row)
	}
	return out, total, rows.Err()
}

func (t namedTable) create(ctx context.Context, db *sql.DB, name string) (*namedRow, error) {
	name, err := domain.NormalizeName(name)
	if err != nil {
		return nil, err
	}

	row := &namedRow{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO "+t.table+" (id, name, created_at) VALUES (?, ?, ?)",
		row.ID, row.Name, formatTime(row.CreatedAt))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%s %q: %w", t.entity, name, domain.ErrDuplicateName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", t.entity, err)
	}
	return row, nil
}

func (t namedTable) delete(ctx context.Context, db *sql.DB, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var refs int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+t.refTable+" WHERE "+t.refColumn+" = ?", id).Scan(&refs)
	if err != nil {
		return fmt.Errorf("failed to count %s references: %w", t.entity, err)
	}
	if refs > 0 {
		return &domain.InUseError{Entity: t.entity, Count: refs}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM "+t.table+" WHERE id = ?", id)
	if isForeignKeyViolation(err) {
		return &domain.InUseError{Entity: t.entity, Count: 1}
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", t.entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", t.entity, id, domain.ErrNotFound)
	}
	return tx.Commit()
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
