// Package postgres implements remote.Store on PostgreSQL through the pgx
// stdlib driver. Every table has the same shape: id, user_id, a jsonb data
// document and updated_at.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/remote"
)

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Store is the Postgres-backed remote store.
type Store struct {
	db     *sql.DB
	tables map[string]struct{}
}

// NewWithDB constructs a store backed directly by database/sql.
func NewWithDB(db *sql.DB) *Store {
	known := make(map[string]struct{}, len(model.Tables))
	for _, t := range model.Tables {
		known[t] = struct{}{}
	}
	return &Store{db: db, tables: known}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// HealthPing implements remote.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates every table if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, t := range model.Tables {
		stmts := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            data JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`, t),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_id_idx ON %s (user_id)`, t, t),
		}
		for _, stmt := range stmts {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema %s: %w", t, err)
			}
		}
	}
	return nil
}

func (s *Store) Select(ctx context.Context, table string, filter remote.Filter, order *remote.Order) ([]remote.Row, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	where, args, err := whereClause(filter, 1)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT id, user_id, data FROM %s%s`, table, where)
	if order != nil {
		expr, err := columnExpr(order.Column, false)
		if err != nil {
			return nil, err
		}
		dir := "ASC"
		if order.Descending {
			dir = "DESC"
		}
		q += fmt.Sprintf(` ORDER BY %s %s`, expr, dir)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []remote.Row
	for rows.Next() {
		var id, userID string
		var data []byte
		if err := rows.Scan(&id, &userID, &data); err != nil {
			return nil, err
		}
		row := remote.Row{}
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, fmt.Errorf("decode %s row %s: %w", table, id, err)
		}
		row[remote.ColumnID] = id
		row[remote.ColumnUserID] = userID
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) Insert(ctx context.Context, table string, rows []remote.Row) error {
	return s.write(ctx, table, rows, false)
}

func (s *Store) Upsert(ctx context.Context, table string, rows []remote.Row) error {
	return s.write(ctx, table, rows, true)
}

func (s *Store) write(ctx context.Context, table string, rows []remote.Row, upsert bool) error {
	if err := s.checkTable(table); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, user_id, data, updated_at) VALUES ($1, $2, $3, now())`, table)
	if upsert {
		q += ` ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, data = EXCLUDED.data, updated_at = now()`
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range rows {
		id := remote.RowID(r)
		userID, _ := r[remote.ColumnUserID].(string)
		if id == "" || userID == "" {
			return fmt.Errorf("%s row missing id or user_id", table)
		}
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, id, userID, data); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Update(ctx context.Context, table string, patch remote.Row, filter remote.Filter) error {
	if err := s.checkTable(table); err != nil {
		return err
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	where, args, err := whereClause(filter, 2)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`UPDATE %s SET data = data || $1::jsonb, updated_at = now()%s`, table, where)
	_, err = s.db.ExecContext(ctx, q, append([]any{data}, args...)...)
	return err
}

func (s *Store) Delete(ctx context.Context, table string, filter remote.Filter) error {
	if err := s.checkTable(table); err != nil {
		return err
	}
	if len(filter) == 0 {
		return remote.ErrUnfilteredDelete
	}
	where, args, err := whereClause(filter, 1)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s%s`, table, where), args...)
	return err
}

func (s *Store) checkTable(table string) error {
	if _, ok := s.tables[table]; !ok || !identRe.MatchString(table) {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

// whereClause renders filter with placeholders starting at $first. Keys are
// sorted so the statement text is stable.
func whereClause(filter remote.Filter, first int) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		expr, err := columnExpr(k, true)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, fmt.Sprintf("%s = $%d", expr, first+i))
		args = append(args, fmt.Sprint(filter[k]))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// columnExpr maps a logical column to SQL. id, user_id and updated_at are real
// columns; anything else lives in the data document.
func columnExpr(col string, asText bool) (string, error) {
	if !identRe.MatchString(col) {
		return "", fmt.Errorf("invalid column %q", col)
	}
	switch col {
	case remote.ColumnID, remote.ColumnUserID, "updated_at":
		return col, nil
	}
	if asText {
		return fmt.Sprintf("data->>'%s'", col), nil
	}
	return fmt.Sprintf("data->'%s'", col), nil
}
