package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// NOTE: table schema (portable between Postgres and SQLite):
// CREATE TABLE credentials (
//   identity   TEXT PRIMARY KEY,
//   token      TEXT NOT NULL,
//   updated_at BIGINT NOT NULL
// );

type credentialRow struct {
	Identity  string `db:"identity"`
	Token     string `db:"token"`
	UpdatedAt int64  `db:"updated_at"`
}

// SQLRepo keeps the credential table in a database reachable through sqlx.
type SQLRepo struct {
	db *sqlx.DB
}

func NewSQLRepo(db *sqlx.DB) *SQLRepo {
	return &SQLRepo{db: db}
}

// EnsureTable creates the credentials table if not exists (idempotent).
func (r *SQLRepo) EnsureTable(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS credentials (
  identity TEXT PRIMARY KEY,
  token TEXT NOT NULL,
  updated_at BIGINT NOT NULL
)`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *SQLRepo) Load(ctx context.Context) (map[string]string, error) {
	if err := r.EnsureTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure credentials table: %w", err)
	}
	var rows []credentialRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT identity, token, updated_at FROM credentials`); err != nil {
		return nil, fmt.Errorf("select credentials: %w", err)
	}
	tokens := make(map[string]string, len(rows))
	for _, row := range rows {
		tokens[row.Identity] = row.Token
	}
	return tokens, nil
}

// Save replaces the table contents in a single transaction.
func (r *SQLRepo) Save(ctx context.Context, tokens map[string]string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	now := time.Now().Unix()
	insert := tx.Rebind(`INSERT INTO credentials (identity, token, updated_at) VALUES (?, ?, ?)`)
	for identity, token := range tokens {
		if _, err := tx.ExecContext(ctx, insert, identity, token, now); err != nil {
			return fmt.Errorf("insert credential %s: %w", identity, err)
		}
	}
	return tx.Commit()
}
