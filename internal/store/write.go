package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Statement is one parameterised SQL statement.
type Statement struct {
	SQL  string
	Args []any
}

// Materialize executes DDL statements in a single transaction.
// Either every table is created or none is.
func (s *Store) Materialize(ctx context.Context, ddl []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("materialize: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("materialize: %s: %w", firstLine(stmt), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("materialize: commit: %w", err)
	}
	return nil
}

// Write executes a batch of statements in a single transaction and returns
// the number of rows inserted. Statements sharing the same SQL reuse one
// prepared statement.
func (s *Store) Write(ctx context.Context, batch []Statement) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write: begin tx: %w", err)
	}
	defer tx.Rollback()

	prepared := make(map[string]*sql.Stmt)
	defer func() {
		for _, st := range prepared {
			st.Close()
		}
	}()

	var rows int64
	for _, stmt := range batch {
		st, ok := prepared[stmt.SQL]
		if !ok {
			st, err = tx.PrepareContext(ctx, stmt.SQL)
			if err != nil {
				return 0, fmt.Errorf("write: prepare %s: %w", firstLine(stmt.SQL), err)
			}
			prepared[stmt.SQL] = st
		}

		res, err := st.ExecContext(ctx, stmt.Args...)
		if err != nil {
			return 0, fmt.Errorf("write: %s: %w", firstLine(stmt.SQL), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("write: rows affected: %w", err)
		}
		rows += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write: commit: %w", err)
	}
	return rows, nil
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return strings.TrimSpace(stmt[:i])
	}
	return stmt
}
