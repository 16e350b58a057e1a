package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/kebairia/dbmaint/internal/config"
	"github.com/kebairia/dbmaint/internal/logger"
)

var (
	// ErrConnect means the server could not be reached at all; fatal to the run.
	ErrConnect = errors.New("database connection failed")
	// ErrSelectDatabase means a USE statement failed; fatal to that group only.
	ErrSelectDatabase = errors.New("database selection failed")
	// ErrExecute is a driver-level statement failure.
	ErrExecute = errors.New("statement execution failed")
)

// Row is one result row with every column rendered as text.
type Row []string

// Session is an authenticated connection to one MySQL server. A single
// Session is opened per maintenance run and owned by the run coordinator;
// components receive it for the duration of a call only.
type Session interface {
	// Use selects the active database for subsequent statements.
	Use(ctx context.Context, name string) error
	// Exec runs a mutating statement in its own committed transaction and
	// returns the affected row count.
	Exec(ctx context.Context, stmt string) (int64, error)
	// Query runs a read-only statement and returns the first result set,
	// draining any secondary sets before returning.
	Query(ctx context.Context, stmt string) ([]Row, error)
	Close() error
}

type mysqlSession struct {
	db  *sqlx.DB
	log logger.Logger
}

var _ Session = (*mysqlSession)(nil)

// Connect opens a server-level session (no database selected yet) using
// the given connection parameters.
func Connect(ctx context.Context, conn config.Connection, log logger.Logger) (Session, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/?parseTime=true&multiStatements=true",
		conn.User, conn.Password, conn.Host, conn.Port)

	db, err := sqlx.ConnectContext(ctx, "mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	// One table at a time, one statement at a time.
	db.SetMaxOpenConns(1)

	log.Info("connected to mysql", "host", conn.Host, "port", conn.Port)
	return &mysqlSession{db: db, log: log}, nil
}

func (s *mysqlSession) Use(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("USE `%s`;", name)); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrSelectDatabase, name, err)
	}
	return nil
}

func (s *mysqlSession) Exec(ctx context.Context, stmt string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrExecute, err)
	}

	result, err := tx.ExecContext(ctx, stmt)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("%w: %v", ErrExecute, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("%w: rowcount: %v", ErrExecute, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrExecute, err)
	}
	return affected, nil
}

func (s *mysqlSession) Query(ctx context.Context, stmt string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecute, err)
	}
	defer rows.Close()

	out, err := scanTextRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecute, err)
	}

	// Statements may produce multiple result sets (stored procedures,
	// multi-statement batches). Leaving one unconsumed puts the session
	// in an undefined state for the next statement.
	for rows.NextResultSet() {
		for rows.Next() {
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: drain: %v", ErrExecute, err)
	}

	return out, nil
}

func (s *mysqlSession) Close() error {
	s.log.Info("closing mysql connection")
	return s.db.Close()
}

// scanTextRows reads the current result set, rendering every column as a
// string regardless of its SQL type.
func scanTextRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	raw := make([]sql.RawBytes, len(columns))
	dest := make([]any, len(columns))
	for i := range raw {
		dest[i] = &raw[i]
	}

	var out []Row
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, cell := range raw {
			row[i] = string(cell)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
