package history

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/shwndea/automated-padc-processor/internal/config"
	apperrors "github.com/shwndea/automated-padc-processor/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_runs (
	id                 TEXT PRIMARY KEY,
	input_file         TEXT NOT NULL,
	digest             TEXT NOT NULL DEFAULT '',
	school_year        TEXT NOT NULL DEFAULT '',
	location           TEXT NOT NULL DEFAULT '',
	school_name        TEXT NOT NULL DEFAULT '',
	months             BIGINT[] NOT NULL DEFAULT '{}',
	raw_count          INTEGER NOT NULL DEFAULT 0,
	consolidated_count INTEGER NOT NULL DEFAULT 0,
	total              DOUBLE PRECISION NOT NULL DEFAULT 0,
	status             TEXT NOT NULL,
	error              TEXT NOT NULL DEFAULT '',
	started_at         TIMESTAMPTZ NOT NULL,
	finished_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_runs_started_at_idx ON audit_runs (started_at DESC);
`

// runRow is the database shape of Run.
type runRow struct {
	Run
	MonthsArray pq.Int64Array `db:"months"`
}

func toRow(r Run) runRow {
	months := make(pq.Int64Array, len(r.Months))
	for i, m := range r.Months {
		months[i] = int64(m)
	}
	return runRow{Run: r, MonthsArray: months}
}

func (r runRow) run() Run {
	out := r.Run
	out.Months = make([]int, len(r.MonthsArray))
	for i, m := range r.MonthsArray {
		out.Months[i] = int(m)
	}
	return out
}

// SQLStore keeps run history in PostgreSQL.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

// NewSQLStore connects with cfg.Driver ("postgres" or "pgx").
func NewSQLStore(ctx context.Context, cfg config.DatabaseConfig) (*SQLStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	if driver != "postgres" && driver != "pgx" {
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported database driver %q", driver), nil)
	}

	db, err := sqlx.ConnectContext(ctx, driver, cfg.DSN)
	if err != nil {
		return nil, apperrors.NewStorageError("connect to history database", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	return NewSQLStoreFromDB(db, driver), nil
}

// NewSQLStoreFromDB wraps an existing connection.
func NewSQLStoreFromDB(db *sqlx.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// Driver reports the database/sql driver in use.
func (s *SQLStore) Driver() string { return s.driver }

// EnsureSchema creates the audit_runs table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return apperrors.NewStorageError("create audit_runs table", err)
	}
	return nil
}

// Record inserts a run. Re-recording an id replaces the earlier row.
func (s *SQLStore) Record(ctx context.Context, run Run) error {
	query := `
		INSERT INTO audit_runs (
			id, input_file, digest, school_year, location, school_name, months,
			raw_count, consolidated_count, total, status, error, started_at, finished_at
		) VALUES (
			:id, :input_file, :digest, :school_year, :location, :school_name, :months,
			:raw_count, :consolidated_count, :total, :status, :error, :started_at, :finished_at
		)
		ON CONFLICT (id) DO UPDATE SET
			months = EXCLUDED.months,
			raw_count = EXCLUDED.raw_count,
			consolidated_count = EXCLUDED.consolidated_count,
			total = EXCLUDED.total,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at
	`
	if _, err := s.db.NamedExecContext(ctx, query, toRow(run)); err != nil {
		return apperrors.NewStorageError("record audit run", err).WithContext("run_id", run.ID)
	}
	return nil
}

// List returns up to limit runs, newest first.
func (s *SQLStore) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := `
		SELECT id, input_file, digest, school_year, location, school_name, months,
			raw_count, consolidated_count, total, status, error, started_at, finished_at
		FROM audit_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, apperrors.NewStorageError("list audit runs", err)
	}
	out := make([]Run, len(rows))
	for i, r := range rows {
		out[i] = r.run()
	}
	return out, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
