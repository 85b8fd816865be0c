// Package postgres is a payroll.Store backed by PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/paystub/internal/payroll"
)

//go:embed schema.sql
var schema string

// Config holds connection pool settings.
type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// SearchPath, when set, overrides the connection's search_path.
	SearchPath string
}

// Store implements payroll.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ payroll.Store = (*Store)(nil)

// Open connects, verifies the connection and applies the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.SearchPath != "" {
		poolConfig.ConnConfig.RuntimeParams["search_path"] = cfg.SearchPath
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. The schema is not applied.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}
	return nil
}

// Employees returns every employee ordered by ID.
func (s *Store) Employees(ctx context.Context) ([]payroll.Employee, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, card_last6 FROM employees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query employees: %w", err)
	}
	emps, err := pgx.CollectRows(rows, pgx.RowToStructByPos[payroll.Employee])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan employees: %w", err)
	}
	return emps, nil
}

// SaveImport writes the batch in one transaction: history entry, new
// employees, then the month's records replacing the old ones.
func (s *Store) SaveImport(ctx context.Context, batch payroll.ImportBatch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	sum := batch.Summary()
	if _, err := tx.Exec(ctx,
		`INSERT INTO salary_imports (import_id, month, file_name, records, new_employees, imported_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sum.ImportID, sum.Month, sum.FileName, sum.Records, sum.NewEmployees, sum.ImportedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert import: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM salary_records WHERE month = $1`, batch.Month); err != nil {
		return fmt.Errorf("postgres: delete month: %w", err)
	}

	b := &pgx.Batch{}
	for _, e := range batch.NewEmployees {
		b.Queue(`INSERT INTO employees (id, name, card_last6) VALUES ($1, $2, $3)`, e.ID, e.Name, e.CardLast6)
	}
	for i, r := range batch.Records {
		data, err := json.Marshal(r.Data)
		if err != nil {
			return fmt.Errorf("postgres: encode salary data: %w", err)
		}
		cols, err := json.Marshal(r.Columns)
		if err != nil {
			return fmt.Errorf("postgres: encode salary columns: %w", err)
		}
		b.Queue(
			`INSERT INTO salary_records (employee_id, month, position, salary_data, salary_columns, import_id)
			 VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6)`,
			r.EmployeeID, batch.Month, i, string(data), string(cols), batch.ImportID,
		)
	}
	if b.Len() > 0 {
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("postgres: write batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// Records returns the records of month in sheet order.
func (s *Store) Records(ctx context.Context, month string) ([]payroll.SalaryRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, employee_id, month, salary_data, salary_columns, import_id
		 FROM salary_records WHERE month = $1 ORDER BY position, id`, month)
	if err != nil {
		return nil, fmt.Errorf("postgres: query records: %w", err)
	}
	defer rows.Close()

	var out []payroll.SalaryRecord
	for rows.Next() {
		var (
			r        payroll.SalaryRecord
			id       int64
			data     []byte
			cols     []byte
			importID pgtype.Text
		)
		if err := rows.Scan(&id, &r.EmployeeID, &r.Month, &data, &cols, &importID); err != nil {
			return nil, fmt.Errorf("postgres: scan record: %w", err)
		}
		r.ID = int(id)
		if err := json.Unmarshal(data, &r.Data); err != nil {
			return nil, fmt.Errorf("postgres: decode salary data of record %d: %w", id, err)
		}
		if err := json.Unmarshal(cols, &r.Columns); err != nil {
			return nil, fmt.Errorf("postgres: decode salary columns of record %d: %w", id, err)
		}
		if importID.Valid {
			r.ImportID = importID.String
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate records: %w", err)
	}
	return out, nil
}

// Months returns the distinct months with records, ascending.
func (s *Store) Months(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT month FROM salary_records ORDER BY month`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query months: %w", err)
	}
	months, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan months: %w", err)
	}
	return months, nil
}

// Imports returns up to limit history entries, newest first.
func (s *Store) Imports(ctx context.Context, limit int) ([]payroll.ImportSummary, error) {
	if limit <= 0 {
		return []payroll.ImportSummary{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT import_id, month, file_name, records, new_employees, imported_at
		 FROM salary_imports ORDER BY imported_at DESC, import_id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query imports: %w", err)
	}
	imports, err := pgx.CollectRows(rows, pgx.RowToStructByPos[payroll.ImportSummary])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan imports: %w", err)
	}
	return imports, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
