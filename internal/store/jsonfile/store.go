// Package jsonfile stores payroll data as JSON documents in a directory.
//
// Three files are kept: employees.json, salary_records.json and
// imports.json. The first two use the layout older deployments already
// have on their volumes, so existing data loads unchanged.
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/JonMunkholm/paystub/internal/payroll"
)

// File names inside the data directory.
const (
	EmployeesFile = "employees.json"
	RecordsFile   = "salary_records.json"
	ImportsFile   = "imports.json"
)

// maxImportHistory bounds imports.json.
const maxImportHistory = 200

// Store is a payroll.Store backed by JSON files. All data is held in memory
// and each SaveImport rewrites the files.
type Store struct {
	dir string

	mu        sync.RWMutex
	employees []payroll.Employee
	records   []payroll.SalaryRecord
	imports   []payroll.ImportSummary
}

var _ payroll.Store = (*Store)(nil)

// Open loads the store in dir, creating the directory if needed. Missing
// files start out empty.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: create data dir: %w", err)
	}

	s := &Store{dir: dir}
	if err := readJSON(s.path(EmployeesFile), &s.employees); err != nil {
		return nil, err
	}
	if err := readJSON(s.path(RecordsFile), &s.records); err != nil {
		return nil, err
	}
	if err := readJSON(s.path(ImportsFile), &s.imports); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Employees returns every known employee.
func (s *Store) Employees(ctx context.Context) ([]payroll.Employee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]payroll.Employee, len(s.employees))
	copy(out, s.employees)
	return out, nil
}

// SaveImport replaces every record of batch.Month and appends the new
// employees. Files are replaced by rename; employees are written before
// records so a reader never sees a record whose employee is missing.
func (s *Store) SaveImport(ctx context.Context, batch payroll.ImportBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	employees := append(append([]payroll.Employee(nil), s.employees...), batch.NewEmployees...)

	nextID := 1
	records := make([]payroll.SalaryRecord, 0, len(s.records)+len(batch.Records))
	for _, r := range s.records {
		if r.ID >= nextID {
			nextID = r.ID + 1
		}
		if r.Month != batch.Month {
			records = append(records, r)
		}
	}
	for _, r := range batch.Records {
		r.ID = nextID
		nextID++
		r.Month = batch.Month
		r.ImportID = batch.ImportID
		records = append(records, r)
	}

	imports := append([]payroll.ImportSummary{batch.Summary()}, s.imports...)
	if len(imports) > maxImportHistory {
		imports = imports[:maxImportHistory]
	}

	if len(batch.NewEmployees) > 0 {
		if err := writeJSON(s.path(EmployeesFile), employees); err != nil {
			return err
		}
	}
	if err := writeJSON(s.path(RecordsFile), records); err != nil {
		return err
	}
	if err := writeJSON(s.path(ImportsFile), imports); err != nil {
		return err
	}

	s.employees = employees
	s.records = records
	s.imports = imports
	return nil
}

// Records returns the records of month in stored order.
func (s *Store) Records(ctx context.Context, month string) ([]payroll.SalaryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []payroll.SalaryRecord
	for _, r := range s.records {
		if r.Month == month {
			out = append(out, r)
		}
	}
	return out, nil
}

// Months returns the distinct months with records, ascending.
func (s *Store) Months(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	months := []string{}
	for _, r := range s.records {
		if !seen[r.Month] {
			seen[r.Month] = true
			months = append(months, r.Month)
		}
	}
	sort.Strings(months)
	return months, nil
}

// Imports returns up to limit history entries, newest first.
func (s *Store) Imports(ctx context.Context, limit int) ([]payroll.ImportSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := max(min(limit, len(s.imports)), 0)
	out := make([]payroll.ImportSummary, n)
	copy(out, s.imports[:n])
	return out, nil
}

// Ping checks that the data directory is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("jsonfile: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("jsonfile: %s is not a directory", s.dir)
	}
	return nil
}

// Close is a no-op; every write is already on disk.
func (s *Store) Close() error {
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("jsonfile: read %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("jsonfile: decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON replaces path atomically with the indented encoding of v.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("jsonfile: write %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonfile: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonfile: sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonfile: write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("jsonfile: replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
