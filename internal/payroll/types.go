package payroll

import (
	"context"
	"time"
)

// Identity columns every salary sheet must carry.
const (
	ColumnName = "姓名"
	ColumnCard = "银行卡号"
)

// ColumnSerial is the row-number column dropped from payslips.
const ColumnSerial = "序号"

// MissingValue is shown for salary items without a value.
const MissingValue = "-"

// cardSuffixLen is how many trailing card digits identify an employee.
const cardSuffixLen = 6

// Employee is a person known from a previous import.
type Employee struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	CardLast6 string `json:"card_last6"`
}

// Key returns the identity used to match sheet rows to employees.
func (e Employee) Key() string {
	return identityKey(e.Name, e.CardLast6)
}

func identityKey(name, cardLast6 string) string {
	return name + "_" + cardLast6
}

// SalaryRecord is one employee's salary items for one month.
type SalaryRecord struct {
	ID         int               `json:"id"`
	EmployeeID int               `json:"employee_id"`
	Month      string            `json:"month"`
	Data       map[string]string `json:"salary_data"`
	// Columns keeps the sheet's column order, minus the identity columns.
	Columns  []string `json:"salary_columns"`
	ImportID string   `json:"import_id,omitempty"`
}

// ImportBatch is everything one import writes.
type ImportBatch struct {
	ImportID     string
	Month        string
	FileName     string
	NewEmployees []Employee
	// Records replace every record previously stored for Month.
	// Their IDs are assigned by the store.
	Records    []SalaryRecord
	ImportedAt time.Time
}

// ImportSummary is the history entry kept for each import.
type ImportSummary struct {
	ImportID     string    `json:"import_id"`
	Month        string    `json:"month"`
	FileName     string    `json:"file_name"`
	Records      int       `json:"records"`
	NewEmployees int       `json:"new_employees"`
	ImportedAt   time.Time `json:"imported_at"`
}

// Summary returns the history entry for b.
func (b ImportBatch) Summary() ImportSummary {
	return ImportSummary{
		ImportID:     b.ImportID,
		Month:        b.Month,
		FileName:     b.FileName,
		Records:      len(b.Records),
		NewEmployees: len(b.NewEmployees),
		ImportedAt:   b.ImportedAt,
	}
}

// Store persists employees and salary records.
//
// SaveImport must be atomic: either the whole batch is visible afterwards
// or none of it is.
type Store interface {
	Employees(ctx context.Context) ([]Employee, error)
	SaveImport(ctx context.Context, batch ImportBatch) error
	Records(ctx context.Context, month string) ([]SalaryRecord, error)
	Months(ctx context.Context) ([]string, error)
	// Imports returns up to limit history entries, newest first.
	Imports(ctx context.Context, limit int) ([]ImportSummary, error)
	Ping(ctx context.Context) error
	Close() error
}

// ImportRequest is an uploaded workbook destined for one month.
type ImportRequest struct {
	Month    string
	FileName string
	Data     []byte
}

// ImportResult summarizes a completed import.
type ImportResult struct {
	ImportID     string        `json:"import_id"`
	Month        string        `json:"month"`
	FileName     string        `json:"file_name"`
	Processed    int           `json:"processed"`
	Skipped      int           `json:"skipped"`
	NewEmployees int           `json:"new_employees"`
	Columns      []string      `json:"columns"`
	KeptAs       string        `json:"kept_as,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}

// Preview is a decoded workbook that was not stored.
type Preview struct {
	FileName  string     `json:"file_name"`
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
	// Importable counts rows with a usable name.
	Importable int `json:"importable"`
	Truncated  bool `json:"truncated"`
}

// QueryRequest identifies a payslip.
type QueryRequest struct {
	Name      string `json:"name"`
	CardLast6 string `json:"card_last6"`
	Month     string `json:"month"`
}

// PayslipItem is one line of a payslip.
type PayslipItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Payslip is one employee's salary for one month.
type Payslip struct {
	EmployeeName string        `json:"employee_name"`
	Month        string        `json:"month"`
	Items        []PayslipItem `json:"items"`
}
