package payroll

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/paystub/internal/logging"
	"github.com/JonMunkholm/paystub/internal/xlsx"
)

// Defaults applied by NewService for zero Options fields.
const (
	DefaultMaxFileSize   = 20 << 20
	DefaultImportTimeout = 2 * time.Minute
	DefaultPreviewRows   = 20
)

// Options configures a Service.
type Options struct {
	// MaxFileSize bounds both the upload and its decompressed workbook.
	MaxFileSize int64
	// Timeout bounds one import once it holds a limiter slot.
	Timeout time.Duration
	// KeepDir, when set, receives each imported workbook as salary_<month>.xlsx.
	KeepDir string
	// PreviewRows is how many data rows PreviewWorkbook returns.
	PreviewRows int
}

// Service runs imports and payslip lookups against a Store.
type Service struct {
	store   Store
	limiter *ImportLimiter
	opts    Options

	now   func() time.Time
	newID func() string

	// writeMu serializes the read-employees/save section of imports so
	// concurrent imports cannot hand out the same employee ID.
	writeMu sync.Mutex
}

// NewService creates a Service. A nil limiter gets the package defaults.
func NewService(store Store, limiter *ImportLimiter, opts Options) *Service {
	if limiter == nil {
		limiter = NewImportLimiter(0, 0)
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultImportTimeout
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = DefaultPreviewRows
	}
	return &Service{
		store:   store,
		limiter: limiter,
		opts:    opts,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Limiter returns the import limiter, for shutdown draining and health checks.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ImportWorkbook decodes req.Data and replaces every salary record of
// req.Month with the sheet's rows.
func (s *Service) ImportWorkbook(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	start := s.now()

	req.Month = strings.TrimSpace(req.Month)
	if err := ValidateMonth(req.Month); err != nil {
		return nil, fmt.Errorf("%w: %q", err, req.Month)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	importID := s.newID()
	logger := logging.WithFields(ctx,
		"import_id", importID,
		"month", req.Month,
		"file", req.FileName,
		"actor", ActorFromContext(ctx),
		"ip", IPAddressFromContext(ctx),
	)
	logger.Info("import started", "bytes", len(req.Data))

	table, workbook, err := s.decode(req.FileName, req.Data)
	if err != nil {
		logger.Warn("import rejected", "error", err, "kind", xlsx.KindOf(err).String())
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	employees, err := s.store.Employees(ctx)
	if err != nil {
		return nil, fmt.Errorf("load employees: %w", err)
	}

	batch, skipped := buildBatch(table, req.Month, employees)
	batch.ImportID = importID
	batch.FileName = req.FileName
	batch.ImportedAt = start

	if err := s.store.SaveImport(ctx, batch); err != nil {
		logger.Error("import failed", "error", err)
		return nil, fmt.Errorf("save import: %w", err)
	}

	kept, err := s.keepWorkbook(req.Month, workbook)
	if err != nil {
		logger.Warn("keeping uploaded workbook failed", "error", err)
	}

	result := &ImportResult{
		ImportID:     importID,
		Month:        req.Month,
		FileName:     req.FileName,
		Processed:    len(batch.Records),
		Skipped:      skipped,
		NewEmployees: len(batch.NewEmployees),
		Columns:      salaryColumns(table.Headers),
		KeptAs:       kept,
		Duration:     s.now().Sub(start),
	}
	logger.Info("import completed",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"new_employees", result.NewEmployees,
		"duration", result.Duration,
	)
	return result, nil
}

// PreviewWorkbook decodes and validates a workbook without storing anything.
func (s *Service) PreviewWorkbook(ctx context.Context, fileName string, data []byte) (*Preview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, _, err := s.decode(fileName, data)
	if err != nil {
		logging.FromContext(ctx).Debug("preview rejected", "file", fileName, "error", err)
		return nil, err
	}

	p := &Preview{
		FileName:  fileName,
		Headers:   table.Headers,
		Rows:      make([][]string, 0, min(len(table.Rows), s.opts.PreviewRows)),
		TotalRows: len(table.Rows),
	}
	for _, row := range table.Rows {
		if !isBlankName(strings.TrimSpace(row.Value(ColumnName))) {
			p.Importable++
		}
		if len(p.Rows) < s.opts.PreviewRows {
			p.Rows = append(p.Rows, row.Values())
		}
	}
	p.Truncated = len(p.Rows) < p.TotalRows
	return p, nil
}

// decode validates an upload and returns its table along with the bare
// workbook bytes.
func (s *Service) decode(fileName string, data []byte) (*xlsx.Table, []byte, error) {
	comp, err := DetectFile(fileName)
	if err != nil {
		return nil, nil, err
	}
	if len(data) == 0 {
		return nil, nil, ErrEmptyFile
	}
	if int64(len(data)) > s.opts.MaxFileSize {
		return nil, nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(data), s.opts.MaxFileSize)
	}

	workbook, err := Decompress(comp, data, s.opts.MaxFileSize)
	if err != nil {
		return nil, nil, err
	}

	table, err := xlsx.ReadBytes(workbook)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", fileName, err)
	}

	for _, col := range []string{ColumnName, ColumnCard} {
		if !table.HasHeader(col) {
			return nil, nil, &MissingColumnError{Column: col}
		}
	}
	return table, workbook, nil
}

// buildBatch turns sheet rows into records, matching or creating employees.
// It returns the batch and the number of rows skipped for lacking a name.
func buildBatch(table *xlsx.Table, month string, employees []Employee) (ImportBatch, int) {
	ids := make(map[string]int, len(employees))
	nextID := 1
	for _, e := range employees {
		ids[e.Key()] = e.ID
		if e.ID >= nextID {
			nextID = e.ID + 1
		}
	}

	columns := salaryColumns(table.Headers)
	batch := ImportBatch{Month: month}
	skipped := 0

	for _, row := range table.Rows {
		name := strings.TrimSpace(row.Value(ColumnName))
		if isBlankName(name) {
			skipped++
			continue
		}
		last6 := lastRunes(strings.TrimSpace(row.Value(ColumnCard)), cardSuffixLen)

		key := identityKey(name, last6)
		id, ok := ids[key]
		if !ok {
			id = nextID
			nextID++
			ids[key] = id
			batch.NewEmployees = append(batch.NewEmployees, Employee{ID: id, Name: name, CardLast6: last6})
		}

		data := make(map[string]string, len(columns))
		for _, col := range columns {
			v := row.Value(col)
			if strings.TrimSpace(v) == "" {
				data[col] = MissingValue
				continue
			}
			data[col] = FormatNumber(v)
		}

		batch.Records = append(batch.Records, SalaryRecord{
			EmployeeID: id,
			Month:      month,
			Data:       data,
			Columns:    columns,
		})
	}
	return batch, skipped
}

// salaryColumns returns the headers that become salary items: everything
// except the identity columns and blank headers, first occurrence kept.
func salaryColumns(headers []string) []string {
	seen := make(map[string]bool, len(headers))
	cols := make([]string, 0, len(headers))
	for _, h := range headers {
		if h == "" || h == ColumnName || h == ColumnCard || seen[h] {
			continue
		}
		seen[h] = true
		cols = append(cols, h)
	}
	return cols
}

func (s *Service) keepWorkbook(month string, workbook []byte) (string, error) {
	if s.opts.KeepDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(s.opts.KeepDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(s.opts.KeepDir, "salary_"+month+".xlsx")
	tmp, err := os.CreateTemp(s.opts.KeepDir, ".salary-*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(workbook); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// Query returns one employee's payslip for a month.
//
// Items are the union of salary items over every record of the month, so
// all employees see the same lines. They follow the column order of the
// month's first record, then any remaining names sorted. The serial number
// column is left out and items the employee has no value for show "-".
func (s *Service) Query(ctx context.Context, q QueryRequest) (*Payslip, error) {
	name := strings.TrimSpace(q.Name)
	last6 := strings.TrimSpace(q.CardLast6)
	month := strings.TrimSpace(q.Month)
	if name == "" || last6 == "" || month == "" {
		return nil, ErrInvalidInput
	}
	if err := ValidateMonth(month); err != nil {
		return nil, fmt.Errorf("%w: %q", err, month)
	}

	employees, err := s.store.Employees(ctx)
	if err != nil {
		return nil, fmt.Errorf("load employees: %w", err)
	}

	var emp *Employee
	for i := range employees {
		if employees[i].Name == name && employees[i].CardLast6 == last6 {
			emp = &employees[i]
			break
		}
	}
	if emp == nil {
		return nil, ErrEmployeeNotFound
	}

	records, err := s.store.Records(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	var own *SalaryRecord
	for i := range records {
		if records[i].EmployeeID == emp.ID {
			own = &records[i]
			break
		}
	}
	if own == nil || len(own.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, month)
	}

	items := payslipItems(records)
	slip := &Payslip{
		EmployeeName: emp.Name,
		Month:        month,
		Items:        make([]PayslipItem, 0, len(items)),
	}
	for _, item := range items {
		v, ok := own.Data[item]
		if !ok {
			v = MissingValue
		}
		slip.Items = append(slip.Items, PayslipItem{Name: item, Value: v})
	}

	logging.FromContext(ctx).Debug("payslip served", "employee_id", emp.ID, "month", month, "items", len(slip.Items))
	return slip, nil
}

func payslipItems(records []SalaryRecord) []string {
	var base []string
	rest := make(map[string]bool)
	for _, r := range records {
		if base == nil && len(r.Columns) > 0 {
			base = r.Columns
		}
		for k := range r.Data {
			if k != ColumnSerial {
				rest[k] = true
			}
		}
	}

	items := make([]string, 0, len(rest))
	for _, col := range base {
		if rest[col] {
			items = append(items, col)
			delete(rest, col)
		}
	}

	tail := make([]string, 0, len(rest))
	for k := range rest {
		tail = append(tail, k)
	}
	sort.Strings(tail)
	return append(items, tail...)
}

// RecentImports returns the latest import history entries, newest first.
func (s *Service) RecentImports(ctx context.Context, limit int) ([]ImportSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	imports, err := s.store.Imports(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load imports: %w", err)
	}
	return imports, nil
}

// Months lists every month with stored records, newest first.
func (s *Service) Months(ctx context.Context) ([]string, error) {
	months, err := s.store.Months(ctx)
	if err != nil {
		return nil, fmt.Errorf("load months: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months, nil
}
