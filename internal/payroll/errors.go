package payroll

import "errors"

var (
	// ErrMissingColumn is returned when a sheet lacks an identity column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrEmployeeNotFound is returned when no employee matches name and card suffix.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrRecordNotFound is returned when the employee has no record for the month.
	ErrRecordNotFound = errors.New("salary record not found")

	// ErrInvalidMonth is returned for months not written as YYYY-MM.
	ErrInvalidMonth = errors.New("invalid month")

	// ErrInvalidInput is returned when a lookup is missing a field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFile is returned for uploads that are not .xlsx workbooks.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrFileTooLarge is returned when an upload, or its decompressed form,
	// exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile is returned when no file content was sent.
	ErrEmptyFile = errors.New("empty file")
)

// MissingColumnError names the identity column a sheet lacks.
// It matches ErrMissingColumn under errors.Is.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return "missing required column " + e.Column
}

func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}
