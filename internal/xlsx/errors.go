package xlsx

import (
	"errors"
	"fmt"
)

// Kind classifies decode failures.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors not produced by this package.
	KindUnknown Kind = iota
	// KindArchive means the container could not be opened or read.
	KindArchive
	// KindMissingWorksheet means no entry matched the worksheet naming convention.
	KindMissingWorksheet
	// KindMarkup means a worksheet or shared string part is not well-formed XML.
	KindMarkup
	// KindSharedStringIndex means a cell referenced a shared string that does not exist.
	KindSharedStringIndex
	// KindInvalidColumn means a cell coordinate had no decodable column letters.
	KindInvalidColumn
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrArchive           = errors.New("archive error")
	ErrMissingWorksheet  = errors.New("missing worksheet")
	ErrMarkup            = errors.New("markup parse error")
	ErrSharedStringIndex = errors.New("shared string index error")
	ErrInvalidColumn     = errors.New("invalid column token")
)

// String returns the kind name used in logs and API responses.
func (k Kind) String() string {
	switch k {
	case KindArchive:
		return "ArchiveError"
	case KindMissingWorksheet:
		return "MissingWorksheetError"
	case KindMarkup:
		return "MarkupParseError"
	case KindSharedStringIndex:
		return "SharedStringIndexError"
	case KindInvalidColumn:
		return "InvalidColumnToken"
	default:
		return "Unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindArchive:
		return ErrArchive
	case KindMissingWorksheet:
		return ErrMissingWorksheet
	case KindMarkup:
		return ErrMarkup
	case KindSharedStringIndex:
		return ErrSharedStringIndex
	case KindInvalidColumn:
		return ErrInvalidColumn
	default:
		return nil
	}
}

// Error is the single failure type returned by the decoder.
type Error struct {
	Kind Kind
	Part string // package part being processed, empty when not applicable
	Err  error
}

func (e *Error) Error() string {
	if e.Part != "" {
		return fmt.Sprintf("xlsx: %s in %s: %v", e.Kind, e.Part, e.Err)
	}
	return fmt.Sprintf("xlsx: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of the first *Error in err's chain,
// or KindUnknown if there is none.
func KindOf(err error) Kind {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Kind
	}
	return KindUnknown
}

func newError(kind Kind, part string, err error) *Error {
	return &Error{Kind: kind, Part: part, Err: err}
}

func newErrorf(kind Kind, part, format string, args ...any) *Error {
	return &Error{Kind: kind, Part: part, Err: fmt.Errorf(format, args...)}
}
