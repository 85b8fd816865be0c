package xlsx

import (
	"math"
	"strconv"
)

// Worksheet size limits of the SpreadsheetML format. Column XFD is 16384.
const (
	MaxRows    = 1 << 20
	MaxColumns = 1 << 14
)

// CellAddress is a 1-based (row, column) position in a worksheet.
type CellAddress struct {
	Row int
	Col int
}

// String renders the address as a coordinate token such as "AA12".
func (a CellAddress) String() string {
	col, err := IndexToColumn(a.Col)
	if err != nil {
		return "?" + strconv.Itoa(a.Row)
	}
	return col + strconv.Itoa(a.Row)
}

// ColumnToIndex converts column letters to a 1-based index.
//
// The letters are a base-26 numeral without a zero digit, most significant
// letter first: "A" is 1, "Z" is 26, "AA" is 27. Lowercase letters are
// accepted.
func ColumnToIndex(letters string) (int, error) {
	if letters == "" {
		return 0, newErrorf(KindInvalidColumn, "", "empty column letters")
	}

	n := 0
	for i := 0; i < len(letters); i++ {
		c := letters[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			return 0, newErrorf(KindInvalidColumn, "", "column %q contains non-letter %q", letters, letters[i])
		}
		if n > (math.MaxInt-26)/26 {
			return 0, newErrorf(KindInvalidColumn, "", "column %q overflows", letters)
		}
		n = n*26 + int(c-'A'+1)
	}
	return n, nil
}

// IndexToColumn converts a 1-based column index to its uppercase letters.
func IndexToColumn(n int) (string, error) {
	if n < 1 {
		return "", newErrorf(KindInvalidColumn, "", "column index %d is not positive", n)
	}

	var buf [16]byte
	i := len(buf)
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:]), nil
}

// ParseCellRef splits a coordinate token into its column letters and row
// digits. A token without a letter prefix fails with KindInvalidColumn.
// A missing or unparseable row part yields Row 0.
func ParseCellRef(ref string) (CellAddress, error) {
	i := 0
	for i < len(ref) && isLetter(ref[i]) {
		i++
	}
	if i == 0 {
		return CellAddress{}, newErrorf(KindInvalidColumn, "", "cell reference %q has no column letters", ref)
	}

	col, err := ColumnToIndex(ref[:i])
	if err != nil {
		return CellAddress{}, err
	}

	row, err := strconv.Atoi(ref[i:])
	if err != nil || row < 1 {
		row = 0
	}
	return CellAddress{Row: row, Col: col}, nil
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
