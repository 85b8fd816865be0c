package xlsx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Cell type attribute values that change how a value is read.
const (
	cellTypeShared = "s"
	cellTypeInline = "inlineStr"
)

// defaultWorksheetPart names the worksheet in errors when the caller did
// not say which part the markup came from.
const defaultWorksheetPart = "worksheet"

// Grid is the sparse cell map of one worksheet. Absent addresses are empty
// cells. A Grid is not modified after ParseWorksheet returns it.
type Grid struct {
	cells  map[CellAddress]string
	cols   map[int]struct{}
	maxRow int
}

func newGrid() *Grid {
	return &Grid{
		cells: make(map[CellAddress]string),
		cols:  make(map[int]struct{}),
	}
}

func (g *Grid) set(addr CellAddress, v string) {
	g.cells[addr] = v
	g.cols[addr.Col] = struct{}{}
	if addr.Row > g.maxRow {
		g.maxRow = addr.Row
	}
}

// Value returns the value stored at addr.
func (g *Grid) Value(addr CellAddress) (string, bool) {
	v, ok := g.cells[addr]
	return v, ok
}

// Len returns the number of cells present.
func (g *Grid) Len() int {
	return len(g.cells)
}

// MaxRow returns the highest row number observed, or 0 for an empty grid.
func (g *Grid) MaxRow() int {
	return g.maxRow
}

// Columns returns every used column index in ascending numeric order.
func (g *Grid) Columns() []int {
	cols := make([]int, 0, len(g.cols))
	for c := range g.cols {
		cols = append(cols, c)
	}
	sort.Ints(cols)
	return cols
}

// ParseWorksheet streams worksheet markup into a Grid, resolving shared
// string cells against sst. sst may be nil when the package has no shared
// string part.
func ParseWorksheet(data []byte, sst *SharedStrings) (*Grid, error) {
	return parseWorksheet(defaultWorksheetPart, data, sst)
}

// cellState accumulates one c element while its children stream past.
type cellState struct {
	addr     CellAddress
	typ      string
	value    strings.Builder
	inline   strings.Builder
	hasValue bool
}

func parseWorksheet(part string, data []byte, sst *SharedStrings) (*Grid, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	grid := newGrid()

	var (
		sawRoot  bool
		inRow    bool
		rowNum   int
		cell     *cellState
		inValue  bool
		inInline bool
		inText   bool
		phonetic int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, newError(KindMarkup, part, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			switch t.Name.Local {
			case "row":
				inRow = true
				rowNum, err = parseRowNumber(part, attr(t, "r"))
				if err != nil {
					return nil, err
				}
			case "c":
				c, err := startCell(part, t, inRow, rowNum)
				if err != nil {
					return nil, err
				}
				cell = c
			case "v":
				if cell != nil {
					inValue = true
					cell.hasValue = true
				}
			case "is":
				inInline = cell != nil
			case "rPh":
				phonetic++
			case "t":
				inText = inInline && phonetic == 0
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "row":
				inRow = false
			case "c":
				if cell == nil {
					continue
				}
				v, err := cell.resolve(part, sst)
				if err != nil {
					return nil, err
				}
				grid.set(cell.addr, v)
				cell = nil
			case "v":
				inValue = false
			case "is":
				inInline = false
			case "rPh":
				phonetic--
			case "t":
				inText = false
			}

		case xml.CharData:
			switch {
			case inValue:
				cell.value.Write(t)
			case inText:
				cell.inline.Write(t)
			}
		}
	}

	if !sawRoot {
		return nil, newError(KindMarkup, part, errors.New("no root element"))
	}
	return grid, nil
}

// startCell reads the coordinate and type of a c element. A missing
// coordinate defaults to "A1". The row number comes from the enclosing
// row element; outside of one the coordinate's own row, then 1, is used.
func startCell(part string, el xml.StartElement, inRow bool, rowNum int) (*cellState, error) {
	ref, ok := attrOK(el, "r")
	if !ok {
		ref = "A1"
	}

	addr, err := ParseCellRef(ref)
	if err != nil {
		var xe *Error
		if errors.As(err, &xe) {
			xe.Part = part
		}
		return nil, err
	}

	switch {
	case inRow:
		addr.Row = rowNum
	case addr.Row == 0:
		addr.Row = 1
	}
	if addr.Col > MaxColumns || addr.Row > MaxRows {
		return nil, newErrorf(KindMarkup, part, "cell %q is outside the worksheet limits", ref)
	}

	typ := attr(el, "t")
	if typ == "" {
		typ = "n"
	}
	return &cellState{addr: addr, typ: typ}, nil
}

func (c *cellState) resolve(part string, sst *SharedStrings) (string, error) {
	switch c.typ {
	case cellTypeShared:
		if !c.hasValue {
			return "", nil
		}
		raw := strings.TrimSpace(c.value.String())
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 {
			return "", newErrorf(KindSharedStringIndex, part,
				"cell %s: shared string index %q is not a non-negative integer", c.addr, raw)
		}
		s, err := sst.lookup(idx)
		if err != nil {
			return "", newErrorf(KindSharedStringIndex, part, "cell %s: %v", c.addr, err)
		}
		return s, nil
	case cellTypeInline:
		if c.hasValue {
			return c.value.String(), nil
		}
		return c.inline.String(), nil
	default:
		return c.value.String(), nil
	}
}

// parseRowNumber returns the row element's number, or 1 when the attribute
// is absent or not a positive integer. Numbers past MaxRows are rejected.
func parseRowNumber(part, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	switch {
	case errors.Is(err, strconv.ErrRange) && n > 0, err == nil && n > MaxRows:
		return 0, newErrorf(KindMarkup, part, "row number %q is outside the worksheet limits", s)
	case err != nil || n < 1:
		return 1, nil
	}
	return n, nil
}

func attr(el xml.StartElement, local string) string {
	v, _ := attrOK(el, local)
	return v
}

func attrOK(el xml.StartElement, local string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == local && a.Name.Space == "" {
			return a.Value, true
		}
	}
	return "", false
}
