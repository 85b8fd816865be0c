package xlsx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// SharedStrings is the indexed string table of a package.
// A nil *SharedStrings stands for a package without a shared string part.
type SharedStrings struct {
	items []string
}

// NewSharedStrings builds a table from items in index order.
func NewSharedStrings(items ...string) *SharedStrings {
	return &SharedStrings{items: append([]string(nil), items...)}
}

// Len returns the number of strings in the table.
func (s *SharedStrings) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Get returns the string at index i.
func (s *SharedStrings) Get(i int) (string, error) {
	v, err := s.lookup(i)
	if err != nil {
		return "", newError(KindSharedStringIndex, SharedStringsPart, err)
	}
	return v, nil
}

func (s *SharedStrings) lookup(i int) (string, error) {
	if s == nil {
		return "", fmt.Errorf("index %d referenced but package has no shared strings", i)
	}
	if i < 0 || i >= len(s.items) {
		return "", fmt.Errorf("index %d out of range [0,%d)", i, len(s.items))
	}
	return s.items[i], nil
}

// ParseSharedStrings decodes the shared string part.
//
// Each si element contributes one entry, the concatenation of its text
// nodes (plain and rich text runs). Phonetic runs are skipped. An si without
// text becomes "" so later indexes stay aligned.
func ParseSharedStrings(data []byte) (*SharedStrings, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		items    []string
		buf      strings.Builder
		sawRoot  bool
		inItem   bool
		inText   bool
		phonetic int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, newError(KindMarkup, SharedStringsPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			switch t.Name.Local {
			case "si":
				inItem = true
				buf.Reset()
			case "rPh":
				phonetic++
			case "t":
				inText = inItem && phonetic == 0
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "si":
				if inItem {
					items = append(items, buf.String())
				}
				inItem = false
			case "rPh":
				phonetic--
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		}
	}

	if !sawRoot {
		return nil, newError(KindMarkup, SharedStringsPart, errors.New("no root element"))
	}
	return &SharedStrings{items: items}, nil
}
