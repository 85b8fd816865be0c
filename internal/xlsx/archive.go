package xlsx

import (
	"errors"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Well-known part names inside a spreadsheet package.
const (
	worksheetPrefix   = "xl/worksheets/sheet"
	worksheetSuffix   = ".xml"
	SharedStringsPart = "xl/sharedStrings.xml"
)

// maxPartSize caps the decompressed size of a single part.
var maxPartSize int64 = 256 << 20

// Package is an opened spreadsheet container with its parts located.
type Package struct {
	entries       []string
	worksheet     *zip.File
	sharedStrings *zip.File
}

// OpenPackage opens r as a zip container and locates the worksheet and
// shared string parts.
//
// When several worksheet parts exist the first one in container order is
// used. That is not necessarily the sheet an editor shows first.
func OpenPackage(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, newError(KindArchive, "", err)
	}
	if len(zr.File) == 0 {
		return nil, newError(KindArchive, "", errors.New("package has no entries"))
	}

	p := &Package{entries: make([]string, 0, len(zr.File))}
	for _, f := range zr.File {
		p.entries = append(p.entries, f.Name)

		if p.worksheet == nil && isWorksheetPart(f.Name) {
			p.worksheet = f
		}
		if p.sharedStrings == nil && f.Name == SharedStringsPart {
			p.sharedStrings = f
		}
	}

	if p.worksheet == nil {
		return nil, newErrorf(KindMissingWorksheet, "", "no %s*%s entry among %d entries",
			worksheetPrefix, worksheetSuffix, len(p.entries))
	}
	return p, nil
}

func isWorksheetPart(name string) bool {
	return strings.HasPrefix(name, worksheetPrefix) && strings.HasSuffix(name, worksheetSuffix)
}

// Entries returns every entry name in container order.
func (p *Package) Entries() []string {
	out := make([]string, len(p.entries))
	copy(out, p.entries)
	return out
}

// WorksheetName returns the name of the selected worksheet part.
func (p *Package) WorksheetName() string {
	return p.worksheet.Name
}

// HasSharedStrings reports whether the package carries a shared string part.
func (p *Package) HasSharedStrings() bool {
	return p.sharedStrings != nil
}

// ReadWorksheet returns the raw markup of the worksheet part.
func (p *Package) ReadWorksheet() ([]byte, error) {
	return readEntry(p.worksheet)
}

// ReadSharedStrings returns the raw markup of the shared string part.
// It returns nil, nil when the package has no such part.
func (p *Package) ReadSharedStrings() ([]byte, error) {
	if p.sharedStrings == nil {
		return nil, nil
	}
	return readEntry(p.sharedStrings)
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, newError(KindArchive, f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
	if err != nil {
		return nil, newError(KindArchive, f.Name, err)
	}
	if int64(len(data)) > maxPartSize {
		return nil, newErrorf(KindArchive, f.Name, "part expands past %d bytes", maxPartSize)
	}
	return data, nil
}
