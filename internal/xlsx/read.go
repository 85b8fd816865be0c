package xlsx

import (
	"bytes"
	"io"
	"os"
)

// Read decodes the package held by r into a Table.
func Read(r io.ReaderAt, size int64) (*Table, error) {
	pkg, err := OpenPackage(r, size)
	if err != nil {
		return nil, err
	}

	var sst *SharedStrings
	if pkg.HasSharedStrings() {
		data, err := pkg.ReadSharedStrings()
		if err != nil {
			return nil, err
		}
		if sst, err = ParseSharedStrings(data); err != nil {
			return nil, err
		}
	}

	data, err := pkg.ReadWorksheet()
	if err != nil {
		return nil, err
	}

	grid, err := parseWorksheet(pkg.WorksheetName(), data, sst)
	if err != nil {
		return nil, err
	}
	return Assemble(grid), nil
}

// ReadBytes decodes a package held in memory.
func ReadBytes(data []byte) (*Table, error) {
	return Read(bytes.NewReader(data), int64(len(data)))
}

// ReadFile decodes the package stored at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(KindArchive, "", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, newError(KindArchive, "", err)
	}
	return Read(f, info.Size())
}
