package xlsx

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPackage(t *testing.T) {
	t.Parallel()

	t.Run("locates worksheet and shared strings", func(t *testing.T) {
		t.Parallel()

		data := buildPackage(t,
			workbookPart(),
			sharedStrings(sstXML("x")),
			worksheet(sheetXML()),
		)

		pkg, err := OpenPackage(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, "xl/worksheets/sheet1.xml", pkg.WorksheetName())
		assert.True(t, pkg.HasSharedStrings())
		assert.Equal(t, []string{"xl/workbook.xml", SharedStringsPart, "xl/worksheets/sheet1.xml"}, pkg.Entries())
	})

	t.Run("shared strings part is optional", func(t *testing.T) {
		t.Parallel()

		data := buildPackage(t, worksheet(sheetXML()))

		pkg, err := OpenPackage(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.False(t, pkg.HasSharedStrings())

		sst, err := pkg.ReadSharedStrings()
		require.NoError(t, err)
		assert.Nil(t, sst)
	})

	t.Run("first worksheet in container order wins", func(t *testing.T) {
		t.Parallel()

		data := buildPackage(t,
			part{name: "xl/worksheets/sheet2.xml", body: sheetXML()},
			part{name: "xl/worksheets/sheet1.xml", body: sheetXML()},
		)

		pkg, err := OpenPackage(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, "xl/worksheets/sheet2.xml", pkg.WorksheetName())
	})

	t.Run("ignores worksheet relationship parts", func(t *testing.T) {
		t.Parallel()

		data := buildPackage(t,
			part{name: "xl/worksheets/_rels/sheet1.xml.rels", body: "<Relationships/>"},
			part{name: "xl/worksheets/sheet1.xml.bak", body: "junk"},
			worksheet(sheetXML()),
		)

		pkg, err := OpenPackage(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, "xl/worksheets/sheet1.xml", pkg.WorksheetName())
	})
}

func TestOpenPackage_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{
			name: "empty input",
			data: []byte{},
			want: ErrArchive,
		},
		{
			name: "not a zip",
			data: []byte("not an xlsx file"),
			want: ErrArchive,
		},
		{
			name: "zip without entries",
			data: buildPackage(t),
			want: ErrArchive,
		},
		{
			name: "zip without worksheet",
			data: buildPackage(t, workbookPart(), sharedStrings(sstXML("a"))),
			want: ErrMissingWorksheet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pkg, err := OpenPackage(bytes.NewReader(tt.data), int64(len(tt.data)))
			assert.Nil(t, pkg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestReadWorksheet_PartSizeLimit(t *testing.T) {
	old := maxPartSize
	maxPartSize = 64
	t.Cleanup(func() { maxPartSize = old })

	data := buildPackage(t, worksheet(sheetXML(strings.Repeat(`<row r="1"><c r="A1"><v>1</v></c></row>`, 10))))
	pkg, err := OpenPackage(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	body, err := pkg.ReadWorksheet()
	assert.Nil(t, body)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArchive), "got %v", err)

	tbl, err := ReadBytes(data)
	assert.Nil(t, tbl)
	assert.Equal(t, KindArchive, KindOf(err))
}
