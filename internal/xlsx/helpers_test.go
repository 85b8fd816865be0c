package xlsx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

const mainNS = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"

type part struct {
	name string
	body string
}

// buildPackage zips parts in the given order.
func buildPackage(t *testing.T, parts ...part) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// sheetXML wraps row elements in a worksheet document.
func sheetXML(rows ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<worksheet xmlns="` + mainNS + `"><sheetData>` +
		strings.Join(rows, "") +
		`</sheetData></worksheet>`
}

// sstXML wraps si elements in a shared string document.
func sstXML(items ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<sst xmlns="` + mainNS + `">`)
	for _, it := range items {
		b.WriteString(`<si><t>` + it + `</t></si>`)
	}
	b.WriteString(`</sst>`)
	return b.String()
}

func worksheet(body string) part {
	return part{name: "xl/worksheets/sheet1.xml", body: body}
}

func sharedStrings(body string) part {
	return part{name: SharedStringsPart, body: body}
}

func workbookPart() part {
	return part{name: "xl/workbook.xml", body: `<workbook xmlns="` + mainNS + `"/>`}
}
