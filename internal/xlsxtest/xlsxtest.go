// Package xlsxtest builds small .xlsx workbooks in memory for tests.
package xlsxtest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"testing"
)

// Sheet is one worksheet. Rows[0] is the header row.
// Cells that parse as numbers are written as numeric cells, everything else
// as shared strings. Empty strings are omitted from the sheet XML.
type Sheet struct {
	Name string
	Rows [][]string
	// DateColumns are 0-based columns whose numeric data cells get a date style.
	DateColumns []int
	// InlineColumns are 0-based columns written as inline strings instead of shared strings.
	InlineColumns []int
	// SheetData, when set, replaces the generated <sheetData> body verbatim.
	SheetData string
}

// Build returns workbook bytes; it fails the test on any write error.
func Build(t testing.TB, sheets ...Sheet) []byte {
	t.Helper()
	b, err := Encode(sheets...)
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	return b
}

// Rows is a shorthand for a single sheet named Sheet1.
func Rows(t testing.TB, rows ...[]string) []byte {
	t.Helper()
	return Build(t, Sheet{Name: "Sheet1", Rows: rows})
}

// Encode writes the workbook.
func Encode(sheets ...Sheet) ([]byte, error) {
	var shared []string
	sharedIdx := map[string]int{}
	intern := func(s string) int {
		if i, ok := sharedIdx[s]; ok {
			return i
		}
		sharedIdx[s] = len(shared)
		shared = append(shared, s)
		return sharedIdx[s]
	}

	files := map[string]string{}
	var order []string
	add := func(name, body string) {
		files[name] = body
		order = append(order, name)
	}

	var wbSheets, rels, overrides strings.Builder
	for i, sh := range sheets {
		n := i + 1
		name := sh.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", n)
		}
		fmt.Fprintf(&wbSheets, `<sheet name="%s" sheetId="%d" r:id="rId%d"/>`, esc(name), n, n)
		fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet%d.xml"/>`, n, n)
		fmt.Fprintf(&overrides, `<Override PartName="/xl/worksheets/sheet%d.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>`, n)

		dates := toSet(sh.DateColumns)
		inline := toSet(sh.InlineColumns)
		var sd strings.Builder
		sd.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
		sd.WriteString(`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>`)
		if sh.SheetData != "" {
			sd.WriteString(sh.SheetData)
		}
		for r, row := range sh.Rows {
			fmt.Fprintf(&sd, `<row r="%d">`, r+1)
			for c, v := range row {
				if v == "" {
					continue
				}
				ref := colName(c) + strconv.Itoa(r+1)
				_, numErr := strconv.ParseFloat(v, 64)
				switch {
				case r > 0 && numErr == nil && dates[c]:
					fmt.Fprintf(&sd, `<c r="%s" s="1"><v>%s</v></c>`, ref, v)
				case r > 0 && numErr == nil:
					fmt.Fprintf(&sd, `<c r="%s"><v>%s</v></c>`, ref, v)
				case inline[c]:
					fmt.Fprintf(&sd, `<c r="%s" t="inlineStr"><is><t>%s</t></is></c>`, ref, esc(v))
				default:
					fmt.Fprintf(&sd, `<c r="%s" t="s"><v>%d</v></c>`, ref, intern(v))
				}
			}
			sd.WriteString(`</row>`)
		}
		sd.WriteString(`</sheetData></worksheet>`)
		add(fmt.Sprintf("xl/worksheets/sheet%d.xml", n), sd.String())
	}

	add("[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`+
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`+
		`<Default Extension="xml" ContentType="application/xml"/>`+
		`<Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>`+
		overrides.String()+`</Types>`)
	add("_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>`+
		`</Relationships>`)
	add("xl/workbook.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">`+
		`<sheets>`+wbSheets.String()+`</sheets></workbook>`)
	add("xl/_rels/workbook.xml.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		rels.String()+`</Relationships>`)
	add("xl/styles.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">`+
		`<cellXfs count="2"><xf numFmtId="0"/><xf numFmtId="14" applyNumberFormat="1"/></cellXfs>`+
		`</styleSheet>`)

	var ss strings.Builder
	fmt.Fprintf(&ss, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="%d" uniqueCount="%d">`, len(shared), len(shared))
	for _, s := range shared {
		fmt.Fprintf(&ss, `<si><t>%s</t></si>`, esc(s))
	}
	ss.WriteString(`</sst>`)
	add("xl/sharedStrings.xml", ss.String())

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func colName(i int) string {
	name := ""
	for i >= 0 {
		name = string(rune('A'+i%26)) + name
		i = i/26 - 1
	}
	return name
}

func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func toSet(idxs []int) map[int]bool {
	m := make(map[int]bool, len(idxs))
	for _, i := range idxs {
		m[i] = true
	}
	return m
}
