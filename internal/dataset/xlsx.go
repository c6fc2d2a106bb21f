package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"
	"time"
)

// Excel sheet limits (column XFD, row 1048576).
const (
	maxSheetColumns = 16384
	maxSheetRows    = 1 << 20
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// LoadXLSX parses an .xlsx workbook held in memory and returns the selected sheet as a Table.
// If opt.SheetName is empty and opt.SheetIndex <= 0, it defaults to the first sheet.
func LoadXLSX(data []byte, opt Options) (*Table, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	if bytes.HasPrefix(data, oleMagic) {
		return nil, &FormatError{Reason: "legacy .xls workbooks are not supported, save as .xlsx"}
	}
	if !bytes.HasPrefix(data, zipMagic) {
		return nil, &FormatError{Reason: "not an .xlsx workbook (bad magic bytes)"}
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &FormatError{Reason: "open archive", Err: err}
	}
	workbookXML, ok := readZipFile(zr, "xl/workbook.xml")
	if !ok {
		return nil, &FormatError{Reason: "missing xl/workbook.xml"}
	}
	relsXML, _ := readZipFile(zr, "xl/_rels/workbook.xml.rels")
	sharedXML, _ := readZipFile(zr, "xl/sharedStrings.xml")
	stylesXML, _ := readZipFile(zr, "xl/styles.xml")

	wb := parseWorkbook(workbookXML)
	rels := parseRelationships(relsXML)
	target, name, err := resolveSheet(wb.Sheets, rels, opt)
	if err != nil {
		return nil, err
	}
	sheetXML, ok := readZipFile(zr, target)
	if !ok {
		return nil, &FormatError{Reason: fmt.Sprintf("missing worksheet %s", target)}
	}
	rr := newSheetRowReader(sheetXML, parseSharedStrings(sharedXML), parseStyles(stylesXML), wb.Date1904)
	var rows [][]cell
	for {
		row, ok := rr.Next()
		if !ok {
			break
		}
		if len(rows) >= maxSheetRows {
			return nil, &FormatError{Reason: fmt.Sprintf("worksheet %s has more than %d rows", name, maxSheetRows)}
		}
		rows = append(rows, row)
	}
	if rr.err != nil {
		var fe *FormatError
		if errors.As(rr.err, &fe) {
			return nil, fe
		}
		return nil, &FormatError{Reason: "read worksheet " + name, Err: rr.err}
	}
	return build(name, rows, opt)
}

// resolveSheet maps the sheet selection options to a zip entry path.
func resolveSheet(sheets []wbSheet, rels map[string]string, opt Options) (target, name string, err error) {
	if opt.SheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s.Name, opt.SheetName) {
				if rel, ok := rels[s.RID]; ok {
					return normalizeRelPath(rel), s.Name, nil
				}
				break
			}
		}
		available := make([]string, len(sheets))
		for i, s := range sheets {
			available[i] = s.Name
		}
		return "", "", &FormatError{Reason: fmt.Sprintf("sheet '%s' not found; available sheets: %s", opt.SheetName, strings.Join(available, ", "))}
	}
	idx := opt.SheetIndex
	if idx <= 0 {
		idx = 1
	}
	if idx <= len(sheets) {
		s := sheets[idx-1]
		if rel, ok := rels[s.RID]; ok {
			return normalizeRelPath(rel), s.Name, nil
		}
		return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", idx)), s.Name, nil
	}
	if len(sheets) > 0 {
		return "", "", &FormatError{Reason: fmt.Sprintf("sheet index %d out of range (workbook has %d sheets)", idx, len(sheets))}
	}
	// no sheet list; guess by worksheets/sheetN.xml
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", idx)), fmt.Sprintf("Sheet%d", idx), nil
}

type wbSheet struct {
	Name    string
	SheetID int
	RID     string
}

type workbook struct {
	Sheets   []wbSheet
	Date1904 bool
}

// parseWorkbook extracts sheet entries with names and relationship ids.
func parseWorkbook(data []byte) workbook {
	var wb workbook
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return wb
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "workbookPr":
			for _, a := range se.Attr {
				if a.Name.Local == "date1904" {
					wb.Date1904 = a.Value == "1" || strings.EqualFold(a.Value, "true")
				}
			}
		case "sheet":
			var s wbSheet
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "name":
					s.Name = a.Value
				case "sheetId":
					s.SheetID = atoiSafe(a.Value)
				case "id":
					s.RID = a.Value // in r: namespace
				}
			}
			wb.Sheets = append(wb.Sheets, s)
		}
	}
}

func parseRelationships(data []byte) map[string]string {
	// returns map[r:id]Target
	out := map[string]string{}
	if len(data) == 0 {
		return out
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "Relationship" {
			var id, target string
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "Id":
					id = a.Value
				case "Target":
					target = a.Value
				}
			}
			if id != "" && target != "" {
				out[id] = target
			}
		}
	}
}

func readZipFile(zr *zip.Reader, name string) ([]byte, bool) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, false
			}
			defer rc.Close()
			b, err := io.ReadAll(rc)
			if err != nil {
				return nil, false
			}
			return b, true
		}
	}
	return nil, false
}

// parseSharedStrings returns the shared string table; phonetic runs are skipped.
func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	var inT, inPhonetic bool
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "rPh":
				inPhonetic = true
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "rPh":
				inPhonetic = false
			case "si":
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inT && !inPhonetic {
				buf.Write(se)
			}
		}
	}
}

// sheet row reader
type sheetRowReader struct {
	dec      *xml.Decoder
	shared   []string
	styles   []bool // per cellXfs index: is a date format
	date1904 bool
	err      error
}

func newSheetRowReader(data []byte, shared []string, styles []bool, date1904 bool) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared, styles: styles, date1904: date1904}
}

// Next returns the next row keyed by column reference; gaps are empty cells.
func (r *sheetRowReader) Next() ([]cell, bool) {
	var cur []cell
	inRow := false
	next := 0
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if err != io.EOF {
				r.err = err
			}
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				inRow = true
				cur = nil
				next = 0
				continue
			}
			if !inRow || se.Name.Local != "c" {
				continue
			}
			var rAttr, tAttr, sAttr string
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "r":
					rAttr = a.Value
				case "t":
					tAttr = a.Value
				case "s":
					sAttr = a.Value
				}
			}
			colIdx := next
			if rAttr != "" {
				if idx := colIndexFromRef(rAttr); idx >= 0 {
					colIdx = idx
				}
			}
			if colIdx >= maxSheetColumns {
				r.err = &FormatError{Reason: fmt.Sprintf("cell %q is beyond column XFD", rAttr)}
				return nil, false
			}
			next = colIdx + 1
			c := r.readCell(tAttr, sAttr)
			if len(cur) <= colIdx {
				tmp := make([]cell, colIdx+1)
				copy(tmp, cur)
				cur = tmp
			}
			cur[colIdx] = c
		case xml.EndElement:
			if se.Name.Local == "row" && inRow {
				return cur, true
			}
		}
	}
}

// readCell consumes tokens up to </c> and types the value.
func (r *sheetRowReader) readCell(tAttr, sAttr string) cell {
	var v, inline strings.Builder
	var inV, inT bool
	for {
		tok, err := r.dec.Token()
		if err != nil {
			break
		}
		if se, ok := tok.(xml.StartElement); ok {
			switch se.Name.Local {
			case "v":
				inV = true
			case "t":
				inT = true
			}
			continue
		}
		if ed, ok := tok.(xml.EndElement); ok {
			switch ed.Name.Local {
			case "v":
				inV = false
			case "t":
				inT = false
			case "c":
				return r.typeCell(tAttr, sAttr, v.String(), inline.String())
			}
			continue
		}
		if ch, ok := tok.(xml.CharData); ok {
			if inV {
				v.Write(ch)
			} else if inT {
				inline.Write(ch)
			}
		}
	}
	return r.typeCell(tAttr, sAttr, v.String(), inline.String())
}

func (r *sheetRowReader) typeCell(tAttr, sAttr, v, inline string) cell {
	switch tAttr {
	case "s": // shared string
		idx := atoiSafe(v)
		if idx >= 0 && idx < len(r.shared) {
			return textCell(r.shared[idx])
		}
		return cell{}
	case "inlineStr":
		return textCell(inline)
	case "str":
		return textCell(v)
	case "b":
		if strings.TrimSpace(v) == "" {
			return cell{}
		}
		if strings.TrimSpace(v) == "1" {
			return cell{typ: cellBool, text: "TRUE"}
		}
		return cell{typ: cellBool, text: "FALSE"}
	case "e":
		return cell{typ: cellError, text: v}
	}
	s := strings.TrimSpace(v)
	if s == "" {
		return cell{}
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return textCell(s)
	}
	if sAttr != "" {
		if si := atoiSafe(sAttr); si >= 0 && si < len(r.styles) && r.styles[si] {
			return cell{typ: cellDate, num: x, when: excelTime(x, r.date1904)}
		}
	}
	return cell{typ: cellNumber, num: x, text: s}
}

// excelTime converts a serial day number into a time.
func excelTime(serial float64, date1904 bool) time.Time {
	epoch := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	if date1904 {
		epoch = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	days := math.Floor(serial)
	secs := math.Round((serial - days) * 86400)
	return epoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second)
}

// helpers for refs like "C12" -> 2 (0-based index)
func colIndexFromRef(ref string) int {
	i := 0
	for i < len(ref) {
		c := ref[i]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' {
			i++
			continue
		}
		break
	}
	s := strings.ToUpper(ref[:i])
	idx := 0
	for j := 0; j < len(s); j++ {
		idx = idx*26 + int(s[j]-'A'+1)
		if idx > maxSheetColumns {
			return maxSheetColumns
		}
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship Target paths to ZIP-compatible paths.
// Relationships may have leading slashes (e.g., "/xl/worksheets/sheet1.xml")
// but ZIP entries don't include the leading slash.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
