package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the type of a column, decided once at load time.
type Kind int

const (
	// KindCategorical columns hold free text or labels.
	KindCategorical Kind = iota
	// KindNumeric columns hold numbers in every non-missing cell.
	KindNumeric
	// KindDatetime columns hold date-formatted workbook cells only.
	KindDatetime
	// KindBoolean columns hold workbook TRUE/FALSE cells only.
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindDatetime:
		return "datetime"
	case KindBoolean:
		return "boolean"
	default:
		return "categorical"
	}
}

// Options controls how raw bytes are turned into a Table.
type Options struct {
	// SheetName selects a worksheet by name (case-insensitive).
	SheetName string
	// SheetIndex is 1-based and used when SheetName is empty. 0 means the first sheet.
	SheetIndex int
	// MaxRows limits data rows kept; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, sniffed from the file name and header line.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune // optional; if 0, auto-detect common separators (',' '.' space)
}

// DefaultOptions returns the loader defaults.
func DefaultOptions() Options {
	return Options{SheetIndex: 1}
}

// Column is one named, typed column of a Table.
type Column struct {
	Name string
	Kind Kind
	// Values holds the display text per row; empty where Missing is set.
	Values []string
	// Numbers is populated for numeric columns; NaN where Missing is set.
	Numbers []float64
	Missing []bool
}

// NonMissing returns the count of present cells.
func (c *Column) NonMissing() int {
	n := 0
	for _, m := range c.Missing {
		if !m {
			n++
		}
	}
	return n
}

// Table is a loaded dataset: equal-length typed columns.
type Table struct {
	Name     string
	Rows     int
	Columns  []Column
	Warnings []string
}

// column returns the column with the given name.
func (t *Table) column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ColumnsOfKind returns the indexes of columns with kind k, in table order.
func (t *Table) ColumnsOfKind(k Kind) []int {
	var idxs []int
	for i, c := range t.Columns {
		if c.Kind == k {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

type cellType int

const (
	cellEmpty cellType = iota
	cellText
	cellNumber
	cellBool
	cellDate
	cellError
)

// cell is a raw value as read from a workbook or CSV before typing.
type cell struct {
	typ  cellType
	text string
	num  float64
	when time.Time
}

func textCell(s string) cell {
	if s == "" {
		return cell{}
	}
	return cell{typ: cellText, text: s}
}

// naTokens are cell texts read as missing values.
var naTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-nan": {}, "-NaN": {},
	"NULL": {}, "null": {}, "None": {}, "#N/A": {}, "#NA": {}, "<NA>": {}, "#N/A N/A": {},
	"1.#QNAN": {}, "-1.#QNAN": {}, "1.#IND": {}, "-1.#IND": {},
}

func (c cell) missing() bool {
	switch c.typ {
	case cellEmpty, cellError:
		return true
	case cellText:
		_, ok := naTokens[strings.TrimSpace(c.text)]
		return ok
	case cellNumber:
		return math.IsNaN(c.num)
	}
	return false
}

const dateLayout = "2006-01-02 15:04:05"

func (c cell) display() string {
	switch c.typ {
	case cellDate:
		return c.when.Format(dateLayout)
	case cellNumber:
		if c.text != "" {
			return c.text
		}
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	default:
		return strings.TrimSpace(c.text)
	}
}

// build turns raw rows (header first) into a typed Table.
func build(name string, rows [][]cell, opt Options) (*Table, error) {
	// header is the first non-empty row
	start := -1
	for i, r := range rows {
		if !emptyRow(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: no header row", ErrEmptyInput)
	}
	header := rows[start]
	var data [][]cell
	for _, r := range rows[start+1:] {
		if emptyRow(r) {
			continue
		}
		data = append(data, r)
	}
	t := &Table{Name: name}
	total := len(data)
	if opt.MaxRows > 0 && len(data) > opt.MaxRows {
		data = data[:opt.MaxRows]
		t.Warnings = append(t.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", opt.MaxRows, total))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: header only, no data rows", ErrEmptyInput)
	}
	ncol := len(header)
	for _, r := range data {
		if len(r) > ncol {
			ncol = len(r)
		}
	}
	names := columnNames(header, ncol)
	t.Rows = len(data)
	t.Columns = make([]Column, ncol)
	for j := 0; j < ncol; j++ {
		cells := make([]cell, len(data))
		for i, r := range data {
			if j < len(r) {
				cells[i] = r[j]
			}
		}
		t.Columns[j] = typeColumn(names[j], cells, opt)
	}
	return t, nil
}

func emptyRow(r []cell) bool {
	for _, c := range r {
		if c.typ != cellEmpty && !(c.typ == cellText && strings.TrimSpace(c.text) == "") {
			return false
		}
	}
	return true
}

// columnNames fills blank headers with "Unnamed: i" and suffixes duplicates with ".1", ".2".
func columnNames(header []cell, ncol int) []string {
	names := make([]string, ncol)
	seen := map[string]int{}
	for j := 0; j < ncol; j++ {
		var n string
		if j < len(header) {
			n = header[j].display()
		}
		if n == "" {
			n = fmt.Sprintf("Unnamed: %d", j)
		}
		base := n
		for {
			if _, dup := seen[n]; !dup {
				break
			}
			seen[base]++
			n = fmt.Sprintf("%s.%d", base, seen[base])
		}
		seen[n] = 0
		names[j] = n
	}
	return names
}

// typeColumn infers the column kind and fills its values.
func typeColumn(name string, cells []cell, opt Options) Column {
	n := len(cells)
	col := Column{Name: name, Values: make([]string, n), Missing: make([]bool, n)}
	nums := make([]float64, n)
	numCnt, dateCnt, boolCnt, otherCnt := 0, 0, 0, 0
	for i, c := range cells {
		if c.missing() {
			col.Missing[i] = true
			nums[i] = math.NaN()
			continue
		}
		col.Values[i] = c.display()
		switch c.typ {
		case cellNumber:
			nums[i] = c.num
			numCnt++
		case cellDate:
			dateCnt++
		case cellBool:
			boolCnt++
		case cellText:
			if x, ok := parseNumeric(c.text, opt); ok {
				if math.IsNaN(x) {
					col.Missing[i] = true
					col.Values[i] = ""
					nums[i] = math.NaN()
					continue
				}
				nums[i] = x
				numCnt++
				continue
			}
			otherCnt++
		default:
			otherCnt++
		}
	}
	switch {
	case dateCnt > 0 && numCnt == 0 && boolCnt == 0 && otherCnt == 0:
		col.Kind = KindDatetime
	case boolCnt > 0 && numCnt == 0 && dateCnt == 0 && otherCnt == 0:
		col.Kind = KindBoolean
	case dateCnt == 0 && boolCnt == 0 && otherCnt == 0:
		col.Kind = KindNumeric
		col.Numbers = nums
	default:
		col.Kind = KindCategorical
	}
	return col
}
