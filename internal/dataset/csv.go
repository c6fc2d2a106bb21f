package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// LoadCSV reads a delimited text table. The first record is the header.
func LoadCSV(r io.Reader, name string, opt Options) (*Table, error) {
	br := bufio.NewReader(r)
	peek, _ := br.Peek(4096)
	if len(bytes.TrimSpace(peek)) == 0 {
		return nil, ErrEmptyInput
	}
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name, peek)
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	var rows [][]cell
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &FormatError{Reason: fmt.Sprintf("read row %d", len(rows)+1), Err: err}
		}
		row := make([]cell, len(rec))
		for j, v := range rec {
			row[j] = textCell(v)
		}
		rows = append(rows, row)
	}
	return build(filepath.Base(name), rows, opt)
}

func sniffDelimiter(name string, head []byte) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	best, bestCnt := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCnt {
			best, bestCnt = d, n
		}
	}
	return best
}

// Load dispatches on the file name: .csv/.tsv are read as text, anything else as a workbook.
func Load(data []byte, name string, opt Options) (*Table, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv":
		return LoadCSV(bytes.NewReader(data), name, opt)
	}
	t, err := LoadXLSX(data, opt)
	if err != nil {
		return nil, err
	}
	if name != "" {
		t.Name = fmt.Sprintf("%s (sheet: %s)", filepath.Base(name), t.Name)
	}
	return t, nil
}
