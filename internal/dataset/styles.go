package dataset

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// parseStyles reports, per cellXfs index, whether the cell format is a date/time format.
func parseStyles(data []byte) []bool {
	if len(data) == 0 {
		return nil
	}
	custom := map[int]string{}
	var xfs []int
	dec := xml.NewDecoder(bytes.NewReader(data))
	inCellXfs := false
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "numFmt":
				id, code := -1, ""
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "numFmtId":
						id = atoiSafe(a.Value)
					case "formatCode":
						code = a.Value
					}
				}
				if id >= 0 {
					custom[id] = code
				}
			case "cellXfs":
				inCellXfs = true
			case "xf":
				if !inCellXfs {
					continue
				}
				id := 0
				for _, a := range se.Attr {
					if a.Name.Local == "numFmtId" {
						id = atoiSafe(a.Value)
					}
				}
				xfs = append(xfs, id)
			}
		case xml.EndElement:
			if se.Name.Local == "cellXfs" {
				inCellXfs = false
			}
		}
	}
	out := make([]bool, len(xfs))
	for i, id := range xfs {
		out[i] = isDateFormat(id, custom[id])
	}
	return out
}

func isDateFormat(id int, code string) bool {
	switch {
	case id >= 14 && id <= 22, id >= 45 && id <= 47:
		return true
	case id < 164:
		return false
	}
	return isDateFormatCode(code)
}

// isDateFormatCode looks for date/time tokens outside quoted text and [..] sections.
func isDateFormatCode(code string) bool {
	// only the first section (positive numbers) decides
	if i := strings.IndexByte(code, ';'); i >= 0 {
		code = code[:i]
	}
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case inQuote:
			if c == '"' {
				inQuote = false
			}
		case inBracket:
			if c == ']' {
				inBracket = false
			}
		case c == '"':
			inQuote = true
		case c == '[':
			// elapsed time like [h]:mm counts as time
			if i+1 < len(code) && strings.ContainsRune("hHmMsS", rune(code[i+1])) {
				return true
			}
			inBracket = true
		case c == '\\' || c == '_' || c == '*':
			i++
		default:
			if strings.ContainsRune("dDmMyYhHsS", rune(c)) {
				return true
			}
		}
	}
	return false
}
