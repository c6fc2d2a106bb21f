package persona

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EntryKind distinguishes numeric averages from categorical modes.
type EntryKind int

const (
	EntryAverage EntryKind = iota
	EntryMostCommon
)

const (
	averagePrefix    = "Average "
	mostCommonPrefix = "Most common "
	entrySep         = ", "
	keySep           = ": "
)

// Entry is one statistic of a persona description.
type Entry struct {
	Column string
	Kind   EntryKind
	// Value is the rendered value; for averages it is the mean rounded to 2 decimals.
	Value string
}

// Number returns the numeric value of an average entry.
func (e Entry) Number() (float64, bool) {
	if e.Kind != EntryAverage {
		return 0, false
	}
	f, err := strconv.ParseFloat(e.Value, 64)
	return f, err == nil
}

func (e Entry) String() string {
	if e.Kind == EntryAverage {
		return averagePrefix + e.Column + keySep + e.Value
	}
	return mostCommonPrefix + e.Column + keySep + e.Value
}

func averageEntry(column string, mean float64) Entry {
	return Entry{Column: column, Kind: EntryAverage, Value: FormatMean(mean)}
}

// FormatMean rounds to 2 decimals and prints the shortest form, keeping a ".0"
// on integral values: 21 -> "21.0", 45.5 -> "45.5", 100/3 -> "33.33".
// Magnitudes of 1e16 and above switch to exponent form ("1e+16").
func FormatMean(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if r == 0 {
		r = 0 // drop negative zero
	}
	if math.Abs(r) >= 1e16 {
		return strconv.FormatFloat(r, 'e', -1, 64)
	}
	s := strconv.FormatFloat(r, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Render joins entries into a description string.
func Render(entries []Entry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.String()
	}
	return strings.Join(parts, entrySep)
}

// ParseDescription splits a rendered description back into entries.
// Segments that do not start with a known prefix belong to the previous entry's value,
// and the column/value split is at the last ": " of a segment.
func ParseDescription(s string) ([]Entry, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var segs []string
	for _, p := range strings.Split(s, entrySep) {
		if len(segs) > 0 && !strings.HasPrefix(p, averagePrefix) && !strings.HasPrefix(p, mostCommonPrefix) {
			segs[len(segs)-1] += entrySep + p
			continue
		}
		segs = append(segs, p)
	}
	entries := make([]Entry, 0, len(segs))
	for _, seg := range segs {
		var e Entry
		rest := seg
		switch {
		case strings.HasPrefix(seg, averagePrefix):
			e.Kind = EntryAverage
			rest = strings.TrimPrefix(seg, averagePrefix)
		case strings.HasPrefix(seg, mostCommonPrefix):
			e.Kind = EntryMostCommon
			rest = strings.TrimPrefix(seg, mostCommonPrefix)
		default:
			return nil, fmt.Errorf("parse description: unknown entry %q", seg)
		}
		i := strings.LastIndex(rest, keySep)
		if i < 0 {
			return nil, fmt.Errorf("parse description: missing %q in %q", keySep, seg)
		}
		e.Column, e.Value = rest[:i], rest[i+len(keySep):]
		if e.Kind == EntryAverage {
			if _, ok := e.Number(); !ok {
				return nil, fmt.Errorf("parse description: average %q is not a number", e.Value)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}
