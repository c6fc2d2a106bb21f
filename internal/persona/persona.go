// Package persona aggregates cluster members back over the original table and renders
// each cluster as a short statistical description.
package persona

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/personaloom/internal/dataset"
)

// Persona is the summary of one cluster.
type Persona struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Size        int    `json:"size"`
	Pct         int    `json:"pct"`
	// Entries are the (column, value) pairs the description was rendered from.
	Entries []Entry `json:"-"`
}

// Summarize builds one Persona per cluster id in [0, k), in id order.
// labels must hold one cluster id per table row.
func Summarize(t *dataset.Table, labels []int, k int) ([]Persona, error) {
	if t == nil {
		return nil, fmt.Errorf("summarize: nil table")
	}
	if len(labels) != t.Rows {
		return nil, fmt.Errorf("summarize: %d labels for %d rows", len(labels), t.Rows)
	}
	members := make([][]int, k)
	for i, l := range labels {
		if l < 0 || l >= k {
			return nil, fmt.Errorf("summarize: label %d at row %d outside [0, %d)", l, i, k)
		}
		members[l] = append(members[l], i)
	}
	numeric := t.ColumnsOfKind(dataset.KindNumeric)
	categorical := t.ColumnsOfKind(dataset.KindCategorical)

	out := make([]Persona, k)
	for c := 0; c < k; c++ {
		rows := members[c]
		var entries []Entry
		for _, j := range numeric {
			if mean, ok := columnMean(&t.Columns[j], rows); ok {
				entries = append(entries, averageEntry(t.Columns[j].Name, mean))
			}
		}
		for _, j := range categorical {
			if mode, ok := columnMode(&t.Columns[j], rows); ok {
				entries = append(entries, Entry{Column: t.Columns[j].Name, Kind: EntryMostCommon, Value: mode})
			}
		}
		out[c] = Persona{
			ID:          c,
			Name:        fmt.Sprintf("Persona Segment %d", c+1),
			Description: Render(entries),
			Size:        len(rows),
			Pct:         percent(len(rows), t.Rows),
			Entries:     entries,
		}
	}
	return out, nil
}

func columnMean(c *dataset.Column, rows []int) (float64, bool) {
	sum, n := 0.0, 0
	for _, i := range rows {
		if c.Missing[i] {
			continue
		}
		sum += c.Numbers[i]
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// columnMode returns the most frequent present value; ties go to the smallest value.
func columnMode(c *dataset.Column, rows []int) (string, bool) {
	counts := map[string]int{}
	for _, i := range rows {
		if c.Missing[i] {
			continue
		}
		counts[c.Values[i]]++
	}
	if len(counts) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(counts))
	for v := range counts {
		keys = append(keys, v)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, v := range keys[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best, true
}

// percent is round-half-even(100*size/total), 0 when total is 0.
func percent(size, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.RoundToEven(float64(size) / float64(total) * 100))
}
