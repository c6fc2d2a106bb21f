package persona

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/personaloom/internal/dataset"
	"github.com/KaramelBytes/personaloom/internal/xlsxtest"
)

func ageCityTable(t *testing.T) *dataset.Table {
	t.Helper()
	tbl, err := dataset.LoadXLSX(xlsxtest.Rows(t,
		[]string{"Age", "City"},
		[]string{"20", "A"},
		[]string{"22", "A"},
		[]string{"45", "B"},
		[]string{"47", "B"},
		[]string{"21", "A"},
		[]string{"46", "B"},
	), dataset.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return tbl
}

func TestSummarize(t *testing.T) {
	tbl := ageCityTable(t)
	ps, err := Summarize(tbl, []int{0, 0, 1, 1, 2, 1}, 3)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	want := []struct {
		desc string
		size int
		pct  int
	}{
		{"Average Age: 21.0, Most common City: A", 2, 33},
		{"Average Age: 46.0, Most common City: B", 3, 50},
		{"Average Age: 21.0, Most common City: A", 1, 17},
	}
	for i, w := range want {
		p := ps[i]
		if p.ID != i || p.Name != "Persona Segment "+string(rune('1'+i)) {
			t.Fatalf("persona %d id/name = %d/%q", i, p.ID, p.Name)
		}
		if p.Description != w.desc || p.Size != w.size || p.Pct != w.pct {
			t.Fatalf("persona %d = %+v, want %+v", i, p, w)
		}
	}
}

func TestSummarizeEmptyClusterAndMissing(t *testing.T) {
	tbl, err := dataset.LoadXLSX(xlsxtest.Rows(t,
		[]string{"Score", "Tag", "Spend"},
		[]string{"1", "", ""},
		[]string{"2", "x", "4"},
	), dataset.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ps, err := Summarize(tbl, []int{0, 2}, 3)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if ps[0].Description != "Average Score: 1.0" {
		t.Fatalf("persona 0 = %q", ps[0].Description)
	}
	if ps[1].Description != "" || ps[1].Size != 0 || ps[1].Pct != 0 {
		t.Fatalf("empty persona = %+v", ps[1])
	}
	if ps[2].Description != "Average Score: 2.0, Average Spend: 4.0, Most common Tag: x" {
		t.Fatalf("persona 2 = %q", ps[2].Description)
	}
}

func TestSummarizeRejectsBadLabels(t *testing.T) {
	tbl := ageCityTable(t)
	if _, err := Summarize(tbl, []int{0, 1}, 3); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	if _, err := Summarize(tbl, []int{0, 0, 0, 0, 0, 3}, 3); err == nil {
		t.Fatalf("expected out-of-range label error")
	}
}

func TestColumnModeTieBreak(t *testing.T) {
	c := &dataset.Column{
		Values:  []string{"b", "a", "b", "a", ""},
		Missing: []bool{false, false, false, false, true},
	}
	got, ok := columnMode(c, []int{0, 1, 2, 3, 4})
	if !ok || got != "a" {
		t.Fatalf("mode = %q %v, want a", got, ok)
	}
	if _, ok := columnMode(c, []int{4}); ok {
		t.Fatalf("all-missing subset should have no mode")
	}
}

func TestPercent(t *testing.T) {
	cases := []struct{ size, total, want int }{
		{1, 8, 12}, // 12.5 rounds to even
		{3, 8, 38}, // 37.5 rounds to even
		{1, 3, 33},
		{2, 3, 67},
		{1, 1, 100},
		{0, 0, 0},
	}
	for _, c := range cases {
		if got := percent(c.size, c.total); got != c.want {
			t.Errorf("percent(%d, %d) = %d, want %d", c.size, c.total, got, c.want)
		}
	}
}

func TestFormatMean(t *testing.T) {
	cases := map[float64]string{
		21:        "21.0",
		45.5:      "45.5",
		100.0 / 3: "33.33",
		2.675:     "2.67", // binary value is just below 2.675
		-0.001:    "0.0",
		1e6:       "1000000.0",
		1e15:      "1000000000000000.0",
		1e16:      "1e+16",
		-2.5e17:   "-2.5e+17",
		1e-7:      "0.0",
	}
	for in, want := range cases {
		if got := FormatMean(in); got != want {
			t.Errorf("FormatMean(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDescriptionRoundTrip(t *testing.T) {
	entries := []Entry{
		{Column: "Age", Kind: EntryAverage, Value: "21.0"},
		{Column: "Unnamed: 3", Kind: EntryAverage, Value: "-4.5"},
		{Column: "City", Kind: EntryMostCommon, Value: "Oslo, Norway"},
		{Column: "Plan", Kind: EntryMostCommon, Value: "Pro"},
	}
	s := Render(entries)
	if !strings.HasPrefix(s, "Average Age: 21.0, Average Unnamed: 3: -4.5, Most common City: Oslo, Norway") {
		t.Fatalf("render = %q", s)
	}
	got, err := ParseDescription(s)
	if err != nil {
		t.Fatalf("ParseDescription: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("entries = %+v", got)
	}
	for i := range entries {
		if got[i] != entries[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], entries[i])
		}
	}
	if n, ok := got[0].Number(); !ok || n != 21 {
		t.Fatalf("Number = %v %v", n, ok)
	}
}

func TestParseDescriptionErrors(t *testing.T) {
	if got, err := ParseDescription(""); err != nil || got != nil {
		t.Fatalf("empty = %v %v", got, err)
	}
	for _, s := range []string{"Median Age: 3", "Average Age 3", "Average Age: many"} {
		if _, err := ParseDescription(s); err == nil {
			t.Errorf("ParseDescription(%q) expected error", s)
		}
	}
}

func TestMarkdown(t *testing.T) {
	ps, err := Summarize(ageCityTable(t), []int{0, 0, 1, 1, 0, 1}, 2)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	md := Markdown("people.xlsx", 6, ps)
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"File: people.xlsx",
		"Rows: 6",
		"[PERSONAS]",
		"- Persona Segment 1 (n=3, 50%)",
		"  - Average Age: 21.0",
		"  - Most common City: B",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}
