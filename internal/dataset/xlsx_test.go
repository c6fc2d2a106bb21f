package dataset

import (
	"encoding/base64"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/personaloom/internal/xlsxtest"
)

// Two sheets: "Ignore" holds a lone header, "Data" holds ten rows with comma decimals.
const xlsxFixtureBase64 = `
UEsDBBQAAAAIAMEwN1vYAxPv/wAAALYCAAATABwAW0NvbnRlbnRfVHlwZXNdLnhtbFVUCQADyjjSaMo40mh1eAsAAQQAAAAABAAAAAC1ks1OwzAQhO95CsvX
Kt60B4RQkh74OQKH8gDG3iRW/CfbLeHtcVIEEqIIpHJaWTOz32jlejsZTQ4YonK2oWtWUYJWOKls39Cn3V15SbdtUe9ePUaSvTY2dEjJXwFEMaDhkTmPNiud
C4an/Aw9eC5G3iNsquoChLMJbSrTvIO2BSH1DXZ8rxO5nbJyRAfUkZLro3fGNZR7r5XgKetwsPILqHyHsJxcPHFQPq6ygcIpyCyeZnxGH/JFgpJIHnlI99xk
I0waXlwYn50b2c97vunquk4JlE7sTY6w6ANyGQfEZDRbJjNc2dWvKiz+CMtYn7nLx/6/V9n8d5Ualm/YFm9QSwMECgAAAAAAxDA3WwAAAAAAAAAAAAAAAAMA
HAB4bC9VVAkAA9A40mjyONJodXgLAAEEAAAAAAQAAAAAUEsDBBQAAAAIAMQwN1tM2kS6xQAAAEkBAAAPABwAeGwvd29ya2Jvb2sueG1sVVQJAAPQONJo0DjS
aHV4CwABBAAAAAAEAAAAAI1Qu27DMAzc/RUC90aOhyIwZGcJAnhvP0CxaVuIRRqk+vj8qjEMZOjQ7Y7k3ZF05++4mE8UDUwNHA8lGKSeh0BTA+9v15cTnNvC
fbHcb8x3k8dJG5hTWmtrtZ8xej3wipQ7I0v0KVOZrK6CftAZMcXFVmX5aqMPBJtDLf/x4HEMPV64/4hIaTMRXHzKy+ocVoW2MMY9QvQX7sSQj9hANxELgnnU
uiHfB0bqkIF0wxHsH5KLT/5JUD0Jqk3g7J7n7P6WtvgBUEsDBAoAAAAAANIwN1sAAAAAAAAAAAAAAAAOABwAeGwvd29ya3NoZWV0cy9VVAkAA+s40mjyONJo
dXgLAAEEAAAAAAQAAAAAUEsDBBQAAAAIANIwN1u3fFZsqwIAAIASAAAYABwAeGwvd29ya3NoZWV0cy9zaGVldDIueG1sVVQJAAPrONJo6zjSaHV4CwABBAAA
AAAEAAAAAJ3YT26bQBiH4X1OgVilkguD/wEVJkoMzibKJukBJngMqGYGDeMkvVXP0JN1nEhVQ/r7QCxx/BDsV9/gIbl6bY7Os9BdreTGDTzmOkIWal/LcuN+
f9x9jdyr9CJ5UfpHVwlhHPt+2W3cypj2m+93RSUa3nmqFdL+5aB0w4091KXftVrw/Rtqjv6csbXf8Fq66YXjJG8vZ9zw85E91urF0fb/u+/H9pXifHwduI7Z
uLU81lI8GO2mSd2liUlvtTq1iW/SxD+/4Bcf3Q1yWyULIY3mxn5e57L0777gs2zRWR5F0zqXv3/tCJwh/FAoLbDLkbtTBT+K+1PzJDTmO/jJuRGl0j8xvUX0
Xpn/XHDi22gf8837+ebgjNdEOmTYbEWkQipkRCKEAjYjWA6Zxxgpd0jyY1txogxyh1p3ZlSaRT/NYkIaZNhsTaRBKgyINAgFAZkGMi8YSIPkUBrkOlEouR/V
Ztlvs5zQBhk7NtTcILaOiTgIxdSI5vAKvXigDZJPwlBpEDNVrceVWfXLrMApb4gyyLBZSIRBKiS+4gyhgFw8c8g8tqLLIDk0Ncgd1EmbalSbdb/NekIbZOyK
Rk0NYuGSiINQPIuINvAKvTii2yA5MDWIHerDyDJhv0w4oQwytgzxdW0RCxdEGYTs2MyJNJB5bE6nQXJobJDr6teRbaJ+m2jCvQYZu8oQ39cWMSpohlBETg28
Qi8amBokS940VBrkOvFsNxzj4sT9OPGEwUHG3m6oJQ2xkPhplyEUU7e2HF6hF4d0HCQHljTERF1WI9ME7NPWlE2YHIgW1OfeQhZTvwagom/qOXaDGxxIh1Y2
CGU9dnqCz08P0I6Wmh+I7J2H2uZAFxJrYgaVvfcQ+6McO4/R29cdpENLHIRmYIVL/H+e9yT+34dJ6cUfUEsDBBQAAAAIAMcwN1sqMey0swAAAPgAAAAYABwA
eGwvd29ya3NoZWV0cy9zaGVldDEueG1sVVQJAAPWONJo1jjSaHV4CwABBAAAAAAEAAAAAE2P3WrDMAxG7/MURverkl6MUhyXwegLrHsA46iNqf+QxbLHr5OO
0cvzSfoO0qffGNQPcfU5jTDselCUXJ58uo3wfTm/HeBkOr1kvteZSFTbT3WEWaQcEaubKdq6y4VSm1wzRysN+Ya1MNlpO4oB933/jtH6BKZTSm/xpxW7UmPO
i+Lmhye3xK38MYCSEXwKPtGXMBjtq9FiSrCO5hwmYo1iNK4xur82bHWbBl88Gv+fMN0DUEsDBAoAAAAAAMYwN1sAAAAAAAAAAAAAAAAJABwAeGwvX3JlbHMv
VVQJAAPTONJo8jjSaHV4CwABBAAAAAAEAAAAAFBLAwQUAAAACADGMDdbCmPblLYAAACtAQAAGgAcAHhsL19yZWxzL3dvcmtib29rLnhtbC5yZWxzVVQJAAPT
ONJo0zjSaHV4CwABBAAAAAAEAAAAAL2QSwrCMBBA9z1FmL2dtgsRadqNCN1KPUBIpx/aJiGJv9sbBMWCgitXw/zePCYvr/PEzmTdoBWHNE6AkZK6GVTH4Vjv
Vxsoiyg/0CR8GHH9YBwLO8px6L03W0Qne5qFi7UhFTqttrPwIbUdGiFH0RFmSbJG+86AImJsgWVVw8FWTQqsvhn6Ba/bdpC00/I0k/IfruBF29H1RD5Ahe3I
c3iVHD5CGgcq4Fef7M8+2dMnx8XXi+gOUEsDBAoAAAAAAMMwN1sAAAAAAAAAAAAAAAAGABwAX3JlbHMvVVQJAAPNONJo8jjSaHV4CwABBAAAAAAEAAAAAFBL
AwQUAAAACADDMDdbDxvLDKoAAAAcAQAACwAcAF9yZWxzLy5yZWxzVVQJAAPNONJozTjSaHV4CwABBAAAAAAEAAAAAI3PsQ6CMBAG4J2naG6XgoMxxsJiTFgN
PkAtRyHQXtNWxbe3oxgHx8v9913+Y72YmT3Qh5GsgDIvgKFV1I1WC7i2580e6io7XnCWMUXCMLrA0o0NAoYY3YHzoAY0MuTk0KZNT97ImEavuZNqkhr5tih2
3H8aUGWMrVjWdAJ805XA2pfDf3jq+1HhidTdoI0/vnwlkiy9xihgmfmT/HQjmvKEAk8d+apklb0BUEsBAh4DFAAAAAgAwTA3W9gDE+//AAAAtgIAABMAGAAA
AAAAAQAAAKSBAAAAAFtDb250ZW50X1R5cGVzXS54bWxVVAUAA8o40mh1eAsAAQQAAAAABAAAAABQSwECHgMKAAAAAADEMDdbAAAAAAAAAAAAAAAAAwAYAAAA
AAAAABAA7UFMAQAAeGwvVVQFAAPQONJodXgLAAEEAAAAAAQAAAAAUEsBAh4DFAAAAAgAxDA3W0zaRLrFAAAASQEAAA8AGAAAAAAAAQAAAKSBiQEAAHhsL3dv
cmtib29rLnhtbFVUBQAD0DjSaHV4CwABBAAAAAAEAAAAAFBLAQIeAwoAAAAAANIwN1sAAAAAAAAAAAAAAAAOABgAAAAAAAAAEADtQZcCAAB4bC93b3Jrc2hl
ZXRzL1VUBQAD6zjSaHV4CwABBAAAAAAEAAAAAFBLAQIeAxQAAAAIANIwN1u3fFZsqwIAAIASAAAYABgAAAAAAAEAAACkgd8CAAB4bC93b3Jrc2hlZXRzL3No
ZWV0Mi54bWxVVAUAA+s40mh1eAsAAQQAAAAABAAAAABQSwECHgMUAAAACADHMDdbKjHstLMAAAD4AAAAGAAYAAAAAAABAAAApIHcBQAAeGwvd29ya3NoZWV0
cy9zaGVldDEueG1sVVQFAAPWONJodXgLAAEEAAAAAAQAAAAAUEsBAh4DCgAAAAAAxjA3WwAAAAAAAAAAAAAAAAkAGAAAAAAAAAAQAO1B4QYAAHhsL19yZWxz
L1VUBQAD0zjSaHV4CwABBAAAAAAEAAAAAFBLAQIeAxQAAAAIAMYwN1sKY9uUtgAAAK0BAAAaABgAAAAAAAEAAACkgSQHAAB4bC9fcmVscy93b3JrYm9vay54
bWwucmVsc1VUBQAD0zjSaHV4CwABBAAAAAAEAAAAAFBLAQIeAwoAAAAAAMMwN1sAAAAAAAAAAAAAAAAGABgAAAAAAAAAEADtQS4IAABfcmVscy9VVAUAA804
0mh1eAsAAQQAAAAABAAAAABQSwECHgMUAAAACADDMDdbDxvLDKoAAAAcAQAACwAYAAAAAAABAAAApIFuCAAAX3JlbHMvLnJlbHNVVAUAA8040mh1eAsAAQQA
AAAABAAAAABQSwUGAAAAAAoACgBTAwAAXQkAAAAA
`

func fixtureBytes(t *testing.T) []byte {
	t.Helper()
	raw := strings.ReplaceAll(strings.TrimSpace(xlsxFixtureBase64), "\n", "")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("decode xlsx fixture: %v", err)
	}
	return data
}

func TestLoadXLSXSheetSelection(t *testing.T) {
	data := fixtureBytes(t)

	byName, err := LoadXLSX(data, Options{SheetName: "data"})
	if err != nil {
		t.Fatalf("LoadXLSX name: %v", err)
	}
	byIndex, err := LoadXLSX(data, Options{SheetIndex: 2})
	if err != nil {
		t.Fatalf("LoadXLSX index: %v", err)
	}
	for _, tbl := range []*Table{byName, byIndex} {
		if tbl.Name != "Data" {
			t.Fatalf("name = %q, want Data", tbl.Name)
		}
		if tbl.Rows != 10 {
			t.Fatalf("rows = %d, want 10", tbl.Rows)
		}
		if len(tbl.Columns) != 7 {
			t.Fatalf("columns = %d, want 7", len(tbl.Columns))
		}
	}

	wantKinds := map[string]Kind{
		"Group":               KindCategorical,
		"Concentration (g/L)": KindNumeric,
		"Temp (°F)":           KindNumeric,
		"Score":               KindNumeric,
		"LocaleNumber":        KindNumeric,
		"Category":            KindCategorical,
		"Note":                KindCategorical,
	}
	for name, kind := range wantKinds {
		c, ok := byName.column(name)
		if !ok {
			t.Fatalf("column %q not found", name)
		}
		if c.Kind != kind {
			t.Fatalf("%s kind = %v, want %v", name, c.Kind, kind)
		}
	}
	conc, _ := byName.column("Concentration (g/L)")
	if !almostEqual(conc.Numbers[0], 0.5, 1e-9) || !almostEqual(conc.Numbers[8], 3.0, 1e-9) {
		t.Fatalf("concentration values = %v", conc.Numbers)
	}
	locale, _ := byName.column("LocaleNumber")
	if !almostEqual(locale.Numbers[0], 1000, 1e-9) || !almostEqual(locale.Numbers[2], 900, 1e-9) {
		t.Fatalf("locale values = %v", locale.Numbers)
	}
	cat, _ := byName.column("Category")
	if cat.Values[0] != "alpha" || cat.Values[2] != "beta" {
		t.Fatalf("category values = %v", cat.Values)
	}
}

func TestLoadXLSXHeaderOnlySheetIsEmpty(t *testing.T) {
	_, err := LoadXLSX(fixtureBytes(t), Options{SheetName: "Ignore"})
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestLoadXLSXErrors(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		opt       Options
		wantEmpty bool
	}{
		{name: "zero bytes", data: nil, wantEmpty: true},
		{name: "plain text", data: []byte("Age,City\n20,A\n")},
		{name: "legacy xls", data: []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0, 0}},
		{name: "truncated zip", data: []byte("PK\x03\x04garbage")},
		{name: "unknown sheet", data: nil, opt: Options{SheetName: "Nope"}},
		{name: "index out of range", data: nil, opt: Options{SheetIndex: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.data
			if data == nil && !tt.wantEmpty {
				data = fixtureBytes(t)
			}
			_, err := LoadXLSX(data, tt.opt)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.wantEmpty {
				if !errors.Is(err, ErrEmptyInput) {
					t.Fatalf("err = %v, want ErrEmptyInput", err)
				}
				return
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("err = %T %v, want *FormatError", err, err)
			}
		})
	}
}

func TestLoadXLSXUnknownSheetListsAvailable(t *testing.T) {
	_, err := LoadXLSX(fixtureBytes(t), Options{SheetName: "Nope"})
	if err == nil || !strings.Contains(err.Error(), "Ignore, Data") {
		t.Fatalf("err = %v, want available sheets listed", err)
	}
}

func TestXLSXRelationshipPathNormalization(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"styles.xml", "xl/styles.xml"},
		{"/xl/styles.xml", "xl/styles.xml"},
	}
	for _, tt := range tests {
		got := normalizeRelPath(tt.input)
		if got != tt.expected {
			t.Errorf("normalizeRelPath(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLoadXLSXRejectsCellsBeyondLastColumn(t *testing.T) {
	header := `<row r="1"><c r="A1" t="inlineStr"><is><t>Age</t></is></c></row>`
	for _, ref := range []string{"XFE2", "AAAAAA2", "ZZZZZZZZZZZ2", "ZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZ2"} {
		t.Run(ref, func(t *testing.T) {
			data := xlsxtest.Build(t, xlsxtest.Sheet{
				Name:      "Sheet1",
				SheetData: header + `<row r="2"><c r="` + ref + `"><v>1</v></c></row>`,
			})
			_, err := LoadXLSX(data, Options{})
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("err = %T %v, want *FormatError", err, err)
			}
			if !strings.Contains(err.Error(), "beyond column XFD") {
				t.Fatalf("err = %v", err)
			}
		})
	}
	// XFD itself is the last valid column
	data := xlsxtest.Build(t, xlsxtest.Sheet{
		Name:      "Sheet1",
		SheetData: header + `<row r="2"><c r="A2"><v>1</v></c><c r="XFD2"><v>2</v></c></row>`,
	})
	tbl, err := LoadXLSX(data, Options{})
	if err != nil {
		t.Fatalf("LoadXLSX: %v", err)
	}
	if len(tbl.Columns) != maxSheetColumns {
		t.Fatalf("columns = %d, want %d", len(tbl.Columns), maxSheetColumns)
	}
}

func TestColIndexFromRef(t *testing.T) {
	cases := map[string]int{"A1": 0, "C12": 2, "Z3": 25, "AA10": 26, "ab2": 27, "XFD1": 16383, "ZZZZZZZZZZZZZZ1": maxSheetColumns}
	for ref, want := range cases {
		if got := colIndexFromRef(ref); got != want {
			t.Errorf("colIndexFromRef(%q) = %d, want %d", ref, got, want)
		}
	}
}

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}
