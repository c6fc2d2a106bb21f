package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/personaloom/internal/utils"
)

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.xlsx", "a.xlsx", "c.csv"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := utils.ExpandInputs([]string{
		filepath.Join(dir, "*.xlsx"),
		filepath.Join(dir, "a.xlsx"),
		filepath.Join(dir, "c.csv"),
		filepath.Join(dir, "missing-*.csv"),
	})
	if err != nil {
		t.Fatalf("ExpandInputs: %v", err)
	}
	var names []string
	for _, p := range got {
		names = append(names, filepath.Base(p))
	}
	if strings.Join(names, ",") != "a.xlsx,b.xlsx,c.csv" {
		t.Fatalf("files = %v", names)
	}
	if _, err := utils.ExpandInputs([]string{"[bad"}); err == nil {
		t.Fatalf("expected bad pattern error")
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	first := utils.UniquePath(dir, "people", ".personas.md", nil)
	if filepath.Base(first) != "people.personas.md" {
		t.Fatalf("first = %s", first)
	}
	if err := utils.SafeWriteFile(first, []byte("x")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	second := utils.UniquePath(dir, "people", ".personas.md", nil)
	if filepath.Base(second) != "people__2.personas.md" {
		t.Fatalf("second = %s", second)
	}
	third := utils.UniquePath(dir, "people", ".personas.md", map[string]bool{second: true})
	if filepath.Base(third) != "people__3.personas.md" {
		t.Fatalf("third = %s", third)
	}
	if _, err := os.Stat(first + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestPrettyJSONAndBaseName(t *testing.T) {
	b, err := utils.PrettyJSON(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("PrettyJSON: %v", err)
	}
	if string(b) != "{\n  \"a\": 1\n}" {
		t.Fatalf("json = %q", b)
	}
	if got := utils.BaseName("/x/y/report.v2.xlsx"); got != "report.v2" {
		t.Fatalf("BaseName = %q", got)
	}
}
