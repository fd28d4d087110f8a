package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/bookrec-go/internal/display"
	"github.com/54b3r/bookrec-go/internal/search"
)

const testCSV = `isbn13,title,authors,categories,description,published_year,average_rating,num_pages,tagged_description
9780000000001,Dune,Frank Herbert,Fiction,A desert planet and a space empire.,1965.0,4.3,412.0,9780000000001 A desert planet and a space empire.
9780000000002,Gardens,Jo Green,Nonfiction,Growing vegetables at home.,2010.0,3.9,200.0,9780000000002 Growing vegetables at home.
`

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func setupCatalog(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "books.csv")
	if err := os.WriteFile(path, []byte(testCSV), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	t.Setenv("CATALOG_PATH", path)
	t.Setenv("VECTOR_BACKEND", "none")
	t.Setenv("BOOKREC_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Chdir(dir)
}

func TestSearchCmd_JSON(t *testing.T) {
	setupCatalog(t)

	out, err := runCLI(t, "search", "--json", "--category", "Fiction", "desert", "planet")
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	var got jsonResult
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.Query != "desert planet" || got.Path != search.PathFallback {
		t.Errorf("unexpected header fields: %+v", got)
	}
	if got.Count != 1 || got.Results[0].ID != "9780000000001" {
		t.Errorf("unexpected results: %+v", got.Results)
	}
}

func TestSearchCmd_JSONTrimsQuery(t *testing.T) {
	setupCatalog(t)

	out, err := runCLI(t, "search", "--json", "  desert", "planet \t")
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	var got jsonResult
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.Query != "desert planet" {
		t.Errorf("query should be echoed trimmed, got %q", got.Query)
	}
	if got.Count != 1 || got.Results[0].Title != "Dune" {
		t.Errorf("unexpected results: %+v", got.Results)
	}
}

func TestSearchCmd_Text(t *testing.T) {
	setupCatalog(t)

	out, err := runCLI(t, "search", "vegetables")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "1 result(s) via fallback search") || !strings.Contains(out, "1. Gardens") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	setupCatalog(t)

	if _, err := runCLI(t, "search"); err == nil {
		t.Error("expected error without a query argument")
	}
	if _, err := runCLI(t, "search", "   "); err == nil {
		t.Error("expected error for a blank query")
	}
}

func TestVersionCmd(t *testing.T) {
	setupCatalog(t)

	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "bookrec dev") {
		t.Errorf("unexpected version output: %q", out)
	}
}

func TestPrintResults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printResults(&buf, search.Result{
		Path: search.PathVector,
		Records: []display.Record{{
			Title: "Dune", Authors: "Frank Herbert", Categories: "Fiction",
			PublishedYear: "1965", AverageRating: 4.3, NumPages: "412",
			Description: strings.Repeat("a", 200),
		}},
	})
	out := buf.String()
	if !strings.Contains(out, "1 result(s) via vector search") || !strings.Contains(out, "rating 4.30") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, strings.Repeat("a", 160)+"...") {
		t.Error("long descriptions should be truncated")
	}
}
