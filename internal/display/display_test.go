package display

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/54b3r/bookrec-go/internal/catalog"
)

func TestClean(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", DefaultDescription},
		{"whitespace only", "   \n\t ", DefaultDescription},
		{"isbn glued with space at index 12", "978031234567 A great book.", "A great book."},
		{"isbn13 then space", "9780312345678 A great book.", "A great book."},
		{"isbn13 no space", "9780312345678A great book.", "A great book."},
		{"prefix but too short", "9780312345", "9780312345"},
		{"exactly thirteen", "9780312345678", "9780312345678"},
		{"quotes and whitespace", "  'Hello   world'  ", "Hello world"},
		{"double quotes", `"Quoted text"`, "Quoted text"},
		{"nested quote layers", `"'Both'"`, "Both"},
		{"newlines and tabs", "line one\n\nline\ttwo", "line one line two"},
		{"non-isbn number", "1984 is a novel", "1984 is a novel"},
		{"only quotes", `""`, DefaultDescription},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Clean(tc.in); got != tc.want {
				t.Errorf("Clean(%q): want %q, got %q", tc.in, tc.want, got)
			}
		})
	}
}

func TestClean_MultibyteAfterISBN(t *testing.T) {
	t.Parallel()

	if got := Clean("9780312345678 Café society"); got != "Café society" {
		t.Errorf("got %q", got)
	}
}

func TestFromBook_FullRecord(t *testing.T) {
	t.Parallel()

	rec := FromBook(catalog.BookRecord{
		ISBN13:        "9780002005883",
		Title:         "Gilead",
		Authors:       "Marilynne Robinson",
		Categories:    "Fiction",
		PublishedYear: "2004.0",
		AverageRating: 3.85,
		NumPages:      "247.0",
		Description:   "9780002005883 A NOVEL",
		Thumbnail:     "http://img/1",
	})

	want := Record{
		ID:            "9780002005883",
		Title:         "Gilead",
		Authors:       "Marilynne Robinson",
		Categories:    "Fiction",
		PublishedYear: "2004",
		AverageRating: 3.85,
		NumPages:      "247",
		Description:   "A NOVEL",
		Thumbnail:     "http://img/1",
	}
	if rec != want {
		t.Errorf("FromBook:\nwant %+v\n got %+v", want, rec)
	}
}

func TestFromBook_Defaults(t *testing.T) {
	t.Parallel()

	rec := FromBook(catalog.BookRecord{
		PublishedYear: "not a year",
		AverageRating: math.NaN(),
		NumPages:      "0",
	})

	if rec.ID != "" {
		t.Errorf("id: want empty, got %q", rec.ID)
	}
	if rec.Title != DefaultTitle || rec.Authors != DefaultAuthors || rec.Categories != DefaultCategories {
		t.Errorf("text defaults not applied: %+v", rec)
	}
	if rec.PublishedYear != DefaultYear {
		t.Errorf("year: want %q, got %q", DefaultYear, rec.PublishedYear)
	}
	if rec.AverageRating != 0 {
		t.Errorf("rating: want 0, got %v", rec.AverageRating)
	}
	if rec.NumPages != DefaultNumPages {
		t.Errorf("pages: want %q, got %q", DefaultNumPages, rec.NumPages)
	}
	if rec.Description != DefaultDescription {
		t.Errorf("description: want %q, got %q", DefaultDescription, rec.Description)
	}
}

func TestFromBook_OutOfRangeNumbers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		year, pages         string
		wantYear, wantPages string
	}{
		{"1e300", "9.3e18", DefaultYear, DefaultNumPages},
		{"9223372036854775808", "-1e300", DefaultYear, DefaultNumPages},
		{"0.5", "0.9", DefaultYear, DefaultNumPages},
		{"1e3", "9.2e18", "1000", "9200000000000000000"},
	}

	for _, tc := range cases {
		rec := FromBook(catalog.BookRecord{PublishedYear: tc.year, NumPages: tc.pages})
		if rec.PublishedYear != tc.wantYear {
			t.Errorf("year %q: want %q, got %q", tc.year, tc.wantYear, rec.PublishedYear)
		}
		if rec.NumPages != tc.wantPages {
			t.Errorf("pages %q: want %q, got %q", tc.pages, tc.wantPages, rec.NumPages)
		}
	}

	rec := FromMetadata(map[string]any{KeyPublishedYear: 1e300, KeyNumPages: 9.3e18}, "")
	if rec.PublishedYear != DefaultYear || rec.NumPages != DefaultNumPages {
		t.Errorf("metadata path: want defaults, got year=%q pages=%q", rec.PublishedYear, rec.NumPages)
	}
}

func TestFromMetadata_TypedValues(t *testing.T) {
	t.Parallel()

	meta := map[string]any{
		KeyBookIndex:     "42",
		KeyTitle:         "Dune",
		KeyAuthors:       "Frank Herbert",
		KeyCategories:    "Fiction",
		KeyPublishedYear: "1965.0",
		KeyAverageRating: 4.25,
		KeyNumPages:      float64(412),
		KeyThumbnail:     "http://img/dune",
	}
	rec := FromMetadata(meta, "9780441013593 Set on the desert planet Arrakis")

	if rec.ID != "42" {
		t.Errorf("id: want book_index 42, got %q", rec.ID)
	}
	if rec.PublishedYear != "1965" || rec.NumPages != "412" {
		t.Errorf("numerics: year=%q pages=%q", rec.PublishedYear, rec.NumPages)
	}
	if rec.AverageRating != 4.25 {
		t.Errorf("rating: want 4.25, got %v", rec.AverageRating)
	}
	if rec.Description != "Set on the desert planet Arrakis" {
		t.Errorf("description: got %q", rec.Description)
	}
}

func TestFromMetadata_DescriptionKeyWins(t *testing.T) {
	t.Parallel()

	rec := FromMetadata(map[string]any{KeyDescription: "stored text"}, "embedded text")
	if rec.Description != "stored text" {
		t.Errorf("want stored description, got %q", rec.Description)
	}
}

// TestFromMetadata_Malformed feeds values of the wrong type into every field
// and checks that each one falls back to its default.
func TestFromMetadata_Malformed(t *testing.T) {
	t.Parallel()

	inputs := []map[string]any{
		nil,
		{},
		{
			KeyBookIndex:     []int{1},
			KeyTitle:         map[string]any{},
			KeyAuthors:       nil,
			KeyCategories:    struct{}{},
			KeyPublishedYear: "MMI",
			KeyAverageRating: "four",
			KeyNumPages:      math.Inf(1),
			KeyThumbnail:     42.5,
		},
		{
			KeyAverageRating: math.NaN(),
			KeyPublishedYear: math.NaN(),
		},
	}

	for i, meta := range inputs {
		rec := FromMetadata(meta, "")
		if rec.Title != DefaultTitle || rec.Authors != DefaultAuthors || rec.Categories != DefaultCategories {
			t.Errorf("input %d: text defaults missing: %+v", i, rec)
		}
		if rec.PublishedYear != DefaultYear || rec.NumPages != DefaultNumPages {
			t.Errorf("input %d: numeric text defaults missing: %+v", i, rec)
		}
		if rec.AverageRating != 0 {
			t.Errorf("input %d: rating: want 0, got %v", i, rec.AverageRating)
		}
		if rec.Description != DefaultDescription {
			t.Errorf("input %d: description: got %q", i, rec.Description)
		}
		if _, err := json.Marshal(rec); err != nil {
			t.Errorf("input %d: record must be JSON-encodable: %v", i, err)
		}
	}
}

func TestMetaFloat(t *testing.T) {
	t.Parallel()

	meta := map[string]any{
		"f64": 1.5,
		"f32": float32(2.5),
		"int": 3,
		"i64": int64(4),
		"str": " 5.5 ",
		"bad": "x",
	}
	want := map[string]float64{"f64": 1.5, "f32": 2.5, "int": 3, "i64": 4, "str": 5.5, "bad": 0, "missing": 0}
	for k, w := range want {
		if got := MetaFloat(meta, k); got != w {
			t.Errorf("MetaFloat(%q): want %v, got %v", k, w, got)
		}
	}
}

func TestMetaString(t *testing.T) {
	t.Parallel()

	meta := map[string]any{"s": " x ", "f": 412.0, "i": int64(7)}
	if got := MetaString(meta, "s"); got != "x" {
		t.Errorf("string: got %q", got)
	}
	if got := MetaString(meta, "f"); got != "412" {
		t.Errorf("float: got %q", got)
	}
	if got := MetaString(meta, "i"); got != "7" {
		t.Errorf("int64: got %q", got)
	}
	if got := MetaString(meta, "missing"); got != "" {
		t.Errorf("missing: got %q", got)
	}
}

func TestFallback(t *testing.T) {
	t.Parallel()

	rec := Fallback()
	if rec.ID != "unknown" || rec.PublishedYear != DefaultYear || rec.Description != DefaultDescription {
		t.Errorf("unexpected fallback record: %+v", rec)
	}
}
