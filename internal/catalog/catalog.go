// Package catalog holds the in-memory book catalog: one [BookRecord] per
// row of the source CSV. A [Store] is built once at startup and is read-only
// afterwards, so it is safe to share between goroutines without locking.
//
// The catalog is the source of truth for the index builder and the data set
// searched by the substring fallback when no vector index is available.
package catalog

import (
	"sort"
	"strings"
)

// DefaultCategory is assigned at load time to rows with no categories value.
const DefaultCategory = "Unknown"

// BookRecord is a single catalog row. Text fields hold the raw CSV value
// (trimmed); numeric fields that the search filters need are parsed at load
// time. Display defaults are applied later by the display package.
type BookRecord struct {
	// ISBN13 is the book identifier. May be empty.
	ISBN13 string
	// Title is the book title. May be empty.
	Title string
	// Authors is the author list as a single display string.
	Authors string
	// Categories is the category label. Never empty after loading.
	Categories string
	// PublishedYear is the raw year text, possibly float-formatted ("2001.0").
	PublishedYear string
	// AverageRating is the mean rating; 0 when absent or unparsable.
	AverageRating float64
	// NumPages is the raw page count text, possibly float-formatted.
	NumPages string
	// RatingsCount is the number of ratings; 0 when absent or unparsable.
	RatingsCount float64
	// Description is free text. It may carry a leading ISBN-13 prefix.
	Description string
	// Thumbnail is the cover image URL. May be empty.
	Thumbnail string
	// TaggedDescription is the text embedded into the vector index. Rows with
	// an empty value are left out of the index but stay in the catalog.
	TaggedDescription string
}

// HasTaggedDescription reports whether the record qualifies for the vector
// index.
func (b BookRecord) HasTaggedDescription() bool {
	return strings.TrimSpace(b.TaggedDescription) != ""
}

// Filter narrows a catalog scan. The zero value matches every row.
type Filter struct {
	// Category keeps rows whose Categories equals it exactly. Empty disables.
	Category string
	// MinRating keeps rows with AverageRating >= MinRating. Values <= 0 disable.
	MinRating float64
}

// Match reports whether b passes the filter.
func (f Filter) Match(b BookRecord) bool {
	if f.Category != "" && b.Categories != f.Category {
		return false
	}
	if f.MinRating > 0 && b.AverageRating < f.MinRating {
		return false
	}
	return true
}

// Store is an immutable, positionally indexed snapshot of the catalog.
// Row positions are the join key stored in the vector index as book_index.
type Store struct {
	// books holds the rows in source order.
	books []BookRecord
}

// New constructs a Store from books. The slice is copied so later changes by
// the caller do not leak into the store. Empty categories are defaulted.
func New(books []BookRecord) *Store {
	rows := make([]BookRecord, len(books))
	copy(rows, books)
	for i := range rows {
		if rows[i].Categories == "" {
			rows[i].Categories = DefaultCategory
		}
	}
	return &Store{books: rows}
}

// Empty returns a Store with no rows. Used when the catalog cannot be loaded.
func Empty() *Store {
	return &Store{}
}

// Len returns the number of rows.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.books)
}

// At returns the row at position i.
func (s *Store) At(i int) (BookRecord, bool) {
	if s == nil || i < 0 || i >= len(s.books) {
		return BookRecord{}, false
	}
	return s.books[i], true
}

// Each calls fn for every row in catalog order until fn returns false.
func (s *Store) Each(fn func(i int, b BookRecord) bool) {
	if s == nil {
		return
	}
	for i, b := range s.books {
		if !fn(i, b) {
			return
		}
	}
}

// Search returns up to limit rows, in catalog order, that pass f and whose
// description, title, or authors contain query case-insensitively. Filters
// are applied before the limit. A limit <= 0 or an empty query yields nil.
func (s *Store) Search(query string, f Filter, limit int) []BookRecord {
	needle := strings.ToLower(query)
	if needle == "" || limit <= 0 {
		return nil
	}

	var out []BookRecord
	s.Each(func(_ int, b BookRecord) bool {
		if !f.Match(b) || !b.contains(needle) {
			return true
		}
		out = append(out, b)
		return len(out) < limit
	})
	return out
}

// contains reports whether the lower-cased needle occurs in the record's
// description, title, or authors.
func (b BookRecord) contains(needle string) bool {
	return strings.Contains(strings.ToLower(b.Description), needle) ||
		strings.Contains(strings.ToLower(b.Title), needle) ||
		strings.Contains(strings.ToLower(b.Authors), needle)
}

// Categories returns the distinct category labels, sorted.
func (s *Store) Categories() []string {
	seen := make(map[string]struct{})
	s.Each(func(_ int, b BookRecord) bool {
		seen[b.Categories] = struct{}{}
		return true
	})
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
