package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Column names read from the catalog CSV header. Unknown columns are ignored
// and missing columns read as empty.
const (
	colISBN13            = "isbn13"
	colTitle             = "title"
	colAuthors           = "authors"
	colCategories        = "categories"
	colThumbnail         = "thumbnail"
	colDescription       = "description"
	colPublishedYear     = "published_year"
	colAverageRating     = "average_rating"
	colNumPages          = "num_pages"
	colRatingsCount      = "ratings_count"
	colTaggedDescription = "tagged_description"
)

// LoadFile opens path and parses it with [Load].
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()

	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: load %s: %w", path, err)
	}
	return s, nil
}

// Load parses a catalog CSV with a header row. Columns are located by name.
// Numeric cells that fail to parse read as 0; a malformed CSV stream is an
// error.
func Load(r io.Reader) (*Store, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}

	var books []BookRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(books)+1, err)
		}
		if len(row) == 0 {
			continue
		}

		books = append(books, BookRecord{
			ISBN13:            valueAt(header, row, colISBN13),
			Title:             valueAt(header, row, colTitle),
			Authors:           valueAt(header, row, colAuthors),
			Categories:        valueAt(header, row, colCategories),
			PublishedYear:     valueAt(header, row, colPublishedYear),
			AverageRating:     parseFloat(valueAt(header, row, colAverageRating)),
			NumPages:          valueAt(header, row, colNumPages),
			RatingsCount:      parseFloat(valueAt(header, row, colRatingsCount)),
			Description:       rawAt(header, row, colDescription),
			Thumbnail:         valueAt(header, row, colThumbnail),
			TaggedDescription: rawAt(header, row, colTaggedDescription),
		})
	}

	return New(books), nil
}

// readHeader reads the first row and maps lower-cased column names to their
// positions.
func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty catalog: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	header := make(map[string]int, len(row))
	for i, name := range row {
		// Strip a UTF-8 BOM left by spreadsheet exports.
		name = strings.TrimPrefix(name, "\ufeff")
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return header, nil
}

// rawAt returns the cell for column name, untrimmed, or "" when absent.
func rawAt(header map[string]int, row []string, name string) string {
	i, ok := header[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// valueAt returns the trimmed cell for column name. Spreadsheet null markers
// read as empty.
func valueAt(header map[string]int, row []string, name string) string {
	v := strings.TrimSpace(rawAt(header, row, name))
	switch strings.ToLower(v) {
	case "nan", "null", "none":
		return ""
	}
	return v
}

// parseFloat parses s, returning 0 for empty or malformed input.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
