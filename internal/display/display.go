// Package display normalizes book data from either search path into the
// fixed, client-facing [Record] schema. Every function here is total: bad or
// missing input is replaced by the field's default, never reported as an
// error.
package display

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/54b3r/bookrec-go/internal/catalog"
)

// Field defaults applied when a value is absent or cannot be coerced.
const (
	DefaultID          = ""
	DefaultTitle       = "Unknown Title"
	DefaultAuthors     = "Unknown Author"
	DefaultCategories  = "Unknown Category"
	DefaultYear        = "Unknown"
	DefaultNumPages    = "Unknown"
	DefaultDescription = "No description available."

	// fallbackID is the id of the fully-defaulted record returned when
	// formatting a record fails as a whole.
	fallbackID = "unknown"
)

// Metadata keys written by the index builder and read back on the vector
// search path.
const (
	KeyBookIndex     = "book_index"
	KeyISBN          = "isbn"
	KeyTitle         = "title"
	KeyAuthors       = "authors"
	KeyCategories    = "categories"
	KeyPublishedYear = "published_year"
	KeyAverageRating = "average_rating"
	KeyNumPages      = "num_pages"
	KeyRatingsCount  = "ratings_count"
	KeyThumbnail     = "thumbnail"
	KeyDescription   = "description"
)

// Record is the normalized representation of a book returned to clients.
type Record struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Authors       string  `json:"authors"`
	Categories    string  `json:"categories"`
	PublishedYear string  `json:"published_year"`
	AverageRating float64 `json:"average_rating"`
	NumPages      string  `json:"num_pages"`
	Description   string  `json:"description"`
	Thumbnail     string  `json:"thumbnail"`
}

// Fallback returns the fully-defaulted record.
func Fallback() Record {
	return Record{
		ID:            fallbackID,
		Title:         DefaultTitle,
		Authors:       DefaultAuthors,
		Categories:    DefaultCategories,
		PublishedYear: DefaultYear,
		AverageRating: 0,
		NumPages:      DefaultNumPages,
		Description:   DefaultDescription,
		Thumbnail:     "",
	}
}

// FromBook formats a catalog row. The record id is the row's ISBN-13.
func FromBook(b catalog.BookRecord) (rec Record) {
	defer func() {
		if recover() != nil {
			rec = Fallback()
		}
	}()

	return Record{
		ID:            b.ISBN13,
		Title:         orDefault(b.Title, DefaultTitle),
		Authors:       orDefault(b.Authors, DefaultAuthors),
		Categories:    orDefault(b.Categories, DefaultCategories),
		PublishedYear: wholeNumber(b.PublishedYear, DefaultYear),
		AverageRating: finite(b.AverageRating),
		NumPages:      wholeNumber(b.NumPages, DefaultNumPages),
		Description:   Clean(b.Description),
		Thumbnail:     b.Thumbnail,
	}
}

// FromMetadata formats a vector search hit. meta is the metadata stored with
// the document and content is the embedded text, used as the description
// when meta carries none. The record id is the book_index join key.
func FromMetadata(meta map[string]any, content string) (rec Record) {
	defer func() {
		if recover() != nil {
			rec = Fallback()
		}
	}()

	desc := MetaString(meta, KeyDescription)
	if desc == "" {
		desc = content
	}

	return Record{
		ID:            MetaString(meta, KeyBookIndex),
		Title:         orDefault(MetaString(meta, KeyTitle), DefaultTitle),
		Authors:       orDefault(MetaString(meta, KeyAuthors), DefaultAuthors),
		Categories:    orDefault(MetaString(meta, KeyCategories), DefaultCategories),
		PublishedYear: wholeNumber(MetaString(meta, KeyPublishedYear), DefaultYear),
		AverageRating: MetaFloat(meta, KeyAverageRating),
		NumPages:      wholeNumber(MetaString(meta, KeyNumPages), DefaultNumPages),
		Description:   Clean(desc),
		Thumbnail:     MetaString(meta, KeyThumbnail),
	}
}

// MetaString returns meta[key] as text. Numbers are rendered without a
// trailing ".0"; nil, missing, and unsupported values read as "".
func MetaString(meta map[string]any, key string) string {
	switch v := meta[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// MetaFloat returns meta[key] as a finite float64, or 0.
func MetaFloat(meta map[string]any, key string) float64 {
	switch v := meta[key].(type) {
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return finite(f)
	default:
		return 0
	}
}

// wholeNumber renders an integer-like value ("2001", "2001.0") as integer
// text. Empty, unparsable, non-finite input, values below 1, and values too
// large for an int64 yield def.
func wholeNumber(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 1 || f >= math.MaxInt64 {
		return def
	}
	return strconv.FormatInt(int64(f), 10)
}

// finite maps NaN and ±Inf to 0 so the value survives JSON encoding.
func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// orDefault returns s, or def when s is blank.
func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
