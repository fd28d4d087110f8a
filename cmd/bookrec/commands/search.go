package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/bookrec-go/internal/app"
	"github.com/54b3r/bookrec-go/internal/display"
	"github.com/54b3r/bookrec-go/internal/logging"
	"github.com/54b3r/bookrec-go/internal/search"
)

// NewSearchCmd constructs the `bookrec search` command, which runs a single
// query against the catalog and vector index and prints the results.
func NewSearchCmd() *cobra.Command {
	var category string
	var minRating float64
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the catalog from the terminal",
		Long: `Run one search exactly as POST /search would and print the results.

The vector index is used when one has been built; otherwise the catalog text
fallback answers. The path that served the query is printed with the results.

Examples:
  bookrec search "science fiction space adventure"
  bookrec search --category Fiction --min-rating 4 "mystery thriller"
  bookrec search --json --limit 3 "cooking recipes"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			a, err := app.Open(ctx, log, app.OptionsFromEnv())
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer a.Close()

			text := strings.TrimSpace(strings.Join(args, " "))
			res, err := a.Search.SearchWithPath(ctx, search.Query{
				Text:      text,
				Category:  category,
				MinRating: minRating,
				Limit:     limit,
			})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(jsonResult{
					Query:   text,
					Path:    res.Path,
					Count:   len(res.Records),
					Results: res.Records,
				})
			}
			printResults(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only return books in this exact category")
	cmd.Flags().Float64Var(&minRating, "min-rating", 0, "Only return books rated at least this")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default: SEARCH_LIMIT or 10)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

// jsonResult is the --json output of `bookrec search`.
type jsonResult struct {
	Query   string           `json:"query"`
	Path    string           `json:"path"`
	Count   int              `json:"count"`
	Results []display.Record `json:"results"`
}

// printResults writes a human-readable listing of res to w.
func printResults(w io.Writer, res search.Result) {
	fmt.Fprintf(w, "%d result(s) via %s search\n", len(res.Records), res.Path)
	for i, r := range res.Records {
		fmt.Fprintf(w, "\n%d. %s\n   %s | %s | %s | rating %.2f | %s pages\n",
			i+1, r.Title, r.Authors, r.Categories, r.PublishedYear, r.AverageRating, r.NumPages)
		fmt.Fprintf(w, "   %s\n", truncate(r.Description, 160))
	}
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
