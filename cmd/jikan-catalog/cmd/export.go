package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/jikan-catalog/internal/ui"
	"github.com/Sternrassler/jikan-catalog/pkg/catalog"
	"github.com/Sternrassler/jikan-catalog/pkg/pagination"
)

func exportCmd(opts *rootOptions) *cobra.Command {
	var (
		route       string
		sort        string
		maxPages    int
		concurrency int
		outPath     string
		noProgress  bool
	)

	c := &cobra.Command{
		Use:   "export [query]",
		Short: "Crawl every page of a listing and write it as JSON lines",
		Long: "Crawl a listing page by page with bounded concurrency and write\n" +
			"one JSON record per line. Duplicates across pages are dropped.\n" +
			"Routes: top, seasonal, upcoming, anime, manga, characters.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := catalog.ParseSort(sort); err != nil {
				return err
			}

			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := pagination.DefaultConfig()
			cfg.MaxConcurrency = a.cfg.Listing.ExportConcurrency
			cfg.MaxPages = a.cfg.Listing.ExportMaxPages
			if cmd.Flags().Changed("concurrency") {
				cfg.MaxConcurrency = concurrency
			}
			if cmd.Flags().Changed("max-pages") {
				cfg.MaxPages = maxPages
			}

			spec := a.api.Listing(route, strings.Join(args, " "), sort)
			fetcher := pagination.NewBatchFetcher(spec.Fetch, cfg)

			var bar *ui.Bar
			if !noProgress {
				progress := ui.NewProgress(cmd.ErrOrStderr())
				bar = progress.Register(spec.Title)
				fetcher.OnProgress(bar.Update)
				defer progress.Close()
			}

			result, fetchErr := fetcher.FetchAll(commandContext(cmd), spec.Query)
			if bar != nil {
				if fetchErr != nil {
					bar.Abort()
				} else {
					bar.MarkDone()
				}
			}
			if result == nil {
				return fmt.Errorf("exporting %s: %w", spec.Title, fetchErr)
			}

			w := cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}

			if err := writeJSONLines(w, result.Items); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}

			log.Info().
				Str("listing", spec.Title).
				Int("items", len(result.Items)).
				Int("pages", result.Pages).
				Int("total_pages", result.TotalPages).
				Int("deduplicated", result.Deduplicated).
				Msg("Export finished")

			return fetchErr
		},
	}

	f := c.Flags()
	f.StringVarP(&route, "route", "r", catalog.RouteAnime, "listing to crawl")
	f.StringVarP(&sort, "sort", "s", catalog.SortPopularity, "sort key for sortable listings")
	f.IntVar(&maxPages, "max-pages", 0, "stop after this many pages (0 = all)")
	f.IntVar(&concurrency, "concurrency", 3, "parallel page fetches")
	f.StringVarP(&outPath, "out", "O", "", "output file (default stdout)")
	f.BoolVar(&noProgress, "no-progress", false, "disable the progress bar")

	return c
}

// writeJSONLines writes one compact JSON document per entry.
func writeJSONLines(w io.Writer, items []catalog.Entry) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
