package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/jikan-catalog/pkg/catalog"
	"github.com/Sternrassler/jikan-catalog/pkg/pagination"
)

// listingOutput is the JSON form of an accumulated listing.
type listingOutput struct {
	Title    string          `json:"title"`
	Route    string          `json:"route"`
	Category string          `json:"category"`
	Query    string          `json:"query,omitempty"`
	Sort     string          `json:"sort,omitempty"`
	Page     int             `json:"page"`
	LastPage int             `json:"last_page,omitempty"`
	State    string          `json:"state"`
	HasMore  bool            `json:"has_more"`
	Items    []catalog.Entry `json:"items"`
	Error    string          `json:"error,omitempty"`
}

func searchCmd(opts *rootOptions) *cobra.Command {
	var (
		category string
		sort     string
		pages    int
	)

	c := &cobra.Command{
		Use:   "search [query]",
		Short: "Search anime, manga or characters",
		Long: "Search the catalog. Without a query the category's popular\n" +
			"listing is shown instead. Pages accumulate with duplicates removed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.ParseCategory(category)
			if err != nil {
				return err
			}
			if _, err := catalog.ParseSort(sort); err != nil {
				return err
			}
			return runListing(cmd, opts, routeFor(cat), strings.Join(args, " "), sort, pages)
		},
	}

	c.Flags().StringVarP(&category, "category", "c", string(catalog.CategoryAnime), "anime, manga or characters")
	c.Flags().StringVarP(&sort, "sort", "s", catalog.SortPopularity,
		"sort key ("+strings.Join(catalog.SortKeys, ", ")+")")
	c.Flags().IntVarP(&pages, "pages", "p", 1, "number of pages to load")

	return c
}

func browseCmd(opts *rootOptions, route, short string) *cobra.Command {
	var pages int

	c := &cobra.Command{
		Use:   route,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runListing(cmd, opts, route, "", "", pages)
		},
	}
	c.Flags().IntVarP(&pages, "pages", "p", 1, "number of pages to load")
	return c
}

func routeFor(c catalog.Category) string {
	switch c {
	case catalog.CategoryManga:
		return catalog.RouteManga
	case catalog.CategoryCharacters:
		return catalog.RouteCharacters
	default:
		return catalog.RouteAnime
	}
}

// runListing drives an accumulator through up to pages pages of a listing
// and prints what it gathered. A failure after the first page still prints
// the retained items before reporting the error.
func runListing(cmd *cobra.Command, opts *rootOptions, route, text, sort string, pages int) error {
	if pages < 1 {
		return fmt.Errorf("pages must be >= 1 (got %d)", pages)
	}

	a, err := opts.newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := commandContext(cmd)
	spec := a.api.Listing(route, text, sort)
	acc := pagination.New(spec.Fetch, pagination.WithDebounce(a.cfg.Listing.Debounce))

	if err := acc.Start(ctx, spec.Query); err != nil && !errors.Is(err, pagination.ErrStale) {
		return fmt.Errorf("loading %s: %w", spec.Title, err)
	}

	for i := 1; i < pages; i++ {
		ran, err := acc.Trigger(ctx)
		if err != nil || !ran {
			break
		}
	}

	snap := acc.Snapshot()
	log.Debug().
		Str("route", spec.Query.Route).
		Int("page", snap.Page).
		Int("items", len(snap.Items)).
		Str("state", snap.State.String()).
		Msg("Listing loaded")

	p := opts.printer(cmd)
	if p.json {
		out := listingOutput{
			Title:    spec.Title,
			Route:    spec.Query.Route,
			Category: spec.Query.Category,
			Query:    spec.Query.Text,
			Sort:     spec.Query.Sort,
			Page:     snap.Page,
			LastPage: snap.LastPage,
			State:    snap.State.String(),
			HasMore:  snap.HasMore,
			Items:    snap.Items,
		}
		if out.Items == nil {
			out.Items = []catalog.Entry{}
		}
		if snap.Err != nil {
			out.Error = snap.Err.Error()
		}
		if err := p.outputJSON(out); err != nil {
			return err
		}
	} else {
		if err := p.heading(spec.Title); err != nil {
			return err
		}
		if err := p.entries(snap.Items); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(p.w, footer(snap)); err != nil {
			return err
		}
	}

	if snap.Err != nil {
		return fmt.Errorf("loading page %d: %w", snap.Page, snap.Err)
	}
	return nil
}

func footer(snap pagination.Snapshot[catalog.Entry]) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%d items, page %d", len(snap.Items), snap.Page)
	if snap.LastPage > 0 {
		fmt.Fprintf(&b, " of %d", snap.LastPage)
	}
	if snap.HasMore {
		b.WriteString(" (more available)")
	}
	return b.String()
}
