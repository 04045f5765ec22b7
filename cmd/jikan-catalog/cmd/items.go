package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/jikan-catalog/pkg/catalog"
)

func overviewCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show top, current-season and upcoming anime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ov, err := a.api.Overview(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("loading overview: %w", err)
			}

			p := opts.printer(cmd)
			if p.json {
				return p.outputJSON(ov)
			}

			sections := []struct {
				title string
				items []catalog.Anime
			}{
				{"Top Anime", ov.Top},
				{"This Season", ov.Season},
				{"Upcoming", ov.Upcoming},
			}
			for i, s := range sections {
				if i > 0 {
					if _, err := fmt.Fprintln(p.w); err != nil {
						return err
					}
				}
				if err := p.heading(s.title); err != nil {
					return err
				}
				if err := p.anime(s.items); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func detailsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "details <anime|manga> <id>",
		Short: "Show an anime or manga with its characters and recommendations",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, id, err := parseItemArgs(args[0], args[1])
			if err != nil {
				return err
			}

			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.api.Details(commandContext(cmd), cat, id)
			if err != nil {
				return fmt.Errorf("loading %s %d: %w", cat, id, err)
			}

			p := opts.printer(cmd)
			if p.json {
				return p.outputJSON(d)
			}
			return p.detail(d)
		},
	}
}

// recommendOutput is the JSON form of a recommendation lookup.
type recommendOutput struct {
	Source          *catalog.Entry                          `json:"source,omitempty"`
	Recommendations []catalog.Recommendation[catalog.Entry] `json:"recommendations"`
}

func recommendCmd(opts *rootOptions) *cobra.Command {
	var title string

	c := &cobra.Command{
		Use:   "recommend <anime|manga> [id]",
		Short: "Show recommendations for an anime or manga",
		Long: "Show recommendations for an anime or manga, given by id or,\n" +
			"with --title, by the first search match for a title.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 2) == (title != "") {
				return fmt.Errorf("give either an id or --title")
			}

			cat, err := catalog.ParseCategory(args[0])
			if err != nil {
				return err
			}

			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := commandContext(cmd)
			var out recommendOutput
			if title != "" {
				out.Source, out.Recommendations, err = a.api.RecommendByTitle(ctx, cat, title)
				if err != nil {
					return fmt.Errorf("recommendations for %q: %w", title, err)
				}
			} else {
				_, id, err := parseItemArgs(args[0], args[1])
				if err != nil {
					return err
				}
				out.Recommendations, err = a.api.Recommend(ctx, cat, id)
				if err != nil {
					return fmt.Errorf("recommendations for %s %d: %w", cat, id, err)
				}
			}
			if out.Recommendations == nil {
				out.Recommendations = []catalog.Recommendation[catalog.Entry]{}
			}

			p := opts.printer(cmd)
			if p.json {
				return p.outputJSON(out)
			}
			if out.Source != nil {
				if err := p.heading(fmt.Sprintf("Because you liked %s (%d)", out.Source.DisplayName(), out.Source.MalID)); err != nil {
					return err
				}
			}
			return p.recommendations(out.Recommendations)
		},
	}

	c.Flags().StringVarP(&title, "title", "t", "", "look the item up by title")
	return c
}

func randomCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "random",
		Short: "Show a random anime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			anime, err := a.api.RandomAnime(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("loading random anime: %w", err)
			}

			p := opts.printer(cmd)
			if p.json {
				return p.outputJSON(anime)
			}
			return p.anime([]catalog.Anime{*anime})
		},
	}
}

// parseItemArgs validates a category that supports details and a MAL id.
func parseItemArgs(category, rawID string) (catalog.Category, int, error) {
	cat, err := catalog.ParseCategory(category)
	if err != nil {
		return "", 0, err
	}
	if cat != catalog.CategoryAnime && cat != catalog.CategoryManga {
		return "", 0, fmt.Errorf("category must be anime or manga, not %q", category)
	}

	id, err := strconv.Atoi(rawID)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("invalid id %q", rawID)
	}
	return cat, id, nil
}
