package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/jikan-catalog/pkg/client"
	"github.com/Sternrassler/jikan-catalog/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// OverviewLimit is how many entries each overview section keeps.
const OverviewLimit = 10

// Overview is the landing view: three independent anime listings.
type Overview struct {
	Top      []Anime `json:"top"`
	Season   []Anime `json:"season"`
	Upcoming []Anime `json:"upcoming"`
}

// Overview fetches the first page of top, current-season and upcoming anime
// concurrently. Each fetch writes its own slot; any failure fails the whole
// overview.
func (a *API) Overview(ctx context.Context) (*Overview, error) {
	logger := logging.NewLogger("catalog")
	start := time.Now()

	var out Overview
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		resp, err := a.TopAnime(gctx, 1)
		if err != nil {
			return fmt.Errorf("top anime: %w", err)
		}
		out.Top = truncate(resp.Data, OverviewLimit)
		return nil
	})
	g.Go(func() error {
		resp, err := a.SeasonNow(gctx, 1)
		if err != nil {
			return fmt.Errorf("season now: %w", err)
		}
		out.Season = truncate(resp.Data, OverviewLimit)
		return nil
	})
	g.Go(func() error {
		resp, err := a.SeasonUpcoming(gctx, 1)
		if err != nil {
			return fmt.Errorf("upcoming: %w", err)
		}
		out.Upcoming = truncate(resp.Data, OverviewLimit)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Debug().Dur("duration", time.Since(start)).Msg("Overview loaded")
	return &out, nil
}

// Details is an anime or manga with its cast and recommendations.
type Details struct {
	Category        Category                `json:"category"`
	Item            Entry                   `json:"item"`
	Characters      []CharacterRole         `json:"characters"`
	Recommendations []Recommendation[Entry] `json:"recommendations"`
}

// Details fetches the item, its characters and its recommendations
// concurrently. A missing item surfaces as an error matching
// client.ErrNotFound.
func (a *API) Details(ctx context.Context, category Category, id int) (*Details, error) {
	if category != CategoryAnime && category != CategoryManga {
		return nil, fmt.Errorf("details are only available for anime and manga, not %q", category)
	}

	out := Details{Category: category}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		item, err := a.Item(gctx, category, id)
		if err != nil {
			return fmt.Errorf("%s %d: %w", category, id, err)
		}
		out.Item = *item
		return nil
	})
	g.Go(func() error {
		chars, err := a.characters(gctx, category, id)
		if err != nil {
			return fmt.Errorf("%s %d characters: %w", category, id, err)
		}
		out.Characters = chars
		return nil
	})
	g.Go(func() error {
		recs, err := a.recommendations(gctx, category, id)
		if err != nil {
			return fmt.Errorf("%s %d recommendations: %w", category, id, err)
		}
		out.Recommendations = recs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Recommend returns the recommendations for one anime or manga.
func (a *API) Recommend(ctx context.Context, category Category, id int) ([]Recommendation[Entry], error) {
	if category != CategoryAnime && category != CategoryManga {
		return nil, fmt.Errorf("recommendations are only available for anime and manga, not %q", category)
	}
	return a.recommendations(ctx, category, id)
}

// RecommendByTitle searches for title and returns the first match together
// with its recommendations.
func (a *API) RecommendByTitle(ctx context.Context, category Category, title string) (*Entry, []Recommendation[Entry], error) {
	if category != CategoryAnime && category != CategoryManga {
		return nil, nil, fmt.Errorf("recommendations are only available for anime and manga, not %q", category)
	}

	resp, err := a.listEntries(ctx, "/"+string(category), searchParams(title, 1, "", "", true))
	if err != nil {
		return nil, nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil, fmt.Errorf("no %s matches %q: %w", category, title, client.ErrNotFound)
	}

	source := resp.Data[0]
	recs, err := a.recommendations(ctx, category, source.MalID)
	if err != nil {
		return nil, nil, err
	}
	return &source, recs, nil
}

func truncate[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
