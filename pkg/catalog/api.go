// Package catalog exposes the Jikan anime, manga and character endpoints
// on top of the fetch client, plus the listing and detail compositions the
// CLI and proxy are built from.
package catalog

import (
	"context"
	"fmt"

	"github.com/Sternrassler/jikan-catalog/pkg/client"
)

// Category is a top-level catalog section.
type Category string

const (
	CategoryAnime      Category = "anime"
	CategoryManga      Category = "manga"
	CategoryCharacters Category = "characters"
)

// ParseCategory validates s as a category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryAnime, CategoryManga, CategoryCharacters:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category %q (want anime, manga or characters)", s)
	}
}

// Label is the human-readable type name used to tag recommendations.
func (c Category) Label() string {
	switch c {
	case CategoryManga:
		return "Manga"
	case CategoryCharacters:
		return "Character"
	default:
		return "Anime"
	}
}

// API is a typed view of the Jikan endpoints.
type API struct {
	fetcher client.Fetcher
}

// NewAPI creates an API backed by f.
func NewAPI(f client.Fetcher) *API {
	return &API{fetcher: f}
}

// TopAnime lists anime ordered by popularity.
func (a *API) TopAnime(ctx context.Context, page int) (*ListResponse[Anime], error) {
	return client.FetchJSON[ListResponse[Anime]](ctx, a.fetcher, "/top/anime", client.Params{
		"page":   page,
		"filter": "bypopularity",
	})
}

// TopManga lists manga ordered by popularity.
func (a *API) TopManga(ctx context.Context, page int) (*ListResponse[Manga], error) {
	return client.FetchJSON[ListResponse[Manga]](ctx, a.fetcher, "/top/manga", client.Params{
		"page":   page,
		"filter": "bypopularity",
	})
}

// TopCharacters lists characters by favorites.
func (a *API) TopCharacters(ctx context.Context, page int) (*ListResponse[Character], error) {
	return client.FetchJSON[ListResponse[Character]](ctx, a.fetcher, "/top/characters", client.Params{"page": page})
}

// SeasonNow lists the anime of the current season.
func (a *API) SeasonNow(ctx context.Context, page int) (*ListResponse[Anime], error) {
	return client.FetchJSON[ListResponse[Anime]](ctx, a.fetcher, "/seasons/now", client.Params{"page": page})
}

// SeasonUpcoming lists announced anime of upcoming seasons.
func (a *API) SeasonUpcoming(ctx context.Context, page int) (*ListResponse[Anime], error) {
	return client.FetchJSON[ListResponse[Anime]](ctx, a.fetcher, "/seasons/upcoming", client.Params{"page": page})
}

// SearchAnime searches anime. Empty orderBy or sort leave the upstream default.
func (a *API) SearchAnime(ctx context.Context, q string, page int, orderBy, sort string) (*ListResponse[Anime], error) {
	return client.FetchJSON[ListResponse[Anime]](ctx, a.fetcher, "/anime", searchParams(q, page, orderBy, sort, true))
}

// SearchManga searches manga.
func (a *API) SearchManga(ctx context.Context, q string, page int, orderBy, sort string) (*ListResponse[Manga], error) {
	return client.FetchJSON[ListResponse[Manga]](ctx, a.fetcher, "/manga", searchParams(q, page, orderBy, sort, true))
}

// SearchCharacters searches characters.
func (a *API) SearchCharacters(ctx context.Context, q string, page int, orderBy, sort string) (*ListResponse[Character], error) {
	return client.FetchJSON[ListResponse[Character]](ctx, a.fetcher, "/characters", searchParams(q, page, orderBy, sort, false))
}

// AnimeByID fetches one anime.
func (a *API) AnimeByID(ctx context.Context, id int) (*Anime, error) {
	resp, err := client.FetchJSON[ItemResponse[Anime]](ctx, a.fetcher, fmt.Sprintf("/anime/%d", id), nil)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// MangaByID fetches one manga.
func (a *API) MangaByID(ctx context.Context, id int) (*Manga, error) {
	resp, err := client.FetchJSON[ItemResponse[Manga]](ctx, a.fetcher, fmt.Sprintf("/manga/%d", id), nil)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// AnimeCharacters lists the cast of an anime.
func (a *API) AnimeCharacters(ctx context.Context, id int) ([]CharacterRole, error) {
	return a.characters(ctx, CategoryAnime, id)
}

// MangaCharacters lists the cast of a manga.
func (a *API) MangaCharacters(ctx context.Context, id int) ([]CharacterRole, error) {
	return a.characters(ctx, CategoryManga, id)
}

// AnimeRecommendations lists recommendations for an anime, tagged "Anime".
func (a *API) AnimeRecommendations(ctx context.Context, id int) ([]Recommendation[Entry], error) {
	return a.recommendations(ctx, CategoryAnime, id)
}

// MangaRecommendations lists recommendations for a manga, tagged "Manga".
func (a *API) MangaRecommendations(ctx context.Context, id int) ([]Recommendation[Entry], error) {
	return a.recommendations(ctx, CategoryManga, id)
}

// RandomAnime returns a random anime.
func (a *API) RandomAnime(ctx context.Context) (*Anime, error) {
	resp, err := client.FetchJSON[ItemResponse[Anime]](ctx, a.fetcher, "/random/anime", nil)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Item fetches one anime or manga as an opaque entry.
func (a *API) Item(ctx context.Context, category Category, id int) (*Entry, error) {
	resp, err := client.FetchJSON[ItemResponse[Entry]](ctx, a.fetcher, fmt.Sprintf("/%s/%d", category, id), nil)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (a *API) characters(ctx context.Context, category Category, id int) ([]CharacterRole, error) {
	resp, err := client.FetchJSON[ItemResponse[[]CharacterRole]](ctx, a.fetcher, fmt.Sprintf("/%s/%d/characters", category, id), nil)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (a *API) recommendations(ctx context.Context, category Category, id int) ([]Recommendation[Entry], error) {
	resp, err := client.FetchJSON[ItemResponse[[]Recommendation[Entry]]](ctx, a.fetcher, fmt.Sprintf("/%s/%d/recommendations", category, id), nil)
	if err != nil {
		return nil, err
	}

	recs := resp.Data
	for i := range recs {
		recs[i].Type = category.Label()
	}
	return recs, nil
}

// listEntries fetches a list endpoint as opaque entries.
func (a *API) listEntries(ctx context.Context, endpoint string, params client.Params) (*ListResponse[Entry], error) {
	return client.FetchJSON[ListResponse[Entry]](ctx, a.fetcher, endpoint, params)
}

func searchParams(q string, page int, orderBy, sort string, sfw bool) client.Params {
	p := client.Params{
		"q":        q,
		"page":     page,
		"order_by": orderBy,
		"sort":     sort,
	}
	if sfw {
		p["sfw"] = true
	}
	return p
}
