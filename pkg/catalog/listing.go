package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sternrassler/jikan-catalog/pkg/client"
	"github.com/Sternrassler/jikan-catalog/pkg/pagination"
)

// Listing routes.
const (
	RouteTop        = "top"
	RouteSeasonal   = "seasonal"
	RouteUpcoming   = "upcoming"
	RouteAnime      = "anime"
	RouteSearch     = "search"
	RouteManga      = "manga"
	RouteCharacters = "characters"
)

// Sort keys offered on sortable listings.
const (
	SortPopularity = "popularity"
	SortScore      = "score"
	SortFavorites  = "favorites"
	SortTitle      = "title"
)

// SortOrder is the direction applied to every sorted listing.
const SortOrder = "desc"

// SortKeys lists the accepted sort keys, default first.
var SortKeys = []string{SortPopularity, SortScore, SortFavorites, SortTitle}

// ParseSort validates a sort key. The empty string selects the default.
func ParseSort(s string) (string, error) {
	if s == "" {
		return SortPopularity, nil
	}
	for _, k := range SortKeys {
		if s == k {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown sort %q (want one of %s)", s, strings.Join(SortKeys, ", "))
}

// ListingSpec describes one paginated listing: what to call it, whether it
// can be sorted, its query identity and how to fetch its pages.
type ListingSpec struct {
	Title    string
	Sortable bool
	Query    pagination.Query
	Fetch    pagination.PageFunc[Entry]
}

// Listing resolves a route, search text and sort key into a listing.
// Unknown routes fall back to the anime search; unknown sorts to popularity.
func (a *API) Listing(route, q, sort string) ListingSpec {
	route = normalizeRoute(route)
	if _, err := ParseSort(sort); err != nil || sort == "" {
		sort = SortPopularity
	}

	spec := ListingSpec{
		Fetch: a.FetchPage,
		Query: pagination.Query{Route: route, Text: q},
	}

	switch route {
	case RouteTop:
		spec.Title = "Top Ranking Anime"
		spec.Query.Category = string(CategoryAnime)
	case RouteSeasonal:
		spec.Title = "Seasonal Anime"
		spec.Query.Category = string(CategoryAnime)
	case RouteUpcoming:
		spec.Title = "Upcoming Anime"
		spec.Query.Category = string(CategoryAnime)
	case RouteManga:
		spec.Title = titleFor(q, "Manga Results for %q", "Popular Manga")
		spec.Query.Category = string(CategoryManga)
		spec.Sortable = true
	case RouteCharacters:
		spec.Title = titleFor(q, "Character Results for %q", "Top Characters")
		spec.Query.Category = string(CategoryCharacters)
		spec.Sortable = true
	default:
		spec.Title = titleFor(q, "Results for %q", "Explore Anime")
		spec.Query.Category = string(CategoryAnime)
		spec.Sortable = true
	}

	if spec.Sortable {
		spec.Query.Sort = sort
	}
	return spec
}

// FetchPage fetches one page of the listing identified by q. It is the
// PageFunc behind every ListingSpec, so one accumulator can follow any
// listing.
func (a *API) FetchPage(ctx context.Context, q pagination.Query, page int) (pagination.Page[Entry], error) {
	endpoint, params := listingRequest(q, page)

	resp, err := a.listEntries(ctx, endpoint, params)
	if err != nil {
		return pagination.Page[Entry]{}, err
	}

	return pagination.Page[Entry]{
		Items:    resp.Data,
		HasNext:  resp.HasNext(),
		LastPage: resp.LastPage(),
	}, nil
}

func listingRequest(q pagination.Query, page int) (string, client.Params) {
	switch normalizeRoute(q.Route) {
	case RouteTop:
		switch Category(q.Category) {
		case CategoryManga:
			return "/top/manga", client.Params{"page": page, "filter": "bypopularity"}
		case CategoryCharacters:
			return "/top/characters", client.Params{"page": page}
		}
		return "/top/anime", client.Params{"page": page, "filter": "bypopularity"}
	case RouteSeasonal:
		return "/seasons/now", client.Params{"page": page}
	case RouteUpcoming:
		return "/seasons/upcoming", client.Params{"page": page}
	case RouteManga:
		return "/manga", searchParams(q.Text, page, q.Sort, SortOrder, true)
	case RouteCharacters:
		if q.Text == "" {
			return "/top/characters", client.Params{"page": page}
		}
		return "/characters", searchParams(q.Text, page, characterOrder(q.Sort), SortOrder, false)
	default:
		return "/anime", searchParams(q.Text, page, q.Sort, SortOrder, true)
	}
}

// characterOrder maps a sort key onto the fields /characters can order by.
func characterOrder(sort string) string {
	switch sort {
	case SortTitle:
		return "name"
	case "":
		return ""
	default:
		return SortFavorites
	}
}

func normalizeRoute(route string) string {
	route = strings.ToLower(strings.Trim(route, "/ "))
	if route == RouteSearch || route == "" {
		return RouteAnime
	}
	return route
}

func titleFor(q, withQuery, browse string) string {
	if q == "" {
		return browse
	}
	return fmt.Sprintf(withQuery, q)
}
