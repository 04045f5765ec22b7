package catalog

// ImageSet holds one format's image URLs.
type ImageSet struct {
	ImageURL      string `json:"image_url"`
	SmallImageURL string `json:"small_image_url"`
	LargeImageURL string `json:"large_image_url"`
}

// Images holds the jpg and webp variants of a cover or portrait.
type Images struct {
	JPG  ImageSet `json:"jpg"`
	WebP ImageSet `json:"webp"`
}

// Named is a reference to a genre, studio, author or similar resource.
type Named struct {
	MalID int    `json:"mal_id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	URL   string `json:"url"`
}

// DateRange is an aired or published period.
type DateRange struct {
	From   string `json:"from"`
	To     string `json:"to"`
	String string `json:"string"`
}

// Trailer links to an anime's trailer.
type Trailer struct {
	YoutubeID string `json:"youtube_id"`
	URL       string `json:"url"`
	EmbedURL  string `json:"embed_url"`
}

// Resource holds the fields anime and manga share.
type Resource struct {
	MalID          int     `json:"mal_id"`
	URL            string  `json:"url"`
	Images         Images  `json:"images"`
	Title          string  `json:"title"`
	TitleEnglish   string  `json:"title_english,omitempty"`
	TitleJapanese  string  `json:"title_japanese,omitempty"`
	Type           string  `json:"type"`
	Score          float64 `json:"score"`
	ScoredBy       int     `json:"scored_by"`
	Rank           int     `json:"rank"`
	Popularity     int     `json:"popularity"`
	Members        int     `json:"members"`
	Favorites      int     `json:"favorites"`
	Synopsis       string  `json:"synopsis"`
	Background     string  `json:"background,omitempty"`
	Season         string  `json:"season,omitempty"`
	Year           int     `json:"year,omitempty"`
	Genres         []Named `json:"genres"`
	ExplicitGenres []Named `json:"explicit_genres"`
	Themes         []Named `json:"themes"`
	Demographics   []Named `json:"demographics"`
}

// Anime is a Jikan anime record.
type Anime struct {
	Resource
	Episodes int       `json:"episodes"`
	Status   string    `json:"status"`
	Airing   bool      `json:"airing"`
	Aired    DateRange `json:"aired"`
	Duration string    `json:"duration"`
	Rating   string    `json:"rating"`
	Studios  []Named   `json:"studios"`
	Trailer  Trailer   `json:"trailer"`
}

// ItemID implements pagination.Identifiable.
func (a Anime) ItemID() int { return a.MalID }

// Manga is a Jikan manga record.
type Manga struct {
	Resource
	Chapters   int       `json:"chapters"`
	Volumes    int       `json:"volumes"`
	Status     string    `json:"status"`
	Publishing bool      `json:"publishing"`
	Published  DateRange `json:"published"`
	Authors    []Named   `json:"authors"`
}

// ItemID implements pagination.Identifiable.
func (m Manga) ItemID() int { return m.MalID }

// Character is a Jikan character record.
type Character struct {
	MalID     int      `json:"mal_id"`
	URL       string   `json:"url"`
	Images    Images   `json:"images"`
	Name      string   `json:"name"`
	NameKanji string   `json:"name_kanji"`
	Nicknames []string `json:"nicknames"`
	Favorites int      `json:"favorites"`
	About     string   `json:"about"`
}

// ItemID implements pagination.Identifiable.
func (c Character) ItemID() int { return c.MalID }

// PageItems summarises the items of a page.
type PageItems struct {
	Count   int `json:"count"`
	Total   int `json:"total"`
	PerPage int `json:"per_page"`
}

// Pagination is the pagination block of a list response.
type Pagination struct {
	LastVisiblePage int       `json:"last_visible_page"`
	HasNextPage     bool      `json:"has_next_page"`
	CurrentPage     int       `json:"current_page"`
	Items           PageItems `json:"items"`
}

// ListResponse is a paginated list response.
type ListResponse[T any] struct {
	Data       []T         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// HasNext reports whether the upstream has another page.
func (r *ListResponse[T]) HasNext() bool {
	return r.Pagination != nil && r.Pagination.HasNextPage
}

// LastPage returns the last visible page, 0 if not reported.
func (r *ListResponse[T]) LastPage() int {
	if r.Pagination == nil {
		return 0
	}
	return r.Pagination.LastVisiblePage
}

// ItemResponse wraps a single record.
type ItemResponse[T any] struct {
	Data T `json:"data"`
}

// CharacterRole is one entry of an anime or manga cast list.
type CharacterRole struct {
	Character Character `json:"character"`
	Role      string    `json:"role"`
}

// Recommendation is one "if you liked this" entry. Type is filled in
// locally with "Anime" or "Manga" since the upstream omits it.
type Recommendation[T any] struct {
	Entry T      `json:"entry"`
	URL   string `json:"url,omitempty"`
	Votes int    `json:"votes,omitempty"`
	Type  string `json:"type,omitempty"`
}
