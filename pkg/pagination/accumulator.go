package pagination

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sternrassler/jikan-catalog/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrStale is returned by Load when the fetched page belonged to a query or
// page that has since been superseded. The result was discarded.
var ErrStale = errors.New("stale page result discarded")

var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jikan_accumulator_pages_total",
		Help: "Page results seen by accumulators by outcome (applied, stale, error)",
	}, []string{"outcome"})

	itemsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jikan_accumulator_items_deduplicated_total",
		Help: "Items dropped because their id was already accumulated",
	})
)

// Identifiable is implemented by items that carry a stable numeric identity.
type Identifiable interface {
	ItemID() int
}

// Query identifies one logical listing session. Two queries are the same
// session exactly when they compare equal; changing any field starts over.
type Query struct {
	Category string
	Route    string
	Text     string
	Sort     string
}

// Page is one successfully fetched page.
type Page[T any] struct {
	Items   []T
	HasNext bool

	// LastPage is the last page number reported upstream, 0 if unknown.
	LastPage int
}

// PageFunc fetches page number page (1-based) of q.
type PageFunc[T any] func(ctx context.Context, q Query, page int) (Page[T], error)

// State is the accumulator's position in its page cycle.
type State int

const (
	StateIdle State = iota
	StateFirstPage
	StateLoading
	StateHasMore
	StateExhausted
	StateErrorSuspended
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFirstPage:
		return "first_page"
	case StateLoading:
		return "loading"
	case StateHasMore:
		return "has_more"
	case StateExhausted:
		return "exhausted"
	case StateErrorSuspended:
		return "error_suspended"
	default:
		return "unknown"
	}
}

// Request is a ticket for one page fetch. It records the generation it was
// issued under so a late completion can be recognised and dropped.
type Request struct {
	Query      Query
	Page       int
	Generation uint64
}

// Snapshot is a point-in-time copy of an accumulator for rendering.
type Snapshot[T any] struct {
	Query      Query
	Page       int
	LastPage   int
	Generation uint64
	Items      []T
	State      State
	HasMore    bool
	Err        error
}

// Loading reports whether a page fetch is outstanding.
func (s Snapshot[T]) Loading() bool {
	return s.State == StateFirstPage || s.State == StateLoading
}

type options struct {
	debounce time.Duration
	logger   *zerolog.Logger
}

// Option configures an Accumulator.
type Option func(*options)

// WithDebounce delays the first page of a free-text query by d. If the query
// changes during the wait the delayed fetch is abandoned.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithLogger sets the logger used by the accumulator.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = &logger }
}

// Accumulator collects the pages of one query session into a single
// ordered, duplicate-free list.
//
// Reset, Continue, Retry and Complete form the state machine; Start,
// Trigger, Resume and Load drive it with the configured PageFunc. At most
// one fetch is outstanding per session and every method is safe for
// concurrent use. Fetches run without holding the lock.
type Accumulator[T Identifiable] struct {
	fetch    PageFunc[T]
	debounce time.Duration
	logger   zerolog.Logger

	mu         sync.Mutex
	query      Query
	generation uint64
	page       int
	lastPage   int
	items      []T
	seen       map[int]struct{}
	state      State
	inFlight   bool
	err        error
}

// New creates an idle accumulator fetching pages with fetch.
func New[T Identifiable](fetch PageFunc[T], opts ...Option) *Accumulator[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := logging.NewLogger("accumulator")
	if o.logger != nil {
		logger = *o.logger
	}

	return &Accumulator[T]{
		fetch:    fetch,
		debounce: o.debounce,
		logger:   logger,
		seen:     make(map[int]struct{}),
		state:    StateIdle,
	}
}

// Reset starts a new session for q: the generation advances, accumulated
// items and the page cursor are cleared, and the page 1 ticket is returned.
// Any fetch still in flight for the previous session becomes stale.
func (a *Accumulator[T]) Reset(q Query) Request {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.generation++
	a.query = q
	a.page = 1
	a.lastPage = 0
	a.items = nil
	a.seen = make(map[int]struct{})
	a.state = StateFirstPage
	a.inFlight = true
	a.err = nil

	a.logger.Debug().
		Uint64("generation", a.generation).
		Str("route", q.Route).
		Str("query", q.Text).
		Str("sort", q.Sort).
		Msg("Accumulator reset")

	return a.ticket()
}

// Continue advances to the next page. It only succeeds from StateHasMore
// with nothing in flight; any other trigger is coalesced and reports false.
func (a *Accumulator[T]) Continue() (Request, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateHasMore || a.inFlight {
		return Request{}, false
	}

	a.page++
	a.state = StateLoading
	a.inFlight = true
	return a.ticket(), true
}

// Retry re-issues the page that failed. It only succeeds from
// StateErrorSuspended and is never invoked automatically.
func (a *Accumulator[T]) Retry() (Request, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateErrorSuspended || a.inFlight {
		return Request{}, false
	}

	if a.page == 1 {
		a.state = StateFirstPage
	} else {
		a.state = StateLoading
	}
	a.inFlight = true
	a.err = nil
	return a.ticket(), true
}

// Complete applies the outcome of the fetch for req. It returns false and
// leaves the accumulator untouched when req is stale.
func (a *Accumulator[T]) Complete(req Request, page Page[T], err error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.inFlight || req.Generation != a.generation || req.Page != a.page {
		pagesTotal.WithLabelValues("stale").Inc()
		a.logger.Debug().
			Uint64("generation", req.Generation).
			Uint64("current_generation", a.generation).
			Int("page", req.Page).
			Msg("Discarding stale page result")
		return false
	}

	a.inFlight = false

	if err != nil {
		pagesTotal.WithLabelValues("error").Inc()
		a.state = StateErrorSuspended
		a.err = err
		a.logger.Warn().
			Err(err).
			Uint64("generation", a.generation).
			Int("page", a.page).
			Int("items", len(a.items)).
			Msg("Page fetch failed, accumulator suspended")
		return true
	}

	var dropped int
	a.items, dropped = Merge(a.items, a.seen, page.Items)
	if page.LastPage > 0 {
		a.lastPage = page.LastPage
	}
	if page.HasNext {
		a.state = StateHasMore
	} else {
		a.state = StateExhausted
	}

	pagesTotal.WithLabelValues("applied").Inc()
	if dropped > 0 {
		itemsDeduplicated.Add(float64(dropped))
	}

	a.logger.Debug().
		Uint64("generation", a.generation).
		Int("page", a.page).
		Int("received", len(page.Items)).
		Int("duplicates", dropped).
		Int("total", len(a.items)).
		Bool("has_next", page.HasNext).
		Msg("Page applied")

	return true
}

// Start resets the accumulator to q and loads its first page. Free-text
// queries wait out the debounce first; a query change during that wait
// abandons this call without error.
func (a *Accumulator[T]) Start(ctx context.Context, q Query) error {
	req := a.Reset(q)

	if a.debounce > 0 && q.Text != "" {
		timer := time.NewTimer(a.debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.Complete(req, Page[T]{}, ctx.Err())
			return ctx.Err()
		case <-timer.C:
		}

		if !a.current(req) {
			return nil
		}
	}

	return a.Load(ctx, req)
}

// Trigger is a continuation signal: it loads the next page if one is
// available and nothing is in flight. It reports whether a fetch ran.
func (a *Accumulator[T]) Trigger(ctx context.Context) (bool, error) {
	req, ok := a.Continue()
	if !ok {
		return false, nil
	}
	return true, a.Load(ctx, req)
}

// Resume retries a suspended page. It reports whether a fetch ran.
func (a *Accumulator[T]) Resume(ctx context.Context) (bool, error) {
	req, ok := a.Retry()
	if !ok {
		return false, nil
	}
	return true, a.Load(ctx, req)
}

// Load fetches the page for req and completes it. It returns ErrStale when
// the result was discarded, otherwise the fetch error, if any.
func (a *Accumulator[T]) Load(ctx context.Context, req Request) error {
	page, err := a.fetch(ctx, req.Query, req.Page)
	if !a.Complete(req, page, err) {
		return ErrStale
	}
	return err
}

// Snapshot returns a copy of the current state.
func (a *Accumulator[T]) Snapshot() Snapshot[T] {
	a.mu.Lock()
	defer a.mu.Unlock()

	items := make([]T, len(a.items))
	copy(items, a.items)

	return Snapshot[T]{
		Query:      a.query,
		Page:       a.page,
		LastPage:   a.lastPage,
		Generation: a.generation,
		Items:      items,
		State:      a.state,
		HasMore:    a.state == StateHasMore,
		Err:        a.err,
	}
}

// Query returns the active query.
func (a *Accumulator[T]) Query() Query {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.query
}

func (a *Accumulator[T]) current(req Request) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return req.Generation == a.generation && req.Page == a.page
}

// ticket must be called with a.mu held.
func (a *Accumulator[T]) ticket() Request {
	return Request{Query: a.query, Page: a.page, Generation: a.generation}
}

// Merge appends the items whose id is not yet in seen to dst, in order,
// recording them in seen. Duplicates inside items are dropped as well.
// It returns the extended slice and the number of items dropped.
func Merge[T Identifiable](dst []T, seen map[int]struct{}, items []T) ([]T, int) {
	dropped := 0
	for _, item := range items {
		id := item.ItemID()
		if _, dup := seen[id]; dup {
			dropped++
			continue
		}
		seen[id] = struct{}{}
		dst = append(dst, item)
	}
	return dst, dropped
}
