package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel page fetches.
	// Jikan allows 3 req/s, so more workers than that only queue on the limiter.
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// MaxPages caps the crawl. 0 means every page.
	MaxPages int
}

// DefaultConfig returns safe default configuration for Jikan
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 3,
		Timeout:        60 * time.Second,
	}
}

// ProgressFunc is called after each fetched page.
type ProgressFunc func(fetched, total int)

// BatchResult is the outcome of a crawl.
type BatchResult[T any] struct {
	// Items merged in page order, duplicates removed.
	Items []T
	// Pages is the number of pages fetched successfully.
	Pages int
	// TotalPages is the number of pages the crawl aimed for.
	TotalPages   int
	Deduplicated int
}

// BatchFetcher crawls every page of a query with bounded concurrency.
type BatchFetcher[T Identifiable] struct {
	fetch    PageFunc[T]
	config   Config
	progress ProgressFunc
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher[T Identifiable](fetch PageFunc[T], config Config) *BatchFetcher[T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	return &BatchFetcher[T]{
		fetch:  fetch,
		config: config,
	}
}

// OnProgress registers fn to be called as pages complete.
func (bf *BatchFetcher[T]) OnProgress(fn ProgressFunc) {
	bf.progress = fn
}

// FetchAll fetches every page of q. The first page determines the page
// count; the rest are fetched in parallel and merged in page order. If a
// page fails the pages that did arrive are still returned with the error.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context, q Query) (*BatchResult[T], error) {
	start := time.Now()

	first, err := bf.fetchPage(ctx, q, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	totalPages := first.LastPage
	if totalPages < 1 {
		totalPages = 1
	}
	if bf.config.MaxPages > 0 && totalPages > bf.config.MaxPages {
		totalPages = bf.config.MaxPages
	}

	log.Info().
		Str("route", q.Route).
		Str("query", q.Text).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	bf.report(1, totalPages)

	// Upstream did not say how many pages exist: follow has_next_page.
	if first.LastPage == 0 && first.HasNext {
		return bf.fetchSequential(ctx, q, first, start)
	}

	pages := make([]*Page[T], totalPages+1)
	pages[1] = &first

	var (
		mu      sync.Mutex
		fetched = 1
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)

	for pageNum := 2; pageNum <= totalPages; pageNum++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			page, err := bf.fetchPage(gctx, q, pageNum)
			if err != nil {
				log.Warn().
					Err(err).
					Int("page", pageNum).
					Msg("Page fetch failed")
				return fmt.Errorf("page %d: %w", pageNum, err)
			}

			mu.Lock()
			pages[pageNum] = &page
			fetched++
			done := fetched
			mu.Unlock()

			bf.report(done, totalPages)
			return nil
		})
	}

	werr := g.Wait()

	result := &BatchResult[T]{TotalPages: totalPages}
	seen := make(map[int]struct{})
	for _, page := range pages {
		if page == nil {
			continue
		}
		var dropped int
		result.Items, dropped = Merge(result.Items, seen, page.Items)
		result.Deduplicated += dropped
		result.Pages++
	}

	if werr != nil {
		log.Warn().
			Err(werr).
			Int("fetched_pages", result.Pages).
			Int("total_pages", totalPages).
			Msg("Returning partial results")
		return result, fmt.Errorf("batch fetch incomplete (partial data: %d/%d pages): %w", result.Pages, totalPages, werr)
	}

	log.Info().
		Str("route", q.Route).
		Int("pages", result.Pages).
		Int("items", len(result.Items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return result, nil
}

// fetchSequential walks has_next_page one page at a time.
func (bf *BatchFetcher[T]) fetchSequential(ctx context.Context, q Query, first Page[T], start time.Time) (*BatchResult[T], error) {
	result := &BatchResult[T]{Pages: 1}
	seen := make(map[int]struct{})
	result.Items, result.Deduplicated = Merge(nil, seen, first.Items)

	hasNext := first.HasNext
	for pageNum := 2; hasNext; pageNum++ {
		if bf.config.MaxPages > 0 && pageNum > bf.config.MaxPages {
			break
		}

		page, err := bf.fetchPage(ctx, q, pageNum)
		if err != nil {
			result.TotalPages = pageNum
			return result, fmt.Errorf("batch fetch incomplete (partial data: %d pages): page %d: %w", result.Pages, pageNum, err)
		}

		var dropped int
		result.Items, dropped = Merge(result.Items, seen, page.Items)
		result.Deduplicated += dropped
		result.Pages++
		hasNext = page.HasNext
		bf.report(result.Pages, 0)
	}
	result.TotalPages = result.Pages

	log.Info().
		Str("route", q.Route).
		Int("pages", result.Pages).
		Int("items", len(result.Items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete (sequential)")

	return result, nil
}

func (bf *BatchFetcher[T]) fetchPage(ctx context.Context, q Query, pageNum int) (Page[T], error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.fetch(pageCtx, q, pageNum)
}

func (bf *BatchFetcher[T]) report(fetched, total int) {
	if bf.progress != nil {
		bf.progress(fetched, total)
	}
}
