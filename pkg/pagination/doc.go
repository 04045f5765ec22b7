// Package pagination accumulates paginated Jikan listings.
//
// Jikan list endpoints return one page at a time with a has_next_page flag
// and, for most routes, last_visible_page. Pages can overlap under some
// sort orders, so items are merged by mal_id with the first occurrence
// kept.
//
// An Accumulator follows one query session (route, search text, sort and
// category). Every query change bumps a generation counter and clears the
// list; page results are tagged with the generation they were requested
// under and dropped on completion if it no longer matches:
//
//	listing := api.Listing("search", "naruto", "")
//	acc := pagination.New(listing.Fetch)
//	if err := acc.Start(ctx, listing.Query); err != nil { ... }
//	acc.Trigger(ctx) // next page, if any and none in flight
//	snap := acc.Snapshot()
//
// A BatchFetcher crawls all pages of a query in parallel for exports:
//   - Fetches the first page to learn the page count
//   - Fetches the remaining pages with bounded concurrency (errgroup)
//   - Merges results in page order through the same dedup
//   - Returns partial data together with the error when a page fails
package pagination
