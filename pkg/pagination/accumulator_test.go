package pagination

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    int
	Label string
}

func (i item) ItemID() int { return i.ID }

func items(label string, ids ...int) []item {
	out := make([]item, len(ids))
	for i, id := range ids {
		out[i] = item{ID: id, Label: label}
	}
	return out
}

func ids(in []item) []int {
	out := make([]int, len(in))
	for i, it := range in {
		out[i] = it.ID
	}
	return out
}

func seq(from, to int) []int {
	var out []int
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// scripted serves pages from a table keyed by query text and page number.
type scripted struct {
	mu    sync.Mutex
	pages map[string]map[int]Page[item]
	errs  map[string]map[int]error
	calls []Request
}

func newScripted() *scripted {
	return &scripted{
		pages: make(map[string]map[int]Page[item]),
		errs:  make(map[string]map[int]error),
	}
}

func (s *scripted) set(text string, page int, p Page[item]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pages[text] == nil {
		s.pages[text] = make(map[int]Page[item])
	}
	s.pages[text][page] = p
}

func (s *scripted) fail(text string, page int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs[text] == nil {
		s.errs[text] = make(map[int]error)
	}
	s.errs[text][page] = err
}

func (s *scripted) clearFail(text string, page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errs[text], page)
}

func (s *scripted) fetch(_ context.Context, q Query, page int) (Page[item], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Request{Query: q, Page: page})
	if err := s.errs[q.Text][page]; err != nil {
		return Page[item]{}, err
	}
	return s.pages[q.Text][page], nil
}

func (s *scripted) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func searchQuery(text string) Query {
	return Query{Category: "anime", Route: "search", Text: text, Sort: "popularity"}
}

func TestAccumulator_InitialState(t *testing.T) {
	acc := New(newScripted().fetch)

	snap := acc.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Items)
	assert.False(t, snap.HasMore)

	_, ok := acc.Continue()
	assert.False(t, ok, "continue from idle must be ignored")
}

func TestAccumulator_OverlappingPagesDeduplicated(t *testing.T) {
	src := newScripted()
	src.set("naruto", 1, Page[item]{Items: items("p1", seq(1, 10)...), HasNext: true, LastPage: 2})
	// Two ids (9, 10) repeat from page 1.
	src.set("naruto", 2, Page[item]{Items: items("p2", append([]int{9, 10}, seq(11, 18)...)...), HasNext: false, LastPage: 2})

	acc := New(src.fetch)
	ctx := context.Background()

	require.NoError(t, acc.Start(ctx, searchQuery("naruto")))
	snap := acc.Snapshot()
	assert.Equal(t, StateHasMore, snap.State)
	assert.Len(t, snap.Items, 10)

	ran, err := acc.Trigger(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	snap = acc.Snapshot()
	assert.Equal(t, StateExhausted, snap.State)
	assert.Equal(t, 2, snap.Page)
	assert.Equal(t, seq(1, 18), ids(snap.Items))

	// First occurrence wins.
	assert.Equal(t, "p1", snap.Items[8].Label)
	assert.Equal(t, "p1", snap.Items[9].Label)

	ran, err = acc.Trigger(ctx)
	require.NoError(t, err)
	assert.False(t, ran, "exhausted accumulator must not continue")
	assert.Equal(t, 2, src.callCount())
}

func TestAccumulator_DuplicatesWithinPage(t *testing.T) {
	src := newScripted()
	src.set("x", 1, Page[item]{Items: items("a", 1, 2, 2, 3, 1)})

	acc := New(src.fetch)
	require.NoError(t, acc.Start(context.Background(), searchQuery("x")))

	assert.Equal(t, []int{1, 2, 3}, ids(acc.Snapshot().Items))
}

func TestAccumulator_StaleResultAfterQueryChange(t *testing.T) {
	acc := New(newScripted().fetch)

	naruto := acc.Reset(searchQuery("naruto"))
	require.True(t, acc.Complete(naruto, Page[item]{Items: items("naruto", seq(1, 10)...), HasNext: true}, nil))

	page2, ok := acc.Continue()
	require.True(t, ok)
	assert.Equal(t, 2, page2.Page)

	// Query changes to bleach while naruto page 2 is still in flight.
	bleach := acc.Reset(searchQuery("bleach"))
	snap := acc.Snapshot()
	assert.Empty(t, snap.Items, "reset must clear items before the next fetch")
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, StateFirstPage, snap.State)

	// Late naruto page 2 arrives first, then bleach page 1.
	assert.False(t, acc.Complete(page2, Page[item]{Items: items("naruto", seq(11, 20)...), HasNext: true}, nil))
	assert.True(t, acc.Complete(bleach, Page[item]{Items: items("bleach", seq(100, 104)...), HasNext: false}, nil))

	snap = acc.Snapshot()
	assert.Equal(t, seq(100, 104), ids(snap.Items))
	for _, it := range snap.Items {
		assert.Equal(t, "bleach", it.Label)
	}
	assert.Equal(t, StateExhausted, snap.State)
	assert.Equal(t, searchQuery("bleach"), snap.Query)
}

func TestAccumulator_StaleResultDrivenConcurrently(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	fetch := func(ctx context.Context, q Query, page int) (Page[item], error) {
		if q.Text == "naruto" && page == 2 {
			close(started)
			<-release
			return Page[item]{Items: items("naruto", seq(11, 20)...), HasNext: true}, nil
		}
		if q.Text == "naruto" {
			return Page[item]{Items: items("naruto", seq(1, 10)...), HasNext: true}, nil
		}
		return Page[item]{Items: items("bleach", 500, 501), HasNext: false}, nil
	}

	acc := New(fetch)
	ctx := context.Background()
	require.NoError(t, acc.Start(ctx, searchQuery("naruto")))

	done := make(chan error, 1)
	go func() {
		_, err := acc.Trigger(ctx)
		done <- err
	}()
	<-started

	require.NoError(t, acc.Start(ctx, searchQuery("bleach")))
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, []int{500, 501}, ids(acc.Snapshot().Items))
}

func TestAccumulator_SortChangeRestarts(t *testing.T) {
	src := newScripted()
	src.set("", 1, Page[item]{Items: items("a", 1, 2), HasNext: true})

	acc := New(src.fetch)
	ctx := context.Background()

	q := Query{Category: "anime", Route: "top", Sort: "popularity"}
	require.NoError(t, acc.Start(ctx, q))
	first := acc.Snapshot().Generation

	q.Sort = "score"
	req := acc.Reset(q)
	assert.Equal(t, first+1, req.Generation)
	assert.Equal(t, 1, req.Page)
	assert.Empty(t, acc.Snapshot().Items)
}

func TestAccumulator_ContinuationCoalesced(t *testing.T) {
	acc := New(newScripted().fetch)

	first := acc.Reset(searchQuery("one piece"))
	_, ok := acc.Continue()
	assert.False(t, ok, "continue while first page is loading must be ignored")

	require.True(t, acc.Complete(first, Page[item]{Items: items("a", 1), HasNext: true}, nil))

	second, ok := acc.Continue()
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		_, dup := acc.Continue()
		assert.False(t, dup, "continue while loading must be coalesced")
	}
	assert.Equal(t, 2, acc.Snapshot().Page)

	require.True(t, acc.Complete(second, Page[item]{Items: items("a", 2), HasNext: true}, nil))
	// A duplicate completion for the same ticket is ignored.
	assert.False(t, acc.Complete(second, Page[item]{Items: items("a", 3)}, nil))
	assert.Equal(t, []int{1, 2}, ids(acc.Snapshot().Items))
}

func TestAccumulator_ConcurrentTriggersFetchOnce(t *testing.T) {
	var (
		mu    sync.Mutex
		calls = map[int]int{}
	)
	gate := make(chan struct{})

	fetch := func(ctx context.Context, q Query, page int) (Page[item], error) {
		mu.Lock()
		calls[page]++
		mu.Unlock()
		if page == 2 {
			<-gate
		}
		return Page[item]{Items: items("a", page), HasNext: page < 2}, nil
	}

	acc := New(fetch)
	ctx := context.Background()
	require.NoError(t, acc.Start(ctx, searchQuery("q")))

	var wg sync.WaitGroup
	ranCount := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ran, err := acc.Trigger(ctx)
			assert.NoError(t, err)
			ranCount <- ran
		}()
	}

	// Let the non-winning triggers return before releasing the fetch.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(ranCount)

	ran := 0
	for r := range ranCount {
		if r {
			ran++
		}
	}
	assert.Equal(t, 1, ran)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls[2])
}

func TestAccumulator_ErrorSuspendsAndRetains(t *testing.T) {
	src := newScripted()
	src.set("naruto", 1, Page[item]{Items: items("a", 1, 2, 3), HasNext: true})
	src.set("naruto", 2, Page[item]{Items: items("a", 4, 5), HasNext: false})
	boom := errors.New("retry attempts exhausted")
	src.fail("naruto", 2, boom)

	acc := New(src.fetch)
	ctx := context.Background()

	require.NoError(t, acc.Start(ctx, searchQuery("naruto")))

	ran, err := acc.Trigger(ctx)
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)

	snap := acc.Snapshot()
	assert.Equal(t, StateErrorSuspended, snap.State)
	assert.ErrorIs(t, snap.Err, boom)
	assert.Equal(t, []int{1, 2, 3}, ids(snap.Items), "items collected before the failure are kept")

	ran, err = acc.Trigger(ctx)
	assert.NoError(t, err)
	assert.False(t, ran, "suspended accumulator does not continue automatically")

	src.clearFail("naruto", 2)
	ran, err = acc.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	snap = acc.Snapshot()
	assert.Equal(t, StateExhausted, snap.State)
	assert.NoError(t, snap.Err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids(snap.Items))
}

func TestAccumulator_RetryOnlyWhenSuspended(t *testing.T) {
	acc := New(newScripted().fetch)
	_, ok := acc.Retry()
	assert.False(t, ok)

	req := acc.Reset(searchQuery("x"))
	_, ok = acc.Retry()
	assert.False(t, ok, "retry while loading must be ignored")

	require.True(t, acc.Complete(req, Page[item]{}, errors.New("down")))
	retry, ok := acc.Retry()
	require.True(t, ok)
	assert.Equal(t, req.Page, retry.Page)
	assert.Equal(t, req.Generation, retry.Generation)
	assert.Equal(t, StateFirstPage, acc.Snapshot().State)
}

func TestAccumulator_DebounceAbandonedOnQueryChange(t *testing.T) {
	src := newScripted()
	src.set("nar", 1, Page[item]{Items: items("nar", 1)})
	src.set("naruto", 1, Page[item]{Items: items("naruto", 2)})

	acc := New(src.fetch, WithDebounce(100*time.Millisecond))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- acc.Start(ctx, searchQuery("nar")) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, acc.Start(ctx, searchQuery("naruto")))
	require.NoError(t, <-done)

	assert.Equal(t, 1, src.callCount(), "the superseded query must never be fetched")
	assert.Equal(t, []int{2}, ids(acc.Snapshot().Items))
}

func TestAccumulator_DebounceSkippedWithoutText(t *testing.T) {
	src := newScripted()
	src.set("", 1, Page[item]{Items: items("top", 1)})

	acc := New(src.fetch, WithDebounce(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, acc.Start(ctx, Query{Route: "top"}))
	assert.Equal(t, 1, src.callCount())
}

func TestAccumulator_DebounceCancelled(t *testing.T) {
	src := newScripted()
	acc := New(src.fetch, WithDebounce(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := acc.Start(ctx, searchQuery("naruto"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, src.callCount())
	assert.Equal(t, StateErrorSuspended, acc.Snapshot().State)
}

func TestMerge(t *testing.T) {
	seen := map[int]struct{}{}

	dst, dropped := Merge(nil, seen, items("a", 3, 1, 3))
	assert.Equal(t, []int{3, 1}, ids(dst))
	assert.Equal(t, 1, dropped)

	dst, dropped = Merge(dst, seen, items("b", 1, 2, 4))
	assert.Equal(t, []int{3, 1, 2, 4}, ids(dst))
	assert.Equal(t, 1, dropped)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "has_more", StateHasMore.String())
	assert.Equal(t, "error_suspended", StateErrorSuspended.String())
	assert.Equal(t, "unknown", State(42).String())
}
