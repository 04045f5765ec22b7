// Package ui renders terminal progress for long-running crawls.
package ui

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Progress owns the mpb container all bars render into.
type Progress struct {
	p *mpb.Progress
}

// NewProgress creates a progress container writing to w.
func NewProgress(w io.Writer) *Progress {
	p := mpb.New(
		mpb.WithWidth(52),
		mpb.WithOutput(w),
		mpb.WithRefreshRate(120*time.Millisecond),
	)
	return &Progress{p: p}
}

// Close waits for every bar to finish rendering. Each registered bar must
// be marked done first.
func (pm *Progress) Close() {
	pm.p.Wait()
}

// Register adds a page counter bar labelled prefix.
func (pm *Progress) Register(prefix string) *Bar {
	b := &Bar{prefix: prefix, start: time.Now()}

	b.bar = pm.p.New(
		0,
		mpb.BarStyle().Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(prefix+"  "),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncWidth),
			decor.CountersNoUnit(" | %d/%d pages", decor.WCSyncWidth),
			decor.Any(func(_ decor.Statistics) string {
				if b.final.Load() {
					return fmt.Sprintf(" | %ds", b.elapsed.Load())
				}
				return fmt.Sprintf(" | %ds", int(time.Since(b.start).Seconds()))
			}),
		),
	)
	return b
}

// Bar is one page counter.
type Bar struct {
	prefix string
	bar    *mpb.Bar

	total int64

	start   time.Time
	elapsed atomic.Int64

	final atomic.Bool
}

// Update sets the fetched page count. A positive total replaces the
// current one. It matches pagination.ProgressFunc.
func (b *Bar) Update(done, total int) {
	if b.final.Load() {
		return
	}

	if total > 0 {
		atomic.StoreInt64(&b.total, int64(total))
		b.bar.SetTotal(int64(total), false)
	}
	b.bar.SetCurrent(int64(done))
}

// MarkDone completes the bar. Calling it again has no effect.
func (b *Bar) MarkDone() {
	if b.final.Swap(true) {
		return
	}

	b.elapsed.Store(int64(time.Since(b.start).Seconds()))
	total := atomic.LoadInt64(&b.total)
	b.bar.SetCurrent(total)
	b.bar.SetTotal(total, true)
}

// Abort removes the bar without completing it, leaving it on screen.
func (b *Bar) Abort() {
	if b.final.Swap(true) {
		return
	}
	b.elapsed.Store(int64(time.Since(b.start).Seconds()))
	b.bar.Abort(false)
}
