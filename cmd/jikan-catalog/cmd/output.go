package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Sternrassler/jikan-catalog/pkg/catalog"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

// printer renders command results as a table or as JSON.
type printer struct {
	w    io.Writer
	json bool
}

func (p *printer) outputJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) heading(title string) error {
	_, err := fmt.Fprintf(p.w, "%s\n%s\n", title, strings.Repeat("=", len(title)))
	return err
}

func (p *printer) entries(entries []catalog.Entry) error {
	tw := newTabWriter(p.w)
	tw.writef("ID\tTITLE\tTYPE\tSCORE\tYEAR\n")
	for i := range entries {
		tw.writef("%d\t%s\t%s\t%s\t%s\n",
			entries[i].MalID,
			truncate(entries[i].DisplayName(), 50),
			orDash(entries[i].Type),
			scoreString(entries[i].Score),
			yearString(entries[i].Year),
		)
	}
	return tw.finish()
}

func (p *printer) anime(items []catalog.Anime) error {
	tw := newTabWriter(p.w)
	tw.writef("ID\tTITLE\tTYPE\tSCORE\tEPISODES\n")
	for i := range items {
		tw.writef("%d\t%s\t%s\t%s\t%s\n",
			items[i].MalID,
			truncate(items[i].Title, 50),
			orDash(items[i].Type),
			scoreString(items[i].Score),
			countString(items[i].Episodes),
		)
	}
	return tw.finish()
}

func (p *printer) detail(d *catalog.Details) error {
	tw := newTabWriter(p.w)
	tw.writef("ID:\t%d\n", d.Item.MalID)
	tw.writef("Title:\t%s\n", d.Item.DisplayName())
	tw.writef("Category:\t%s\n", d.Category.Label())
	tw.writef("Type:\t%s\n", orDash(d.Item.Type))
	tw.writef("Score:\t%s\n", scoreString(d.Item.Score))
	tw.writef("Year:\t%s\n", yearString(d.Item.Year))
	tw.writef("Characters:\t%d\n", len(d.Characters))
	tw.writef("Recommendations:\t%d\n", len(d.Recommendations))
	if err := tw.finish(); err != nil {
		return err
	}

	if len(d.Characters) > 0 {
		if _, err := fmt.Fprintln(p.w); err != nil {
			return err
		}
		tw = newTabWriter(p.w)
		tw.writef("CHARACTER\tROLE\tFAVORITES\n")
		for i := range d.Characters {
			tw.writef("%s\t%s\t%d\n",
				truncate(d.Characters[i].Character.Name, 40),
				d.Characters[i].Role,
				d.Characters[i].Character.Favorites,
			)
		}
		if err := tw.finish(); err != nil {
			return err
		}
	}

	if len(d.Recommendations) > 0 {
		if _, err := fmt.Fprintln(p.w); err != nil {
			return err
		}
		return p.recommendations(d.Recommendations)
	}
	return nil
}

func (p *printer) recommendations(recs []catalog.Recommendation[catalog.Entry]) error {
	tw := newTabWriter(p.w)
	tw.writef("ID\tTITLE\tTYPE\tVOTES\n")
	for i := range recs {
		tw.writef("%d\t%s\t%s\t%d\n",
			recs[i].Entry.MalID,
			truncate(recs[i].Entry.DisplayName(), 50),
			recs[i].Type,
			recs[i].Votes,
		)
	}
	return tw.finish()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func scoreString(score float64) string {
	if score == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", score)
}

func yearString(year int) string {
	if year == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", year)
}

func countString(n int) string {
	if n == 0 {
		return "?"
	}
	return fmt.Sprintf("%d", n)
}
