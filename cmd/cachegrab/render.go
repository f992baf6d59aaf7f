package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cachegrab/cachegrab/internal/autosearch"
	"github.com/cachegrab/cachegrab/internal/history"
)

func renderSummary(s *autosearch.RunSummary) string {
	var b strings.Builder
	mode := "live"
	if s.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(&b, "Run %s (%s, %s) finished in %s\n", s.RunID, s.Trigger, mode, s.Duration.Round(time.Millisecond))

	rows := [][]string{
		{"Processed", strconv.Itoa(s.Processed)},
		{"Added", strconv.Itoa(s.Added)},
		{"Upgraded", strconv.Itoa(s.Upgraded)},
		{"Planned", strconv.Itoa(s.Planned)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Failed", strconv.Itoa(s.Failed)},
	}
	b.WriteString(renderTable([]string{"Outcome", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))

	switch {
	case s.Cancelled:
		b.WriteString("\nRun was cancelled before all titles were processed")
	case s.CapReached:
		b.WriteString("\nRun cap reached")
	}
	if s.Error != "" {
		b.WriteString("\nError: " + s.Error)
	}
	return b.String()
}

func renderTitles(titles []autosearch.TitleResult) string {
	if len(titles) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(titles))
	for _, t := range titles {
		label := t.Item.Title
		if t.Item.Year > 0 {
			label = fmt.Sprintf("%s (%d)", t.Item.Title, t.Item.Year)
		}
		if len(t.Actions) == 0 {
			rows = append(rows, []string{label, string(t.State), "", "", "", firstNonEmpty(t.Error, t.Reason)})
			continue
		}
		for _, a := range t.Actions {
			rows = append(rows, []string{
				label,
				string(t.State),
				string(a.Action),
				truncate(a.Release, 60),
				formatSize(a.SizeBytes),
				firstNonEmpty(a.Error, a.Reason),
			})
		}
	}
	return renderTable(
		[]string{"Title", "State", "Action", "Release", "Size", "Note"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func renderRuns(runs []*history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		mode := ""
		if r.DryRun {
			mode = "dry"
		}
		rows = append(rows, []string{
			r.ID,
			r.Trigger,
			mode,
			humanize.Time(r.StartedAt),
			(time.Duration(r.DurationMs) * time.Millisecond).String(),
			strconv.Itoa(r.Added),
			strconv.Itoa(r.Upgraded),
			strconv.Itoa(r.Planned),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
		})
	}
	return renderTable(
		[]string{"Run", "Trigger", "Mode", "Started", "Duration", "Added", "Upgraded", "Planned", "Skipped", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

func renderRun(r *history.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s) started %s\n", r.ID, r.Trigger, r.StartedAt.Local().Format(time.RFC1123))

	rows := make([][]string, 0, len(r.Actions))
	for _, a := range r.Actions {
		rows = append(rows, []string{
			a.MediaTitle,
			a.State,
			a.Action,
			truncate(a.Release, 60),
			formatSize(a.SizeBytes),
			firstNonEmpty(a.Error, a.Reason),
		})
	}
	b.WriteString(renderTable(
		[]string{"Title", "State", "Action", "Release", "Size", "Note"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return b.String()
}

func formatSize(bytes uint64) string {
	if bytes == 0 {
		return ""
	}
	return humanize.IBytes(bytes)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
