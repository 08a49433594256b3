// Package report renders derived and stored match stats as terminal tables.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pable/go-cs-matchstats/internal/model"
	"github.com/pable/go-cs-matchstats/internal/pipeline"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

func wonLabel(won bool) string {
	if won {
		return "WIN"
	}
	return "LOSS"
}

// PrintMatchSummary prints a one-line summary header for a stored match.
func PrintMatchSummary(w io.Writer, s model.MatchSummary) {
	fmt.Fprintf(w, "\nMap: %s  |  Date: %s  |  Result: %s  |  Match: %s\n\n",
		s.MapName, s.DateTime, wonLabel(s.Won), s.MatchID)
}

// PrintOutcome prints the header for a freshly derived match, including how
// the result was decided.
func PrintOutcome(w io.Writer, matchID string, o model.MatchOutcome) {
	side := ""
	if o.Side == model.TeamCT || o.Side == model.TeamT {
		side = "  |  Final side: " + o.Side.String()
	}
	fmt.Fprintf(w, "\nMap: %s  |  Date: %s  |  Result: %s (%s)%s  |  Match: %s\n\n",
		o.MapName, o.OccurredAt.Format(model.DateTimeLayout), wonLabel(o.RosterWon), o.Resolution, side, matchID)
}

// PrintPlayerTable writes one row per player.
func PrintPlayerTable(w io.Writer, stats []model.PlayerMatchStats) {
	table := newTable(w)
	table.Header("NAME", "K", "D", "K/D", "HS", "HS%", "DMG", "UTIL_DMG", "3K", "4K", "ACE", "MVP")

	for _, s := range stats {
		table.Append(
			s.Name,
			strconv.Itoa(s.Kills),
			strconv.Itoa(s.Deaths),
			fmt.Sprintf("%.2f", s.KDRatio()),
			strconv.Itoa(s.HeadshotKills),
			fmt.Sprintf("%.0f%%", s.HSPercent()),
			strconv.Itoa(s.TotalDamage),
			strconv.Itoa(s.UtilityDamage),
			strconv.Itoa(s.TripleRounds),
			strconv.Itoa(s.QuadRounds),
			strconv.Itoa(s.AceRounds),
			strconv.Itoa(s.MVPs),
		)
	}
	table.Render()
}

// PrintMatchList writes the stored matches, newest first as given.
func PrintMatchList(w io.Writer, matches []model.MatchSummary, now time.Time) {
	table := newTable(w)
	table.Header("MATCH", "MAP", "DATE", "RESULT", "STORED")

	for _, m := range matches {
		table.Append(m.MatchID, m.MapName, m.DateTime, wonLabel(m.Won), storedAgo(m.CreatedAt, now))
	}
	table.Render()
}

// storedAgo renders a SQLite UTC timestamp relative to now.
func storedAgo(createdAt string, now time.Time) string {
	t, err := time.ParseInLocation(model.DateTimeLayout, createdAt, time.UTC)
	if err != nil {
		return createdAt
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// PrintResults writes one row per processed recording.
func PrintResults(w io.Writer, results []pipeline.Result) {
	table := newTable(w)
	table.Header("RECORDING", "MATCH", "STATUS", "RESULT", "DETAIL")

	for _, r := range results {
		status := string(r.Status)
		if r.DryRun {
			status = "dry-run"
		}
		result := "-"
		if r.MatchID != "" && r.Status != model.StatusFailed {
			result = fmt.Sprintf("%s (%s)", wonLabel(r.Outcome.RosterWon), r.Outcome.Resolution)
		}
		table.Append(filepath.Base(r.Path), r.MatchID, status, result, detail(r))
	}
	table.Render()
}

func detail(r pipeline.Result) string {
	var parts []string
	if r.Reason != "" {
		parts = append(parts, r.Reason)
	}
	for _, wn := range r.Warnings {
		parts = append(parts, string(wn.Collection)+" missing")
	}
	if r.MatchID != "" && !r.NameTimestamp && r.Status != model.StatusSkipped {
		parts = append(parts, "time from mtime")
	}
	return strings.Join(parts, "; ")
}

// PrintSummary prints the batch totals.
func PrintSummary(w io.Writer, s pipeline.Summary) {
	fmt.Fprintf(w, "\nProcessed %s recording(s): %d delivered, %d already stored, %d skipped, %d rejected, %d failed",
		humanize.Comma(int64(s.Total())), s.Delivered, s.AlreadyExists, s.Skipped, s.Rejected, s.Failed)
	if s.DryRun > 0 {
		fmt.Fprintf(w, ", %d dry-run", s.DryRun)
	}
	fmt.Fprintln(w)
}
