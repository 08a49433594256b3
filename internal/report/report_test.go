package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pable/go-cs-matchstats/internal/aggregator"
	"github.com/pable/go-cs-matchstats/internal/model"
	"github.com/pable/go-cs-matchstats/internal/pipeline"
)

func TestPrintPlayerTable(t *testing.T) {
	var buf bytes.Buffer
	PrintPlayerTable(&buf, []model.PlayerMatchStats{
		{Name: "nifty", Kills: 20, Deaths: 10, HeadshotKills: 10, TotalDamage: 2100, UtilityDamage: 150, AceRounds: 1},
	})
	out := buf.String()
	for _, want := range []string{"nifty", "2.00", "50%", "2100", "150"} {
		if !strings.Contains(out, want) {
			t.Errorf("player table missing %q:\n%s", want, out)
		}
	}
}

func TestPrintOutcome(t *testing.T) {
	var buf bytes.Buffer
	PrintOutcome(&buf, "202405012030", model.MatchOutcome{
		MapName:    "de_mirage",
		OccurredAt: time.Date(2024, 5, 1, 20, 30, 0, 0, time.UTC),
		RosterWon:  true,
		Side:       model.TeamCT,
		Resolution: model.ResolvedBySides,
	})
	out := buf.String()
	if !strings.Contains(out, "WIN (side_samples)") || !strings.Contains(out, "Final side: CT") {
		t.Errorf("unexpected outcome line: %q", out)
	}
	if !strings.Contains(out, "2024-05-01 20:30:00") {
		t.Errorf("missing date: %q", out)
	}
}

func TestPrintResultsAndSummary(t *testing.T) {
	results := []pipeline.Result{
		{Path: "/srv/demos/2024_05_01_20_30.json", MatchID: "202405012030", Status: model.StatusDelivered, NameTimestamp: true,
			Warnings: []aggregator.Warning{{Collection: model.CollectionDamage}}},
		{Path: "/srv/demos/pug.dem", Status: model.StatusSkipped, Reason: "tracked players absent: [martinsen]"},
	}
	var buf bytes.Buffer
	PrintResults(&buf, results)
	PrintSummary(&buf, pipeline.Summarize(results))

	out := buf.String()
	for _, want := range []string{"2024_05_01_20_30.json", "delivered", "player_hurt missing", "martinsen", "1 delivered", "1 skipped"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStoredAgo(t *testing.T) {
	now := time.Date(2025, 1, 1, 21, 30, 0, 0, time.UTC)
	if got := storedAgo("2025-01-01 18:30:00", now); got != "3 hours ago" {
		t.Errorf("storedAgo: got %q", got)
	}
	if got := storedAgo("garbage", now); got != "garbage" {
		t.Errorf("unparseable timestamps pass through, got %q", got)
	}
}
