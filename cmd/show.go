package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-cs-matchstats/internal/report"
	"github.com/pable/go-cs-matchstats/internal/storage"
)

var showCmd = &cobra.Command{
	Use:   "show <match-id-prefix>",
	Short: "Show stored player stats by match id prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	prefix := args[0]

	db, err := storage.Open(cfg.Sink.SQLitePath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	match, err := db.GetMatchByPrefix(cmd.Context(), prefix)
	if err != nil {
		return fmt.Errorf("query match: %w", err)
	}
	if match == nil {
		fmt.Fprintf(os.Stderr, "No match found with id prefix %q\n", prefix)
		return nil
	}

	stats, err := db.GetPlayerStats(cmd.Context(), match.MatchID)
	if err != nil {
		return fmt.Errorf("get player stats: %w", err)
	}

	report.PrintMatchSummary(os.Stdout, *match)
	report.PrintPlayerTable(os.Stdout, stats)
	return nil
}
