package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/go-cs-matchstats/internal/report"
	"github.com/pable/go-cs-matchstats/internal/storage"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List matches in the local SQLite store",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := storage.Open(cfg.Sink.SQLitePath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	matches, err := db.ListMatches(cmd.Context())
	if err != nil {
		return fmt.Errorf("list matches: %w", err)
	}
	if len(matches) == 0 {
		fmt.Fprintln(os.Stdout, "No matches stored yet. Run 'matchstats process --sink sqlite <path>' to add some.")
		return nil
	}

	report.PrintMatchList(os.Stdout, matches, time.Now())
	return nil
}
