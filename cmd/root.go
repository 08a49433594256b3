package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pable/go-cs-matchstats/internal/config"
	"github.com/pable/go-cs-matchstats/internal/log"
)

var (
	cfgFile string
	v       = config.New(defaultDBPath())
	cfg     config.Config
	runID   string

	closeLog = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "matchstats",
	Short: "CS2 match stats pipeline",
	Long: `Derive per-player stats and the match result for a fixed roster from CS2
recordings, and deliver each match exactly once to the stats service or a database.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) { closeLog() },
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("db", defaultDBPath(), "path to SQLite database")
	rootCmd.PersistentFlags().String("log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-file", "", "also append logs to this file")
	rootCmd.PersistentFlags().StringSlice("roster", nil, "tracked player names (overrides config)")

	cobra.CheckErr(v.BindPFlag("sink.sqlite_path", rootCmd.PersistentFlags().Lookup("db")))
	cobra.CheckErr(v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")))
	cobra.CheckErr(v.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file")))
	cobra.CheckErr(v.BindPFlag("roster", rootCmd.PersistentFlags().Lookup("roster")))

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(dropCmd)
}

// setup loads configuration and installs the logger before any subcommand runs.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	level, ok := log.ParseLevel(cfg.Log.Level)
	if !ok {
		return fmt.Errorf("%w: %q", config.ErrBadLevel, cfg.Log.Level)
	}

	runID = uuid.NewString()
	closer, err := log.Setup(cmd.ErrOrStderr(), cfg.Log.File, level, runID)
	if err != nil {
		return err
	}
	closeLog = closer

	return nil
}

func mustUserHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func defaultDBPath() string {
	return filepath.Join(mustUserHome(), ".matchstats", "matchstats.db")
}
