package main

import (
	"fmt"
	"os"

	"expensa/internal/cli"
	"expensa/internal/config"
	"expensa/internal/log"
	"expensa/internal/storage"

	"github.com/spf13/cobra"
)

var (
	flagDBPath   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "expensa-admin",
	Short:         "Administer an expensa installation",
	Long:          "Create users, rotate tokens, apply migrations and run catch-up, import or mirror jobs by hand.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	cli.LoadEnvFile()
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite database path (default: SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level: debug, info, warn, error")
}

// env is what every subcommand needs: configuration, a logger and an open
// repository.
type env struct {
	cfg    *config.Config
	logger *log.Logger
	repo   *storage.SQLiteRepository
}

func openEnv() (*env, error) {
	logger := cli.SetupLogger(flagLogLevel)
	cfg := config.Load()
	if flagDBPath != "" {
		cfg.SQLiteDBPath = flagDBPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, repo: repo}, nil
}

func (e *env) Close() {
	e.repo.Close()
}
