package main

import (
	"errors"
	"fmt"

	"expensa/internal/adapters"
	"expensa/internal/backend"
	"expensa/internal/cli"
	"expensa/internal/core"
	"expensa/internal/storage"
	"expensa/internal/worker"

	"github.com/spf13/cobra"
)

var (
	flagUser    string
	flagThrough string
	flagAll     bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations and print the schema version",
	RunE:  runMigrate,
}

var catchUpCmd = &cobra.Command{
	Use:   "catchup",
	Short: "Fill missing recurring occurrences through a month",
	RunE:  runCatchUp,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import owed Splitwise expenses for a user",
	RunE:  runImport,
}

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Spreadsheet mirror maintenance",
}

var mirrorResyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Write every expense of a user to the configured mirror",
	RunE:  runMirrorResync,
}

func init() {
	catchUpCmd.Flags().StringVar(&flagUser, "user", "", "User ID")
	catchUpCmd.Flags().BoolVar(&flagAll, "all", false, "Catch up every user")
	catchUpCmd.Flags().StringVar(&flagThrough, "through", "", "Last month to fill, YYYY-MM (default: current month)")
	importCmd.Flags().StringVar(&flagUser, "user", "", "User ID")
	_ = importCmd.MarkFlagRequired("user")
	mirrorResyncCmd.Flags().StringVar(&flagUser, "user", "", "User ID")
	_ = mirrorResyncCmd.MarkFlagRequired("user")

	mirrorCmd.AddCommand(mirrorResyncCmd)
	rootCmd.AddCommand(migrateCmd, catchUpCmd, importCmd, mirrorCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	// Opening the repository applies pending migrations.
	e, err := openEnv()
	if err != nil {
		return err
	}
	e.Close()

	version, dirty, err := storage.SchemaVersion(e.cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
	return nil
}

func runCatchUp(cmd *cobra.Command, _ []string) error {
	if flagUser == "" && !flagAll {
		return errors.New("either --user or --all is required")
	}
	var through core.Month
	if flagThrough != "" {
		m, err := core.ParseMonth(flagThrough)
		if err != nil {
			return err
		}
		through = m
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()
	svc := cli.BuildServices(e.cfg, e.repo, nil, e.logger)

	users := []string{flagUser}
	if flagAll {
		if users, err = e.repo.ListUserIDs(cmd.Context()); err != nil {
			return err
		}
	}
	for _, id := range users {
		n, err := svc.Recurring.CatchUp(cmd.Context(), id, through)
		if err != nil {
			return fmt.Errorf("user %s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d occurrence(s) created\n", id, n)
	}
	return nil
}

func runImport(cmd *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()
	svc := cli.BuildServices(e.cfg, e.repo, nil, e.logger)

	n, err := svc.Importer.Import(cmd.Context(), flagUser)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d expense(s) imported\n", n)
	return nil
}

func runMirrorResync(cmd *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	mirrorCfg, err := backend.FromAppConfig(e.cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(e.logger).CreateMirror(cmd.Context(), mirrorCfg)
	if err != nil {
		return err
	}
	if res.Cleanup != nil {
		defer res.Cleanup()
	}
	if res.Mirror == nil {
		return errors.New("no mirror configured (MIRROR_BACKEND=none)")
	}

	expenses, err := e.repo.ListExpenses(cmd.Context(), flagUser, storage.ExpenseFilter{})
	if err != nil {
		return err
	}
	svc := cli.BuildServices(e.cfg, e.repo, nil, e.logger)
	jobs := worker.NewJobWorker(svc.Recurring, svc.Importer, res.Mirror, adapters.NewRowBuilder(e.repo), e.logger)
	n, err := jobs.ResyncMirror(cmd.Context(), flagUser, expenses)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d expense(s) mirrored\n", n, len(expenses))
	return nil
}
