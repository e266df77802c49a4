package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/cepgate/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending action journal migrations",
	RunE:  runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	applied, err := db.MigrateUp(cmd.Context(), database)
	for _, id := range applied {
		logger.Info("migration applied", "migration_id", id)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if len(applied) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	statuses, err := db.MigrateStatus(cmd.Context(), database)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT\tDURATION")
	for _, s := range statuses {
		if !s.Applied {
			fmt.Fprintf(w, "%s\tpending\t-\t-\n", s.ID)
			continue
		}
		fmt.Fprintf(w, "%s\tapplied\t%s\t%dms\n", s.ID, s.AppliedAt.UTC().Format(time.RFC3339), s.ExecutionMs)
	}
	return w.Flush()
}
