package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"journal-backend/internal/database"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDatabase(cmd.Context(), func(db *database.Database) error {
				if err := db.RunMigrations(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
				return nil
			})
		},
	}
}

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect the database",
	}
	dbCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Verify connectivity and print row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDatabase(cmd.Context(), func(db *database.Database) error {
				if err := db.Ping(cmd.Context()); err != nil {
					return fmt.Errorf("ping database: %w", err)
				}
				counts, err := db.TableCounts(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderCounts(counts))
				return nil
			})
		},
	})
	return dbCmd
}

func renderCounts(counts map[string]int64) string {
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	rows := make([][]string, 0, len(tables))
	for _, t := range tables {
		rows = append(rows, []string{t, humanize.Comma(counts[t])})
	}
	return renderTable([]string{"Table", "Rows"}, rows, []columnAlignment{alignLeft, alignRight})
}
