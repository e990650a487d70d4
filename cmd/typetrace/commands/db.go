package commands

import (
	"context"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/typetrace/db"
	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/logger"
	"github.com/teranos/typetrace/trace/storage"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the trace store",
	Long: `Manage the trace store.

Examples:
  typetrace db migrate    # Create or upgrade the schema
  typetrace db stats      # Show row, module and callable counts`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show trace store statistics",
	Args:  cobra.NoArgs,
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	conn, dialect, err := openDatabase()
	if err != nil {
		return err
	}
	defer conn.Close()

	versions, err := db.AppliedVersions(conn)
	if err != nil {
		return err
	}
	logger.Infow("Schema is up to date", logger.FieldDialect, dialect, logger.FieldCount, len(versions))
	pterm.Success.WithWriter(cmd.ErrOrStderr()).Printfln("Schema is up to date (%d migrations applied)", len(versions))
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	st, err := store.Stats(context.Background())
	if err != nil {
		return errors.Wrap(err, "failed to query trace statistics")
	}

	table := storage.DefaultTable
	if cfg.Database.Table != "" {
		table = cfg.Database.Table
	}
	data := pterm.TableData{
		{"Setting", "Value"},
		{"Driver", cfg.Database.Driver},
		{"Database", displayTarget()},
		{"Table", table},
		{"Rows", strconv.Itoa(st.Rows)},
		{"Modules", strconv.Itoa(st.Modules)},
		{"Callables", strconv.Itoa(st.Callables)},
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
}

// displayTarget is the database target safe to print.
func displayTarget() string {
	if cfg.Database.DSN != "" && cfg.GetDatabaseTarget() == cfg.Database.DSN {
		return "(dsn)"
	}
	return cfg.GetDatabaseTarget()
}
