package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/typetrace/cmd/typetrace/commands"
	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/logger"
)

var rootCmd = &cobra.Command{
	Use:   "typetrace",
	Short: "typetrace - stubs from recorded call traces",
	Long: `typetrace - generate Python type stubs from recorded call traces.

Traced programs store one row per observed call shape: argument types,
return type and yield type, encoded as JSON type descriptors. typetrace
reads them back, merges the observations per callable and renders stubs.

Available commands:
  stub         - Render the stub for a module
  list-modules - List modules with recorded traces
  db           - Migrate the trace store, show statistics
  config       - Show or initialize configuration
  version      - Show version information

Examples:
  typetrace stub mypkg.models               # Stub for one module
  typetrace stub mypkg.models:Order         # Only Order and its methods
  typetrace list-modules                    # What has been traced
  typetrace db stats                        # Row counts`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		configPath, _ := cmd.Flags().GetString("config")
		return commands.Setup(configPath, verbosity, jsonLogs)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: search typetrace.toml)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Log as JSON to stderr")

	// Add commands
	rootCmd.AddCommand(commands.StubCmd)
	rootCmd.AddCommand(commands.ListModulesCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.WithWriter(os.Stderr).Println(err.Error())
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "  %s %s\n", pterm.Gray("hint:"), hint)
		}
		os.Exit(1)
	}
}
