package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ListModulesCmd lists modules with recorded traces
var ListModulesCmd = &cobra.Command{
	Use:   "list-modules",
	Short: "List modules with recorded traces",
	Long:  "Print every distinct module in the trace store, one per line, sorted.",
	Args:  cobra.NoArgs,
	RunE:  runListModules,
}

var listPrefixFlag string

func init() {
	ListModulesCmd.Flags().StringVar(&listPrefixFlag, "prefix", "", "Only modules starting with this prefix")
}

func runListModules(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	modules, err := store.ListModules(context.Background())
	if err != nil {
		return err
	}

	printed := 0
	for _, m := range modules {
		if strings.HasPrefix(m, listPrefixFlag) {
			fmt.Fprintln(cmd.OutOrStdout(), m)
			printed++
		}
	}
	if printed == 0 {
		pterm.Info.WithWriter(cmd.ErrOrStderr()).Println("No call traces recorded yet")
	}
	return nil
}
