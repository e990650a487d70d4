package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/typetrace/am"
	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/logger"
	"github.com/teranos/typetrace/stubs"
)

// StubCmd renders the stub for one module
var StubCmd = &cobra.Command{
	Use:   "stub MODULE[:QUALNAME]",
	Short: "Render the stub for a module",
	Long: `Render a Python stub from the call traces recorded for MODULE.

With :QUALNAME only callables whose qualname starts with QUALNAME are
included, e.g. mypkg.models:Order for Order and its methods. Traces that
can no longer be decoded are skipped and counted.

Examples:
  typetrace stub mypkg.models
  typetrace stub mypkg.models:Order.total --limit 500
  typetrace stub mypkg.models -o stubs/mypkg/models.pyi`,
	Args: cobra.ExactArgs(1),
	RunE: runStub,
}

var (
	stubLimitFlag  int
	stubOutputFlag string
	stubStrictFlag bool
)

func init() {
	StubCmd.Flags().IntVar(&stubLimitFlag, "limit", 0, "Max trace rows to read (default: trace.query_limit)")
	StubCmd.Flags().StringVarP(&stubOutputFlag, "output", "o", "", "Write the stub to a file instead of stdout")
	StubCmd.Flags().BoolVar(&stubStrictFlag, "strict", false, "Only decode callables declared in universe manifests")
}

// parseTarget splits MODULE[:QUALNAME].
func parseTarget(arg string) (module, qualname string, err error) {
	module, qualname, _ = strings.Cut(arg, ":")
	if module == "" {
		return "", "", errors.NewInvalidRequestError("module is required in %q", arg)
	}
	return module, qualname, nil
}

func runStub(cmd *cobra.Command, args []string) error {
	module, qualname, err := parseTarget(args[0])
	if err != nil {
		return err
	}

	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	decoder, err := newDecoder(stubStrictFlag)
	if err != nil {
		return err
	}

	limit := stubLimitFlag
	if limit <= 0 {
		limit = cfg.Trace.QueryLimit
	}
	reporter := stubs.NewReporter(store, decoder, limit, logger.ComponentLogger("stubs"))

	report, err := reporter.Stub(context.Background(), module, qualname)
	if err != nil {
		return err
	}

	if report.Failed > 0 {
		pterm.Warning.WithWriter(cmd.ErrOrStderr()).Printfln(
			"%d call trace(s) could not be decoded and were skipped (run with -vv for details)", report.Failed)
	}

	if stubOutputFlag == "" {
		fmt.Fprint(cmd.OutOrStdout(), report.Text)
		return nil
	}
	if err := os.WriteFile(stubOutputFlag, []byte(report.Text), am.DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write stub to %s", stubOutputFlag)
	}
	pterm.Success.WithWriter(cmd.ErrOrStderr()).Printfln("Wrote %s (%d traces)", stubOutputFlag, report.Decoded)
	return nil
}
