package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/typetrace/am"
	"github.com/teranos/typetrace/errors"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize configuration",
	Long: `Show or initialize typetrace configuration.

Configuration sources (in order of precedence):
1. Environment variables (TYPETRACE_* prefix, DATABASE_URL for the DSN)
2. .env in the working directory
3. --config, or else:
   a. Project config (typetrace.toml, searched upward from the working directory)
   b. User config (~/.typetrace/typetrace.toml)
   c. System config (/etc/typetrace/typetrace.toml)
4. Default values

Examples:
  typetrace config show                  # Effective configuration as TOML
  typetrace config show --format sources # Where each value came from
  typetrace config init                  # Write ./typetrace.toml with defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write a config file with default values",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var (
	configFormat    string
	configForceFlag bool
)

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml, sources")
	configInitCmd.Flags().BoolVar(&configForceFlag, "force", false, "Overwrite an existing file (kept as .back1)")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configValidateCmd)
}

// redacted returns a copy of cfg safe to print.
func redacted() am.Config {
	c := *cfg
	if c.Database.DSN != "" {
		c.Database.DSN = "********"
	}
	return c
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	c := redacted()

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Fprintln(out, string(data))

	case "yaml":
		data, err := yaml.Marshal(c)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(out, "# typetrace configuration\n%s", data)

	case "toml":
		data, err := c.MarshalTOML()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# typetrace configuration\n%s", data)

	case "sources":
		settings, err := am.Introspect()
		if err != nil {
			return err
		}
		data := pterm.TableData{{"Key", "Value", "Source", "From"}}
		for _, s := range settings {
			data = append(data, []string{s.Key, fmt.Sprint(s.Value), string(s.Source), s.SourcePath})
		}
		return pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(data).Render()

	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml, sources)", configFormat)
	}

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := am.ConfigFileName
	if len(args) == 1 {
		path = args[0]
	}
	if err := am.WriteDefault(path, configForceFlag); err != nil {
		return err
	}
	pterm.Success.WithWriter(cmd.ErrOrStderr()).Printfln("Wrote %s", path)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration is invalid")
	}
	pterm.Success.WithWriter(cmd.ErrOrStderr()).Println("Configuration is valid")
	return nil
}
