package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/ticketflow/config"
	tferrors "github.com/randalmurphal/ticketflow/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit configuration",
	Long: `Configuration is layered: built-in defaults, then the global file
(~/.config/ticketflow/config.yaml), then .ticketflow.yaml at the git root,
then TICKETFLOW_* environment variables, then --set flags.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every key with its value and source",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a key in the local (or --global) file",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a key from the local (or --global) file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

var global bool

func init() {
	configCmd.AddCommand(configListCmd, configSetCmd, configUnsetCmd)
	configSetCmd.Flags().BoolVar(&global, "global", false, "write the global file")
	configUnsetCmd.Flags().BoolVar(&global, "global", false, "edit the global file")
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	resolved := config.NewResolver(config.WithWarnings(cmd.ErrOrStderr())).Resolve(overrides)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE\tSOURCE")
	for _, key := range config.Keys() {
		src := resolved.Source(key)
		if src == "" {
			src = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", key, resolved.Display(key), src)
	}
	return w.Flush()
}

func configPath() (string, error) {
	r := config.NewResolver()
	if global {
		if r.GlobalFile() == "" {
			return "", fmt.Errorf("no home directory for the global config file")
		}
		return r.GlobalFile(), nil
	}
	if r.LocalPath() == "" {
		return "", tferrors.Usage("not inside a git repository; use --global")
	}
	return r.LocalPath(), nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := config.SetKey(path, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "set %s in %s\n", args[0], path)
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := config.UnsetKey(path, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "unset %s in %s\n", args[0], path)
	return nil
}
