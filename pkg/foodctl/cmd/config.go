package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vnfood/foodctl/pkg/foodctl/config"
	"github.com/vnfood/foodctl/pkg/foodctl/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage foodctl configuration",
	}
	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigViewCommand(),
		newConfigSetCommand(),
	)
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		backend string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a foodctl config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := rt.configPathValue()
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists: %s", path)
				}
			}
			cfg := config.DefaultConfig()
			if rt.serverOverride != "" {
				cfg.Server = rt.serverOverride
			}
			if backend != "" {
				cfg.Credentials.Backend = backend
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, &cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Config written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "Credential storage: file, keyring, redis or memory")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			view := *rt.cfg
			if view.Credentials.RedisPassword != "" {
				view.Credentials.RedisPassword = "REDACTED"
			}
			spec, err := rt.OutputSpec()
			if err != nil {
				return err
			}
			if spec.Format == output.FormatTable {
				spec = output.Spec{Format: output.FormatYAML}
			}
			return output.WriteObject(rt.Writer(), spec, view)
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a single config value",
		Long:  "Set a single config value. Keys:\n  " + strings.Join(config.Keys, "\n  "),
		Args:  cobra.ExactArgs(2),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.Keys, cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			cfg := *rt.cfg
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(rt.configPathValue(), &cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "%s set\n", args[0])
			return nil
		},
	}
}
