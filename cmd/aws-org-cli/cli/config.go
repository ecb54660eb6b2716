package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ebellavance/aws-org-cli-sub000/internal/config"
)

// RegisterConfigCommands adds the `config` command tree.
func RegisterConfigCommands(root *cobra.Command) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the tool configuration",
	}
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigInitCmd())
	root.AddCommand(configCmd)
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			fmt.Printf("Config file: %s\n\n", config.Path())
			printJSON(cfg)
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(config.Path()); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", config.Path())
			}

			if err := config.Save(config.Default()); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Printf("Wrote default config to %s\n", config.Path())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
