// aws-org-cli — multi-account inventory for AWS Organizations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ebellavance/aws-org-cli-sub000/cmd/aws-org-cli/cli"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "aws-org-cli",
		Short: "aws-org-cli — inventory every account of an AWS Organization",
		Long: `aws-org-cli discovers the accounts of an AWS Organization, assumes a
read-only role in each member account, and inventories resources across
all configured regions in a single run. Results print as tables or JSON
and can be saved to a local history database for offline review.

All AWS operations are read-only.`,
		Version:      version,
		SilenceUsage: true,
	}

	// Register command groups
	cli.RegisterGlobalFlags(rootCmd)
	cli.RegisterWhoamiCommand(rootCmd)
	cli.RegisterAccountsCommands(rootCmd)
	cli.RegisterInventoryCommands(rootCmd)
	cli.RegisterPrincipalCommands(rootCmd)
	cli.RegisterRunCommands(rootCmd)
	cli.RegisterConfigCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
