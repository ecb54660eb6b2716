package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// RegisterAccountsCommands adds the `accounts` command tree.
func RegisterAccountsCommands(root *cobra.Command) {
	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Organization account discovery",
	}
	accountsCmd.AddCommand(newAccountsListCmd())
	root.AddCommand(accountsCmd)
}

func newAccountsListCmd() *cobra.Command {
	var asJSON bool
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the accounts of the organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := newToolkit(context.Background())
			if err != nil {
				return err
			}

			accounts, err := tk.loadAccounts(context.Background(), nil)
			if err != nil {
				return err
			}
			if activeOnly {
				n := 0
				for _, a := range accounts {
					if a.Active() {
						accounts[n] = a
						n++
					}
				}
				accounts = accounts[:n]
			}

			if asJSON {
				printJSON(accounts)
				return nil
			}
			if len(accounts) == 0 {
				fmt.Println("No accounts found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT ID\tNAME\tSTATUS")
			for _, a := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.ID, a.Name, a.Status)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only show ACTIVE accounts")
	return cmd
}
