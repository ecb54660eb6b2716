package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// RegisterWhoamiCommand adds the `whoami` command.
func RegisterWhoamiCommand(root *cobra.Command) {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the caller identity the tool runs as",
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := newToolkit(context.Background())
			if err != nil {
				return err
			}

			id, err := tk.caller.Current(context.Background())
			if err != nil {
				return err
			}
			if asJSON {
				printJSON(id)
				return nil
			}

			fmt.Printf("Account:  %s\n", id.AccountID)
			fmt.Printf("ARN:      %s\n", id.ARN)
			fmt.Printf("UserID:   %s\n", id.UserID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	root.AddCommand(cmd)
}
