package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ebellavance/aws-org-cli-sub000/internal/history"
)

// RegisterRunCommands adds the `runs` command tree. Run history is read
// from the local database, so these commands work without AWS access.
func RegisterRunCommands(root *cobra.Command) {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse saved inventory runs",
	}
	runsCmd.AddCommand(newRunsListCmd())
	runsCmd.AddCommand(newRunsShowCmd())
	root.AddCommand(runsCmd)
}

func newRunsListCmd() *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(historyPath())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}
			if asJSON {
				printJSON(runs)
				return nil
			}
			if len(runs) == 0 {
				fmt.Println("No saved runs. Use 'inventory <kind> --save' to record one.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tKIND\tSTARTED\tRECORDS\tFAILURES\tUNITS")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
					r.ID, r.Kind, r.StartedAt.Format(time.RFC3339), r.RecordCount, r.FailureCount, r.Units)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	var asJSON bool
	var failuresOnly bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the records and failures of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(historyPath())
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(args[0])
			if err != nil {
				return err
			}
			records, err := store.RunRecords(run.ID)
			if err != nil {
				return err
			}
			failures, err := store.RunFailures(run.ID)
			if err != nil {
				return err
			}

			if asJSON {
				printJSON(struct {
					Run      history.Run       `json:"run"`
					Records  []history.Record  `json:"records"`
					Failures []history.Failure `json:"failures,omitempty"`
				}{run, records, failures})
				return nil
			}

			fmt.Printf("Run:      %s\n", run.ID)
			fmt.Printf("Kind:     %s\n", run.Kind)
			fmt.Printf("Started:  %s\n", run.StartedAt.Format(time.RFC3339))
			fmt.Printf("Finished: %s\n", run.FinishedAt.Format(time.RFC3339))
			fmt.Printf("Caller:   %s\n", run.CallerARN)
			fmt.Printf("Role:     %s\n", run.RoleName)
			fmt.Printf("Regions:  %v\n", run.Regions)
			fmt.Printf("Units:    %d (%d records, %d failures)\n", run.Units, run.RecordCount, run.FailureCount)

			if !failuresOnly {
				fmt.Println()
				for _, rec := range records {
					fmt.Println(string(rec.Data))
				}
			}

			if len(failures) > 0 {
				fmt.Println()
				fmt.Printf("%d failed units:\n", len(failures))
				for _, f := range failures {
					fmt.Printf("  %s %s: %s\n", f.AccountID, f.Region, f.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&failuresOnly, "failures", false, "Only show the failed units")
	return cmd
}
