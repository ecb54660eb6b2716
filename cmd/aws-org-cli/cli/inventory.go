package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ebellavance/aws-org-cli-sub000/internal/fanout"
	"github.com/ebellavance/aws-org-cli-sub000/internal/history"
	"github.com/ebellavance/aws-org-cli-sub000/internal/inventory"
	"github.com/ebellavance/aws-org-cli-sub000/internal/org"
)

// RegisterInventoryCommands adds the `inventory` command tree with one
// subcommand per resource kind.
func RegisterInventoryCommands(root *cobra.Command) {
	inventoryCmd := &cobra.Command{
		Use:   "inventory",
		Short: "Inventory resources across accounts and regions",
		Long: `Fan an inventory listing out across accounts and regions. The default
target is the caller's own account; --accounts picks specific member
accounts and --org covers every ACTIVE account in the organization.
Member accounts are reached through one role assumption each. Unit
failures are reported and never abort the run.`,
	}

	inventoryCmd.AddCommand(newInventoryKindsCmd())
	for _, kind := range inventory.Kinds() {
		inventoryCmd.AddCommand(newInventoryRunCmd(kind))
	}

	root.AddCommand(inventoryCmd)
}

func newInventoryKindsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "kinds",
		Short: "List the resource kinds this tool can inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := inventory.Kinds()
			if asJSON {
				printJSON(kinds)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tSERVICE\tSCOPE\tDESCRIPTION")
			for _, k := range kinds {
				scope := "regional"
				if k.Global {
					scope = "global"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k.Name, k.Service, scope, k.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

type inventoryOptions struct {
	org         bool
	accounts    []string
	regions     []string
	role        string
	concurrency int
	asJSON      bool
	save        bool
}

func newInventoryRunCmd(kind inventory.Kind) *cobra.Command {
	var opts inventoryOptions
	cmd := &cobra.Command{
		Use:   kind.Name,
		Short: "List " + kind.Description,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInventory(context.Background(), kind, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.org, "org", false, "Run against every ACTIVE account in the organization")
	cmd.Flags().StringSliceVar(&opts.accounts, "accounts", nil, "Run against these account IDs")
	cmd.Flags().StringSliceVar(&opts.regions, "regions", nil, "Regions to fan out across (defaults to config)")
	cmd.Flags().StringVar(&opts.role, "role", "", "Role to assume in member accounts (defaults to config)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Max units in flight (defaults to config)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Persist the run to the local history database")
	return cmd
}

// runParams is the resolved setup of one inventory run.
type runParams struct {
	accounts []org.Account
	regions  []string
	role     string
	runner   *fanout.Runner
	opts     inventoryOptions
}

func runInventory(ctx context.Context, kind inventory.Kind, opts inventoryOptions) error {
	tk, err := newToolkit(ctx)
	if err != nil {
		return err
	}

	accounts, err := tk.selectAccounts(ctx, opts.org, opts.accounts)
	if err != nil {
		return err
	}

	regions := opts.regions
	if len(regions) == 0 {
		regions = tk.cfg.DefaultRegions
	}
	if kind.Global {
		// Global kinds produce one unit per account, addressed through
		// the home region.
		regions = []string{tk.homeRegion()}
	}
	if len(regions) == 0 {
		return fmt.Errorf("no regions configured; pass --regions or set default_regions in the config")
	}

	role := opts.role
	if role == "" {
		role = tk.cfg.RoleName
	}
	concurrency := opts.concurrency
	if concurrency <= 0 {
		concurrency = tk.cfg.Concurrency
	}

	params := runParams{
		accounts: accounts,
		regions:  regions,
		role:     role,
		runner: &fanout.Runner{
			Resolver:    tk.broker,
			RoleName:    role,
			Concurrency: concurrency,
			Logger:      tk.logger,
		},
		opts: opts,
	}

	lister := inventory.NewLister(tk.factory, tk.logger)

	switch kind.Name {
	case "ec2-instances":
		return collect(ctx, tk, kind, params, lister.Instances(), printEC2Instances)
	case "ebs-volumes":
		return collect(ctx, tk, kind, params, lister.Volumes(), printEBSVolumes)
	case "s3-buckets":
		return collect(ctx, tk, kind, params, lister.Buckets(), printS3Buckets)
	case "rds-instances":
		return collect(ctx, tk, kind, params, lister.DBInstances(), printRDSInstances)
	case "opensearch-domains":
		return collect(ctx, tk, kind, params, lister.Domains(), printOpenSearchDomains)
	case "load-balancers":
		return collect(ctx, tk, kind, params, lister.LoadBalancers(), printLoadBalancers)
	case "iam-roles":
		return collect(ctx, tk, kind, params, lister.Roles(), printIAMRoles)
	case "lambda-functions":
		return collect(ctx, tk, kind, params, lister.Functions(), printLambdaFunctions)
	case "kms-keys":
		return collect(ctx, tk, kind, params, lister.Keys(), printKMSKeys)
	case "secrets":
		return collect(ctx, tk, kind, params, lister.Secrets(), printSecrets)
	case "log-groups":
		return collect(ctx, tk, kind, params, lister.LogGroups(), printLogGroups)
	case "cloudtrail-trails":
		return collect(ctx, tk, kind, params, lister.Trails(), printTrails)
	case "ssm-instances":
		return collect(ctx, tk, kind, params, lister.ManagedInstances(), printManagedInstances)
	case "ssm-parameters":
		return collect(ctx, tk, kind, params, lister.Parameters(), printSSMParameters)
	}
	return fmt.Errorf("kind %s has no runner", kind.Name)
}

// collect fans the fetch out, renders the result and optionally saves
// the run.
func collect[T any](ctx context.Context, tk *toolkit, kind inventory.Kind, p runParams,
	fetch fanout.FetchFunc[T], print func([]T)) error {

	started := time.Now().UTC()
	result := fanout.Run(ctx, p.runner, p.accounts, p.regions, fetch)
	finished := time.Now().UTC()

	if result.Items == nil {
		result.Items = []T{}
	}
	failures := failuresFrom(result.Failures)

	if p.opts.asJSON {
		printJSON(struct {
			Kind     string            `json:"kind"`
			Units    int               `json:"units"`
			Items    []T               `json:"items"`
			Failures []history.Failure `json:"failures,omitempty"`
		}{kind.Name, result.Units, result.Items, failures})
	} else {
		print(result.Items)
		reportFailures(failures, result.Units)
	}

	if p.opts.save {
		records, err := history.RecordsFrom(result.Items)
		if err != nil {
			return err
		}

		store, err := history.Open(historyPath())
		if err != nil {
			return err
		}
		defer store.Close()

		var callerARN string
		if id, err := tk.caller.Current(ctx); err == nil {
			callerARN = id.ARN
		}

		id, err := store.SaveRun(history.Run{
			Kind:       kind.Name,
			StartedAt:  started,
			FinishedAt: finished,
			CallerARN:  callerARN,
			RoleName:   p.role,
			Regions:    p.regions,
			Units:      result.Units,
		}, records, failures)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved run %s (%d records, %d failures)\n", id, len(records), len(failures))
	}

	return nil
}

func failuresFrom(errs []fanout.UnitError) []history.Failure {
	failures := make([]history.Failure, 0, len(errs))
	for _, e := range errs {
		failures = append(failures, history.Failure{
			AccountID: e.AccountID,
			Region:    e.Region,
			Error:     e.Err.Error(),
		})
	}
	return failures
}

func reportFailures(failures []history.Failure, units int) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "\n%d of %d units failed:\n", len(failures), units)
	for _, f := range failures {
		fmt.Fprintf(os.Stderr, "  %s %s: %s\n", f.AccountID, f.Region, f.Error)
	}
}

// ---- per-kind table printers ----

func printEC2Instances(items []inventory.EC2Instance) {
	if len(items) == 0 {
		fmt.Println("No EC2 instances found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tREGION\tINSTANCE ID\tNAME\tTYPE\tSTATE\tPRIVATE IP\tPUBLIC IP")
	for _, i := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i.AccountID, i.Region, i.InstanceID, i.Name, i.InstanceType, i.State, i.PrivateIP, i.PublicIP)
	}
	w.Flush()
}

func printEBSVolumes(items []inventory.EBSVolume) {
	if len(items) == 0 {
		fmt.Println("No EBS volumes found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tREGION\tVOLUME ID\tTYPE\tSTATE\tSIZE\tENCRYPTED\tATTACHED TO")
	for _, v := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%dGiB\t%v\t%s\n",
			v.AccountID, v.Region, v.VolumeID, v.Type, v.State, v.SizeGiB, v.Encrypted, v.AttachedTo)
	}
	w.Flush()
}

func printS3Buckets(items []inventory.S3Bucket) {
	if len(items) == 0 {
		fmt.Println("No S3 buckets found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tREGION\tBUCKET\tCREATED")
	for _, b := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.AccountID, b.Region, b.Name, b.Created)
	}
	w.Flush()
}

func printRDSInstances(items []inventory.RDSInstance) {
	if len(items) == 0 {
		fmt.Println("No RDS instances found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tREGION\tIDENTIFIER\tENGINE\tCLASS\tSTATUS\tMULTI-AZ")
	for _, d := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%s\t%s\t%v\n",
			d.AccountID, d.Region, d.Identifier, d.Engine, d.EngineVersion, d.Class, d.Status, d.MultiAZ)
	}
	w.Flush()
}

func printOpenSearchDomains(items []inventory.OpenSearchDomain) {
	if len(items) == 0 {
		fmt.Println("No OpenSearch domains found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tREGION\tDOMAIN\tENGINE\tVERSION\tINSTANCES\tENDPOINT")
	for _, d := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d x %s\t%s\n",
			d.AccountID, d.Region, d.Name, d.Engine, d.Version, d.InstanceCount, d.InstanceType, d.Endpoint)
	}
	w.Flush()
}

func printLoadBalancers(items []inventory.LoadBalancer) {
	if len(items) == 0 {
		fmt.Println("No load balancers found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tREGION\tNAME\tTYPE\tSCHEME\tSTATE\tDNS NAME")
	for _, lb := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			lb.AccountID, lb.Region, lb.Name, lb.Type, lb.Scheme, lb.State, lb.DNSName)
	}
	w.Flush()
}

func printIAMRoles(items []inventory.IAMRole) {
	if len(items) == 0 {
		fmt.Println("No IAM roles found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tROLE\tPATH\tCREATED\tDESCRIPTION")
	for _, r := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.AccountID, r.Name, r.Path, r.Created, truncate(r.Description, 40))
	}
	w.Flush()
}

func printLambdaFunctions(items []inventory.LambdaFunction) {
	if len(items) == 0 {
		fmt.Println("No Lambda functions found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tREGION\tFUNCTION\tRUNTIME\tMEMORY\tTIMEOUT\tCODE SIZE")
	for _, fn := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dMB\t%ds\t%d\n",
			fn.AccountID, fn.Region, fn.Name, fn.Runtime, fn.MemoryMB, fn.TimeoutSecs, fn.CodeSize)
	}
	w.Flush()
}

func printKMSKeys(items []inventory.KMSKey) {
	if len(items) == 0 {
		fmt.Println("No KMS keys found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tREGION\tKEY ID\tARN")
	for _, k := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k.AccountID, k.Region, k.KeyID, k.ARN)
	}
	w.Flush()
}

func printSecrets(items []inventory.Secret) {
	if len(items) == 0 {
		fmt.Println("No secrets found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tREGION\tNAME\tROTATION\tLAST CHANGED\tDESCRIPTION")
	for _, s := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t%s\n",
			s.AccountID, s.Region, s.Name, s.Rotation, s.LastChanged, truncate(s.Description, 40))
	}
	w.Flush()
}

func printLogGroups(items []inventory.LogGroup) {
	if len(items) == 0 {
		fmt.Println("No log groups found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tREGION\tLOG GROUP\tSTORED BYTES\tRETENTION")
	for _, g := range items {
		retention := "Never expire"
		if g.RetentionDays > 0 {
			retention = fmt.Sprintf("%d days", g.RetentionDays)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			g.AccountID, g.Region, g.Name, g.StoredBytes, retention)
	}
	w.Flush()
}

func printTrails(items []inventory.Trail) {
	if len(items) == 0 {
		fmt.Println("No CloudTrail trails found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tREGION\tNAME\tMULTI-REGION\tORG\tS3 BUCKET")
	for _, t := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\t%s\n",
			t.AccountID, t.Region, t.Name, t.MultiRegion, t.Organization, t.S3Bucket)
	}
	w.Flush()
}

func printManagedInstances(items []inventory.ManagedInstance) {
	if len(items) == 0 {
		fmt.Println("No SSM managed instances found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tREGION\tINSTANCE ID\tPLATFORM\tPING\tAGENT\tLAST PING")
	for _, m := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.AccountID, m.Region, m.InstanceID, m.Platform, m.PingStatus, m.AgentVersion, m.LastPing)
	}
	w.Flush()
}

func printSSMParameters(items []inventory.SSMParameter) {
	if len(items) == 0 {
		fmt.Println("No SSM parameters found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tREGION\tNAME\tTYPE\tTIER\tVERSION\tLAST MODIFIED")
	for _, p := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			p.AccountID, p.Region, p.Name, p.Type, p.Tier, p.Version, p.LastModified)
	}
	w.Flush()
}
