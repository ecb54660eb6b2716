package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/org"
	"github.com/ebellavance/aws-org-cli-sub000/internal/principal"
)

// RegisterPrincipalCommands adds the `principals` command tree.
func RegisterPrincipalCommands(root *cobra.Command) {
	principalsCmd := &cobra.Command{
		Use:   "principals",
		Short: "Classify and verify policy principals",
		Long: `Work with the principals found in resource policies: classify them
into kinds (IAM user or role, account, service, wildcard...) and check
whether they still exist in the organization.`,
	}
	principalsCmd.AddCommand(newPrincipalsClassifyCmd())
	principalsCmd.AddCommand(newPrincipalsVerifyCmd())
	root.AddCommand(principalsCmd)
}

func newPrincipalsClassifyCmd() *cobra.Command {
	var (
		principalType string
		file          string
		bucket        string
		bucketAccount string
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "classify [value]",
		Short: "Classify principals without calling AWS",
		Long: `Classify a single principal value, or every principal of a policy
document from a file (--file) or a bucket policy (--bucket).
Classification itself never calls AWS; --bucket only fetches the policy.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			principals, err := gatherPrincipals(context.Background(), nil, args, principalType, file, bucket, bucketAccount)
			if err != nil {
				return err
			}
			if asJSON {
				printJSON(principals)
				return nil
			}
			if len(principals) == 0 {
				fmt.Println("No principals found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tACCOUNT\tDISPLAY\tRAW")
			for _, p := range principals {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Kind, p.AccountID, p.Display, p.Raw)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&principalType, "type", "AWS", "Principal type key for a single value (AWS, Service, Federated)")
	cmd.Flags().StringVar(&file, "file", "", "Classify every principal of this policy document file")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Classify every principal of this bucket's policy")
	cmd.Flags().StringVar(&bucketAccount, "bucket-account", "", "Account owning --bucket (defaults to the caller's)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newPrincipalsVerifyCmd() *cobra.Command {
	var (
		principalType string
		file          string
		bucket        string
		bucketAccount string
		crossRole     string
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "verify [value]",
		Short: "Check whether principals still exist",
		Long: `Verify principals against the organization: account principals are
checked against the discovered account list, IAM principals are looked
up in their owning account. Lookups in other accounts are off unless
--cross-account-role names the role to assume there.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			tk, err := newToolkit(ctx)
			if err != nil {
				return err
			}

			principals, err := gatherPrincipals(ctx, tk, args, principalType, file, bucket, bucketAccount)
			if err != nil {
				return err
			}
			if len(principals) == 0 {
				fmt.Println("No principals found.")
				return nil
			}

			me, err := tk.caller.Current(ctx)
			if err != nil {
				return err
			}
			accounts, err := tk.loadAccounts(ctx, nil)
			if err != nil {
				return err
			}

			clients := func(res identity.Resolution) principal.IAMLookupAPI {
				tk.factory.WaitForService("iam")
				return tk.factory.IAMClient(res)
			}
			verifier := principal.NewVerifier(tk.broker, clients, org.NewAccountSet(accounts), principal.VerifierOptions{
				CurrentAccountID: me.AccountID,
				RoleName:         crossRole,
				CrossAccount:     crossRole != "",
			}, tk.logger)

			results := verifier.VerifyAll(ctx, principals)

			if asJSON {
				printJSON(verifyOutputs(results))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EXISTS\tKIND\tPRINCIPAL\tNOTE")
			for _, r := range results {
				note := ""
				if r.Err != nil {
					note = r.Err.Error()
				}
				fmt.Fprintf(w, "%v\t%s\t%s\t%s\n", r.Exists, r.Principal.Kind, r.Principal.Raw, note)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&principalType, "type", "AWS", "Principal type key for a single value (AWS, Service, Federated)")
	cmd.Flags().StringVar(&file, "file", "", "Verify every principal of this policy document file")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Verify every principal of this bucket's policy")
	cmd.Flags().StringVar(&bucketAccount, "bucket-account", "", "Account owning --bucket (defaults to the caller's)")
	cmd.Flags().StringVar(&crossRole, "cross-account-role", "", "Role to assume for IAM lookups in other accounts")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// gatherPrincipals resolves the three input sources a principal command
// accepts: a literal value, a policy document file, or a bucket policy.
// tk may be nil; a toolkit is wired on demand for the bucket path.
func gatherPrincipals(ctx context.Context, tk *toolkit, args []string, principalType, file, bucket, bucketAccount string) ([]principal.Principal, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading policy file: %w", err)
		}
		return principal.ExtractPrincipals(string(data))

	case bucket != "":
		if tk == nil {
			var err error
			tk, err = newToolkit(ctx)
			if err != nil {
				return nil, err
			}
		}
		doc, err := fetchBucketPolicy(ctx, tk, bucket, bucketAccount)
		if err != nil {
			return nil, err
		}
		return principal.ExtractPrincipals(doc)

	case len(args) == 1:
		return []principal.Principal{principal.Classify(principalType, args[0])}, nil
	}
	return nil, fmt.Errorf("provide a principal value, --file or --bucket")
}

// fetchBucketPolicy reads a bucket policy, brokering credentials when
// the bucket belongs to another account.
func fetchBucketPolicy(ctx context.Context, tk *toolkit, bucket, accountID string) (string, error) {
	res := identity.Resolution{Kind: identity.ResolutionAmbient}
	if accountID != "" {
		res = tk.broker.Resolve(ctx, accountID, tk.cfg.RoleName)
		if !res.Usable() {
			return "", fmt.Errorf("credentials unavailable for account %s: %s", accountID, res.Reason)
		}
	}

	client := tk.factory.S3Client(res, tk.homeRegion())
	tk.factory.WaitForService("s3")
	out, err := client.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{Bucket: aws.String(bucket)})
	if err != nil {
		return "", fmt.Errorf("GetBucketPolicy: %w", err)
	}
	return aws.ToString(out.Policy), nil
}

type verifyOutput struct {
	Principal principal.Principal `json:"principal"`
	Exists    bool                `json:"exists"`
	Error     string              `json:"error,omitempty"`
}

func verifyOutputs(results []principal.VerificationResult) []verifyOutput {
	out := make([]verifyOutput, 0, len(results))
	for _, r := range results {
		v := verifyOutput{Principal: r.Principal, Exists: r.Exists}
		if r.Err != nil {
			v.Error = r.Err.Error()
		}
		out = append(out, v)
	}
	return out
}
