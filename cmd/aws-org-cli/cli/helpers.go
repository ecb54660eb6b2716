package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	awsclient "github.com/ebellavance/aws-org-cli-sub000/internal/aws"
	"github.com/ebellavance/aws-org-cli-sub000/internal/config"
	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/logging"
	"github.com/ebellavance/aws-org-cli-sub000/internal/org"
)

var (
	flagRegion   string
	flagProfile  string
	flagLogLevel string
)

// RegisterGlobalFlags binds the flags shared by every command.
func RegisterGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&flagRegion, "region", "", "Home region for control-plane calls (defaults to config)")
	root.PersistentFlags().StringVar(&flagProfile, "profile", "", "Shared config profile for the ambient credentials")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: trace, debug, info, warn or error")
}

// toolkit bundles the wired components an AWS-facing command works with.
type toolkit struct {
	cfg     config.Config
	logger  zerolog.Logger
	factory *awsclient.ClientFactory
	caller  *identity.Cache
	broker  *identity.Broker
}

// newToolkit loads the configuration, applies global flag overrides and
// wires the client factory, identity cache and credential broker.
func newToolkit(ctx context.Context) (*toolkit, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flagProfile != "" {
		cfg.Profile = flagProfile
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	logger := logging.NewLogger(cfg.LogLevel)

	home := flagRegion
	if home == "" && len(cfg.DefaultRegions) > 0 {
		home = cfg.DefaultRegions[0]
	}

	factory, err := awsclient.NewClientFactory(ctx, awsclient.Options{
		Region:        home,
		Profile:       cfg.Profile,
		RatePerSecond: cfg.RatePerSecond,
	}, logger)
	if err != nil {
		return nil, err
	}

	caller := identity.NewCache(factory.STSClient())
	broker := identity.NewBroker(factory.STSClient(), caller, identity.BrokerOptions{
		Partition:  cfg.Partition,
		ExternalID: cfg.ExternalID,
		Duration:   time.Duration(cfg.SessionDuration) * time.Second,
	}, logger)

	return &toolkit{
		cfg:     cfg,
		logger:  logger,
		factory: factory,
		caller:  caller,
		broker:  broker,
	}, nil
}

// homeRegion is the region account-global services are addressed
// through.
func (t *toolkit) homeRegion() string {
	if flagRegion != "" {
		return flagRegion
	}
	if len(t.cfg.DefaultRegions) > 0 {
		return t.cfg.DefaultRegions[0]
	}
	return "us-east-1"
}

// selectAccounts picks a run's targets: the caller's own account by
// default, an explicit ID list, or every organization account.
func (t *toolkit) selectAccounts(ctx context.Context, wholeOrg bool, only []string) ([]org.Account, error) {
	if wholeOrg && len(only) > 0 {
		return nil, fmt.Errorf("--org and --accounts are mutually exclusive")
	}
	if wholeOrg || len(only) > 0 {
		return t.loadAccounts(ctx, only)
	}

	me, err := t.caller.Current(ctx)
	if err != nil {
		return nil, err
	}
	return []org.Account{{ID: me.AccountID, Status: org.StatusActive}}, nil
}

// loadAccounts discovers the organization accounts, optionally narrowed
// to an explicit ID list. Asking for an account outside the
// organization fails before any fan-out starts.
func (t *toolkit) loadAccounts(ctx context.Context, only []string) ([]org.Account, error) {
	accounts, err := org.ListAccounts(ctx, t.factory.OrganizationsClient())
	if err != nil {
		return nil, err
	}
	if len(only) == 0 {
		return accounts, nil
	}

	set := org.NewAccountSet(accounts)
	picked := make([]org.Account, 0, len(only))
	for _, id := range only {
		acct, ok := set.Get(id)
		if !ok {
			return nil, fmt.Errorf("account %s is not part of the organization", id)
		}
		picked = append(picked, acct)
	}
	return picked, nil
}

// historyPath is the location of the local run history database.
func historyPath() string {
	return filepath.Join(config.Dir(), "history.db")
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
