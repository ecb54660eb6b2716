// Package fanout runs an inventory fetch across every account and
// region pair of an organization, with bounded concurrency and
// per-unit failure isolation.
package fanout

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/org"
)

// Unit is one account and region pair of a run.
type Unit struct {
	Account org.Account
	Region  string
}

// UnitError records the failure of a single unit. Other units of the
// same run are unaffected.
type UnitError struct {
	AccountID string
	Region    string
	Err       error
}

func (e UnitError) Error() string {
	return fmt.Sprintf("account %s region %s: %v", e.AccountID, e.Region, e.Err)
}

func (e UnitError) Unwrap() error { return e.Err }

// Result aggregates a run: the flattened items of every successful
// unit, in no particular order, plus one UnitError per failed unit.
type Result[T any] struct {
	Items    []T
	Failures []UnitError
	Units    int
}

// FetchFunc fetches the inventory of one unit using the credentials
// resolved for its account.
type FetchFunc[T any] func(ctx context.Context, unit Unit, creds identity.Resolution) ([]T, error)

// CredentialResolver is the broker surface the runner needs.
type CredentialResolver interface {
	Resolve(ctx context.Context, accountID, roleName string) identity.Resolution
}

// Runner fans a fetch out across accounts and regions.
type Runner struct {
	Resolver CredentialResolver
	// RoleName is the role assumed in accounts other than the caller's.
	RoleName string
	// Concurrency caps the number of units in flight. Zero or negative
	// means unbounded.
	Concurrency int
	Logger      zerolog.Logger
}

// Run resolves credentials once per active account, then fetches every
// account and region pair concurrently. Suspended and closing accounts
// contribute no units. Accounts whose credentials cannot be resolved
// fail unit by unit; they never abort the run.
func Run[T any](ctx context.Context, r *Runner, accounts []org.Account, regions []string, fetch FetchFunc[T]) Result[T] {
	logger := r.Logger.With().Str("component", "fanout").Logger()

	var active []org.Account
	for _, acct := range accounts {
		if !acct.Active() {
			logger.Debug().Str("account_id", acct.ID).Str("status", string(acct.Status)).Msg("skipping inactive account")
			continue
		}
		active = append(active, acct)
	}

	res := Result[T]{Units: len(active) * len(regions)}
	if res.Units == 0 {
		return res
	}

	resolutions := make(map[string]identity.Resolution, len(active))
	for _, acct := range active {
		resolutions[acct.ID] = r.Resolver.Resolve(ctx, acct.ID, r.RoleName)
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem chan struct{}
	)
	if r.Concurrency > 0 {
		sem = make(chan struct{}, r.Concurrency)
	}

	for _, acct := range active {
		creds := resolutions[acct.ID]
		for _, region := range regions {
			unit := Unit{Account: acct, Region: region}

			if !creds.Usable() {
				mu.Lock()
				res.Failures = append(res.Failures, UnitError{
					AccountID: acct.ID,
					Region:    region,
					Err:       fmt.Errorf("credentials unavailable: %s", creds.Reason),
				})
				mu.Unlock()
				continue
			}

			wg.Add(1)
			go func(unit Unit, creds identity.Resolution) {
				defer wg.Done()
				if sem != nil {
					sem <- struct{}{}
					defer func() { <-sem }()
				}

				items, err := runFetch(ctx, fetch, unit, creds)
				if err != nil {
					logger.Warn().
						Str("account_id", unit.Account.ID).
						Str("region", unit.Region).
						Err(err).
						Msg("unit fetch failed")
					mu.Lock()
					res.Failures = append(res.Failures, UnitError{AccountID: unit.Account.ID, Region: unit.Region, Err: err})
					mu.Unlock()
					return
				}

				mu.Lock()
				res.Items = append(res.Items, items...)
				mu.Unlock()
			}(unit, creds)
		}
	}

	wg.Wait()
	return res
}

// runFetch shields the run from a panicking fetch.
func runFetch[T any](ctx context.Context, fetch FetchFunc[T], unit Unit, creds identity.Resolution) (items []T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("fetch panicked: %v", p)
		}
	}()
	return fetch(ctx, unit, creds)
}
