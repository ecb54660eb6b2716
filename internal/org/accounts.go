// Package org discovers the accounts of the AWS Organization and provides
// the account domain types the rest of the tool works in.
package org

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/organizations/types"
)

// AccountStatus is the lifecycle status of an organization account.
type AccountStatus string

const (
	StatusActive    AccountStatus = "ACTIVE"
	StatusSuspended AccountStatus = "SUSPENDED"
	StatusPending   AccountStatus = "PENDING"
	StatusOther     AccountStatus = "OTHER"
)

// Account is an immutable snapshot of one organization account, fetched once
// per run.
type Account struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Status AccountStatus `json:"status"`
}

// Active reports whether the account is eligible for fan-out.
func (a Account) Active() bool {
	return a.Status == StatusActive
}

// AccountSet indexes accounts by ID for membership checks.
type AccountSet map[string]Account

// NewAccountSet builds a set from a slice of accounts.
func NewAccountSet(accounts []Account) AccountSet {
	set := make(AccountSet, len(accounts))
	for _, a := range accounts {
		set[a.ID] = a
	}
	return set
}

// Get returns the account with the given ID, if present.
func (s AccountSet) Get(id string) (Account, bool) {
	a, ok := s[id]
	return a, ok
}

// Contains reports whether an account with the given ID is in the set.
func (s AccountSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// ListAccounts enumerates every account in the organization. The caller must
// hold organizations:ListAccounts on the management or a delegated admin
// account; a failure here aborts the run before any fan-out starts.
func ListAccounts(ctx context.Context, client organizations.ListAccountsAPIClient) ([]Account, error) {
	var accounts []Account

	paginator := organizations.NewListAccountsPaginator(client, &organizations.ListAccountsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing organization accounts: %w", err)
		}
		for _, a := range page.Accounts {
			accounts = append(accounts, Account{
				ID:     aws.ToString(a.Id),
				Name:   aws.ToString(a.Name),
				Status: statusFrom(a.Status),
			})
		}
	}

	return accounts, nil
}

func statusFrom(s types.AccountStatus) AccountStatus {
	switch s {
	case types.AccountStatusActive:
		return StatusActive
	case types.AccountStatusSuspended:
		return StatusSuspended
	case types.AccountStatusPendingClosure:
		return StatusPending
	default:
		return StatusOther
	}
}
