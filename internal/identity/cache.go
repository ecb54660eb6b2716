// Package identity resolves who the tool is running as and brokers
// short-lived delegated credentials for the other accounts of the
// organization.
package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// CallerIdentityAPI is the STS surface the identity cache needs.
type CallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Identity describes the principal behind the ambient credentials.
type Identity struct {
	AccountID string `json:"account_id"`
	ARN       string `json:"arn"`
	UserID    string `json:"user_id"`
}

// Cache memoizes the ambient caller identity for the lifetime of a run.
// There is exactly one ambient identity per run, so the first lookup is
// the only one ever performed, whether it succeeded or failed.
type Cache struct {
	client CallerIdentityAPI

	mu       sync.Mutex
	resolved bool
	identity Identity
	err      error
}

// NewCache creates an identity cache backed by the given STS client.
func NewCache(client CallerIdentityAPI) *Cache {
	return &Cache{client: client}
}

// Current returns the memoized caller identity, resolving it on first use.
func (c *Cache) Current(ctx context.Context) (Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolved {
		return c.identity, c.err
	}

	out, err := c.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	c.resolved = true
	if err != nil {
		c.err = fmt.Errorf("resolving caller identity: %w", err)
		return Identity{}, c.err
	}

	c.identity = Identity{
		AccountID: aws.ToString(out.Account),
		ARN:       aws.ToString(out.Arn),
		UserID:    aws.ToString(out.UserId),
	}
	return c.identity, nil
}

// CurrentAccountID returns the account ID of the ambient identity.
func (c *Cache) CurrentAccountID(ctx context.Context) (string, error) {
	id, err := c.Current(ctx)
	if err != nil {
		return "", err
	}
	return id.AccountID, nil
}
