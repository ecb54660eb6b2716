package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// AssumeRoleAPI is the STS surface the broker needs.
type AssumeRoleAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Credentials is a set of temporary delegated credentials.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expires         time.Time
}

// ResolutionKind says how credentials for an account were obtained.
type ResolutionKind string

const (
	// ResolutionAmbient means the account is the caller's own; the
	// ambient credential chain is used as-is.
	ResolutionAmbient ResolutionKind = "ambient"
	// ResolutionDelegated means a role in the target account was assumed.
	ResolutionDelegated ResolutionKind = "delegated"
	// ResolutionUnavailable means no credentials could be obtained.
	ResolutionUnavailable ResolutionKind = "unavailable"
)

// Resolution is the broker's answer for one account. A resolution is
// always produced; accounts the broker cannot reach come back as
// ResolutionUnavailable with the reason attached.
type Resolution struct {
	Kind      ResolutionKind
	AccountID string
	Creds     Credentials
	Reason    string
}

// Usable reports whether the resolution carries workable credentials.
func (r Resolution) Usable() bool {
	return r.Kind != ResolutionUnavailable
}

// BrokerOptions configure how roles are assumed in member accounts.
type BrokerOptions struct {
	// Partition is the ARN partition for constructed role ARNs ("aws",
	// "aws-us-gov", "aws-cn").
	Partition string
	// ExternalID, when set, is attached to every AssumeRole call.
	ExternalID string
	// Duration is the requested session lifetime. Sessions only need to
	// outlive a single run, so this stays short.
	Duration time.Duration
}

// Broker hands out credentials for member accounts. Each account is
// resolved at most once per broker lifetime; the outcome, including
// failure, is cached so repeated and concurrent requests for the same
// account never trigger additional AssumeRole calls.
type Broker struct {
	client     AssumeRoleAPI
	ids        *Cache
	logger     zerolog.Logger
	partition  string
	externalID string
	duration   time.Duration

	mu    sync.Mutex
	cache map[string]Resolution
	group singleflight.Group
}

// NewBroker creates a credential broker on top of the identity cache.
func NewBroker(client AssumeRoleAPI, ids *Cache, opts BrokerOptions, logger zerolog.Logger) *Broker {
	if opts.Partition == "" {
		opts.Partition = "aws"
	}
	if opts.Duration <= 0 {
		opts.Duration = 15 * time.Minute
	}
	return &Broker{
		client:     client,
		ids:        ids,
		logger:     logger.With().Str("component", "broker").Logger(),
		partition:  opts.Partition,
		externalID: opts.ExternalID,
		duration:   opts.Duration,
		cache:      make(map[string]Resolution),
	}
}

// Resolve obtains credentials for accountID, assuming roleName there
// when the account is not the caller's own. Resolve never fails: if the
// identity lookup or the role assumption fails, the returned resolution
// is ResolutionUnavailable and the failure has been logged.
func (b *Broker) Resolve(ctx context.Context, accountID, roleName string) Resolution {
	own, err := b.ids.CurrentAccountID(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Str("account_id", accountID).Msg("caller identity unavailable, cannot broker credentials")
		return Resolution{Kind: ResolutionUnavailable, AccountID: accountID, Reason: fmt.Sprintf("caller identity unavailable: %v", err)}
	}
	if accountID == own {
		return Resolution{Kind: ResolutionAmbient, AccountID: accountID}
	}

	if res, ok := b.cached(accountID); ok {
		return res
	}

	v, _, _ := b.group.Do(accountID, func() (interface{}, error) {
		if res, ok := b.cached(accountID); ok {
			return res, nil
		}
		res := b.assume(ctx, accountID, roleName)
		b.store(accountID, res)
		return res, nil
	})
	return v.(Resolution)
}

func (b *Broker) cached(accountID string) (Resolution, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	res, ok := b.cache[accountID]
	return res, ok
}

// store records the first resolution for an account and ignores the rest.
func (b *Broker) store(accountID string, res Resolution) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.cache[accountID]; !ok {
		b.cache[accountID] = res
	}
}

func (b *Broker) assume(ctx context.Context, accountID, roleName string) Resolution {
	roleARN := fmt.Sprintf("arn:%s:iam::%s:role/%s", b.partition, accountID, roleName)
	session := sessionName()

	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(session),
		DurationSeconds: aws.Int32(int32(b.duration.Seconds())),
	}
	if b.externalID != "" {
		input.ExternalId = aws.String(b.externalID)
	}

	out, err := b.client.AssumeRole(ctx, input)
	if err != nil {
		b.logger.Warn().
			Str("account_id", accountID).
			Str("role_arn", roleARN).
			Err(err).
			Msg("role assumption failed, account will be skipped")
		return Resolution{Kind: ResolutionUnavailable, AccountID: accountID, Reason: fmt.Sprintf("assuming %s: %v", roleARN, err)}
	}
	if out.Credentials == nil {
		return Resolution{Kind: ResolutionUnavailable, AccountID: accountID, Reason: "assume-role response carried no credentials"}
	}

	b.logger.Debug().
		Str("account_id", accountID).
		Str("role_arn", roleARN).
		Str("session_name", session).
		Time("expires", aws.ToTime(out.Credentials.Expiration)).
		Msg("delegated credentials issued")

	return Resolution{
		Kind:      ResolutionDelegated,
		AccountID: accountID,
		Creds: Credentials{
			AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
			SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
			SessionToken:    aws.ToString(out.Credentials.SessionToken),
			Expires:         aws.ToTime(out.Credentials.Expiration),
		},
	}
}

// sessionName builds a role session name unique per call and traceable
// back to this tool and the moment of assumption.
func sessionName() string {
	return fmt.Sprintf("aws-org-cli-%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}
