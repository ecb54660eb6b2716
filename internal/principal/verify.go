package principal

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/org"
)

// IAMLookupAPI is the IAM surface existence checks need.
type IAMLookupAPI interface {
	GetUser(ctx context.Context, params *iam.GetUserInput, optFns ...func(*iam.Options)) (*iam.GetUserOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	GetGroup(ctx context.Context, params *iam.GetGroupInput, optFns ...func(*iam.Options)) (*iam.GetGroupOutput, error)
}

// IAMClientFunc builds an IAM client for the account a resolution
// belongs to. It is invoked once per lookup, so rate limiting can hang
// off it.
type IAMClientFunc func(res identity.Resolution) IAMLookupAPI

// CredentialResolver is the broker surface the verifier needs.
type CredentialResolver interface {
	Resolve(ctx context.Context, accountID, roleName string) identity.Resolution
}

// VerificationResult is the outcome of checking one principal. Exists
// and Err are independent: a clean "not found" has no error, while a
// lookup that could not be completed reports Exists=false with the
// failure attached.
type VerificationResult struct {
	Principal Principal
	Exists    bool
	Err       error
}

// VerifierOptions configure existence checking.
type VerifierOptions struct {
	// CurrentAccountID is the caller's own account.
	CurrentAccountID string
	// RoleName is assumed in other accounts for IAM lookups.
	RoleName string
	// CrossAccount enables lookups in accounts other than the caller's.
	// When disabled, such principals come back unverified with an
	// explanatory error.
	CrossAccount bool
}

// Verifier checks classified principals against the organization's
// accounts and, for IAM principals, against the owning account's IAM
// service. Delegated credentials come from the shared broker, so
// verifying many principals of one account costs one role assumption.
type Verifier struct {
	resolver CredentialResolver
	clients  IAMClientFunc
	accounts org.AccountSet
	opts     VerifierOptions
	logger   zerolog.Logger
}

// NewVerifier wires a verifier to the broker and the loaded account set.
func NewVerifier(resolver CredentialResolver, clients IAMClientFunc, accounts org.AccountSet, opts VerifierOptions, logger zerolog.Logger) *Verifier {
	return &Verifier{
		resolver: resolver,
		clients:  clients,
		accounts: accounts,
		opts:     opts,
		logger:   logger.With().Str("component", "verifier").Logger(),
	}
}

// Verify checks a single principal. Wildcards, service principals,
// origin access identities and service ARNs exist by construction.
// Account principals are checked against the loaded account set without
// any network call. IAM principals are looked up in their owning
// account.
func (v *Verifier) Verify(ctx context.Context, p Principal) VerificationResult {
	switch p.Kind {
	case KindWildcard, KindService, KindCloudFrontOAI, KindServiceARN:
		return VerificationResult{Principal: p, Exists: true}

	case KindAWSAccount:
		return VerificationResult{Principal: p, Exists: v.accounts.Contains(p.AccountID)}

	case KindIAMUser, KindIAMRole, KindIAMGroup:
		return v.verifyIAM(ctx, p)

	default:
		return VerificationResult{
			Principal: p,
			Exists:    false,
			Err:       fmt.Errorf("principal kind %s cannot be verified", p.Kind),
		}
	}
}

// VerifyAll checks principals in order, one result per input.
func (v *Verifier) VerifyAll(ctx context.Context, principals []Principal) []VerificationResult {
	results := make([]VerificationResult, 0, len(principals))
	for _, p := range principals {
		results = append(results, v.Verify(ctx, p))
	}
	return results
}

func (v *Verifier) verifyIAM(ctx context.Context, p Principal) VerificationResult {
	acct, ok := v.accounts.Get(p.AccountID)
	if !ok {
		return VerificationResult{
			Principal: p,
			Exists:    false,
			Err:       fmt.Errorf("account %s is not part of the organization", p.AccountID),
		}
	}
	if !acct.Active() {
		return VerificationResult{
			Principal: p,
			Exists:    false,
			Err:       fmt.Errorf("account %s is %s, not ACTIVE", p.AccountID, acct.Status),
		}
	}

	if !v.opts.CrossAccount && p.AccountID != v.opts.CurrentAccountID {
		return VerificationResult{
			Principal: p,
			Exists:    false,
			Err:       fmt.Errorf("principal lives in account %s and cross-account verification is disabled", p.AccountID),
		}
	}

	res := v.resolver.Resolve(ctx, p.AccountID, v.opts.RoleName)
	if !res.Usable() {
		return VerificationResult{
			Principal: p,
			Exists:    false,
			Err:       fmt.Errorf("credentials unavailable for account %s: %s", p.AccountID, res.Reason),
		}
	}

	name := lookupName(p.Raw)
	exists, err := v.lookup(ctx, v.clients(res), p.Kind, name)
	if err != nil {
		v.logger.Warn().
			Str("account_id", p.AccountID).
			Str("principal", p.Raw).
			Err(err).
			Msg("iam lookup failed")
		return VerificationResult{Principal: p, Exists: false, Err: err}
	}
	return VerificationResult{Principal: p, Exists: exists}
}

// lookup performs the existence check. A clean NoSuchEntity answer is
// (false, nil); any other failure is returned to the caller.
func (v *Verifier) lookup(ctx context.Context, client IAMLookupAPI, kind Kind, name string) (bool, error) {
	var err error
	switch kind {
	case KindIAMUser:
		_, err = client.GetUser(ctx, &iam.GetUserInput{UserName: aws.String(name)})
	case KindIAMRole:
		_, err = client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	case KindIAMGroup:
		_, err = client.GetGroup(ctx, &iam.GetGroupInput{GroupName: aws.String(name)})
	}
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("looking up %s %s: %w", kind, name, err)
	}
	return true, nil
}

// lookupName extracts the name IAM keys on: the terminal path segment
// of the ARN's resource part.
func lookupName(raw string) string {
	if a, ok := parseARN(raw); ok {
		return resourceName(a.Resource)
	}
	return raw
}

func isNotFound(err error) bool {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode() == "NoSuchEntity"
	}
	return false
}
