package principal

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/org"
)

type verifyResolver struct {
	mu          sync.Mutex
	calls       int
	own         string
	unavailable bool
}

func (r *verifyResolver) Resolve(ctx context.Context, accountID, roleName string) identity.Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.unavailable {
		return identity.Resolution{Kind: identity.ResolutionUnavailable, AccountID: accountID, Reason: "AccessDenied"}
	}
	if accountID == r.own {
		return identity.Resolution{Kind: identity.ResolutionAmbient, AccountID: accountID}
	}
	return identity.Resolution{
		Kind:      identity.ResolutionDelegated,
		AccountID: accountID,
		Creds:     identity.Credentials{AccessKeyID: "ASIA" + accountID},
	}
}

type iamStub struct {
	mu     sync.Mutex
	users  []string
	roles  []string
	groups []string
	err    error
}

func (s *iamStub) GetUser(ctx context.Context, params *iam.GetUserInput, optFns ...func(*iam.Options)) (*iam.GetUserOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, aws.ToString(params.UserName))
	if s.err != nil {
		return nil, s.err
	}
	return &iam.GetUserOutput{}, nil
}

func (s *iamStub) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles = append(s.roles, aws.ToString(params.RoleName))
	if s.err != nil {
		return nil, s.err
	}
	return &iam.GetRoleOutput{}, nil
}

func (s *iamStub) GetGroup(ctx context.Context, params *iam.GetGroupInput, optFns ...func(*iam.Options)) (*iam.GetGroupOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = append(s.groups, aws.ToString(params.GroupName))
	if s.err != nil {
		return nil, s.err
	}
	return &iam.GetGroupOutput{}, nil
}

func (s *iamStub) lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users) + len(s.roles) + len(s.groups)
}

func testAccounts() org.AccountSet {
	return org.NewAccountSet([]org.Account{
		{ID: "111122223333", Name: "management", Status: org.StatusActive},
		{ID: "444455556666", Name: "workloads", Status: org.StatusActive},
		{ID: "999988887777", Name: "retired", Status: org.StatusSuspended},
	})
}

func testVerifier(resolver *verifyResolver, stub *iamStub, crossAccount bool) *Verifier {
	clients := func(res identity.Resolution) IAMLookupAPI { return stub }
	opts := VerifierOptions{
		CurrentAccountID: "111122223333",
		RoleName:         "AuditRole",
		CrossAccount:     crossAccount,
	}
	return NewVerifier(resolver, clients, testAccounts(), opts, zerolog.Nop())
}

func TestVerifyTrivialKindsNeedNoNetwork(t *testing.T) {
	resolver := &verifyResolver{own: "111122223333"}
	stub := &iamStub{}
	v := testVerifier(resolver, stub, true)

	for _, p := range []Principal{
		{Raw: "*", Kind: KindWildcard},
		{Raw: "lambda.amazonaws.com", Kind: KindService, Display: "lambda"},
		{Raw: "arn:aws:iam::cloudfront:user/CloudFront Origin Access Identity E2QWRUHAPOMQZL", Kind: KindCloudFrontOAI},
		{Raw: "arn:aws:s3:::config-bucket", Kind: KindServiceARN},
	} {
		res := v.Verify(context.Background(), p)
		if !res.Exists {
			t.Errorf("%s: expected exists=true", p.Kind)
		}
		if res.Err != nil {
			t.Errorf("%s: unexpected error %v", p.Kind, res.Err)
		}
	}

	if resolver.calls != 0 {
		t.Errorf("trivial kinds must not resolve credentials, got %d calls", resolver.calls)
	}
	if stub.lookups() != 0 {
		t.Errorf("trivial kinds must not hit IAM, got %d lookups", stub.lookups())
	}
}

func TestVerifyAccountMembership(t *testing.T) {
	resolver := &verifyResolver{own: "111122223333"}
	stub := &iamStub{}
	v := testVerifier(resolver, stub, true)

	in := v.Verify(context.Background(), Principal{Raw: "444455556666", Kind: KindAWSAccount, AccountID: "444455556666"})
	if !in.Exists || in.Err != nil {
		t.Errorf("member account: exists=%v err=%v", in.Exists, in.Err)
	}

	out := v.Verify(context.Background(), Principal{Raw: "999999999999", Kind: KindAWSAccount, AccountID: "999999999999"})
	if out.Exists {
		t.Error("unknown account must not exist")
	}
	if out.Err != nil {
		t.Errorf("membership miss is not an error, got %v", out.Err)
	}

	if resolver.calls != 0 || stub.lookups() != 0 {
		t.Error("account membership is a pure set check, no network allowed")
	}
}

func TestVerifyIAMUserFound(t *testing.T) {
	resolver := &verifyResolver{own: "111122223333"}
	stub := &iamStub{}
	v := testVerifier(resolver, stub, true)

	p := Classify("AWS", "arn:aws:iam::111122223333:user/auditor")
	res := v.Verify(context.Background(), p)

	if !res.Exists {
		t.Fatalf("expected exists=true, err=%v", res.Err)
	}
	if len(stub.users) != 1 || stub.users[0] != "auditor" {
		t.Errorf("expected GetUser(auditor), got %v", stub.users)
	}
}

func TestVerifyIAMRoleNotFoundIsClean(t *testing.T) {
	resolver := &verifyResolver{own: "111122223333"}
	stub := &iamStub{err: &smithy.GenericAPIError{Code: "NoSuchEntity", Message: "role not found"}}
	v := testVerifier(resolver, stub, true)

	p := Classify("AWS", "arn:aws:iam::111122223333:role/missing")
	res := v.Verify(context.Background(), p)

	if res.Exists {
		t.Error("expected exists=false for missing role")
	}
	if res.Err != nil {
		t.Errorf("NoSuchEntity is an expected outcome, not an error, got %v", res.Err)
	}
}

func TestVerifyIAMLookupFailureCarriesError(t *testing.T) {
	resolver := &verifyResolver{own: "111122223333"}
	stub := &iamStub{err: &smithy.GenericAPIError{Code: "AccessDenied", Message: "not authorized"}}
	v := testVerifier(resolver, stub, true)

	p := Classify("AWS", "arn:aws:iam::111122223333:group/admins")
	res := v.Verify(context.Background(), p)

	if res.Exists {
		t.Error("expected exists=false on lookup failure")
	}
	if res.Err == nil {
		t.Fatal("lookup failure must be distinguishable from a clean miss")
	}
	if !strings.Contains(res.Err.Error(), "AccessDenied") {
		t.Errorf("expected underlying error preserved, got %v", res.Err)
	}
}

func TestVerifyAccountOutsideOrganization(t *testing.T) {
	resolver := &verifyResolver{own: "111122223333"}
	stub := &iamStub{}
	v := testVerifier(resolver, stub, true)

	p := Classify("AWS", "arn:aws:iam::123456789012:user/stranger")
	res := v.Verify(context.Background(), p)

	if res.Exists {
		t.Error("expected exists=false")
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "not part of the organization") {
		t.Errorf("expected organization membership error, got %v", res.Err)
	}
	if resolver.calls != 0 {
		t.Error("no credentials should be resolved for accounts outside the organization")
	}
}

func TestVerifyInactiveAccount(t *testing.T) {
	resolver := &verifyResolver{own: "111122223333"}
	stub := &iamStub{}
	v := testVerifier(resolver, stub, true)

	p := Classify("AWS", "arn:aws:iam::999988887777:user/ghost")
	res := v.Verify(context.Background(), p)

	if res.Exists {
		t.Error("expected exists=false")
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "SUSPENDED") {
		t.Errorf("expected status error, got %v", res.Err)
	}
	if resolver.calls != 0 || stub.lookups() != 0 {
		t.Error("inactive accounts must not be looked up")
	}
}

func TestVerifyCrossAccountDisabled(t *testing.T) {
	resolver := &verifyResolver{own: "111122223333"}
	stub := &iamStub{}
	v := testVerifier(resolver, stub, false)

	p := Classify("AWS", "arn:aws:iam::444455556666:role/AppRole")
	res := v.Verify(context.Background(), p)

	if res.Exists {
		t.Error("expected exists=false")
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "cross-account verification is disabled") {
		t.Errorf("expected cross-account error, got %v", res.Err)
	}
	if resolver.calls != 0 {
		t.Error("disabled cross-account verification must not resolve credentials")
	}

	// The caller's own account is still verifiable.
	own := v.Verify(context.Background(), Classify("AWS", "arn:aws:iam::111122223333:user/auditor"))
	if !own.Exists {
		t.Errorf("own-account principal should verify, err=%v", own.Err)
	}
}

func TestVerifyCredentialsUnavailable(t *testing.T) {
	resolver := &verifyResolver{own: "111122223333", unavailable: true}
	stub := &iamStub{}
	v := testVerifier(resolver, stub, true)

	p := Classify("AWS", "arn:aws:iam::444455556666:role/AppRole")
	res := v.Verify(context.Background(), p)

	if res.Exists {
		t.Error("expected exists=false")
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "credentials unavailable") {
		t.Errorf("expected credential error, got %v", res.Err)
	}
	if stub.lookups() != 0 {
		t.Error("no lookup without credentials")
	}
}

func TestVerifyUsesTerminalPathSegment(t *testing.T) {
	resolver := &verifyResolver{own: "111122223333"}
	stub := &iamStub{}
	v := testVerifier(resolver, stub, true)

	p := Classify("AWS", "arn:aws:iam::111122223333:role/service-role/deep/AppRole")
	v.Verify(context.Background(), p)

	if len(stub.roles) != 1 || stub.roles[0] != "AppRole" {
		t.Errorf("expected GetRole(AppRole), got %v", stub.roles)
	}
}

func TestVerifyUnclassifiableKinds(t *testing.T) {
	resolver := &verifyResolver{own: "111122223333"}
	stub := &iamStub{}
	v := testVerifier(resolver, stub, true)

	for _, p := range []Principal{
		{Raw: "12345", Kind: KindUnknownIAM},
		{Raw: "garbage", Kind: KindOpaque},
	} {
		res := v.Verify(context.Background(), p)
		if res.Exists {
			t.Errorf("%s: expected exists=false", p.Kind)
		}
		if res.Err == nil {
			t.Errorf("%s: expected an explanatory error", p.Kind)
		}
	}
}

func TestVerifyAllPreservesOrder(t *testing.T) {
	resolver := &verifyResolver{own: "111122223333"}
	stub := &iamStub{}
	v := testVerifier(resolver, stub, true)

	principals := []Principal{
		Classify("AWS", "*"),
		Classify("AWS", "444455556666"),
		Classify("AWS", "arn:aws:iam::111122223333:user/auditor"),
	}
	results := v.VerifyAll(context.Background(), principals)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Principal.Raw != principals[i].Raw {
			t.Errorf("result %d out of order: %s", i, res.Principal.Raw)
		}
		if !res.Exists {
			t.Errorf("result %d: expected exists=true, err=%v", i, res.Err)
		}
	}
}
