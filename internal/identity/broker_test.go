package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/rs/zerolog"
)

type assumeRoleStub struct {
	mu     sync.Mutex
	calls  int
	inputs []sts.AssumeRoleInput
	err    error
}

func (s *assumeRoleStub) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.inputs = append(s.inputs, *params)
	if s.err != nil {
		return nil, s.err
	}
	return &sts.AssumeRoleOutput{
		Credentials: &types.Credentials{
			AccessKeyId:     aws.String("ASIADELEGATED"),
			SecretAccessKey: aws.String("delegated-secret"),
			SessionToken:    aws.String("delegated-token"),
			Expiration:      aws.Time(time.Now().Add(15 * time.Minute)),
		},
	}, nil
}

func testIdentityCache(accountID string) *Cache {
	return NewCache(&callerIdentityStub{
		out: &sts.GetCallerIdentityOutput{
			Account: aws.String(accountID),
			Arn:     aws.String("arn:aws:iam::" + accountID + ":user/auditor"),
			UserId:  aws.String("AIDAEXAMPLE"),
		},
	})
}

func TestResolveOwnAccountUsesAmbient(t *testing.T) {
	stub := &assumeRoleStub{}
	broker := NewBroker(stub, testIdentityCache("111122223333"), BrokerOptions{}, zerolog.Nop())

	res := broker.Resolve(context.Background(), "111122223333", "AuditRole")
	if res.Kind != ResolutionAmbient {
		t.Fatalf("expected ambient resolution, got %s", res.Kind)
	}
	if !res.Usable() {
		t.Error("ambient resolution should be usable")
	}
	if stub.calls != 0 {
		t.Errorf("own account must not trigger AssumeRole, got %d calls", stub.calls)
	}
}

func TestResolveDelegatedOncePerAccount(t *testing.T) {
	stub := &assumeRoleStub{}
	broker := NewBroker(stub, testIdentityCache("111122223333"), BrokerOptions{Duration: 900 * time.Second}, zerolog.Nop())

	for i := 0; i < 4; i++ {
		res := broker.Resolve(context.Background(), "444455556666", "AuditRole")
		if res.Kind != ResolutionDelegated {
			t.Fatalf("expected delegated resolution, got %s", res.Kind)
		}
		if res.Creds.AccessKeyID != "ASIADELEGATED" {
			t.Errorf("unexpected access key: %s", res.Creds.AccessKeyID)
		}
	}

	if stub.calls != 1 {
		t.Fatalf("expected 1 AssumeRole call for repeated resolutions, got %d", stub.calls)
	}

	in := stub.inputs[0]
	if got := aws.ToString(in.RoleArn); got != "arn:aws:iam::444455556666:role/AuditRole" {
		t.Errorf("unexpected role ARN: %s", got)
	}
	if got := aws.ToInt32(in.DurationSeconds); got != 900 {
		t.Errorf("expected 900s session, got %d", got)
	}
	if name := aws.ToString(in.RoleSessionName); !strings.HasPrefix(name, "aws-org-cli-") {
		t.Errorf("session name missing tool prefix: %s", name)
	}
}

func TestResolveSessionNamesUnique(t *testing.T) {
	stub := &assumeRoleStub{}
	broker := NewBroker(stub, testIdentityCache("111122223333"), BrokerOptions{}, zerolog.Nop())

	broker.Resolve(context.Background(), "222233334444", "AuditRole")
	broker.Resolve(context.Background(), "555566667777", "AuditRole")

	if len(stub.inputs) != 2 {
		t.Fatalf("expected 2 AssumeRole calls, got %d", len(stub.inputs))
	}
	a := aws.ToString(stub.inputs[0].RoleSessionName)
	b := aws.ToString(stub.inputs[1].RoleSessionName)
	if a == b {
		t.Errorf("session names must be unique, both were %s", a)
	}
}

func TestResolveFailureIsUnavailableAndCached(t *testing.T) {
	stub := &assumeRoleStub{err: errors.New("AccessDenied: not authorized to assume role")}
	broker := NewBroker(stub, testIdentityCache("111122223333"), BrokerOptions{}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		res := broker.Resolve(context.Background(), "444455556666", "AuditRole")
		if res.Kind != ResolutionUnavailable {
			t.Fatalf("expected unavailable resolution, got %s", res.Kind)
		}
		if res.Usable() {
			t.Error("unavailable resolution must not be usable")
		}
		if !strings.Contains(res.Reason, "AccessDenied") {
			t.Errorf("reason should carry the underlying error, got %q", res.Reason)
		}
	}

	if stub.calls != 1 {
		t.Errorf("failed assumption should be cached after 1 call, got %d", stub.calls)
	}
}

func TestResolveIdentityFailureIsUnavailable(t *testing.T) {
	cache := NewCache(&callerIdentityStub{err: errors.New("no credentials in chain")})
	stub := &assumeRoleStub{}
	broker := NewBroker(stub, cache, BrokerOptions{}, zerolog.Nop())

	res := broker.Resolve(context.Background(), "444455556666", "AuditRole")
	if res.Kind != ResolutionUnavailable {
		t.Fatalf("expected unavailable resolution, got %s", res.Kind)
	}
	if !strings.Contains(res.Reason, "caller identity unavailable") {
		t.Errorf("unexpected reason: %q", res.Reason)
	}
	if stub.calls != 0 {
		t.Errorf("AssumeRole must not be attempted without a caller identity, got %d calls", stub.calls)
	}
}

func TestResolveConcurrentSameAccountSingleCall(t *testing.T) {
	stub := &assumeRoleStub{}
	broker := NewBroker(stub, testIdentityCache("111122223333"), BrokerOptions{}, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := broker.Resolve(context.Background(), "444455556666", "AuditRole")
			if res.Kind != ResolutionDelegated {
				t.Errorf("expected delegated resolution, got %s", res.Kind)
			}
		}()
	}
	wg.Wait()

	if stub.calls != 1 {
		t.Errorf("expected 1 AssumeRole call under concurrency, got %d", stub.calls)
	}
}

func TestResolvePartitionAndExternalID(t *testing.T) {
	stub := &assumeRoleStub{}
	broker := NewBroker(stub, testIdentityCache("111122223333"), BrokerOptions{
		Partition:  "aws-us-gov",
		ExternalID: "org-audit-7431",
	}, zerolog.Nop())

	broker.Resolve(context.Background(), "444455556666", "AuditRole")

	if len(stub.inputs) != 1 {
		t.Fatalf("expected 1 AssumeRole call, got %d", len(stub.inputs))
	}
	in := stub.inputs[0]
	if got := aws.ToString(in.RoleArn); got != "arn:aws-us-gov:iam::444455556666:role/AuditRole" {
		t.Errorf("unexpected role ARN: %s", got)
	}
	if got := aws.ToString(in.ExternalId); got != "org-audit-7431" {
		t.Errorf("unexpected external ID: %s", got)
	}
}
