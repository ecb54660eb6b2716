// Package aws builds rate-limited AWS SDK v2 service clients for the
// accounts and regions a run touches.
package aws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/opensearch"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"

	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
)

// Options configure the client factory.
type Options struct {
	// Region is the home region: the default for clients and the region
	// global services are addressed through.
	Region string
	// Profile selects a shared-config profile for the ambient chain.
	Profile string
	// RatePerSecond caps API calls per service.
	RatePerSecond int
}

// ClientFactory creates rate-limited AWS service clients. The ambient
// credential chain is loaded once; per-account delegated credentials
// are layered on top of it per client.
type ClientFactory struct {
	base        aws.Config
	rateLimiter *RateLimiter
	logger      zerolog.Logger
}

// NewClientFactory loads the ambient credential chain and returns a
// factory bound to it.
func NewClientFactory(ctx context.Context, opts Options, logger zerolog.Logger) (*ClientFactory, error) {
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 10
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}

	base, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	base.RetryMaxAttempts = 5

	return &ClientFactory{
		base:        base,
		rateLimiter: NewRateLimiter(opts.RatePerSecond),
		logger:      logger,
	}, nil
}

// clientConfig derives the SDK config for one unit: the ambient chain
// for the caller's own account, static delegated credentials otherwise.
func (f *ClientFactory) clientConfig(res identity.Resolution, region string) aws.Config {
	cfg := f.base.Copy()
	if region != "" {
		cfg.Region = region
	}
	if res.Kind == identity.ResolutionDelegated {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(
			res.Creds.AccessKeyID,
			res.Creds.SecretAccessKey,
			res.Creds.SessionToken,
		)
		f.logger.Debug().
			Str("account_id", res.AccountID).
			Str("region", cfg.Region).
			Msg("using delegated credentials")
	}
	return cfg
}

// WaitForService blocks until the rate limit allows another call to the
// named service.
func (f *ClientFactory) WaitForService(service string) {
	f.rateLimiter.Wait(service)
}

// --- Service client factories ---

// STSClient runs on the ambient chain; identity resolution and role
// assumption always originate from the caller's own credentials.
func (f *ClientFactory) STSClient() *sts.Client {
	return sts.NewFromConfig(f.base)
}

// OrganizationsClient runs on the ambient chain; account discovery is a
// management-account operation.
func (f *ClientFactory) OrganizationsClient() *organizations.Client {
	return organizations.NewFromConfig(f.base)
}

// IAMClient addresses the global IAM endpoint through the home region.
func (f *ClientFactory) IAMClient(res identity.Resolution) *iam.Client {
	return iam.NewFromConfig(f.clientConfig(res, ""))
}

func (f *ClientFactory) S3Client(res identity.Resolution, region string) *s3.Client {
	return s3.NewFromConfig(f.clientConfig(res, region))
}

func (f *ClientFactory) EC2Client(res identity.Resolution, region string) *ec2.Client {
	return ec2.NewFromConfig(f.clientConfig(res, region))
}

func (f *ClientFactory) RDSClient(res identity.Resolution, region string) *rds.Client {
	return rds.NewFromConfig(f.clientConfig(res, region))
}

func (f *ClientFactory) LambdaClient(res identity.Resolution, region string) *lambda.Client {
	return lambda.NewFromConfig(f.clientConfig(res, region))
}

func (f *ClientFactory) KMSClient(res identity.Resolution, region string) *kms.Client {
	return kms.NewFromConfig(f.clientConfig(res, region))
}

func (f *ClientFactory) SecretsManagerClient(res identity.Resolution, region string) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(f.clientConfig(res, region))
}

func (f *ClientFactory) SSMClient(res identity.Resolution, region string) *ssm.Client {
	return ssm.NewFromConfig(f.clientConfig(res, region))
}

func (f *ClientFactory) CloudTrailClient(res identity.Resolution, region string) *cloudtrail.Client {
	return cloudtrail.NewFromConfig(f.clientConfig(res, region))
}

func (f *ClientFactory) CloudWatchLogsClient(res identity.Resolution, region string) *cloudwatchlogs.Client {
	return cloudwatchlogs.NewFromConfig(f.clientConfig(res, region))
}

func (f *ClientFactory) OpenSearchClient(res identity.Resolution, region string) *opensearch.Client {
	return opensearch.NewFromConfig(f.clientConfig(res, region))
}

func (f *ClientFactory) ELBClient(res identity.Resolution, region string) *elasticloadbalancingv2.Client {
	return elasticloadbalancingv2.NewFromConfig(f.clientConfig(res, region))
}

// --- Rate Limiter ---

// RateLimiter spaces calls per service so a fan-out across many
// accounts does not trip API throttling.
type RateLimiter struct {
	mu         sync.Mutex
	ratePerSec int
	lastCall   map[string]time.Time
}

func NewRateLimiter(ratePerSec int) *RateLimiter {
	return &RateLimiter{
		ratePerSec: ratePerSec,
		lastCall:   make(map[string]time.Time),
	}
}

func (rl *RateLimiter) Wait(service string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	minInterval := time.Second / time.Duration(rl.ratePerSec)
	last, ok := rl.lastCall[service]
	if ok {
		elapsed := time.Since(last)
		if elapsed < minInterval {
			time.Sleep(minInterval - elapsed)
		}
	}
	rl.lastCall[service] = time.Now()
}
