package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ebellavance/aws-org-cli-sub000/internal/fanout"
	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/paginate"
)

// S3Bucket is one bucket with its home region. Region carries the
// sentinel "unknown" when the location lookup fails; the bucket itself
// still counts.
type S3Bucket struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	Region      string `json:"region"`
	Name        string `json:"name"`
	Created     string `json:"created,omitempty"`
}

// Buckets lists every bucket of an account and resolves each bucket's
// home region. Bucket listings are account-global, so the kind runs as
// a single unit per account.
func (l *Lister) Buckets() fanout.FetchFunc[S3Bucket] {
	return func(ctx context.Context, unit fanout.Unit, creds identity.Resolution) ([]S3Bucket, error) {
		client := l.factory.S3Client(creds, unit.Region)
		return paginate.All(ctx, func(ctx context.Context, cursor *string) ([]S3Bucket, *string, error) {
			l.factory.WaitForService("s3")
			out, err := client.ListBuckets(ctx, &s3.ListBucketsInput{ContinuationToken: cursor})
			if err != nil {
				return nil, nil, fmt.Errorf("ListBuckets: %w", err)
			}
			page := make([]S3Bucket, 0, len(out.Buckets))
			for _, bucket := range out.Buckets {
				name := aws.ToString(bucket.Name)
				region, err := l.bucketRegion(ctx, client, name)
				if err != nil {
					l.logger.Warn().
						Str("account_id", unit.Account.ID).
						Str("bucket", name).
						Err(err).
						Msg("bucket region lookup failed")
					region = "unknown"
				}
				page = append(page, S3Bucket{
					AccountID:   unit.Account.ID,
					AccountName: unit.Account.Name,
					Region:      region,
					Name:        name,
					Created:     formatTime(bucket.CreationDate),
				})
			}
			return page, out.ContinuationToken, nil
		})
	}
}

// bucketRegion resolves a bucket's home region. The location API
// reports the us-east-1 home as an empty constraint.
func (l *Lister) bucketRegion(ctx context.Context, client *s3.Client, name string) (string, error) {
	l.factory.WaitForService("s3")
	out, err := client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("GetBucketLocation: %w", err)
	}
	if out.LocationConstraint == "" {
		return "us-east-1", nil
	}
	return string(out.LocationConstraint), nil
}
