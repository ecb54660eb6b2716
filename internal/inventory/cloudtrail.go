package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"

	"github.com/ebellavance/aws-org-cli-sub000/internal/fanout"
	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
)

// Trail is one CloudTrail trail, reported from its home region only.
type Trail struct {
	AccountID     string `json:"account_id"`
	AccountName   string `json:"account_name"`
	Region        string `json:"region"`
	Name          string `json:"name"`
	ARN           string `json:"arn,omitempty"`
	S3Bucket      string `json:"s3_bucket,omitempty"`
	MultiRegion   bool   `json:"multi_region"`
	Organization  bool   `json:"organization"`
	LogValidation bool   `json:"log_validation"`
	KMSKeyID      string `json:"kms_key_id,omitempty"`
}

// Trails lists CloudTrail trails in a unit. DescribeTrails echoes
// multi-region trails into every region, so each trail is kept only in
// the unit matching its home region.
func (l *Lister) Trails() fanout.FetchFunc[Trail] {
	return func(ctx context.Context, unit fanout.Unit, creds identity.Resolution) ([]Trail, error) {
		client := l.factory.CloudTrailClient(creds, unit.Region)

		l.factory.WaitForService("cloudtrail")
		out, err := client.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{})
		if err != nil {
			return nil, fmt.Errorf("DescribeTrails: %w", err)
		}

		var trails []Trail
		for _, trail := range out.TrailList {
			if aws.ToString(trail.HomeRegion) != unit.Region {
				continue
			}
			trails = append(trails, Trail{
				AccountID:     unit.Account.ID,
				AccountName:   unit.Account.Name,
				Region:        unit.Region,
				Name:          aws.ToString(trail.Name),
				ARN:           aws.ToString(trail.TrailARN),
				S3Bucket:      aws.ToString(trail.S3BucketName),
				MultiRegion:   aws.ToBool(trail.IsMultiRegionTrail),
				Organization:  aws.ToBool(trail.IsOrganizationTrail),
				LogValidation: aws.ToBool(trail.LogFileValidationEnabled),
				KMSKeyID:      aws.ToString(trail.KmsKeyId),
			})
		}
		return trails, nil
	}
}
