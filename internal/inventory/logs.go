package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/ebellavance/aws-org-cli-sub000/internal/fanout"
	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/paginate"
)

// LogGroup is one CloudWatch Logs log group. RetentionDays zero means
// the group never expires.
type LogGroup struct {
	AccountID     string `json:"account_id"`
	AccountName   string `json:"account_name"`
	Region        string `json:"region"`
	Name          string `json:"name"`
	ARN           string `json:"arn,omitempty"`
	RetentionDays int32  `json:"retention_days,omitempty"`
	StoredBytes   int64  `json:"stored_bytes"`
	Created       string `json:"created,omitempty"`
}

// LogGroups lists CloudWatch Logs log groups in a unit.
func (l *Lister) LogGroups() fanout.FetchFunc[LogGroup] {
	return func(ctx context.Context, unit fanout.Unit, creds identity.Resolution) ([]LogGroup, error) {
		client := l.factory.CloudWatchLogsClient(creds, unit.Region)
		return paginate.All(ctx, func(ctx context.Context, cursor *string) ([]LogGroup, *string, error) {
			l.factory.WaitForService("logs")
			out, err := client.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{NextToken: cursor})
			if err != nil {
				return nil, nil, fmt.Errorf("DescribeLogGroups: %w", err)
			}
			page := make([]LogGroup, 0, len(out.LogGroups))
			for _, group := range out.LogGroups {
				page = append(page, LogGroup{
					AccountID:     unit.Account.ID,
					AccountName:   unit.Account.Name,
					Region:        unit.Region,
					Name:          aws.ToString(group.LogGroupName),
					ARN:           aws.ToString(group.Arn),
					RetentionDays: aws.ToInt32(group.RetentionInDays),
					StoredBytes:   aws.ToInt64(group.StoredBytes),
					Created:       formatEpochMillis(group.CreationTime),
				})
			}
			return page, out.NextToken, nil
		})
	}
}

// formatEpochMillis renders the millisecond epoch timestamps the Logs
// API uses, empty when absent.
func formatEpochMillis(millis *int64) string {
	if millis == nil {
		return ""
	}
	return time.UnixMilli(*millis).UTC().Format("2006-01-02 15:04")
}
