package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/ebellavance/aws-org-cli-sub000/internal/fanout"
	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/paginate"
)

// ManagedInstance is one instance registered with SSM, including
// hybrid machines outside EC2.
type ManagedInstance struct {
	AccountID    string `json:"account_id"`
	AccountName  string `json:"account_name"`
	Region       string `json:"region"`
	InstanceID   string `json:"instance_id"`
	ComputerName string `json:"computer_name,omitempty"`
	Platform     string `json:"platform,omitempty"`
	PlatformType string `json:"platform_type,omitempty"`
	AgentVersion string `json:"agent_version,omitempty"`
	PingStatus   string `json:"ping_status"`
	LastPing     string `json:"last_ping,omitempty"`
}

// ManagedInstances lists SSM managed instances in a unit.
func (l *Lister) ManagedInstances() fanout.FetchFunc[ManagedInstance] {
	return func(ctx context.Context, unit fanout.Unit, creds identity.Resolution) ([]ManagedInstance, error) {
		client := l.factory.SSMClient(creds, unit.Region)
		return paginate.All(ctx, func(ctx context.Context, cursor *string) ([]ManagedInstance, *string, error) {
			l.factory.WaitForService("ssm")
			out, err := client.DescribeInstanceInformation(ctx, &ssm.DescribeInstanceInformationInput{NextToken: cursor})
			if err != nil {
				return nil, nil, fmt.Errorf("DescribeInstanceInformation: %w", err)
			}
			page := make([]ManagedInstance, 0, len(out.InstanceInformationList))
			for _, info := range out.InstanceInformationList {
				page = append(page, ManagedInstance{
					AccountID:    unit.Account.ID,
					AccountName:  unit.Account.Name,
					Region:       unit.Region,
					InstanceID:   aws.ToString(info.InstanceId),
					ComputerName: aws.ToString(info.ComputerName),
					Platform:     aws.ToString(info.PlatformName),
					PlatformType: string(info.PlatformType),
					AgentVersion: aws.ToString(info.AgentVersion),
					PingStatus:   string(info.PingStatus),
					LastPing:     formatTime(info.LastPingDateTime),
				})
			}
			return page, out.NextToken, nil
		})
	}
}

// SSMParameter is Parameter Store listing metadata. Parameter values
// are never read.
type SSMParameter struct {
	AccountID    string `json:"account_id"`
	AccountName  string `json:"account_name"`
	Region       string `json:"region"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Tier         string `json:"tier,omitempty"`
	KeyID        string `json:"key_id,omitempty"`
	Version      int64  `json:"version"`
	LastModified string `json:"last_modified,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Parameters lists Parameter Store entries in a unit.
func (l *Lister) Parameters() fanout.FetchFunc[SSMParameter] {
	return func(ctx context.Context, unit fanout.Unit, creds identity.Resolution) ([]SSMParameter, error) {
		client := l.factory.SSMClient(creds, unit.Region)
		return paginate.All(ctx, func(ctx context.Context, cursor *string) ([]SSMParameter, *string, error) {
			l.factory.WaitForService("ssm")
			out, err := client.DescribeParameters(ctx, &ssm.DescribeParametersInput{NextToken: cursor})
			if err != nil {
				return nil, nil, fmt.Errorf("DescribeParameters: %w", err)
			}
			page := make([]SSMParameter, 0, len(out.Parameters))
			for _, param := range out.Parameters {
				page = append(page, SSMParameter{
					AccountID:    unit.Account.ID,
					AccountName:  unit.Account.Name,
					Region:       unit.Region,
					Name:         aws.ToString(param.Name),
					Type:         string(param.Type),
					Tier:         string(param.Tier),
					KeyID:        aws.ToString(param.KeyId),
					Version:      param.Version,
					LastModified: formatTime(param.LastModifiedDate),
					Description:  aws.ToString(param.Description),
				})
			}
			return page, out.NextToken, nil
		})
	}
}
