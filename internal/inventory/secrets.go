package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/ebellavance/aws-org-cli-sub000/internal/fanout"
	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/paginate"
)

// Secret is one Secrets Manager entry. Values are never fetched, only
// listing metadata.
type Secret struct {
	AccountID    string `json:"account_id"`
	AccountName  string `json:"account_name"`
	Region       string `json:"region"`
	Name         string `json:"name"`
	ARN          string `json:"arn"`
	Description  string `json:"description,omitempty"`
	Rotation     bool   `json:"rotation_enabled"`
	LastChanged  string `json:"last_changed,omitempty"`
	LastAccessed string `json:"last_accessed,omitempty"`
}

// Secrets lists Secrets Manager secrets in a unit.
func (l *Lister) Secrets() fanout.FetchFunc[Secret] {
	return func(ctx context.Context, unit fanout.Unit, creds identity.Resolution) ([]Secret, error) {
		client := l.factory.SecretsManagerClient(creds, unit.Region)
		return paginate.All(ctx, func(ctx context.Context, cursor *string) ([]Secret, *string, error) {
			l.factory.WaitForService("secretsmanager")
			out, err := client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{NextToken: cursor})
			if err != nil {
				return nil, nil, fmt.Errorf("ListSecrets: %w", err)
			}
			page := make([]Secret, 0, len(out.SecretList))
			for _, entry := range out.SecretList {
				page = append(page, Secret{
					AccountID:    unit.Account.ID,
					AccountName:  unit.Account.Name,
					Region:       unit.Region,
					Name:         aws.ToString(entry.Name),
					ARN:          aws.ToString(entry.ARN),
					Description:  aws.ToString(entry.Description),
					Rotation:     aws.ToBool(entry.RotationEnabled),
					LastChanged:  formatTime(entry.LastChangedDate),
					LastAccessed: formatTime(entry.LastAccessedDate),
				})
			}
			return page, out.NextToken, nil
		})
	}
}
