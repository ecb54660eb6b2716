package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/ebellavance/aws-org-cli-sub000/internal/fanout"
	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/paginate"
)

// IAMRole is one role in an account. IAM is account-global, so the
// kind runs as a single unit per account.
type IAMRole struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	Region      string `json:"region"`
	Name        string `json:"name"`
	ARN         string `json:"arn"`
	Path        string `json:"path,omitempty"`
	Description string `json:"description,omitempty"`
	MaxSession  int32  `json:"max_session_seconds,omitempty"`
	Created     string `json:"created,omitempty"`
}

// Roles lists IAM roles of an account.
func (l *Lister) Roles() fanout.FetchFunc[IAMRole] {
	return func(ctx context.Context, unit fanout.Unit, creds identity.Resolution) ([]IAMRole, error) {
		client := l.factory.IAMClient(creds)
		return paginate.All(ctx, func(ctx context.Context, cursor *string) ([]IAMRole, *string, error) {
			l.factory.WaitForService("iam")
			out, err := client.ListRoles(ctx, &iam.ListRolesInput{Marker: cursor})
			if err != nil {
				return nil, nil, fmt.Errorf("ListRoles: %w", err)
			}
			page := make([]IAMRole, 0, len(out.Roles))
			for _, role := range out.Roles {
				page = append(page, IAMRole{
					AccountID:   unit.Account.ID,
					AccountName: unit.Account.Name,
					Region:      unit.Region,
					Name:        aws.ToString(role.RoleName),
					ARN:         aws.ToString(role.Arn),
					Path:        aws.ToString(role.Path),
					Description: aws.ToString(role.Description),
					MaxSession:  aws.ToInt32(role.MaxSessionDuration),
					Created:     formatTime(role.CreateDate),
				})
			}
			// ListRoles signals continuation through IsTruncated rather
			// than the marker alone.
			var next *string
			if out.IsTruncated {
				next = out.Marker
			}
			return page, next, nil
		})
	}
}
