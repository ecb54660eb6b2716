package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/ebellavance/aws-org-cli-sub000/internal/fanout"
	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/paginate"
)

// KMSKey is one key by ID and ARN. Key metadata beyond identity needs
// a per-key describe, which the listing deliberately skips.
type KMSKey struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	Region      string `json:"region"`
	KeyID       string `json:"key_id"`
	ARN         string `json:"arn"`
}

// Keys lists KMS keys in a unit.
func (l *Lister) Keys() fanout.FetchFunc[KMSKey] {
	return func(ctx context.Context, unit fanout.Unit, creds identity.Resolution) ([]KMSKey, error) {
		client := l.factory.KMSClient(creds, unit.Region)
		return paginate.All(ctx, func(ctx context.Context, cursor *string) ([]KMSKey, *string, error) {
			l.factory.WaitForService("kms")
			out, err := client.ListKeys(ctx, &kms.ListKeysInput{Marker: cursor})
			if err != nil {
				return nil, nil, fmt.Errorf("ListKeys: %w", err)
			}
			page := make([]KMSKey, 0, len(out.Keys))
			for _, key := range out.Keys {
				page = append(page, KMSKey{
					AccountID:   unit.Account.ID,
					AccountName: unit.Account.Name,
					Region:      unit.Region,
					KeyID:       aws.ToString(key.KeyId),
					ARN:         aws.ToString(key.KeyArn),
				})
			}
			// ListKeys signals continuation through Truncated rather than
			// the marker alone.
			var next *string
			if out.Truncated {
				next = out.NextMarker
			}
			return page, next, nil
		})
	}
}
