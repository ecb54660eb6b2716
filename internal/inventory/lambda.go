package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/ebellavance/aws-org-cli-sub000/internal/fanout"
	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/paginate"
)

// LambdaFunction is one function configuration.
type LambdaFunction struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	Region      string `json:"region"`
	Name        string `json:"name"`
	ARN         string `json:"arn"`
	Runtime     string `json:"runtime,omitempty"`
	Handler     string `json:"handler,omitempty"`
	MemoryMB    int32  `json:"memory_mb"`
	TimeoutSecs int32  `json:"timeout_seconds"`
	CodeSize    int64  `json:"code_size_bytes"`
	Modified    string `json:"modified,omitempty"`
}

// Functions lists Lambda functions in a unit.
func (l *Lister) Functions() fanout.FetchFunc[LambdaFunction] {
	return func(ctx context.Context, unit fanout.Unit, creds identity.Resolution) ([]LambdaFunction, error) {
		client := l.factory.LambdaClient(creds, unit.Region)
		return paginate.All(ctx, func(ctx context.Context, cursor *string) ([]LambdaFunction, *string, error) {
			l.factory.WaitForService("lambda")
			out, err := client.ListFunctions(ctx, &lambda.ListFunctionsInput{Marker: cursor})
			if err != nil {
				return nil, nil, fmt.Errorf("ListFunctions: %w", err)
			}
			page := make([]LambdaFunction, 0, len(out.Functions))
			for _, fn := range out.Functions {
				page = append(page, LambdaFunction{
					AccountID:   unit.Account.ID,
					AccountName: unit.Account.Name,
					Region:      unit.Region,
					Name:        aws.ToString(fn.FunctionName),
					ARN:         aws.ToString(fn.FunctionArn),
					Runtime:     string(fn.Runtime),
					Handler:     aws.ToString(fn.Handler),
					MemoryMB:    aws.ToInt32(fn.MemorySize),
					TimeoutSecs: aws.ToInt32(fn.Timeout),
					CodeSize:    fn.CodeSize,
					Modified:    aws.ToString(fn.LastModified),
				})
			}
			return page, out.NextMarker, nil
		})
	}
}
