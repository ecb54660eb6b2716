package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/ebellavance/aws-org-cli-sub000/internal/fanout"
	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/paginate"
)

// LoadBalancer is one ELBv2 load balancer of any type.
type LoadBalancer struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	Region      string `json:"region"`
	Name        string `json:"name"`
	ARN         string `json:"arn"`
	Type        string `json:"type"`
	Scheme      string `json:"scheme"`
	State       string `json:"state,omitempty"`
	DNSName     string `json:"dns_name,omitempty"`
	VpcID       string `json:"vpc_id,omitempty"`
	Created     string `json:"created,omitempty"`
}

// LoadBalancers lists application, network and gateway load balancers.
func (l *Lister) LoadBalancers() fanout.FetchFunc[LoadBalancer] {
	return func(ctx context.Context, unit fanout.Unit, creds identity.Resolution) ([]LoadBalancer, error) {
		client := l.factory.ELBClient(creds, unit.Region)
		return paginate.All(ctx, func(ctx context.Context, cursor *string) ([]LoadBalancer, *string, error) {
			l.factory.WaitForService("elasticloadbalancing")
			out, err := client.DescribeLoadBalancers(ctx, &elbv2.DescribeLoadBalancersInput{Marker: cursor})
			if err != nil {
				return nil, nil, fmt.Errorf("DescribeLoadBalancers: %w", err)
			}
			page := make([]LoadBalancer, 0, len(out.LoadBalancers))
			for _, lb := range out.LoadBalancers {
				page = append(page, newLoadBalancer(unit, lb))
			}
			return page, out.NextMarker, nil
		})
	}
}

func newLoadBalancer(unit fanout.Unit, lb elbv2types.LoadBalancer) LoadBalancer {
	rec := LoadBalancer{
		AccountID:   unit.Account.ID,
		AccountName: unit.Account.Name,
		Region:      unit.Region,
		Name:        aws.ToString(lb.LoadBalancerName),
		ARN:         aws.ToString(lb.LoadBalancerArn),
		Type:        string(lb.Type),
		Scheme:      string(lb.Scheme),
		DNSName:     aws.ToString(lb.DNSName),
		VpcID:       aws.ToString(lb.VpcId),
		Created:     formatTime(lb.CreatedTime),
	}
	if lb.State != nil {
		rec.State = string(lb.State.Code)
	}
	return rec
}
