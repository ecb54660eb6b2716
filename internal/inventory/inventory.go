// Package inventory turns AWS listing APIs into typed, account-tagged
// records. Each resource kind contributes a fetch function that the
// fan-out runner drives across every account and region of a run.
package inventory

import (
	"time"

	"github.com/rs/zerolog"

	awsclient "github.com/ebellavance/aws-org-cli-sub000/internal/aws"
)

// Kind describes one inventoriable resource type.
type Kind struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Service     string `json:"service"`
	// Global kinds ignore the region list; every account contributes a
	// single unit addressed through the home region.
	Global bool `json:"global"`
}

var kinds = []Kind{
	{Name: "ec2-instances", Description: "EC2 virtual machines", Service: "ec2"},
	{Name: "ebs-volumes", Description: "EBS block storage volumes", Service: "ec2"},
	{Name: "s3-buckets", Description: "S3 buckets with their home region", Service: "s3", Global: true},
	{Name: "rds-instances", Description: "RDS database instances", Service: "rds"},
	{Name: "opensearch-domains", Description: "OpenSearch and legacy Elasticsearch domains", Service: "opensearch"},
	{Name: "load-balancers", Description: "Application, network and gateway load balancers", Service: "elasticloadbalancing"},
	{Name: "iam-roles", Description: "IAM roles", Service: "iam", Global: true},
	{Name: "lambda-functions", Description: "Lambda functions", Service: "lambda"},
	{Name: "kms-keys", Description: "KMS keys", Service: "kms"},
	{Name: "secrets", Description: "Secrets Manager secrets", Service: "secretsmanager"},
	{Name: "log-groups", Description: "CloudWatch Logs log groups", Service: "logs"},
	{Name: "cloudtrail-trails", Description: "CloudTrail trails in their home region", Service: "cloudtrail"},
	{Name: "ssm-instances", Description: "SSM managed instances", Service: "ssm"},
	{Name: "ssm-parameters", Description: "SSM Parameter Store parameters, metadata only", Service: "ssm"},
}

// Kinds returns the catalog in stable order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Lookup finds a kind by name.
func Lookup(name string) (Kind, bool) {
	for _, k := range kinds {
		if k.Name == name {
			return k, true
		}
	}
	return Kind{}, false
}

// Lister builds the per-kind fetch functions over the client factory.
type Lister struct {
	factory *awsclient.ClientFactory
	logger  zerolog.Logger
}

// NewLister wires the inventory fetchers to a client factory.
func NewLister(factory *awsclient.ClientFactory, logger zerolog.Logger) *Lister {
	return &Lister{
		factory: factory,
		logger:  logger.With().Str("component", "inventory").Logger(),
	}
}

// formatTime renders a nullable SDK timestamp, empty when absent.
func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
