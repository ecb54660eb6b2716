// Package principal classifies policy principal references and
// verifies their existence against the organization's accounts.
package principal

import (
	"strings"

	awsarn "github.com/aws/aws-sdk-go-v2/aws/arn"
)

// Kind is the semantic category of a policy principal.
type Kind string

const (
	// KindWildcard is the literal "*" principal.
	KindWildcard Kind = "wildcard"
	// KindService is an AWS service principal such as lambda.amazonaws.com.
	KindService Kind = "service"
	// KindAWSAccount references a whole account, as a bare 12-digit ID
	// or an iam root ARN.
	KindAWSAccount Kind = "aws-account"
	KindIAMUser    Kind = "iam-user"
	KindIAMRole    Kind = "iam-role"
	KindIAMGroup   Kind = "iam-group"
	// KindCloudFrontOAI is a CloudFront origin access identity.
	KindCloudFrontOAI Kind = "cloudfront-oai"
	// KindServiceARN is an ARN in a service namespace rather than an
	// account, recognizable by its non-numeric account segment.
	KindServiceARN Kind = "service-arn"
	// KindUnknownIAM is ARN-shaped or account-typed but matches no known
	// principal form.
	KindUnknownIAM Kind = "unknown-iam"
	// KindOpaque is anything else.
	KindOpaque Kind = "opaque"
)

// Principal is the classified form of one policy principal reference.
// Classification is pure string analysis; no lookup has happened yet.
type Principal struct {
	Raw       string `json:"raw"`
	Kind      Kind   `json:"kind"`
	AccountID string `json:"account_id,omitempty"`
	Display   string `json:"display"`
}

// Classify derives the semantic kind of a principal reference from the
// policy element type it appeared under ("AWS", "Service", "Federated")
// and its literal value.
func Classify(principalType, value string) Principal {
	p := Principal{Raw: value, Display: value}

	if value == "*" {
		p.Kind = KindWildcard
		return p
	}

	if a, ok := parseARN(value); ok {
		return classifyARN(p, a)
	}

	switch {
	case strings.EqualFold(principalType, "service"):
		p.Kind = KindService
		p.Display = strings.TrimSuffix(value, ".amazonaws.com")
	case strings.EqualFold(principalType, "aws") && isAccountID(value):
		p.Kind = KindAWSAccount
		p.AccountID = value
	case strings.EqualFold(principalType, "aws"):
		p.Kind = KindUnknownIAM
	default:
		p.Kind = KindOpaque
	}
	return p
}

func classifyARN(p Principal, a awsarn.ARN) Principal {
	if a.Service == "iam" && isAccountID(a.AccountID) {
		p.AccountID = a.AccountID
		switch resourceType(a.Resource) {
		case "user":
			p.Kind = KindIAMUser
		case "role":
			p.Kind = KindIAMRole
		case "group":
			p.Kind = KindIAMGroup
		default:
			if a.Resource == "root" {
				p.Kind = KindAWSAccount
				p.Display = a.AccountID
			} else {
				p.Kind = KindUnknownIAM
			}
		}
		return p
	}

	// CloudFront origin access identities live in the reserved
	// "cloudfront" account namespace:
	// arn:aws:iam::cloudfront:user/CloudFront Origin Access Identity <id>
	if a.Service == "iam" && a.AccountID == "cloudfront" {
		p.Kind = KindCloudFrontOAI
		p.Display = resourceName(a.Resource)
		return p
	}

	if !isAccountID(a.AccountID) {
		p.Kind = KindServiceARN
		return p
	}

	// An ARN with a real account but outside the IAM namespace, e.g. an
	// sts assumed-role ARN.
	p.Kind = KindUnknownIAM
	p.AccountID = a.AccountID
	return p
}

func parseARN(s string) (awsarn.ARN, bool) {
	a, err := awsarn.Parse(s)
	return a, err == nil
}

// resourceType returns the type prefix of an ARN resource part:
// "role" for "role/service-role/MyRole", "" when there is no prefix.
func resourceType(resource string) string {
	if i := strings.IndexAny(resource, "/:"); i >= 0 {
		return resource[:i]
	}
	return ""
}

// resourceName returns the terminal path segment of an ARN resource
// part, the name IAM lookups key on.
func resourceName(resource string) string {
	if i := strings.LastIndexAny(resource, "/:"); i >= 0 {
		return resource[i+1:]
	}
	return resource
}

func isAccountID(s string) bool {
	if len(s) != 12 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
