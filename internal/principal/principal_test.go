package principal

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		principalType string
		value         string
		wantKind      Kind
		wantAccount   string
		wantDisplay   string
	}{
		{
			name:          "wildcard",
			principalType: "AWS",
			value:         "*",
			wantKind:      KindWildcard,
			wantDisplay:   "*",
		},
		{
			name:          "bare account id",
			principalType: "AWS",
			value:         "111111111111",
			wantKind:      KindAWSAccount,
			wantAccount:   "111111111111",
			wantDisplay:   "111111111111",
		},
		{
			name:          "service principal",
			principalType: "Service",
			value:         "lambda.amazonaws.com",
			wantKind:      KindService,
			wantDisplay:   "lambda",
		},
		{
			name:          "service principal lowercase type",
			principalType: "service",
			value:         "events.amazonaws.com",
			wantKind:      KindService,
			wantDisplay:   "events",
		},
		{
			name:          "iam user arn",
			principalType: "AWS",
			value:         "arn:aws:iam::111122223333:user/auditor",
			wantKind:      KindIAMUser,
			wantAccount:   "111122223333",
			wantDisplay:   "arn:aws:iam::111122223333:user/auditor",
		},
		{
			name:          "iam role arn with path",
			principalType: "AWS",
			value:         "arn:aws:iam::111122223333:role/service-role/AppRole",
			wantKind:      KindIAMRole,
			wantAccount:   "111122223333",
			wantDisplay:   "arn:aws:iam::111122223333:role/service-role/AppRole",
		},
		{
			name:          "iam group arn",
			principalType: "AWS",
			value:         "arn:aws:iam::111122223333:group/admins",
			wantKind:      KindIAMGroup,
			wantAccount:   "111122223333",
			wantDisplay:   "arn:aws:iam::111122223333:group/admins",
		},
		{
			name:          "account root arn",
			principalType: "AWS",
			value:         "arn:aws:iam::444455556666:root",
			wantKind:      KindAWSAccount,
			wantAccount:   "444455556666",
			wantDisplay:   "444455556666",
		},
		{
			name:          "cloudfront origin access identity",
			principalType: "AWS",
			value:         "arn:aws:iam::cloudfront:user/CloudFront Origin Access Identity E2QWRUHAPOMQZL",
			wantKind:      KindCloudFrontOAI,
			wantDisplay:   "CloudFront Origin Access Identity E2QWRUHAPOMQZL",
		},
		{
			name:          "service namespace arn",
			principalType: "AWS",
			value:         "arn:aws:s3:::service-config-bucket",
			wantKind:      KindServiceARN,
			wantDisplay:   "arn:aws:s3:::service-config-bucket",
		},
		{
			name:          "assumed role arn",
			principalType: "AWS",
			value:         "arn:aws:sts::111122223333:assumed-role/AppRole/session",
			wantKind:      KindUnknownIAM,
			wantAccount:   "111122223333",
			wantDisplay:   "arn:aws:sts::111122223333:assumed-role/AppRole/session",
		},
		{
			name:          "iam arn with unknown resource type",
			principalType: "AWS",
			value:         "arn:aws:iam::111122223333:policy/readonly",
			wantKind:      KindUnknownIAM,
			wantAccount:   "111122223333",
			wantDisplay:   "arn:aws:iam::111122223333:policy/readonly",
		},
		{
			name:          "aws typed junk",
			principalType: "AWS",
			value:         "12345",
			wantKind:      KindUnknownIAM,
			wantDisplay:   "12345",
		},
		{
			name:          "federated value",
			principalType: "Federated",
			value:         "cognito-identity.amazonaws.com",
			wantKind:      KindOpaque,
			wantDisplay:   "cognito-identity.amazonaws.com",
		},
		{
			name:          "untyped junk",
			principalType: "",
			value:         "not-a-principal",
			wantKind:      KindOpaque,
			wantDisplay:   "not-a-principal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.principalType, tt.value)
			if got.Kind != tt.wantKind {
				t.Errorf("kind: got %s, want %s", got.Kind, tt.wantKind)
			}
			if got.AccountID != tt.wantAccount {
				t.Errorf("account: got %q, want %q", got.AccountID, tt.wantAccount)
			}
			if got.Display != tt.wantDisplay {
				t.Errorf("display: got %q, want %q", got.Display, tt.wantDisplay)
			}
			if got.Raw != tt.value {
				t.Errorf("raw: got %q, want %q", got.Raw, tt.value)
			}
		})
	}
}

func TestResourceType(t *testing.T) {
	tests := []struct {
		resource string
		want     string
	}{
		{"user/auditor", "user"},
		{"role/service-role/AppRole", "role"},
		{"group/admins", "group"},
		{"root", ""},
		{"function:my-func", "function"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := resourceType(tt.resource); got != tt.want {
			t.Errorf("resourceType(%q): got %q, want %q", tt.resource, got, tt.want)
		}
	}
}

func TestResourceName(t *testing.T) {
	tests := []struct {
		resource string
		want     string
	}{
		{"user/auditor", "auditor"},
		{"role/service-role/AppRole", "AppRole"},
		{"group/admins", "admins"},
		{"root", "root"},
		{"function:my-func", "my-func"},
	}
	for _, tt := range tests {
		if got := resourceName(tt.resource); got != tt.want {
			t.Errorf("resourceName(%q): got %q, want %q", tt.resource, got, tt.want)
		}
	}
}

func TestIsAccountID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"111122223333", true},
		{"000000000000", true},
		{"11112222333", false},
		{"1111222233334", false},
		{"11112222333a", false},
		{"cloudfront", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isAccountID(tt.in); got != tt.want {
			t.Errorf("isAccountID(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}
