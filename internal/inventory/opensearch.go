package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/opensearch"

	"github.com/ebellavance/aws-org-cli-sub000/internal/fanout"
	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
)

// describeDomainsBatch is the DescribeDomains API limit per call.
const describeDomainsBatch = 5

// OpenSearchDomain is one OpenSearch or legacy Elasticsearch domain.
// Detail fields carry the sentinel "unknown" when the describe call
// fails after the domain was listed.
type OpenSearchDomain struct {
	AccountID     string `json:"account_id"`
	AccountName   string `json:"account_name"`
	Region        string `json:"region"`
	Name          string `json:"name"`
	Engine        string `json:"engine,omitempty"`
	Version       string `json:"version"`
	InstanceType  string `json:"instance_type"`
	InstanceCount int32  `json:"instance_count"`
	Endpoint      string `json:"endpoint,omitempty"`
	Processing    bool   `json:"processing"`
}

// Domains lists OpenSearch domains and enriches them with cluster
// detail. The listing API is unpaginated; details come in batches.
func (l *Lister) Domains() fanout.FetchFunc[OpenSearchDomain] {
	return func(ctx context.Context, unit fanout.Unit, creds identity.Resolution) ([]OpenSearchDomain, error) {
		client := l.factory.OpenSearchClient(creds, unit.Region)

		l.factory.WaitForService("opensearch")
		listed, err := client.ListDomainNames(ctx, &opensearch.ListDomainNamesInput{})
		if err != nil {
			return nil, fmt.Errorf("ListDomainNames: %w", err)
		}

		byName := make(map[string]OpenSearchDomain, len(listed.DomainNames))
		var names []string
		for _, info := range listed.DomainNames {
			name := aws.ToString(info.DomainName)
			names = append(names, name)
			byName[name] = OpenSearchDomain{
				AccountID:    unit.Account.ID,
				AccountName:  unit.Account.Name,
				Region:       unit.Region,
				Name:         name,
				Engine:       string(info.EngineType),
				Version:      "unknown",
				InstanceType: "unknown",
			}
		}

		for _, batch := range batchStrings(names, describeDomainsBatch) {
			l.factory.WaitForService("opensearch")
			described, err := client.DescribeDomains(ctx, &opensearch.DescribeDomainsInput{DomainNames: batch})
			if err != nil {
				l.logger.Warn().
					Str("account_id", unit.Account.ID).
					Str("region", unit.Region).
					Strs("domains", batch).
					Err(err).
					Msg("domain describe failed, keeping name-only records")
				continue
			}
			for _, status := range described.DomainStatusList {
				name := aws.ToString(status.DomainName)
				rec, ok := byName[name]
				if !ok {
					continue
				}
				rec.Version = aws.ToString(status.EngineVersion)
				rec.Endpoint = aws.ToString(status.Endpoint)
				rec.Processing = aws.ToBool(status.Processing)
				if status.ClusterConfig != nil {
					rec.InstanceType = string(status.ClusterConfig.InstanceType)
					rec.InstanceCount = aws.ToInt32(status.ClusterConfig.InstanceCount)
				}
				byName[name] = rec
			}
		}

		out := make([]OpenSearchDomain, 0, len(names))
		for _, name := range names {
			out = append(out, byName[name])
		}
		return out, nil
	}
}

// batchStrings splits names into chunks of at most size.
func batchStrings(names []string, size int) [][]string {
	var batches [][]string
	for len(names) > size {
		batches = append(batches, names[:size])
		names = names[size:]
	}
	if len(names) > 0 {
		batches = append(batches, names)
	}
	return batches
}
