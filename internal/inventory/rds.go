package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/ebellavance/aws-org-cli-sub000/internal/fanout"
	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/paginate"
)

// RDSInstance is one database instance.
type RDSInstance struct {
	AccountID      string `json:"account_id"`
	AccountName    string `json:"account_name"`
	Region         string `json:"region"`
	Identifier     string `json:"identifier"`
	Engine         string `json:"engine"`
	EngineVersion  string `json:"engine_version,omitempty"`
	Class          string `json:"class"`
	Status         string `json:"status"`
	MultiAZ        bool   `json:"multi_az"`
	Encrypted      bool   `json:"encrypted"`
	StorageGiB     int32  `json:"storage_gib"`
	Endpoint       string `json:"endpoint,omitempty"`
	Created        string `json:"created,omitempty"`
}

// DBInstances lists RDS database instances in a unit.
func (l *Lister) DBInstances() fanout.FetchFunc[RDSInstance] {
	return func(ctx context.Context, unit fanout.Unit, creds identity.Resolution) ([]RDSInstance, error) {
		client := l.factory.RDSClient(creds, unit.Region)
		return paginate.All(ctx, func(ctx context.Context, cursor *string) ([]RDSInstance, *string, error) {
			l.factory.WaitForService("rds")
			out, err := client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{Marker: cursor})
			if err != nil {
				return nil, nil, fmt.Errorf("DescribeDBInstances: %w", err)
			}
			page := make([]RDSInstance, 0, len(out.DBInstances))
			for _, db := range out.DBInstances {
				page = append(page, newRDSInstance(unit, db))
			}
			return page, out.Marker, nil
		})
	}
}

func newRDSInstance(unit fanout.Unit, db rdstypes.DBInstance) RDSInstance {
	rec := RDSInstance{
		AccountID:     unit.Account.ID,
		AccountName:   unit.Account.Name,
		Region:        unit.Region,
		Identifier:    aws.ToString(db.DBInstanceIdentifier),
		Engine:        aws.ToString(db.Engine),
		EngineVersion: aws.ToString(db.EngineVersion),
		Class:         aws.ToString(db.DBInstanceClass),
		Status:        aws.ToString(db.DBInstanceStatus),
		MultiAZ:       aws.ToBool(db.MultiAZ),
		Encrypted:     aws.ToBool(db.StorageEncrypted),
		StorageGiB:    aws.ToInt32(db.AllocatedStorage),
		Created:       formatTime(db.InstanceCreateTime),
	}
	if db.Endpoint != nil {
		rec.Endpoint = fmt.Sprintf("%s:%d", aws.ToString(db.Endpoint.Address), aws.ToInt32(db.Endpoint.Port))
	}
	return rec
}
