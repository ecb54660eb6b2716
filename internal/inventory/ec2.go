package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/ebellavance/aws-org-cli-sub000/internal/fanout"
	"github.com/ebellavance/aws-org-cli-sub000/internal/identity"
	"github.com/ebellavance/aws-org-cli-sub000/internal/paginate"
)

// EC2Instance is one virtual machine in one account and region.
type EC2Instance struct {
	AccountID    string `json:"account_id"`
	AccountName  string `json:"account_name"`
	Region       string `json:"region"`
	InstanceID   string `json:"instance_id"`
	Name         string `json:"name,omitempty"`
	InstanceType string `json:"instance_type"`
	State        string `json:"state"`
	PrivateIP    string `json:"private_ip,omitempty"`
	PublicIP     string `json:"public_ip,omitempty"`
	AZ           string `json:"availability_zone,omitempty"`
	VpcID        string `json:"vpc_id,omitempty"`
	LaunchTime   string `json:"launch_time,omitempty"`
}

// Instances lists EC2 instances across all reservations in a unit.
func (l *Lister) Instances() fanout.FetchFunc[EC2Instance] {
	return func(ctx context.Context, unit fanout.Unit, creds identity.Resolution) ([]EC2Instance, error) {
		client := l.factory.EC2Client(creds, unit.Region)
		return paginate.All(ctx, func(ctx context.Context, cursor *string) ([]EC2Instance, *string, error) {
			l.factory.WaitForService("ec2")
			out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: cursor})
			if err != nil {
				return nil, nil, fmt.Errorf("DescribeInstances: %w", err)
			}
			var page []EC2Instance
			for _, res := range out.Reservations {
				for _, inst := range res.Instances {
					page = append(page, newEC2Instance(unit, inst))
				}
			}
			return page, out.NextToken, nil
		})
	}
}

func newEC2Instance(unit fanout.Unit, inst ec2types.Instance) EC2Instance {
	rec := EC2Instance{
		AccountID:    unit.Account.ID,
		AccountName:  unit.Account.Name,
		Region:       unit.Region,
		InstanceID:   aws.ToString(inst.InstanceId),
		Name:         nameTag(inst.Tags),
		InstanceType: string(inst.InstanceType),
		PrivateIP:    aws.ToString(inst.PrivateIpAddress),
		PublicIP:     aws.ToString(inst.PublicIpAddress),
		VpcID:        aws.ToString(inst.VpcId),
		LaunchTime:   formatTime(inst.LaunchTime),
	}
	if inst.State != nil {
		rec.State = string(inst.State.Name)
	}
	if inst.Placement != nil {
		rec.AZ = aws.ToString(inst.Placement.AvailabilityZone)
	}
	return rec
}

// EBSVolume is one block storage volume.
type EBSVolume struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	Region      string `json:"region"`
	VolumeID    string `json:"volume_id"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type"`
	State       string `json:"state"`
	SizeGiB     int32  `json:"size_gib"`
	IOPS        int32  `json:"iops,omitempty"`
	Encrypted   bool   `json:"encrypted"`
	AttachedTo  string `json:"attached_to,omitempty"`
	AZ          string `json:"availability_zone,omitempty"`
	Created     string `json:"created,omitempty"`
}

// Volumes lists EBS volumes in a unit.
func (l *Lister) Volumes() fanout.FetchFunc[EBSVolume] {
	return func(ctx context.Context, unit fanout.Unit, creds identity.Resolution) ([]EBSVolume, error) {
		client := l.factory.EC2Client(creds, unit.Region)
		return paginate.All(ctx, func(ctx context.Context, cursor *string) ([]EBSVolume, *string, error) {
			l.factory.WaitForService("ec2")
			out, err := client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{NextToken: cursor})
			if err != nil {
				return nil, nil, fmt.Errorf("DescribeVolumes: %w", err)
			}
			page := make([]EBSVolume, 0, len(out.Volumes))
			for _, vol := range out.Volumes {
				page = append(page, newEBSVolume(unit, vol))
			}
			return page, out.NextToken, nil
		})
	}
}

func newEBSVolume(unit fanout.Unit, vol ec2types.Volume) EBSVolume {
	rec := EBSVolume{
		AccountID:   unit.Account.ID,
		AccountName: unit.Account.Name,
		Region:      unit.Region,
		VolumeID:    aws.ToString(vol.VolumeId),
		Name:        nameTag(vol.Tags),
		Type:        string(vol.VolumeType),
		State:       string(vol.State),
		SizeGiB:     aws.ToInt32(vol.Size),
		IOPS:        aws.ToInt32(vol.Iops),
		Encrypted:   aws.ToBool(vol.Encrypted),
		AZ:          aws.ToString(vol.AvailabilityZone),
		Created:     formatTime(vol.CreateTime),
	}
	if len(vol.Attachments) > 0 {
		rec.AttachedTo = aws.ToString(vol.Attachments[0].InstanceId)
	}
	return rec
}

// nameTag extracts the conventional Name tag, empty when untagged.
func nameTag(tags []ec2types.Tag) string {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == "Name" {
			return aws.ToString(tag.Value)
		}
	}
	return ""
}
