package amazon

import (
	"context"
	"fmt"
	"strings"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider"
)

// ListEBSVolumes 查询 EBS 卷列表,内部翻页取全量
func (c *Client) ListEBSVolumes(ctx context.Context) ([]*provider.Volume, error) {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return nil, err
	}

	volumes := make([]*provider.Volume, 0)
	var nextToken *string

	for {
		output, err := client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe volumes: %w", err)
		}

		for _, vol := range output.Volumes {
			volumes = append(volumes, convertEBSToVolume(vol, c.Region))
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	logx.Info("Successfully queried EBS volumes, count %d, region %s", len(volumes), c.Region)
	return volumes, nil
}

// CreateEBSVolume 创建 EBS 卷
func (c *Client) CreateEBSVolume(ctx context.Context, spec *provider.CreateVolumeSpec) (string, error) {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return "", err
	}

	zone := spec.Zone
	if zone == "" {
		zone = c.Region + "a"
	}

	input := &ec2.CreateVolumeInput{
		AvailabilityZone: aws.String(zone),
		Size:             aws.Int32(int32(spec.SizeGiB)),
		Encrypted:        aws.Bool(spec.Encrypted),
	}
	if spec.Type != "" {
		input.VolumeType = types.VolumeType(spec.Type)
	}
	if spec.Name != "" {
		input.TagSpecifications = []types.TagSpecification{
			{
				ResourceType: types.ResourceTypeVolume,
				Tags: []types.Tag{
					{Key: aws.String("Name"), Value: aws.String(spec.Name)},
				},
			},
		}
	}

	output, err := client.CreateVolume(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to create volume: %w", err)
	}

	volumeID := aws.ToString(output.VolumeId)
	logx.Info("Created EBS volume, volume_id %s, size %dGiB", volumeID, spec.SizeGiB)
	return volumeID, nil
}

// AttachEBSVolume 将 EBS 卷挂载到实例
func (c *Client) AttachEBSVolume(ctx context.Context, volumeID, instanceID, device string) error {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return err
	}

	if _, err := client.AttachVolume(ctx, &ec2.AttachVolumeInput{
		VolumeId:   aws.String(volumeID),
		InstanceId: aws.String(instanceID),
		Device:     aws.String(device),
	}); err != nil {
		return fmt.Errorf("failed to attach volume: %w", err)
	}

	logx.Info("Attached EBS volume, volume_id %s, instance_id %s", volumeID, instanceID)
	return nil
}

// DetachEBSVolume 从实例卸载 EBS 卷
func (c *Client) DetachEBSVolume(ctx context.Context, volumeID, instanceID string) error {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return err
	}

	input := &ec2.DetachVolumeInput{
		VolumeId: aws.String(volumeID),
	}
	if instanceID != "" {
		input.InstanceId = aws.String(instanceID)
	}

	if _, err := client.DetachVolume(ctx, input); err != nil {
		return fmt.Errorf("failed to detach volume: %w", err)
	}

	logx.Info("Detached EBS volume, volume_id %s", volumeID)
	return nil
}

// DeleteEBSVolume 删除 EBS 卷
func (c *Client) DeleteEBSVolume(ctx context.Context, volumeID string) error {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return err
	}

	if _, err := client.DeleteVolume(ctx, &ec2.DeleteVolumeInput{
		VolumeId: aws.String(volumeID),
	}); err != nil {
		return fmt.Errorf("failed to delete volume: %w", err)
	}

	logx.Info("Deleted EBS volume, volume_id %s", volumeID)
	return nil
}

// ListEC2SecurityGroups 查询安全组列表
func (c *Client) ListEC2SecurityGroups(ctx context.Context) ([]*provider.SecurityGroup, error) {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return nil, err
	}

	groups := make([]*provider.SecurityGroup, 0)
	var nextToken *string

	for {
		output, err := client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe security groups: %w", err)
		}

		for _, sg := range output.SecurityGroups {
			groups = append(groups, convertEC2SecurityGroup(sg, c.Region))
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	logx.Info("Successfully queried EC2 security groups, count %d, region %s", len(groups), c.Region)
	return groups, nil
}

// CreateEC2SecurityGroup 创建安全组
func (c *Client) CreateEC2SecurityGroup(ctx context.Context, name, description string) (string, error) {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return "", err
	}

	output, err := client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String(description),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create security group: %w", err)
	}

	groupID := aws.ToString(output.GroupId)
	logx.Info("Created EC2 security group, group_id %s, name %s", groupID, name)
	return groupID, nil
}

// AuthorizeEC2SecurityGroupRule 添加入方向规则
func (c *Client) AuthorizeEC2SecurityGroupRule(ctx context.Context, groupID string, rule *provider.SecurityGroupRule) error {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return err
	}

	if _, err := client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(groupID),
		IpPermissions: []types.IpPermission{ruleToIpPermission(rule)},
	}); err != nil {
		return fmt.Errorf("failed to authorize security group rule: %w", err)
	}

	logx.Info("Authorized EC2 security group rule, group_id %s, %s %d-%d from %s",
		groupID, rule.Protocol, rule.FromPort, rule.ToPort, rule.Source)
	return nil
}

// RevokeEC2SecurityGroupRule 移除入方向规则
func (c *Client) RevokeEC2SecurityGroupRule(ctx context.Context, groupID string, rule *provider.SecurityGroupRule) error {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return err
	}

	if _, err := client.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
		GroupId:       aws.String(groupID),
		IpPermissions: []types.IpPermission{ruleToIpPermission(rule)},
	}); err != nil {
		return fmt.Errorf("failed to revoke security group rule: %w", err)
	}

	logx.Info("Revoked EC2 security group rule, group_id %s", groupID)
	return nil
}

// DeleteEC2SecurityGroup 删除安全组
func (c *Client) DeleteEC2SecurityGroup(ctx context.Context, groupID string) error {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return err
	}

	if _, err := client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: aws.String(groupID),
	}); err != nil {
		return fmt.Errorf("failed to delete security group: %w", err)
	}

	logx.Info("Deleted EC2 security group, group_id %s", groupID)
	return nil
}

// ruleToIpPermission 将统一规则转换为 EC2 规则
func ruleToIpPermission(rule *provider.SecurityGroupRule) types.IpPermission {
	ipRange := types.IpRange{CidrIp: aws.String(rule.Source)}
	if rule.Description != "" {
		ipRange.Description = aws.String(rule.Description)
	}
	return types.IpPermission{
		IpProtocol: aws.String(strings.ToLower(rule.Protocol)),
		FromPort:   aws.Int32(int32(rule.FromPort)),
		ToPort:     aws.Int32(int32(rule.ToPort)),
		IpRanges:   []types.IpRange{ipRange},
	}
}

// convertEBSToVolume 将 EBS 卷转换为统一的云盘视图
func convertEBSToVolume(vol types.Volume, region string) *provider.Volume {
	volume := &provider.Volume{
		ProviderID: aws.ToString(vol.VolumeId),
		Type:       string(vol.VolumeType),
		SizeGiB:    int(aws.ToInt32(vol.Size)),
		Region:     region,
		Zone:       aws.ToString(vol.AvailabilityZone),
		Encrypted:  aws.ToBool(vol.Encrypted),
		Status:     convertEBSStatus(vol.State),
	}

	for _, tag := range vol.Tags {
		if aws.ToString(tag.Key) == "Name" {
			volume.Name = aws.ToString(tag.Value)
		}
	}

	if len(vol.Attachments) > 0 {
		volume.AttachedTo = aws.ToString(vol.Attachments[0].InstanceId)
		volume.Device = aws.ToString(vol.Attachments[0].Device)
	}

	return volume
}

// convertEBSStatus 将 EBS 卷状态归一化为本地状态常量
func convertEBSStatus(state types.VolumeState) string {
	switch state {
	case types.VolumeStateCreating:
		return model.VolumeStatusCreating
	case types.VolumeStateInUse:
		return model.VolumeStatusInUse
	default:
		return model.VolumeStatusAvailable
	}
}

// convertEC2SecurityGroup 将 EC2 安全组转换为统一的安全组视图
func convertEC2SecurityGroup(sg types.SecurityGroup, region string) *provider.SecurityGroup {
	group := &provider.SecurityGroup{
		ProviderID:  aws.ToString(sg.GroupId),
		Name:        aws.ToString(sg.GroupName),
		Description: aws.ToString(sg.Description),
		Region:      region,
	}

	for _, perm := range sg.IpPermissions {
		for _, ipRange := range perm.IpRanges {
			group.Rules = append(group.Rules, provider.SecurityGroupRule{
				Protocol:    aws.ToString(perm.IpProtocol),
				FromPort:    int(aws.ToInt32(perm.FromPort)),
				ToPort:      int(aws.ToInt32(perm.ToPort)),
				Source:      aws.ToString(ipRange.CidrIp),
				Description: aws.ToString(ipRange.Description),
			})
		}
	}

	return group
}
