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

// ListEC2Instances 查询 EC2 实例列表,内部翻页取全量
func (c *Client) ListEC2Instances(ctx context.Context) ([]*provider.Instance, error) {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return nil, err
	}

	instances := make([]*provider.Instance, 0)
	var nextToken *string

	for {
		output, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			for _, inst := range reservation.Instances {
				instances = append(instances, convertEC2ToInstance(inst, c.Region))
			}
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	logx.Info("Successfully queried EC2 instances, count %d, region %s", len(instances), c.Region)
	return instances, nil
}

// GetEC2Instance 获取 EC2 实例详情,不存在时返回 provider.ErrNotFound
func (c *Client) GetEC2Instance(ctx context.Context, instanceID string) (*provider.Instance, error) {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return nil, err
	}

	output, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		// EC2 对未知实例 ID 返回 InvalidInstanceID 类错误
		if strings.Contains(err.Error(), "InvalidInstanceID") {
			return nil, provider.ErrNotFound
		}
		return nil, fmt.Errorf("failed to describe instance: %w", err)
	}

	for _, reservation := range output.Reservations {
		for _, inst := range reservation.Instances {
			return convertEC2ToInstance(inst, c.Region), nil
		}
	}
	return nil, provider.ErrNotFound
}

// CreateEC2Instance 创建 EC2 实例
func (c *Client) CreateEC2Instance(ctx context.Context, spec *provider.CreateInstanceSpec) (*provider.CreateInstanceResult, error) {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return nil, err
	}

	tags := make([]types.Tag, 0, len(spec.Tags)+1)
	tags = append(tags, types.Tag{Key: aws.String("Name"), Value: aws.String(spec.Name)})
	for k, v := range spec.Tags {
		tags = append(tags, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(spec.ImageID),
		InstanceType: types.InstanceType(spec.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: []types.TagSpecification{
			{
				ResourceType: types.ResourceTypeInstance,
				Tags:         tags,
			},
		},
	}
	if spec.KeyPairName != "" {
		input.KeyName = aws.String(spec.KeyPairName)
	}
	if len(spec.SecurityGroupIDs) > 0 {
		input.SecurityGroupIds = spec.SecurityGroupIDs
	}
	if spec.Zone != "" {
		input.Placement = &types.Placement{AvailabilityZone: aws.String(spec.Zone)}
	}
	if spec.Ephemeral {
		// 竞价实例,停止即被回收
		input.InstanceMarketOptions = &types.InstanceMarketOptionsRequest{
			MarketType: types.MarketTypeSpot,
		}
	}

	logx.Info("Creating EC2 instance, name %s, type %s, region %s",
		spec.Name, spec.InstanceType, c.Region)

	output, err := client.RunInstances(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run instance: %w", err)
	}
	if len(output.Instances) == 0 {
		return nil, fmt.Errorf("run instances returned no instance")
	}

	inst := output.Instances[0]
	result := &provider.CreateInstanceResult{
		ProviderID: aws.ToString(inst.InstanceId),
	}
	if inst.Placement != nil {
		result.Zone = aws.ToString(inst.Placement.AvailabilityZone)
	}
	if inst.PublicIpAddress != nil {
		result.PublicIP = []string{aws.ToString(inst.PublicIpAddress)}
	}
	if inst.PrivateIpAddress != nil {
		result.PrivateIP = []string{aws.ToString(inst.PrivateIpAddress)}
	}
	return result, nil
}

// StartEC2Instance 启动 EC2 实例
func (c *Client) StartEC2Instance(ctx context.Context, instanceID string) error {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return err
	}

	if _, err := client.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{instanceID},
	}); err != nil {
		return fmt.Errorf("failed to start instance: %w", err)
	}

	logx.Info("Started EC2 instance, instance_id %s", instanceID)
	return nil
}

// StopEC2Instance 停止 EC2 实例
func (c *Client) StopEC2Instance(ctx context.Context, instanceID string) error {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return err
	}

	if _, err := client.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{instanceID},
	}); err != nil {
		return fmt.Errorf("failed to stop instance: %w", err)
	}

	logx.Info("Stopped EC2 instance, instance_id %s", instanceID)
	return nil
}

// TerminateEC2Instance 释放 EC2 实例
func (c *Client) TerminateEC2Instance(ctx context.Context, instanceID string) error {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return err
	}

	if _, err := client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	}); err != nil {
		return fmt.Errorf("failed to terminate instance: %w", err)
	}

	logx.Info("Terminated EC2 instance, instance_id %s", instanceID)
	return nil
}

// ListEC2Regions 列出区域
func (c *Client) ListEC2Regions(ctx context.Context) ([]*provider.Region, error) {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return nil, err
	}

	output, err := client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe regions: %w", err)
	}

	regions := make([]*provider.Region, 0, len(output.Regions))
	for _, r := range output.Regions {
		regions = append(regions, &provider.Region{
			ID:   aws.ToString(r.RegionName),
			Name: aws.ToString(r.RegionName),
		})
	}
	return regions, nil
}

// ListEC2InstanceTypes 列出实例规格
func (c *Client) ListEC2InstanceTypes(ctx context.Context) ([]*provider.InstanceTypeInfo, error) {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return nil, err
	}

	instanceTypes := make([]*provider.InstanceTypeInfo, 0)
	var nextToken *string

	for {
		output, err := client.DescribeInstanceTypes(ctx, &ec2.DescribeInstanceTypesInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe instance types: %w", err)
		}

		for _, t := range output.InstanceTypes {
			info := &provider.InstanceTypeInfo{
				ID: string(t.InstanceType),
			}
			if parts := strings.SplitN(info.ID, ".", 2); len(parts) == 2 {
				info.Family = parts[0]
			}
			if t.VCpuInfo != nil {
				info.CPU = int(aws.ToInt32(t.VCpuInfo.DefaultVCpus))
			}
			if t.MemoryInfo != nil {
				info.MemoryMB = int(aws.ToInt64(t.MemoryInfo.SizeInMiB))
			}
			instanceTypes = append(instanceTypes, info)
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	return instanceTypes, nil
}

// ListEC2KeyPairs 列出密钥对
func (c *Client) ListEC2KeyPairs(ctx context.Context) ([]*provider.KeyPair, error) {
	client, err := c.GetEC2Client(ctx)
	if err != nil {
		return nil, err
	}

	output, err := client.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe key pairs: %w", err)
	}

	keyPairs := make([]*provider.KeyPair, 0, len(output.KeyPairs))
	for _, kp := range output.KeyPairs {
		keyPairs = append(keyPairs, &provider.KeyPair{
			Name:        aws.ToString(kp.KeyName),
			Fingerprint: aws.ToString(kp.KeyFingerprint),
		})
	}
	return keyPairs, nil
}

// convertEC2ToInstance 将 EC2 实例转换为统一的实例视图
func convertEC2ToInstance(inst types.Instance, region string) *provider.Instance {
	instance := &provider.Instance{
		ProviderID:   aws.ToString(inst.InstanceId),
		Region:       region,
		InstanceType: string(inst.InstanceType),
		ImageID:      aws.ToString(inst.ImageId),
		KeyPairName:  aws.ToString(inst.KeyName),
		Ephemeral:    inst.InstanceLifecycle == types.InstanceLifecycleTypeSpot,
		Tags:         make(map[string]string),
	}

	if inst.State != nil {
		instance.Status = convertEC2Status(inst.State.Name)
	}
	if inst.Placement != nil {
		instance.Zone = aws.ToString(inst.Placement.AvailabilityZone)
	}
	if inst.LaunchTime != nil {
		instance.LaunchTime = *inst.LaunchTime
	}
	if inst.PublicIpAddress != nil && aws.ToString(inst.PublicIpAddress) != "" {
		instance.PublicIP = append(instance.PublicIP, aws.ToString(inst.PublicIpAddress))
	}
	if inst.PrivateIpAddress != nil && aws.ToString(inst.PrivateIpAddress) != "" {
		instance.PrivateIP = append(instance.PrivateIP, aws.ToString(inst.PrivateIpAddress))
	}

	for _, sg := range inst.SecurityGroups {
		if sg.GroupId != nil {
			instance.SecurityGroupIDs = append(instance.SecurityGroupIDs, aws.ToString(sg.GroupId))
		}
	}

	for _, bdm := range inst.BlockDeviceMappings {
		if bdm.Ebs != nil && bdm.Ebs.VolumeId != nil {
			instance.VolumeIDs = append(instance.VolumeIDs, aws.ToString(bdm.Ebs.VolumeId))
		}
	}

	for _, tag := range inst.Tags {
		key := aws.ToString(tag.Key)
		instance.Tags[key] = aws.ToString(tag.Value)
		if key == "Name" {
			instance.Name = aws.ToString(tag.Value)
		}
	}

	return instance
}

// convertEC2Status 将 EC2 实例状态归一化为本地状态常量
func convertEC2Status(state types.InstanceStateName) string {
	switch state {
	case types.InstanceStateNamePending:
		return model.InstanceStatusPending
	case types.InstanceStateNameRunning:
		return model.InstanceStatusRunning
	case types.InstanceStateNameStopping, types.InstanceStateNameShuttingDown:
		return model.InstanceStatusStopping
	case types.InstanceStateNameStopped:
		return model.InstanceStatusStopped
	case types.InstanceStateNameTerminated:
		return model.InstanceStatusTerminated
	default:
		return model.InstanceStatusPending
	}
}
