package aliyun

import (
	"context"
	"fmt"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	ecs "github.com/alibabacloud-go/ecs-20140526/v4/client"
	"github.com/alibabacloud-go/tea/tea"

	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider"
)

// ListECSInstances 查询 ECS 实例列表,内部翻页取全量
func (c *Client) ListECSInstances(ctx context.Context) ([]*provider.Instance, error) {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return nil, err
	}

	pageSize := 100
	pageNum := 1
	instances := make([]*provider.Instance, 0)

	for {
		request := &ecs.DescribeInstancesRequest{
			RegionId:   tea.String(c.Region),
			PageSize:   tea.Int32(int32(pageSize)),
			PageNumber: tea.Int32(int32(pageNum)),
		}

		logx.Debug("Querying Aliyun ECS instances, region %s, page_num %d", c.Region, pageNum)

		response, err := ecsClient.DescribeInstances(request)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}

		if response.Body == nil || response.Body.Instances == nil {
			break
		}

		for _, inst := range response.Body.Instances.Instance {
			instances = append(instances, convertECSToInstance(inst, c.Region))
		}

		if len(response.Body.Instances.Instance) < pageSize {
			break
		}
		pageNum++
	}

	logx.Info("Successfully queried Aliyun ECS instances, count %d, region %s",
		len(instances), c.Region)

	return instances, nil
}

// GetECSInstance 获取 ECS 实例详情,不存在时返回 provider.ErrNotFound
func (c *Client) GetECSInstance(ctx context.Context, instanceID string) (*provider.Instance, error) {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return nil, err
	}

	request := &ecs.DescribeInstancesRequest{
		RegionId:    tea.String(c.Region),
		InstanceIds: tea.String(fmt.Sprintf(`["%s"]`, instanceID)),
	}

	logx.Debug("Querying Aliyun ECS instance, instance_id %s, region %s",
		instanceID, c.Region)

	response, err := ecsClient.DescribeInstances(request)
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance: %w", err)
	}

	if response.Body == nil || response.Body.Instances == nil || len(response.Body.Instances.Instance) == 0 {
		return nil, provider.ErrNotFound
	}

	return convertECSToInstance(response.Body.Instances.Instance[0], c.Region), nil
}

// CreateECSInstance 创建 ECS 实例
func (c *Client) CreateECSInstance(ctx context.Context, spec *provider.CreateInstanceSpec) (*provider.CreateInstanceResult, error) {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return nil, err
	}

	request := &ecs.CreateInstanceRequest{
		RegionId:     tea.String(c.Region),
		InstanceName: tea.String(spec.Name),
		InstanceType: tea.String(spec.InstanceType),
		ImageId:      tea.String(spec.ImageID),
	}
	if spec.Zone != "" {
		request.ZoneId = tea.String(spec.Zone)
	}
	if spec.KeyPairName != "" {
		request.KeyPairName = tea.String(spec.KeyPairName)
	}
	if len(spec.SecurityGroupIDs) > 0 {
		request.SecurityGroupId = tea.String(spec.SecurityGroupIDs[0])
	}
	if spec.Ephemeral {
		// 抢占式实例,停止即被回收
		request.SpotStrategy = tea.String("SpotAsPriceGo")
	}

	tags := make([]*ecs.CreateInstanceRequestTag, 0, len(spec.Tags))
	for k, v := range spec.Tags {
		tags = append(tags, &ecs.CreateInstanceRequestTag{
			Key:   tea.String(k),
			Value: tea.String(v),
		})
	}
	if len(tags) > 0 {
		request.Tag = tags
	}

	logx.Info("Creating Aliyun ECS instance, name %s, type %s, region %s",
		spec.Name, spec.InstanceType, c.Region)

	response, err := ecsClient.CreateInstance(request)
	if err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}
	if response.Body == nil || response.Body.InstanceId == nil {
		return nil, fmt.Errorf("create instance returned empty instance id")
	}

	providerID := tea.StringValue(response.Body.InstanceId)

	// 地址在启动后才分配,回查一次尽力补齐
	result := &provider.CreateInstanceResult{
		ProviderID: providerID,
		Zone:       spec.Zone,
	}
	if inst, err := c.GetECSInstance(ctx, providerID); err == nil {
		result.PublicIP = inst.PublicIP
		result.PrivateIP = inst.PrivateIP
		result.Zone = inst.Zone
	}

	return result, nil
}

// StartECSInstance 启动 ECS 实例
func (c *Client) StartECSInstance(ctx context.Context, instanceID string) error {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return err
	}

	request := &ecs.StartInstanceRequest{
		InstanceId: tea.String(instanceID),
	}

	if _, err := ecsClient.StartInstance(request); err != nil {
		return fmt.Errorf("failed to start instance: %w", err)
	}

	logx.Info("Started Aliyun ECS instance, instance_id %s", instanceID)
	return nil
}

// StopECSInstance 停止 ECS 实例
func (c *Client) StopECSInstance(ctx context.Context, instanceID string) error {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return err
	}

	request := &ecs.StopInstanceRequest{
		InstanceId: tea.String(instanceID),
	}

	if _, err := ecsClient.StopInstance(request); err != nil {
		return fmt.Errorf("failed to stop instance: %w", err)
	}

	logx.Info("Stopped Aliyun ECS instance, instance_id %s", instanceID)
	return nil
}

// DeleteECSInstance 释放 ECS 实例
func (c *Client) DeleteECSInstance(ctx context.Context, instanceID string) error {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return err
	}

	request := &ecs.DeleteInstanceRequest{
		InstanceId: tea.String(instanceID),
		Force:      tea.Bool(true),
	}

	if _, err := ecsClient.DeleteInstance(request); err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}

	logx.Info("Deleted Aliyun ECS instance, instance_id %s", instanceID)
	return nil
}

// ListECSRegions 列出区域
func (c *Client) ListECSRegions(ctx context.Context) ([]*provider.Region, error) {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return nil, err
	}

	response, err := ecsClient.DescribeRegions(&ecs.DescribeRegionsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe regions: %w", err)
	}

	if response.Body == nil || response.Body.Regions == nil {
		return []*provider.Region{}, nil
	}

	regions := make([]*provider.Region, 0, len(response.Body.Regions.Region))
	for _, r := range response.Body.Regions.Region {
		regions = append(regions, &provider.Region{
			ID:   tea.StringValue(r.RegionId),
			Name: tea.StringValue(r.LocalName),
		})
	}
	return regions, nil
}

// ListECSInstanceTypes 列出实例规格
func (c *Client) ListECSInstanceTypes(ctx context.Context) ([]*provider.InstanceTypeInfo, error) {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return nil, err
	}

	response, err := ecsClient.DescribeInstanceTypes(&ecs.DescribeInstanceTypesRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance types: %w", err)
	}

	if response.Body == nil || response.Body.InstanceTypes == nil {
		return []*provider.InstanceTypeInfo{}, nil
	}

	types := make([]*provider.InstanceTypeInfo, 0, len(response.Body.InstanceTypes.InstanceType))
	for _, t := range response.Body.InstanceTypes.InstanceType {
		types = append(types, &provider.InstanceTypeInfo{
			ID:       tea.StringValue(t.InstanceTypeId),
			Family:   tea.StringValue(t.InstanceTypeFamily),
			CPU:      int(tea.Int32Value(t.CpuCoreCount)),
			MemoryMB: int(tea.Float32Value(t.MemorySize) * 1024),
		})
	}
	return types, nil
}

// ListECSKeyPairs 列出密钥对
func (c *Client) ListECSKeyPairs(ctx context.Context) ([]*provider.KeyPair, error) {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return nil, err
	}

	request := &ecs.DescribeKeyPairsRequest{
		RegionId: tea.String(c.Region),
	}

	response, err := ecsClient.DescribeKeyPairs(request)
	if err != nil {
		return nil, fmt.Errorf("failed to describe key pairs: %w", err)
	}

	if response.Body == nil || response.Body.KeyPairs == nil {
		return []*provider.KeyPair{}, nil
	}

	keyPairs := make([]*provider.KeyPair, 0, len(response.Body.KeyPairs.KeyPair))
	for _, kp := range response.Body.KeyPairs.KeyPair {
		keyPairs = append(keyPairs, &provider.KeyPair{
			Name:        tea.StringValue(kp.KeyPairName),
			Fingerprint: tea.StringValue(kp.KeyPairFingerPrint),
		})
	}
	return keyPairs, nil
}

// convertECSToInstance 将阿里云 ECS 实例转换为统一的实例视图
func convertECSToInstance(inst *ecs.DescribeInstancesResponseBodyInstancesInstance, region string) *provider.Instance {
	instance := &provider.Instance{
		ProviderID:   tea.StringValue(inst.InstanceId),
		Name:         tea.StringValue(inst.InstanceName),
		Region:       region,
		Zone:         tea.StringValue(inst.ZoneId),
		InstanceType: tea.StringValue(inst.InstanceType),
		ImageID:      tea.StringValue(inst.ImageId),
		KeyPairName:  tea.StringValue(inst.KeyPairName),
		Status:       convertECSStatus(tea.StringValue(inst.Status)),
		Ephemeral:    tea.StringValue(inst.SpotStrategy) != "" && tea.StringValue(inst.SpotStrategy) != "NoSpot",
		Tags:         make(map[string]string),
	}

	// 解析启动时间
	if inst.StartTime != nil {
		if t, err := time.Parse("2006-01-02T15:04Z", tea.StringValue(inst.StartTime)); err == nil {
			instance.LaunchTime = t
		}
	}
	if instance.LaunchTime.IsZero() && inst.CreationTime != nil {
		if t, err := time.Parse("2006-01-02T15:04Z", tea.StringValue(inst.CreationTime)); err == nil {
			instance.LaunchTime = t
		}
	}

	// 解析私网 IP
	if inst.VpcAttributes != nil && inst.VpcAttributes.PrivateIpAddress != nil {
		for _, ip := range inst.VpcAttributes.PrivateIpAddress.IpAddress {
			if ip != nil {
				instance.PrivateIP = append(instance.PrivateIP, tea.StringValue(ip))
			}
		}
	}

	// 解析公网 IP
	if inst.PublicIpAddress != nil && inst.PublicIpAddress.IpAddress != nil {
		for _, ip := range inst.PublicIpAddress.IpAddress {
			if ip != nil {
				instance.PublicIP = append(instance.PublicIP, tea.StringValue(ip))
			}
		}
	}

	// 解析 EIP
	if inst.EipAddress != nil && inst.EipAddress.IpAddress != nil && tea.StringValue(inst.EipAddress.IpAddress) != "" {
		instance.PublicIP = append(instance.PublicIP, tea.StringValue(inst.EipAddress.IpAddress))
	}

	// 解析安全组
	if inst.SecurityGroupIds != nil {
		for _, sg := range inst.SecurityGroupIds.SecurityGroupId {
			if sg != nil {
				instance.SecurityGroupIDs = append(instance.SecurityGroupIDs, tea.StringValue(sg))
			}
		}
	}

	// 解析标签
	if inst.Tags != nil && inst.Tags.Tag != nil {
		for _, tag := range inst.Tags.Tag {
			if tag != nil {
				instance.Tags[tea.StringValue(tag.TagKey)] = tea.StringValue(tag.TagValue)
			}
		}
	}

	return instance
}

// convertECSStatus 将阿里云实例状态归一化为本地状态常量
func convertECSStatus(status string) string {
	switch status {
	case "Pending":
		return model.InstanceStatusPending
	case "Starting":
		return model.InstanceStatusInitializing
	case "Running":
		return model.InstanceStatusRunning
	case "Stopping":
		return model.InstanceStatusStopping
	case "Stopped":
		return model.InstanceStatusStopped
	default:
		return model.InstanceStatusPending
	}
}
