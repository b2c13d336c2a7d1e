package aliyun

import (
	"context"
	"fmt"

	"cnb.cool/zhiqiangwang/pkg/logx"
	ecs "github.com/alibabacloud-go/ecs-20140526/v4/client"
	"github.com/alibabacloud-go/tea/tea"

	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider"
)

// ListDisks 查询云盘列表,内部翻页取全量
func (c *Client) ListDisks(ctx context.Context) ([]*provider.Volume, error) {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return nil, err
	}

	pageSize := 100
	pageNum := 1
	volumes := make([]*provider.Volume, 0)

	for {
		request := &ecs.DescribeDisksRequest{
			RegionId:   tea.String(c.Region),
			PageSize:   tea.Int32(int32(pageSize)),
			PageNumber: tea.Int32(int32(pageNum)),
		}

		response, err := ecsClient.DescribeDisks(request)
		if err != nil {
			return nil, fmt.Errorf("failed to describe disks: %w", err)
		}

		if response.Body == nil || response.Body.Disks == nil {
			break
		}

		for _, disk := range response.Body.Disks.Disk {
			volumes = append(volumes, convertDiskToVolume(disk, c.Region))
		}

		if len(response.Body.Disks.Disk) < pageSize {
			break
		}
		pageNum++
	}

	logx.Info("Successfully queried Aliyun disks, count %d, region %s", len(volumes), c.Region)
	return volumes, nil
}

// CreateDisk 创建云盘
func (c *Client) CreateDisk(ctx context.Context, spec *provider.CreateVolumeSpec) (string, error) {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return "", err
	}

	request := &ecs.CreateDiskRequest{
		RegionId: tea.String(c.Region),
		DiskName: tea.String(spec.Name),
		Size:     tea.Int32(int32(spec.SizeGiB)),
	}
	if spec.Zone != "" {
		request.ZoneId = tea.String(spec.Zone)
	}
	if spec.Type != "" {
		request.DiskCategory = tea.String(spec.Type)
	}
	if spec.Encrypted {
		request.Encrypted = tea.Bool(true)
	}

	response, err := ecsClient.CreateDisk(request)
	if err != nil {
		return "", fmt.Errorf("failed to create disk: %w", err)
	}
	if response.Body == nil || response.Body.DiskId == nil {
		return "", fmt.Errorf("create disk returned empty disk id")
	}

	diskID := tea.StringValue(response.Body.DiskId)
	logx.Info("Created Aliyun disk, disk_id %s, size %dGiB", diskID, spec.SizeGiB)
	return diskID, nil
}

// AttachDisk 将云盘挂载到实例
func (c *Client) AttachDisk(ctx context.Context, diskID, instanceID, device string) error {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return err
	}

	request := &ecs.AttachDiskRequest{
		DiskId:     tea.String(diskID),
		InstanceId: tea.String(instanceID),
	}
	if device != "" {
		request.Device = tea.String(device)
	}

	if _, err := ecsClient.AttachDisk(request); err != nil {
		return fmt.Errorf("failed to attach disk: %w", err)
	}

	logx.Info("Attached Aliyun disk, disk_id %s, instance_id %s", diskID, instanceID)
	return nil
}

// DetachDisk 从实例卸载云盘
func (c *Client) DetachDisk(ctx context.Context, diskID, instanceID string) error {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return err
	}

	request := &ecs.DetachDiskRequest{
		DiskId:     tea.String(diskID),
		InstanceId: tea.String(instanceID),
	}

	if _, err := ecsClient.DetachDisk(request); err != nil {
		return fmt.Errorf("failed to detach disk: %w", err)
	}

	logx.Info("Detached Aliyun disk, disk_id %s, instance_id %s", diskID, instanceID)
	return nil
}

// DeleteDisk 删除云盘
func (c *Client) DeleteDisk(ctx context.Context, diskID string) error {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return err
	}

	request := &ecs.DeleteDiskRequest{
		DiskId: tea.String(diskID),
	}

	if _, err := ecsClient.DeleteDisk(request); err != nil {
		return fmt.Errorf("failed to delete disk: %w", err)
	}

	logx.Info("Deleted Aliyun disk, disk_id %s", diskID)
	return nil
}

// convertDiskToVolume 将阿里云云盘转换为统一的云盘视图
func convertDiskToVolume(disk *ecs.DescribeDisksResponseBodyDisksDisk, region string) *provider.Volume {
	volume := &provider.Volume{
		ProviderID: tea.StringValue(disk.DiskId),
		Name:       tea.StringValue(disk.DiskName),
		Type:       tea.StringValue(disk.Category),
		SizeGiB:    int(tea.Int32Value(disk.Size)),
		Region:     region,
		Zone:       tea.StringValue(disk.ZoneId),
		Encrypted:  tea.BoolValue(disk.Encrypted),
		AttachedTo: tea.StringValue(disk.InstanceId),
		Device:     tea.StringValue(disk.Device),
		Status:     convertDiskStatus(tea.StringValue(disk.Status)),
	}
	return volume
}

// convertDiskStatus 将阿里云云盘状态归一化为本地状态常量
func convertDiskStatus(status string) string {
	switch status {
	case "Creating", "ReIniting":
		return model.VolumeStatusCreating
	case "In_use", "Attaching", "Detaching":
		return model.VolumeStatusInUse
	default:
		return model.VolumeStatusAvailable
	}
}
