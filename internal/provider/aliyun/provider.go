package aliyun

import (
	"context"
	"errors"
	"fmt"

	"cnb.cool/zhiqiangwang/pkg/logx"

	"github.com/opsre/zencloud/internal/provider"
)

func init() {
	provider.Register("aliyun", func() provider.Gateway { return NewGateway() })
}

// AliyunGateway 阿里云网关实现
type AliyunGateway struct {
	clients map[string]*Client // region -> client
	regions []string           // 保持配置顺序
	config  map[string]any
}

// NewGateway 创建阿里云网关
func NewGateway() *AliyunGateway {
	return &AliyunGateway{
		clients: make(map[string]*Client),
	}
}

// GetName 返回网关名称
func (p *AliyunGateway) GetName() string {
	return "aliyun"
}

// Initialize 初始化阿里云网关
func (p *AliyunGateway) Initialize(config map[string]any) error {
	p.config = config

	accessKeyID, ok := config["access_key_id"].(string)
	if !ok || accessKeyID == "" {
		return fmt.Errorf("access_key_id is required")
	}

	accessKeySecret, ok := config["access_key_secret"].(string)
	if !ok || accessKeySecret == "" {
		return fmt.Errorf("access_key_secret is required")
	}

	// 获取区域列表
	regions, ok := config["regions"].([]any)
	if !ok || len(regions) == 0 {
		regions = []any{"cn-hangzhou"} // 默认区域
	}

	// 为每个区域创建客户端
	for _, r := range regions {
		region, ok := r.(string)
		if !ok {
			continue
		}

		client, err := NewClient(accessKeyID, accessKeySecret, region)
		if err != nil {
			logx.Warn("Failed to create client for region " + region + ": " + err.Error())
			continue
		}

		p.clients[region] = client
		p.regions = append(p.regions, region)
		logx.Info("Initialized Aliyun client for region " + region)
	}

	if len(p.clients) == 0 {
		return fmt.Errorf("no valid region clients created")
	}

	logx.Info("Aliyun gateway initialized successfully, regions %d", len(p.clients))

	return nil
}

// defaultClient 返回第一个配置区域的客户端
func (p *AliyunGateway) defaultClient() *Client {
	return p.clients[p.regions[0]]
}

// clientFor 返回指定区域的客户端,未配置时退回默认区域
func (p *AliyunGateway) clientFor(region string) *Client {
	if client, ok := p.clients[region]; ok {
		return client
	}
	return p.defaultClient()
}

// ListInstances 列出所有区域的实例
func (p *AliyunGateway) ListInstances(ctx context.Context) ([]*provider.Instance, error) {
	allInstances := make([]*provider.Instance, 0)
	var lastErr error

	for _, region := range p.regions {
		instances, err := p.clients[region].ListECSInstances(ctx)
		if err != nil {
			logx.Warn("Failed to query instances in region, region %s, error %v", region, err)
			lastErr = err
			continue
		}
		allInstances = append(allInstances, instances...)
	}

	// 所有区域都失败时视为云厂商不可达
	if len(allInstances) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return allInstances, nil
}

// DescribeInstance 在所有区域查找实例
func (p *AliyunGateway) DescribeInstance(ctx context.Context, providerID string) (*provider.Instance, error) {
	var lastErr error
	for _, region := range p.regions {
		instance, err := p.clients[region].GetECSInstance(ctx, providerID)
		if err == nil {
			return instance, nil
		}
		if !errors.Is(err, provider.ErrNotFound) {
			lastErr = err
		}
		logx.Debug("Instance not found in region, instance_id %s, region %s", providerID, region)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, provider.ErrNotFound
}

// CreateInstance 创建实例
func (p *AliyunGateway) CreateInstance(ctx context.Context, spec *provider.CreateInstanceSpec) (*provider.CreateInstanceResult, error) {
	return p.clientFor(spec.Region).CreateECSInstance(ctx, spec)
}

// StartInstance 启动实例
func (p *AliyunGateway) StartInstance(ctx context.Context, providerID string) error {
	return p.eachRegion(func(c *Client) error {
		return c.StartECSInstance(ctx, providerID)
	})
}

// StopInstance 停止实例
func (p *AliyunGateway) StopInstance(ctx context.Context, providerID string) error {
	return p.eachRegion(func(c *Client) error {
		return c.StopECSInstance(ctx, providerID)
	})
}

// TerminateInstance 释放实例
func (p *AliyunGateway) TerminateInstance(ctx context.Context, providerID string) error {
	return p.eachRegion(func(c *Client) error {
		return c.DeleteECSInstance(ctx, providerID)
	})
}

// ListVolumes 列出所有区域的云盘
func (p *AliyunGateway) ListVolumes(ctx context.Context) ([]*provider.Volume, error) {
	allVolumes := make([]*provider.Volume, 0)
	var lastErr error

	for _, region := range p.regions {
		volumes, err := p.clients[region].ListDisks(ctx)
		if err != nil {
			logx.Warn("Failed to query disks in region, region %s, error %v", region, err)
			lastErr = err
			continue
		}
		allVolumes = append(allVolumes, volumes...)
	}

	if len(allVolumes) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return allVolumes, nil
}

// CreateVolume 创建云盘
func (p *AliyunGateway) CreateVolume(ctx context.Context, spec *provider.CreateVolumeSpec) (string, error) {
	return p.clientFor(spec.Region).CreateDisk(ctx, spec)
}

// AttachVolume 挂载云盘
func (p *AliyunGateway) AttachVolume(ctx context.Context, volumeID, instanceID, device string) error {
	return p.eachRegion(func(c *Client) error {
		return c.AttachDisk(ctx, volumeID, instanceID, device)
	})
}

// DetachVolume 卸载云盘
func (p *AliyunGateway) DetachVolume(ctx context.Context, volumeID, instanceID string) error {
	return p.eachRegion(func(c *Client) error {
		return c.DetachDisk(ctx, volumeID, instanceID)
	})
}

// DeleteVolume 删除云盘
func (p *AliyunGateway) DeleteVolume(ctx context.Context, volumeID string) error {
	return p.eachRegion(func(c *Client) error {
		return c.DeleteDisk(ctx, volumeID)
	})
}

// ListSecurityGroups 列出所有区域的安全组
func (p *AliyunGateway) ListSecurityGroups(ctx context.Context) ([]*provider.SecurityGroup, error) {
	allGroups := make([]*provider.SecurityGroup, 0)
	var lastErr error

	for _, region := range p.regions {
		groups, err := p.clients[region].ListSecurityGroups(ctx)
		if err != nil {
			logx.Warn("Failed to query security groups in region, region %s, error %v", region, err)
			lastErr = err
			continue
		}
		allGroups = append(allGroups, groups...)
	}

	if len(allGroups) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return allGroups, nil
}

// CreateSecurityGroup 创建安全组
func (p *AliyunGateway) CreateSecurityGroup(ctx context.Context, name, description, region string) (string, error) {
	return p.clientFor(region).CreateSecurityGroup(ctx, name, description)
}

// AuthorizeSecurityGroupRule 添加入方向规则
func (p *AliyunGateway) AuthorizeSecurityGroupRule(ctx context.Context, groupID string, rule *provider.SecurityGroupRule) error {
	return p.eachRegion(func(c *Client) error {
		return c.AuthorizeSecurityGroupRule(ctx, groupID, rule)
	})
}

// RevokeSecurityGroupRule 移除入方向规则
func (p *AliyunGateway) RevokeSecurityGroupRule(ctx context.Context, groupID string, rule *provider.SecurityGroupRule) error {
	return p.eachRegion(func(c *Client) error {
		return c.RevokeSecurityGroupRule(ctx, groupID, rule)
	})
}

// DeleteSecurityGroup 删除安全组
func (p *AliyunGateway) DeleteSecurityGroup(ctx context.Context, groupID string) error {
	return p.eachRegion(func(c *Client) error {
		return c.DeleteSecurityGroup(ctx, groupID)
	})
}

// ListRegions 列出区域
func (p *AliyunGateway) ListRegions(ctx context.Context) ([]*provider.Region, error) {
	return p.defaultClient().ListECSRegions(ctx)
}

// ListInstanceTypes 列出实例规格
func (p *AliyunGateway) ListInstanceTypes(ctx context.Context, region string) ([]*provider.InstanceTypeInfo, error) {
	return p.clientFor(region).ListECSInstanceTypes(ctx)
}

// ListKeyPairs 列出密钥对
func (p *AliyunGateway) ListKeyPairs(ctx context.Context) ([]*provider.KeyPair, error) {
	return p.defaultClient().ListECSKeyPairs(ctx)
}

// eachRegion 依次在各区域尝试操作,任一区域成功即返回。
// 资源 ID 全局唯一,错误区域会返回资源不存在类错误。
func (p *AliyunGateway) eachRegion(fn func(c *Client) error) error {
	var lastErr error
	for _, region := range p.regions {
		if err := fn(p.clients[region]); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
