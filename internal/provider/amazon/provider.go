package amazon

import (
	"context"
	"fmt"

	"cnb.cool/zhiqiangwang/pkg/logx"

	"github.com/opsre/zencloud/internal/provider"
)

func init() {
	provider.Register("amazon", func() provider.Gateway { return NewGateway() })
}

// AmazonGateway AWS EC2 网关实现,单区域
type AmazonGateway struct {
	client *Client
	config map[string]any
}

// NewGateway 创建 AWS 网关
func NewGateway() *AmazonGateway {
	return &AmazonGateway{}
}

// GetName 返回网关名称
func (p *AmazonGateway) GetName() string {
	return "amazon"
}

// Initialize 初始化 AWS 网关
func (p *AmazonGateway) Initialize(config map[string]any) error {
	p.config = config

	accessKeyID, ok := config["access_key_id"].(string)
	if !ok || accessKeyID == "" {
		return fmt.Errorf("access_key_id is required")
	}

	secretAccessKey, ok := config["secret_access_key"].(string)
	if !ok || secretAccessKey == "" {
		return fmt.Errorf("secret_access_key is required")
	}

	region, _ := config["region"].(string)

	client, err := NewClient(accessKeyID, secretAccessKey, region)
	if err != nil {
		return err
	}
	p.client = client

	logx.Info("Amazon gateway initialized successfully, region %s", client.Region)
	return nil
}

// ListInstances 列出所有实例
func (p *AmazonGateway) ListInstances(ctx context.Context) ([]*provider.Instance, error) {
	return p.client.ListEC2Instances(ctx)
}

// DescribeInstance 获取实例详情
func (p *AmazonGateway) DescribeInstance(ctx context.Context, providerID string) (*provider.Instance, error) {
	return p.client.GetEC2Instance(ctx, providerID)
}

// CreateInstance 创建实例
func (p *AmazonGateway) CreateInstance(ctx context.Context, spec *provider.CreateInstanceSpec) (*provider.CreateInstanceResult, error) {
	return p.client.CreateEC2Instance(ctx, spec)
}

// StartInstance 启动实例
func (p *AmazonGateway) StartInstance(ctx context.Context, providerID string) error {
	return p.client.StartEC2Instance(ctx, providerID)
}

// StopInstance 停止实例
func (p *AmazonGateway) StopInstance(ctx context.Context, providerID string) error {
	return p.client.StopEC2Instance(ctx, providerID)
}

// TerminateInstance 释放实例
func (p *AmazonGateway) TerminateInstance(ctx context.Context, providerID string) error {
	return p.client.TerminateEC2Instance(ctx, providerID)
}

// ListVolumes 列出所有云盘
func (p *AmazonGateway) ListVolumes(ctx context.Context) ([]*provider.Volume, error) {
	return p.client.ListEBSVolumes(ctx)
}

// CreateVolume 创建云盘
func (p *AmazonGateway) CreateVolume(ctx context.Context, spec *provider.CreateVolumeSpec) (string, error) {
	return p.client.CreateEBSVolume(ctx, spec)
}

// AttachVolume 挂载云盘
func (p *AmazonGateway) AttachVolume(ctx context.Context, volumeID, instanceID, device string) error {
	return p.client.AttachEBSVolume(ctx, volumeID, instanceID, device)
}

// DetachVolume 卸载云盘
func (p *AmazonGateway) DetachVolume(ctx context.Context, volumeID, instanceID string) error {
	return p.client.DetachEBSVolume(ctx, volumeID, instanceID)
}

// DeleteVolume 删除云盘
func (p *AmazonGateway) DeleteVolume(ctx context.Context, volumeID string) error {
	return p.client.DeleteEBSVolume(ctx, volumeID)
}

// ListSecurityGroups 列出所有安全组
func (p *AmazonGateway) ListSecurityGroups(ctx context.Context) ([]*provider.SecurityGroup, error) {
	return p.client.ListEC2SecurityGroups(ctx)
}

// CreateSecurityGroup 创建安全组
func (p *AmazonGateway) CreateSecurityGroup(ctx context.Context, name, description, region string) (string, error) {
	return p.client.CreateEC2SecurityGroup(ctx, name, description)
}

// AuthorizeSecurityGroupRule 添加入方向规则
func (p *AmazonGateway) AuthorizeSecurityGroupRule(ctx context.Context, groupID string, rule *provider.SecurityGroupRule) error {
	return p.client.AuthorizeEC2SecurityGroupRule(ctx, groupID, rule)
}

// RevokeSecurityGroupRule 移除入方向规则
func (p *AmazonGateway) RevokeSecurityGroupRule(ctx context.Context, groupID string, rule *provider.SecurityGroupRule) error {
	return p.client.RevokeEC2SecurityGroupRule(ctx, groupID, rule)
}

// DeleteSecurityGroup 删除安全组
func (p *AmazonGateway) DeleteSecurityGroup(ctx context.Context, groupID string) error {
	return p.client.DeleteEC2SecurityGroup(ctx, groupID)
}

// ListRegions 列出区域
func (p *AmazonGateway) ListRegions(ctx context.Context) ([]*provider.Region, error) {
	return p.client.ListEC2Regions(ctx)
}

// ListInstanceTypes 列出实例规格
func (p *AmazonGateway) ListInstanceTypes(ctx context.Context, region string) ([]*provider.InstanceTypeInfo, error) {
	return p.client.ListEC2InstanceTypes(ctx)
}

// ListKeyPairs 列出密钥对
func (p *AmazonGateway) ListKeyPairs(ctx context.Context) ([]*provider.KeyPair, error) {
	return p.client.ListEC2KeyPairs(ctx)
}
