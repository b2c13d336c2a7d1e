package provider

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound 网关侧查询不到指定资源。
// 调用方用它区分"资源不存在"与"云厂商不可达",后者返回其他错误。
var ErrNotFound = errors.New("provider: resource not found")

// Instance 云厂商上报的实例视图。ProviderID 为厂商分配的实例 ID,
// 本地记录的归属关系由 service 层解析,网关只负责上报。
type Instance struct {
	ProviderID       string            // 厂商实例 ID
	Name             string            // 展示名称
	Status           string            // 已归一化为 model 中的状态常量
	InstanceType     string            // 实例规格
	Region           string            // 区域
	Zone             string            // 可用区
	ImageID          string            // 镜像 ID
	PublicIP         []string          // 公网 IP
	PrivateIP        []string          // 私网 IP
	KeyPairName      string            // 密钥对名称
	SecurityGroupIDs []string          // 厂商侧安全组 ID
	VolumeIDs        []string          // 厂商侧云盘 ID
	Ephemeral        bool              // 抢占式/竞价实例,停止即被厂商回收
	Tags             map[string]string // 厂商侧标签
	LaunchTime       time.Time         // 启动时间
}

// Volume 云厂商上报的云盘视图
type Volume struct {
	ProviderID string
	Name       string
	Type       string
	SizeGiB    int
	Region     string
	Zone       string
	Encrypted  bool
	Status     string // 已归一化为 model 中的状态常量
	AttachedTo string // 厂商侧实例 ID,空表示未挂载
	Device     string
}

// SecurityGroup 云厂商上报的安全组视图
type SecurityGroup struct {
	ProviderID  string
	Name        string
	Description string
	Region      string
	Rules       []SecurityGroupRule
}

// SecurityGroupRule 入方向规则
type SecurityGroupRule struct {
	Protocol    string
	FromPort    int
	ToPort      int
	Source      string
	Description string
}

// Region 区域信息
type Region struct {
	ID   string
	Name string
}

// InstanceTypeInfo 实例规格信息
type InstanceTypeInfo struct {
	ID       string
	Family   string
	CPU      int
	MemoryMB int
}

// KeyPair 密钥对信息
type KeyPair struct {
	Name        string
	Fingerprint string
}

// CreateInstanceSpec 创建实例参数
type CreateInstanceSpec struct {
	Name             string
	InstanceType     string
	Region           string
	Zone             string
	ImageID          string
	KeyPairName      string
	SecurityGroupIDs []string
	Ephemeral        bool
	WorkloadProfile  string
	Tags             map[string]string
}

// CreateInstanceResult 创建实例的厂商回执
type CreateInstanceResult struct {
	ProviderID string
	PublicIP   []string
	PrivateIP  []string
	Zone       string
}

// CreateVolumeSpec 创建云盘参数
type CreateVolumeSpec struct {
	Name      string
	Type      string
	SizeGiB   int
	Region    string
	Zone      string
	Encrypted bool
}

// Gateway 定义了云服务提供商的统一网关接口。
// 网关只上报和转发,不拥有任何状态;本地记录归 service 层所有。
// 进程启动时根据配置构造一次,之后传给所有需要它的组件。
type Gateway interface {
	// GetName 返回网关名称 (如: mock, aliyun, amazon)
	GetName() string

	// Initialize 初始化网关客户端
	Initialize(config map[string]any) error

	// ListInstances 列出所有实例
	ListInstances(ctx context.Context) ([]*Instance, error)

	// DescribeInstance 按厂商实例 ID 获取实例详情,不存在时返回 ErrNotFound
	DescribeInstance(ctx context.Context, providerID string) (*Instance, error)

	// CreateInstance 创建实例,成功时返回厂商分配的实例 ID 与地址
	CreateInstance(ctx context.Context, spec *CreateInstanceSpec) (*CreateInstanceResult, error)

	// StartInstance 启动实例
	StartInstance(ctx context.Context, providerID string) error

	// StopInstance 停止实例
	StopInstance(ctx context.Context, providerID string) error

	// TerminateInstance 释放实例
	TerminateInstance(ctx context.Context, providerID string) error

	// ListVolumes 列出所有云盘
	ListVolumes(ctx context.Context) ([]*Volume, error)

	// CreateVolume 创建云盘,成功时返回厂商分配的云盘 ID
	CreateVolume(ctx context.Context, spec *CreateVolumeSpec) (string, error)

	// AttachVolume 将云盘挂载到实例
	AttachVolume(ctx context.Context, volumeID, instanceID, device string) error

	// DetachVolume 卸载云盘
	DetachVolume(ctx context.Context, volumeID, instanceID string) error

	// DeleteVolume 删除云盘
	DeleteVolume(ctx context.Context, volumeID string) error

	// ListSecurityGroups 列出所有安全组
	ListSecurityGroups(ctx context.Context) ([]*SecurityGroup, error)

	// CreateSecurityGroup 创建安全组,成功时返回厂商分配的安全组 ID
	CreateSecurityGroup(ctx context.Context, name, description, region string) (string, error)

	// AuthorizeSecurityGroupRule 添加入方向规则
	AuthorizeSecurityGroupRule(ctx context.Context, groupID string, rule *SecurityGroupRule) error

	// RevokeSecurityGroupRule 移除入方向规则
	RevokeSecurityGroupRule(ctx context.Context, groupID string, rule *SecurityGroupRule) error

	// DeleteSecurityGroup 删除安全组
	DeleteSecurityGroup(ctx context.Context, groupID string) error

	// ListRegions 列出区域
	ListRegions(ctx context.Context) ([]*Region, error)

	// ListInstanceTypes 列出指定区域可用的实例规格
	ListInstanceTypes(ctx context.Context, region string) ([]*InstanceTypeInfo, error)

	// ListKeyPairs 列出密钥对
	ListKeyPairs(ctx context.Context) ([]*KeyPair, error)
}
