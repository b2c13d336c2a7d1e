package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider"
)

func init() {
	provider.Register("mock", func() provider.Gateway { return NewGateway() })
}

// Gateway 内存模拟云,用于开发环境和测试。
// 行为由创建时声明的 workload_profile 决定,不做任何基于名称的猜测。
type Gateway struct {
	mu             sync.Mutex
	region         string
	seq            int
	instances      map[string]*provider.Instance
	volumes        map[string]*provider.Volume
	securityGroups map[string]*provider.SecurityGroup
}

// NewGateway 创建模拟网关
func NewGateway() *Gateway {
	return &Gateway{
		region:         "mock-1",
		instances:      make(map[string]*provider.Instance),
		volumes:        make(map[string]*provider.Volume),
		securityGroups: make(map[string]*provider.SecurityGroup),
	}
}

// GetName 返回网关名称
func (g *Gateway) GetName() string {
	return "mock"
}

// Initialize 初始化模拟网关
func (g *Gateway) Initialize(config map[string]any) error {
	if region, ok := config["region"].(string); ok && region != "" {
		g.region = region
	}
	return nil
}

// nextID 生成下一个确定性的厂商 ID
func (g *Gateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s-mock-%08d", prefix, g.seq)
}

// ListInstances 列出所有实例
func (g *Gateway) ListInstances(ctx context.Context) ([]*provider.Instance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	instances := make([]*provider.Instance, 0, len(g.instances))
	for _, inst := range g.instances {
		instances = append(instances, cloneInstance(inst))
	}
	return instances, nil
}

// DescribeInstance 获取实例详情
func (g *Gateway) DescribeInstance(ctx context.Context, providerID string) (*provider.Instance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	inst, ok := g.instances[providerID]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return cloneInstance(inst), nil
}

// CreateInstance 创建实例。实例立即进入 running,web 类负载额外分配公网 IP。
func (g *Gateway) CreateInstance(ctx context.Context, spec *provider.CreateInstanceSpec) (*provider.CreateInstanceResult, error) {
	if spec == nil || spec.InstanceType == "" {
		return nil, fmt.Errorf("instance_type is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextID("i")
	privateIP := []string{fmt.Sprintf("10.0.%d.%d", g.seq/250, g.seq%250+1)}
	var publicIP []string
	if spec.WorkloadProfile == model.WorkloadWeb {
		publicIP = []string{fmt.Sprintf("203.0.113.%d", g.seq%250+1)}
	}

	zone := spec.Zone
	if zone == "" {
		zone = g.region + "a"
	}

	tags := make(map[string]string, len(spec.Tags))
	for k, v := range spec.Tags {
		tags[k] = v
	}

	g.instances[id] = &provider.Instance{
		ProviderID:       id,
		Name:             spec.Name,
		Status:           model.InstanceStatusRunning,
		InstanceType:     spec.InstanceType,
		Region:           g.region,
		Zone:             zone,
		ImageID:          spec.ImageID,
		PublicIP:         publicIP,
		PrivateIP:        privateIP,
		KeyPairName:      spec.KeyPairName,
		SecurityGroupIDs: append([]string{}, spec.SecurityGroupIDs...),
		Ephemeral:        spec.Ephemeral,
		Tags:             tags,
		LaunchTime:       time.Now(),
	}

	return &provider.CreateInstanceResult{
		ProviderID: id,
		PublicIP:   publicIP,
		PrivateIP:  privateIP,
		Zone:       zone,
	}, nil
}

// StartInstance 启动实例
func (g *Gateway) StartInstance(ctx context.Context, providerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	inst, ok := g.instances[providerID]
	if !ok {
		return provider.ErrNotFound
	}
	inst.Status = model.InstanceStatusRunning
	return nil
}

// StopInstance 停止实例。抢占式实例停止即回收。
func (g *Gateway) StopInstance(ctx context.Context, providerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	inst, ok := g.instances[providerID]
	if !ok {
		return provider.ErrNotFound
	}
	if inst.Ephemeral {
		delete(g.instances, providerID)
		return nil
	}
	inst.Status = model.InstanceStatusStopped
	return nil
}

// TerminateInstance 释放实例
func (g *Gateway) TerminateInstance(ctx context.Context, providerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.instances[providerID]; !ok {
		return provider.ErrNotFound
	}
	delete(g.instances, providerID)
	return nil
}

// ListVolumes 列出所有云盘
func (g *Gateway) ListVolumes(ctx context.Context) ([]*provider.Volume, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	volumes := make([]*provider.Volume, 0, len(g.volumes))
	for _, vol := range g.volumes {
		v := *vol
		volumes = append(volumes, &v)
	}
	return volumes, nil
}

// CreateVolume 创建云盘
func (g *Gateway) CreateVolume(ctx context.Context, spec *provider.CreateVolumeSpec) (string, error) {
	if spec == nil || spec.SizeGiB <= 0 {
		return "", fmt.Errorf("volume size must be positive")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextID("vol")
	zone := spec.Zone
	if zone == "" {
		zone = g.region + "a"
	}
	g.volumes[id] = &provider.Volume{
		ProviderID: id,
		Name:       spec.Name,
		Type:       spec.Type,
		SizeGiB:    spec.SizeGiB,
		Region:     g.region,
		Zone:       zone,
		Encrypted:  spec.Encrypted,
		Status:     model.VolumeStatusAvailable,
	}
	return id, nil
}

// AttachVolume 挂载云盘
func (g *Gateway) AttachVolume(ctx context.Context, volumeID, instanceID, device string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	vol, ok := g.volumes[volumeID]
	if !ok {
		return provider.ErrNotFound
	}
	if _, ok := g.instances[instanceID]; !ok {
		return provider.ErrNotFound
	}
	if vol.AttachedTo != "" {
		return fmt.Errorf("volume %s is already attached to %s", volumeID, vol.AttachedTo)
	}

	vol.AttachedTo = instanceID
	vol.Device = device
	vol.Status = model.VolumeStatusInUse

	inst := g.instances[instanceID]
	inst.VolumeIDs = append(inst.VolumeIDs, volumeID)
	return nil
}

// DetachVolume 卸载云盘
func (g *Gateway) DetachVolume(ctx context.Context, volumeID, instanceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	vol, ok := g.volumes[volumeID]
	if !ok {
		return provider.ErrNotFound
	}
	if vol.AttachedTo == "" {
		return fmt.Errorf("volume %s is not attached", volumeID)
	}

	vol.AttachedTo = ""
	vol.Device = ""
	vol.Status = model.VolumeStatusAvailable

	if inst, ok := g.instances[instanceID]; ok {
		kept := make([]string, 0, len(inst.VolumeIDs))
		for _, v := range inst.VolumeIDs {
			if v != volumeID {
				kept = append(kept, v)
			}
		}
		inst.VolumeIDs = kept
	}
	return nil
}

// DeleteVolume 删除云盘
func (g *Gateway) DeleteVolume(ctx context.Context, volumeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	vol, ok := g.volumes[volumeID]
	if !ok {
		return provider.ErrNotFound
	}
	if vol.AttachedTo != "" {
		return fmt.Errorf("volume %s is in use", volumeID)
	}
	delete(g.volumes, volumeID)
	return nil
}

// ListSecurityGroups 列出所有安全组
func (g *Gateway) ListSecurityGroups(ctx context.Context) ([]*provider.SecurityGroup, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	groups := make([]*provider.SecurityGroup, 0, len(g.securityGroups))
	for _, sg := range g.securityGroups {
		clone := *sg
		clone.Rules = append([]provider.SecurityGroupRule{}, sg.Rules...)
		groups = append(groups, &clone)
	}
	return groups, nil
}

// CreateSecurityGroup 创建安全组
func (g *Gateway) CreateSecurityGroup(ctx context.Context, name, description, region string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if region == "" {
		region = g.region
	}
	id := g.nextID("sg")
	g.securityGroups[id] = &provider.SecurityGroup{
		ProviderID:  id,
		Name:        name,
		Description: description,
		Region:      region,
	}
	return id, nil
}

// AuthorizeSecurityGroupRule 添加入方向规则
func (g *Gateway) AuthorizeSecurityGroupRule(ctx context.Context, groupID string, rule *provider.SecurityGroupRule) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	sg, ok := g.securityGroups[groupID]
	if !ok {
		return provider.ErrNotFound
	}
	for _, r := range sg.Rules {
		if sameRule(r, *rule) {
			return fmt.Errorf("rule already exists")
		}
	}
	sg.Rules = append(sg.Rules, *rule)
	return nil
}

// RevokeSecurityGroupRule 移除入方向规则
func (g *Gateway) RevokeSecurityGroupRule(ctx context.Context, groupID string, rule *provider.SecurityGroupRule) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	sg, ok := g.securityGroups[groupID]
	if !ok {
		return provider.ErrNotFound
	}
	kept := make([]provider.SecurityGroupRule, 0, len(sg.Rules))
	for _, r := range sg.Rules {
		if !sameRule(r, *rule) {
			kept = append(kept, r)
		}
	}
	sg.Rules = kept
	return nil
}

// DeleteSecurityGroup 删除安全组
func (g *Gateway) DeleteSecurityGroup(ctx context.Context, groupID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.securityGroups[groupID]; !ok {
		return provider.ErrNotFound
	}
	delete(g.securityGroups, groupID)
	return nil
}

// ListRegions 列出区域
func (g *Gateway) ListRegions(ctx context.Context) ([]*provider.Region, error) {
	return []*provider.Region{
		{ID: g.region, Name: "Mock Region 1"},
	}, nil
}

// ListInstanceTypes 列出实例规格
func (g *Gateway) ListInstanceTypes(ctx context.Context, region string) ([]*provider.InstanceTypeInfo, error) {
	return []*provider.InstanceTypeInfo{
		{ID: "mock.small", Family: "mock", CPU: 1, MemoryMB: 2048},
		{ID: "mock.medium", Family: "mock", CPU: 2, MemoryMB: 4096},
		{ID: "mock.large", Family: "mock", CPU: 4, MemoryMB: 8192},
	}, nil
}

// ListKeyPairs 列出密钥对
func (g *Gateway) ListKeyPairs(ctx context.Context) ([]*provider.KeyPair, error) {
	return []*provider.KeyPair{
		{Name: "mock-default", Fingerprint: "00:11:22:33:44:55"},
	}, nil
}

// sameRule 按身份四元组比较规则
func sameRule(a, b provider.SecurityGroupRule) bool {
	return strings.EqualFold(a.Protocol, b.Protocol) &&
		a.FromPort == b.FromPort &&
		a.ToPort == b.ToPort &&
		a.Source == b.Source
}

// cloneInstance 返回实例的深拷贝,避免调用方拿到内部状态
func cloneInstance(inst *provider.Instance) *provider.Instance {
	clone := *inst
	clone.PublicIP = append([]string{}, inst.PublicIP...)
	clone.PrivateIP = append([]string{}, inst.PrivateIP...)
	clone.SecurityGroupIDs = append([]string{}, inst.SecurityGroupIDs...)
	clone.VolumeIDs = append([]string{}, inst.VolumeIDs...)
	clone.Tags = make(map[string]string, len(inst.Tags))
	for k, v := range inst.Tags {
		clone.Tags[k] = v
	}
	return &clone
}
