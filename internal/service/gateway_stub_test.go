package service

import (
	"context"
	"fmt"

	"github.com/opsre/zencloud/internal/database"
	"github.com/opsre/zencloud/internal/provider"
	"gorm.io/gorm"
)

// fakeGateway 可编排的网关桩:每个方法由函数字段驱动,
// 未设置的方法返回零值成功。
type fakeGateway struct {
	listInstances     func(ctx context.Context) ([]*provider.Instance, error)
	describeInstance  func(ctx context.Context, providerID string) (*provider.Instance, error)
	createInstance    func(ctx context.Context, spec *provider.CreateInstanceSpec) (*provider.CreateInstanceResult, error)
	startInstance     func(ctx context.Context, providerID string) error
	stopInstance      func(ctx context.Context, providerID string) error
	terminateInstance func(ctx context.Context, providerID string) error
	listVolumes       func(ctx context.Context) ([]*provider.Volume, error)
	createVolume      func(ctx context.Context, spec *provider.CreateVolumeSpec) (string, error)
	attachVolume      func(ctx context.Context, volumeID, instanceID, device string) error
	detachVolume      func(ctx context.Context, volumeID, instanceID string) error
	deleteVolume      func(ctx context.Context, volumeID string) error
	listGroups        func(ctx context.Context) ([]*provider.SecurityGroup, error)
	createGroup       func(ctx context.Context, name, description, region string) (string, error)
	authorizeRule     func(ctx context.Context, groupID string, rule *provider.SecurityGroupRule) error
	revokeRule        func(ctx context.Context, groupID string, rule *provider.SecurityGroupRule) error
	deleteGroup       func(ctx context.Context, groupID string) error
}

func (f *fakeGateway) GetName() string { return "fake" }

func (f *fakeGateway) Initialize(config map[string]any) error { return nil }

func (f *fakeGateway) ListInstances(ctx context.Context) ([]*provider.Instance, error) {
	if f.listInstances != nil {
		return f.listInstances(ctx)
	}
	return nil, nil
}

func (f *fakeGateway) DescribeInstance(ctx context.Context, providerID string) (*provider.Instance, error) {
	if f.describeInstance != nil {
		return f.describeInstance(ctx, providerID)
	}
	return nil, provider.ErrNotFound
}

func (f *fakeGateway) CreateInstance(ctx context.Context, spec *provider.CreateInstanceSpec) (*provider.CreateInstanceResult, error) {
	if f.createInstance != nil {
		return f.createInstance(ctx, spec)
	}
	return &provider.CreateInstanceResult{ProviderID: "i-fake-001"}, nil
}

func (f *fakeGateway) StartInstance(ctx context.Context, providerID string) error {
	if f.startInstance != nil {
		return f.startInstance(ctx, providerID)
	}
	return nil
}

func (f *fakeGateway) StopInstance(ctx context.Context, providerID string) error {
	if f.stopInstance != nil {
		return f.stopInstance(ctx, providerID)
	}
	return nil
}

func (f *fakeGateway) TerminateInstance(ctx context.Context, providerID string) error {
	if f.terminateInstance != nil {
		return f.terminateInstance(ctx, providerID)
	}
	return nil
}

func (f *fakeGateway) ListVolumes(ctx context.Context) ([]*provider.Volume, error) {
	if f.listVolumes != nil {
		return f.listVolumes(ctx)
	}
	return nil, nil
}

func (f *fakeGateway) CreateVolume(ctx context.Context, spec *provider.CreateVolumeSpec) (string, error) {
	if f.createVolume != nil {
		return f.createVolume(ctx, spec)
	}
	return "vol-fake-001", nil
}

func (f *fakeGateway) AttachVolume(ctx context.Context, volumeID, instanceID, device string) error {
	if f.attachVolume != nil {
		return f.attachVolume(ctx, volumeID, instanceID, device)
	}
	return nil
}

func (f *fakeGateway) DetachVolume(ctx context.Context, volumeID, instanceID string) error {
	if f.detachVolume != nil {
		return f.detachVolume(ctx, volumeID, instanceID)
	}
	return nil
}

func (f *fakeGateway) DeleteVolume(ctx context.Context, volumeID string) error {
	if f.deleteVolume != nil {
		return f.deleteVolume(ctx, volumeID)
	}
	return nil
}

func (f *fakeGateway) ListSecurityGroups(ctx context.Context) ([]*provider.SecurityGroup, error) {
	if f.listGroups != nil {
		return f.listGroups(ctx)
	}
	return nil, nil
}

func (f *fakeGateway) CreateSecurityGroup(ctx context.Context, name, description, region string) (string, error) {
	if f.createGroup != nil {
		return f.createGroup(ctx, name, description, region)
	}
	return "sg-fake-001", nil
}

func (f *fakeGateway) AuthorizeSecurityGroupRule(ctx context.Context, groupID string, rule *provider.SecurityGroupRule) error {
	if f.authorizeRule != nil {
		return f.authorizeRule(ctx, groupID, rule)
	}
	return nil
}

func (f *fakeGateway) RevokeSecurityGroupRule(ctx context.Context, groupID string, rule *provider.SecurityGroupRule) error {
	if f.revokeRule != nil {
		return f.revokeRule(ctx, groupID, rule)
	}
	return nil
}

func (f *fakeGateway) DeleteSecurityGroup(ctx context.Context, groupID string) error {
	if f.deleteGroup != nil {
		return f.deleteGroup(ctx, groupID)
	}
	return nil
}

func (f *fakeGateway) ListRegions(ctx context.Context) ([]*provider.Region, error) {
	return []*provider.Region{{ID: "region-1", Name: "Region One"}}, nil
}

func (f *fakeGateway) ListInstanceTypes(ctx context.Context, region string) ([]*provider.InstanceTypeInfo, error) {
	return []*provider.InstanceTypeInfo{{ID: "t.small", Family: "t", CPU: 2, MemoryMB: 2048}}, nil
}

func (f *fakeGateway) ListKeyPairs(ctx context.Context) ([]*provider.KeyPair, error) {
	return nil, nil
}

// newTestDB 打开独立的内存库
func newTestDB(t interface{ Fatalf(format string, args ...any) }) *gorm.DB {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

// errUnreachable 模拟云厂商不可达
var errUnreachable = fmt.Errorf("dial tcp: connection refused")
