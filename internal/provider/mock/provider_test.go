package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider"
)

func TestCreateInstanceWorkloadProfiles(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	// web 负载分配公网 IP
	web, err := g.CreateInstance(ctx, &provider.CreateInstanceSpec{
		Name:            "web-1",
		InstanceType:    "mock.small",
		WorkloadProfile: model.WorkloadWeb,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, web.PublicIP)
	assert.NotEmpty(t, web.PrivateIP)

	// 其他负载只有私网 IP
	worker, err := g.CreateInstance(ctx, &provider.CreateInstanceSpec{
		Name:            "worker-1",
		InstanceType:    "mock.small",
		WorkloadProfile: model.WorkloadWorker,
	})
	require.NoError(t, err)
	assert.Empty(t, worker.PublicIP)
	assert.NotEmpty(t, worker.PrivateIP)

	assert.NotEqual(t, web.ProviderID, worker.ProviderID)
}

func TestDescribeInstanceNotFound(t *testing.T) {
	g := NewGateway()
	_, err := g.DescribeInstance(context.Background(), "i-missing")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestStopEphemeralInstanceReclaims(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	result, err := g.CreateInstance(ctx, &provider.CreateInstanceSpec{
		Name:         "spot-1",
		InstanceType: "mock.small",
		Ephemeral:    true,
	})
	require.NoError(t, err)

	// 抢占式实例停止即被回收
	require.NoError(t, g.StopInstance(ctx, result.ProviderID))
	_, err = g.DescribeInstance(ctx, result.ProviderID)
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestInstanceLifecycle(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	result, err := g.CreateInstance(ctx, &provider.CreateInstanceSpec{
		Name:         "web-1",
		InstanceType: "mock.small",
	})
	require.NoError(t, err)

	inst, err := g.DescribeInstance(ctx, result.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusRunning, inst.Status)

	require.NoError(t, g.StopInstance(ctx, result.ProviderID))
	inst, _ = g.DescribeInstance(ctx, result.ProviderID)
	assert.Equal(t, model.InstanceStatusStopped, inst.Status)

	require.NoError(t, g.StartInstance(ctx, result.ProviderID))
	inst, _ = g.DescribeInstance(ctx, result.ProviderID)
	assert.Equal(t, model.InstanceStatusRunning, inst.Status)

	require.NoError(t, g.TerminateInstance(ctx, result.ProviderID))
	_, err = g.DescribeInstance(ctx, result.ProviderID)
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestVolumeLifecycle(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	instResult, err := g.CreateInstance(ctx, &provider.CreateInstanceSpec{
		Name:         "web-1",
		InstanceType: "mock.small",
	})
	require.NoError(t, err)

	volID, err := g.CreateVolume(ctx, &provider.CreateVolumeSpec{Name: "data", SizeGiB: 100})
	require.NoError(t, err)

	require.NoError(t, g.AttachVolume(ctx, volID, instResult.ProviderID, "/dev/xvdf"))

	// 挂载中的盘不允许再次挂载或删除
	assert.Error(t, g.AttachVolume(ctx, volID, instResult.ProviderID, "/dev/xvdg"))
	assert.Error(t, g.DeleteVolume(ctx, volID))

	inst, err := g.DescribeInstance(ctx, instResult.ProviderID)
	require.NoError(t, err)
	assert.Contains(t, inst.VolumeIDs, volID)

	require.NoError(t, g.DetachVolume(ctx, volID, instResult.ProviderID))
	require.NoError(t, g.DeleteVolume(ctx, volID))

	volumes, err := g.ListVolumes(ctx)
	require.NoError(t, err)
	assert.Empty(t, volumes)
}

func TestSecurityGroupRules(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	sgID, err := g.CreateSecurityGroup(ctx, "web-sg", "http ingress", "")
	require.NoError(t, err)

	rule := &provider.SecurityGroupRule{Protocol: "tcp", FromPort: 80, ToPort: 80, Source: "0.0.0.0/0"}
	require.NoError(t, g.AuthorizeSecurityGroupRule(ctx, sgID, rule))

	// 身份相同的规则重复添加被拒绝,协议大小写不敏感
	dup := &provider.SecurityGroupRule{Protocol: "TCP", FromPort: 80, ToPort: 80, Source: "0.0.0.0/0"}
	assert.Error(t, g.AuthorizeSecurityGroupRule(ctx, sgID, dup))

	require.NoError(t, g.RevokeSecurityGroupRule(ctx, sgID, rule))

	groups, err := g.ListSecurityGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Empty(t, groups[0].Rules)

	require.NoError(t, g.DeleteSecurityGroup(ctx, sgID))
}

func TestRegistryRegistration(t *testing.T) {
	gw, err := provider.New("mock")
	require.NoError(t, err)
	assert.Equal(t, "mock", gw.GetName())

	// 每次 New 得到独立的实例
	other, err := provider.New("mock")
	require.NoError(t, err)
	assert.NotSame(t, gw, other)
}
