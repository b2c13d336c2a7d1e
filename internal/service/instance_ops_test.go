package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider"
)

func TestCreateInstanceSuccess(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{
		createInstance: func(ctx context.Context, spec *provider.CreateInstanceSpec) (*provider.CreateInstanceResult, error) {
			return &provider.CreateInstanceResult{
				ProviderID: "i-new-1",
				PublicIP:   []string{"203.0.113.10"},
				PrivateIP:  []string{"10.0.0.10"},
				Zone:       "zone-a",
			}, nil
		},
	}
	svc := NewInstanceService(db, gw, nil)

	inst, task, err := svc.CreateInstance(context.Background(), &model.CreateInstanceRequest{
		Name:         "web-1",
		InstanceType: "t.small",
		Region:       "region-1",
	})
	require.NoError(t, err)

	// 调用方立刻看到 pending 的意图记录
	assert.Equal(t, model.InstanceStatusPending, inst.Status)
	assert.False(t, inst.HasProviderID())

	require.NoError(t, task.Wait())

	final, err := svc.Get(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusRunning, final.Status)
	require.NotNil(t, final.ProviderID)
	assert.Equal(t, "i-new-1", *final.ProviderID)
	assert.Equal(t, "zone-a", final.Zone)
	assert.Equal(t, model.StringArray{"10.0.0.10"}, final.PrivateIP)
}

func TestCreateInstanceRemoteFailureNeverBecomesRunning(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{
		createInstance: func(ctx context.Context, spec *provider.CreateInstanceSpec) (*provider.CreateInstanceResult, error) {
			return nil, errUnreachable
		},
	}
	svc := NewInstanceService(db, gw, nil)

	inst, task, err := svc.CreateInstance(context.Background(), &model.CreateInstanceRequest{
		Name:         "web-1",
		InstanceType: "t.small",
		Region:       "region-1",
	})
	require.NoError(t, err)

	err = task.Wait()
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	final, err := svc.Get(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusTerminated, final.Status)
	assert.False(t, final.HasProviderID())
}

func TestCreateInstanceValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstanceService(db, &fakeGateway{}, nil)

	_, _, err := svc.CreateInstance(context.Background(), &model.CreateInstanceRequest{
		InstanceType: "t.small",
		Region:       "region-1",
	})
	assert.ErrorIs(t, err, ErrPolicyViolation)

	_, _, err = svc.CreateInstance(context.Background(), &model.CreateInstanceRequest{
		Name:            "web-1",
		InstanceType:    "t.small",
		Region:          "region-1",
		WorkloadProfile: "mainframe",
	})
	assert.ErrorIs(t, err, ErrPolicyViolation)

	// 校验失败不落任何记录
	var count int64
	db.Model(&model.Instance{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestCreateInstanceInstallTags(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstanceService(db, &fakeGateway{}, nil)

	inst, task, err := svc.CreateInstance(context.Background(), &model.CreateInstanceRequest{
		Name:             "web-1",
		InstanceType:     "t.small",
		Region:           "region-1",
		InstallRequested: true,
		InstallProduct:   "nginx",
	})
	require.NoError(t, err)
	require.NoError(t, task.Wait())

	assert.Equal(t, "true", inst.Tags[model.TagInstallRequested])
	assert.Equal(t, "nginx", inst.Tags[model.TagInstallProduct])
	assert.True(t, inst.InstallRequested())
	assert.False(t, inst.InstallCompleted())
}

func TestStartInstanceEphemeralRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstanceService(db, &fakeGateway{}, nil)

	providerID := "i-spot-1"
	seedInstance(t, svc, &model.Instance{
		ID:         "spot-1",
		ProviderID: &providerID,
		Name:       "spot",
		Status:     model.InstanceStatusStopped,
		Ephemeral:  true,
	})

	_, _, err := svc.StartInstance(context.Background(), "spot-1")
	assert.ErrorIs(t, err, ErrPolicyViolation)

	_, _, err = svc.StopInstance(context.Background(), "spot-1")
	assert.ErrorIs(t, err, ErrPolicyViolation)

	// 拒绝不改变存储
	final, err := svc.Get("spot-1")
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusStopped, final.Status)
}

func TestStartInstanceFailureRollsBack(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{
		startInstance: func(ctx context.Context, providerID string) error {
			return errUnreachable
		},
	}
	svc := NewInstanceService(db, gw, nil)

	providerID := "i-1"
	seedInstance(t, svc, &model.Instance{
		ID:         "local-1",
		ProviderID: &providerID,
		Name:       "web",
		Status:     model.InstanceStatusStopped,
	})

	inst, task, err := svc.StartInstance(context.Background(), "local-1")
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusPending, inst.Status)

	err = task.Wait()
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	final, err := svc.Get("local-1")
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusStopped, final.Status)
}

func TestStopInstanceFailureRollsBack(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{
		stopInstance: func(ctx context.Context, providerID string) error {
			return errUnreachable
		},
	}
	svc := NewInstanceService(db, gw, nil)

	providerID := "i-1"
	seedInstance(t, svc, &model.Instance{
		ID:         "local-1",
		ProviderID: &providerID,
		Name:       "web",
		Status:     model.InstanceStatusRunning,
	})

	inst, task, err := svc.StopInstance(context.Background(), "local-1")
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusStopping, inst.Status)

	err = task.Wait()
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	final, err := svc.Get("local-1")
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusRunning, final.Status)
}

func TestStopInstanceSuccess(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstanceService(db, &fakeGateway{}, nil)

	providerID := "i-1"
	seedInstance(t, svc, &model.Instance{
		ID:         "local-1",
		ProviderID: &providerID,
		Name:       "web",
		Status:     model.InstanceStatusRunning,
	})

	_, task, err := svc.StopInstance(context.Background(), "local-1")
	require.NoError(t, err)
	require.NoError(t, task.Wait())

	final, err := svc.Get("local-1")
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusStopped, final.Status)
}

func TestTerminateStaysTerminatedOnRemoteFailure(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{
		terminateInstance: func(ctx context.Context, providerID string) error {
			return errUnreachable
		},
	}
	svc := NewInstanceService(db, gw, nil)

	providerID := "i-1"
	seedInstance(t, svc, &model.Instance{
		ID:         "local-1",
		ProviderID: &providerID,
		Name:       "web",
		Status:     model.InstanceStatusRunning,
	})

	inst, task, err := svc.TerminateInstance(context.Background(), "local-1")
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusTerminated, inst.Status)

	err = task.Wait()
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	// 终态不回滚,远端失败也保持 terminated
	final, err := svc.Get("local-1")
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusTerminated, final.Status)
}

func TestTerminateWithoutProviderID(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstanceService(db, &fakeGateway{}, nil)

	seedInstance(t, svc, &model.Instance{
		ID:     "local-1",
		Name:   "never-confirmed",
		Status: model.InstanceStatusPending,
	})

	_, task, err := svc.TerminateInstance(context.Background(), "local-1")
	require.NoError(t, err)
	require.NoError(t, task.Wait())

	// 记录保留为审计行
	final, err := svc.Get("local-1")
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusTerminated, final.Status)
}

func TestOperationOnProviderIDIdentifier(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstanceService(db, &fakeGateway{}, nil)

	providerID := "i-byprov"
	seedInstance(t, svc, &model.Instance{
		ID:         "local-1",
		ProviderID: &providerID,
		Name:       "web",
		Status:     model.InstanceStatusRunning,
		LaunchTime: time.Now(),
	})

	// 厂商 ID 同样可以驱动操作
	_, task, err := svc.StopInstance(context.Background(), "i-byprov")
	require.NoError(t, err)
	require.NoError(t, task.Wait())

	final, err := svc.Get("local-1")
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusStopped, final.Status)
}
