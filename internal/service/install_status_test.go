package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/opsre/zencloud/internal/model"
)

func TestInstallStatusNotRequested(t *testing.T) {
	status := InstallStatus(false, false, model.InstanceStatusRunning, 10*time.Minute)
	assert.Equal(t, InstallStatusNotInstalled, status)

	// 完成回执没有请求标记时不算数
	status = InstallStatus(false, true, model.InstanceStatusRunning, 10*time.Minute)
	assert.Equal(t, InstallStatusNotInstalled, status)
}

func TestInstallStatusWhilePending(t *testing.T) {
	assert.Equal(t, InstallStatusInstalling,
		InstallStatus(true, false, model.InstanceStatusPending, 0))
	assert.Equal(t, InstallStatusInstalling,
		InstallStatus(true, false, model.InstanceStatusInitializing, time.Minute))
}

func TestInstallStatusWithinSettleWindow(t *testing.T) {
	// 启动后 1 分钟:即使没有完成回执也还在安装中
	status := InstallStatus(true, false, model.InstanceStatusRunning, time.Minute)
	assert.Equal(t, InstallStatusInstalling, status)
}

func TestInstallStatusAfterSettleWindow(t *testing.T) {
	// 启动后 6 分钟,有完成回执:运行中
	status := InstallStatus(true, true, model.InstanceStatusRunning, 6*time.Minute)
	assert.Equal(t, InstallStatusRunning, status)

	// 启动后 6 分钟,没有完成回执:判定安装失败
	status = InstallStatus(true, false, model.InstanceStatusRunning, 6*time.Minute)
	assert.Equal(t, InstallStatusFailed, status)
}

func TestInstallStatusWindowBoundary(t *testing.T) {
	// 恰好在窗口边界上:窗口已过
	status := InstallStatus(true, false, model.InstanceStatusRunning, installSettleWindow)
	assert.Equal(t, InstallStatusFailed, status)

	status = InstallStatus(true, false, model.InstanceStatusRunning, installSettleWindow-time.Second)
	assert.Equal(t, InstallStatusInstalling, status)
}

func TestInstallStatusStoppedOrTerminated(t *testing.T) {
	assert.Equal(t, InstallStatusNotInstalled,
		InstallStatus(true, true, model.InstanceStatusStopped, 10*time.Minute))
	assert.Equal(t, InstallStatusNotInstalled,
		InstallStatus(true, false, model.InstanceStatusTerminated, 10*time.Minute))
}

func TestMarkInstallCompleted(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstanceService(db, &fakeGateway{}, nil)

	inst := &model.Instance{
		ID:     "local-1",
		Name:   "web-1",
		Status: model.InstanceStatusRunning,
		Tags: model.TagMap{
			model.TagInstallRequested: "true",
			model.TagInstallProduct:   "nginx",
		},
		LaunchTime: time.Now().Add(-10 * time.Minute),
	}
	assert.NoError(t, db.Create(inst).Error)

	updated, err := svc.MarkInstallCompleted(context.Background(), "local-1")
	assert.NoError(t, err)
	assert.Equal(t, "true", updated.Tags[model.TagInstallCompleted])

	result, err := svc.GetInstallStatus(context.Background(), "local-1")
	assert.NoError(t, err)
	assert.Equal(t, InstallStatusRunning, result.Status)
	assert.Equal(t, "nginx", result.Product)
}

func TestMarkInstallCompletedRejectedWithoutRequest(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstanceService(db, &fakeGateway{}, nil)

	inst := &model.Instance{
		ID:         "local-1",
		Name:       "web-1",
		Status:     model.InstanceStatusRunning,
		LaunchTime: time.Now(),
	}
	assert.NoError(t, db.Create(inst).Error)

	_, err := svc.MarkInstallCompleted(context.Background(), "local-1")
	assert.ErrorIs(t, err, ErrPolicyViolation)
}
