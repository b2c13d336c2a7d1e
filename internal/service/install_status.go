package service

import (
	"context"
	"fmt"
	"time"

	"github.com/opsre/zencloud/internal/model"
)

// 安装状态取值
const (
	InstallStatusNotInstalled = "not_installed"
	InstallStatusInstalling   = "installing"
	InstallStatusRunning      = "running"
	InstallStatusFailed       = "installation_failed"
)

// installSettleWindow 安装视为完成所需的启动后等待窗口
const installSettleWindow = 5 * time.Minute

// InstallStatus 推导实例的模拟安装状态。
// 这是展示层的启发式模拟,不做真实的进程探测:状态只由
// 安装请求标记、完成回执、生命周期状态和启动后经过的时间决定,
// 纯函数、无副作用,便于测试。
func InstallStatus(requested, completed bool, lifecycle string, elapsed time.Duration) string {
	if !requested {
		return InstallStatusNotInstalled
	}

	switch lifecycle {
	case model.InstanceStatusPending, model.InstanceStatusInitializing:
		return InstallStatusInstalling
	case model.InstanceStatusRunning:
		if elapsed < installSettleWindow {
			return InstallStatusInstalling
		}
		if completed {
			return InstallStatusRunning
		}
		return InstallStatusFailed
	default:
		// 已停止或已释放的实例上不存在运行中的安装
		return InstallStatusNotInstalled
	}
}

// InstallStatusResult 安装状态查询结果
type InstallStatusResult struct {
	InstanceID string `json:"instance_id"`
	Product    string `json:"product,omitempty"`
	Status     string `json:"status"`
}

// GetInstallStatus 查询实例的模拟安装状态
func (s *InstanceService) GetInstallStatus(ctx context.Context, identifier string) (*InstallStatusResult, error) {
	inst, err := s.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	status := InstallStatus(
		inst.InstallRequested(),
		inst.InstallCompleted(),
		inst.Status,
		time.Since(inst.LaunchTime),
	)

	return &InstallStatusResult{
		InstanceID: inst.ID,
		Product:    inst.InstallProduct(),
		Status:     status,
	}, nil
}

// MarkInstallCompleted 写入安装完成回执。
// 回执落在保留标签上,全量同步的合并策略会保住它不被远端覆盖。
func (s *InstanceService) MarkInstallCompleted(ctx context.Context, identifier string) (*model.Instance, error) {
	inst, err := s.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !inst.InstallRequested() {
		return nil, fmt.Errorf("%w: installation was never requested for this instance", ErrPolicyViolation)
	}

	if inst.Tags == nil {
		inst.Tags = model.TagMap{}
	}
	inst.Tags[model.TagInstallCompleted] = "true"

	if err := s.db.Save(inst).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return inst, nil
}
