package service

import (
	"context"
	"errors"
	"fmt"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"gorm.io/gorm"

	"github.com/opsre/zencloud/internal/metrics"
	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider"
)

// SyncInstances 全量同步:对照云厂商当前列表校准本地记录。
// 厂商调用成功时返回厂商列表(已补齐本地 ID)作为权威的"当前"视图;
// 失败时降级返回本地列表原样,既不删也不加。
// 本地存在、远端缺失的记录一律保留——缺席不代表已释放,
// 可能是创建中的记录或已释放的审计行。
func (s *InstanceService) SyncInstances(ctx context.Context) ([]*model.Instance, error) {
	remotes, err := s.gw.ListInstances(ctx)
	if err != nil {
		logx.Warn("Provider unreachable during instance sync, serving last-known local state: %v", err)
		metrics.RecordSyncPass("instances", true)
		return s.List(nil)
	}

	current := make([]*model.Instance, 0, len(remotes))
	for _, remote := range remotes {
		inst, err := s.upsertRemote(remote)
		if err != nil {
			logx.Warn("Failed to reconcile instance %s: %v", remote.ProviderID, err)
			continue
		}
		current = append(current, inst)
	}

	metrics.RecordSyncPass("instances", false)
	logx.Info("Instance sync completed, remote_count %d", len(current))
	return current, nil
}

// upsertRemote 导入新发现的远端实例,或更新已有记录的可变字段。
// 身份字段与不可变属性保持不动,标签走合并策略。
func (s *InstanceService) upsertRemote(remote *provider.Instance) (*model.Instance, error) {
	var local model.Instance
	err := s.db.Where("provider_id = ?", remote.ProviderID).First(&local).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.importRemote(remote)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	local.Status = remote.Status
	local.PublicIP = remote.PublicIP
	local.PrivateIP = remote.PrivateIP
	if remote.Name != "" {
		local.Name = remote.Name
	}
	local.Tags = model.MergeTags(local.Tags, model.TagMap(remote.Tags))

	if err := s.db.Save(&local).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return &local, nil
}

// ListCurrent 返回当前权威视图:触发一次全量同步并返回其结果
func (s *InstanceService) ListCurrent(ctx context.Context) ([]*model.Instance, error) {
	return s.SyncInstances(ctx)
}

// VolumeSyncer 云盘同步,由 VolumeService 实现
type VolumeSyncer interface {
	SyncVolumes(ctx context.Context) ([]*model.Volume, error)
}

// SecurityGroupSyncer 安全组同步,由 SecurityGroupService 实现
type SecurityGroupSyncer interface {
	SyncSecurityGroups(ctx context.Context) ([]*model.SecurityGroup, error)
}

// FullSync 一次完整的对账:实例、云盘、安全组。
// 各资源独立降级,互不阻塞。
func FullSync(ctx context.Context, instances *InstanceService, volumes VolumeSyncer, groups SecurityGroupSyncer) {
	if _, err := instances.SyncInstances(ctx); err != nil {
		logx.Warn("Instance sync failed: %v", err)
	}
	if volumes != nil {
		if _, err := volumes.SyncVolumes(ctx); err != nil {
			logx.Warn("Volume sync failed: %v", err)
		}
	}
	if groups != nil {
		if _, err := groups.SyncSecurityGroups(ctx); err != nil {
			logx.Warn("Security group sync failed: %v", err)
		}
	}
}
