package service

import (
	"context"
	"errors"
	"fmt"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opsre/zencloud/internal/metrics"
	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider"
)

// VolumeService 云盘服务:本地记录管理、挂载编排与全量同步。
// 挂载关系以本地实例 ID 记录,操作编排复用实例侧的乐观语义。
type VolumeService struct {
	db        *gorm.DB
	gw        provider.Gateway
	instances *InstanceService
}

// NewVolumeService 创建云盘服务
func NewVolumeService(db *gorm.DB, gw provider.Gateway, instances *InstanceService) *VolumeService {
	return &VolumeService{
		db:        db,
		gw:        gw,
		instances: instances,
	}
}

// Get 按本地 ID 获取云盘
func (s *VolumeService) Get(id string) (*model.Volume, error) {
	var vol model.Volume
	err := s.db.Where("id = ?", id).First(&vol).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return &vol, nil
}

// Resolve 将任意标识解析为本地云盘记录,先按厂商 ID 再按本地 ID
func (s *VolumeService) Resolve(id string) (*model.Volume, error) {
	var vol model.Volume
	err := s.db.Where("provider_id = ?", id).First(&vol).Error
	if err == nil {
		return &vol, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return s.Get(id)
}

// VolumeFilter 云盘列表过滤条件
type VolumeFilter struct {
	Status string
	Region string
}

// List 列出本地云盘记录
func (s *VolumeService) List(filter *VolumeFilter) ([]*model.Volume, error) {
	query := s.db.Order("created_at")
	if filter != nil {
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.Region != "" {
			query = query.Where("region = ?", filter.Region)
		}
	}

	var volumes []*model.Volume
	if err := query.Find(&volumes).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return volumes, nil
}

// Create 创建云盘。先落一条 creating 记录,后台调用云厂商;
// 成功则转入 available 并记下厂商 ID,失败则删除本地记录——
// 云盘不像实例,没有值得保留的审计行。
func (s *VolumeService) Create(ctx context.Context, req *model.CreateVolumeRequest) (*model.Volume, *OperationTask, error) {
	if req.SizeGiB <= 0 {
		return nil, nil, fmt.Errorf("%w: volume size must be positive", ErrPolicyViolation)
	}
	if req.Region == "" {
		return nil, nil, fmt.Errorf("%w: region is required", ErrPolicyViolation)
	}

	vol := &model.Volume{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Type:      req.Type,
		SizeGiB:   req.SizeGiB,
		Region:    req.Region,
		Zone:      req.Zone,
		Encrypted: req.Encrypted,
		Status:    model.VolumeStatusCreating,
	}
	if err := s.db.Create(vol).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	spec := &provider.CreateVolumeSpec{
		Name:      req.Name,
		Type:      req.Type,
		SizeGiB:   req.SizeGiB,
		Region:    req.Region,
		Zone:      req.Zone,
		Encrypted: req.Encrypted,
	}

	task := newOperationTask("volume.create", vol.ID)
	go func() {
		providerID, err := s.gw.CreateVolume(context.Background(), spec)
		if err != nil {
			logx.Warn("Background volume create failed for %s, removing local record: %v", task.ResourceID, err)
			if delErr := s.db.Delete(&model.Volume{}, "id = ?", task.ResourceID).Error; delErr != nil {
				logx.Error("Failed to remove volume record %s: %v", task.ResourceID, delErr)
			}
			metrics.RecordOperation(task.Operation, false)
			task.finish(fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
			return
		}
		s.finalizeVolume(task, func(v *model.Volume) {
			v.Status = model.VolumeStatusAvailable
			v.ProviderID = &providerID
		}, nil)
	}()

	return vol, task, nil
}

// Attach 将云盘挂载到实例。先提交 in-use 转移与挂载关系,
// 后台调用云厂商,失败时回滚为 available 并解除关系。
func (s *VolumeService) Attach(ctx context.Context, volumeID, instanceID, device string) (*model.Volume, *OperationTask, error) {
	vol, err := s.Resolve(volumeID)
	if err != nil {
		return nil, nil, err
	}
	inst, err := s.instances.Resolve(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}

	if vol.Attached() {
		return nil, nil, fmt.Errorf("%w: volume is already attached to %s", ErrPolicyViolation, *vol.AttachedTo)
	}
	if vol.Status != model.VolumeStatusAvailable {
		return nil, nil, fmt.Errorf("%w: volume is %s, only available volumes can be attached", ErrPolicyViolation, vol.Status)
	}
	if !vol.HasProviderID() || !inst.HasProviderID() {
		return nil, nil, fmt.Errorf("%w: volume and instance must both be provider-acknowledged", ErrPolicyViolation)
	}

	localInstanceID := inst.ID
	vol.Status = model.VolumeStatusInUse
	vol.AttachedTo = &localInstanceID
	vol.Device = device
	if err := s.db.Save(vol).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	inst.VolumeIDs = append(inst.VolumeIDs, vol.ID)
	if err := s.db.Save(inst).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	volProviderID := *vol.ProviderID
	instProviderID := *inst.ProviderID
	task := newOperationTask("volume.attach", vol.ID)
	go func() {
		err := s.gw.AttachVolume(context.Background(), volProviderID, instProviderID, device)
		if err != nil {
			logx.Warn("Background attach failed for volume %s, rolling back: %v", task.ResourceID, err)
			s.detachLocal(task.ResourceID, localInstanceID)
		}
		s.finalizeVolume(task, func(v *model.Volume) {}, err)
	}()

	return vol, task, nil
}

// Detach 从实例卸载云盘。先提交 available 转移并解除关系,
// 后台调用云厂商,失败时恢复挂载关系。
func (s *VolumeService) Detach(ctx context.Context, volumeID string) (*model.Volume, *OperationTask, error) {
	vol, err := s.Resolve(volumeID)
	if err != nil {
		return nil, nil, err
	}
	if !vol.Attached() {
		return nil, nil, fmt.Errorf("%w: volume is not attached", ErrPolicyViolation)
	}

	localInstanceID := *vol.AttachedTo
	device := vol.Device
	inst, err := s.instances.Get(localInstanceID)
	if err != nil {
		return nil, nil, err
	}

	s.detachLocal(vol.ID, localInstanceID)
	vol.Status = model.VolumeStatusAvailable
	vol.AttachedTo = nil
	vol.Device = ""

	volProviderID := ""
	if vol.HasProviderID() {
		volProviderID = *vol.ProviderID
	}
	instProviderID := ""
	if inst.HasProviderID() {
		instProviderID = *inst.ProviderID
	}

	task := newOperationTask("volume.detach", vol.ID)
	go func() {
		err := s.gw.DetachVolume(context.Background(), volProviderID, instProviderID)
		if err != nil {
			logx.Warn("Background detach failed for volume %s, restoring attachment: %v", task.ResourceID, err)
			s.attachLocal(task.ResourceID, localInstanceID, device)
		}
		s.finalizeVolume(task, func(v *model.Volume) {}, err)
	}()

	return vol, task, nil
}

// Delete 删除云盘。挂载中的云盘拒绝删除;本地记录立即移除,
// 远端删除失败只记日志,下一轮全量同步会把仍存在的远端盘重新导入。
func (s *VolumeService) Delete(ctx context.Context, volumeID string) (*OperationTask, error) {
	vol, err := s.Resolve(volumeID)
	if err != nil {
		return nil, err
	}
	if vol.Attached() {
		return nil, fmt.Errorf("%w: volume is attached to %s, detach it first", ErrPolicyViolation, *vol.AttachedTo)
	}

	if err := s.db.Delete(&model.Volume{}, "id = ?", vol.ID).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	task := newOperationTask("volume.delete", vol.ID)
	if !vol.HasProviderID() {
		metrics.RecordOperation(task.Operation, true)
		task.finish(nil)
		return task, nil
	}

	providerID := *vol.ProviderID
	go func() {
		err := s.gw.DeleteVolume(context.Background(), providerID)
		if err != nil {
			logx.Warn("Background volume delete failed for %s, next sync will re-import if it survives: %v",
				task.ResourceID, err)
		}
		metrics.RecordOperation(task.Operation, err == nil)
		if err != nil {
			task.finish(fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
			return
		}
		task.finish(nil)
	}()

	return task, nil
}

// SyncVolumes 全量同步云盘。厂商不可达时降级返回本地列表,
// 本地存在、远端缺失的记录一律保留。
func (s *VolumeService) SyncVolumes(ctx context.Context) ([]*model.Volume, error) {
	remotes, err := s.gw.ListVolumes(ctx)
	if err != nil {
		logx.Warn("Provider unreachable during volume sync, serving last-known local state: %v", err)
		metrics.RecordSyncPass("volumes", true)
		return s.List(nil)
	}

	current := make([]*model.Volume, 0, len(remotes))
	for _, remote := range remotes {
		vol, err := s.upsertRemote(remote)
		if err != nil {
			logx.Warn("Failed to reconcile volume %s: %v", remote.ProviderID, err)
			continue
		}
		current = append(current, vol)
	}

	metrics.RecordSyncPass("volumes", false)
	logx.Info("Volume sync completed, remote_count %d", len(current))
	return current, nil
}

// upsertRemote 导入新发现的远端云盘,或更新已有记录的可变字段
func (s *VolumeService) upsertRemote(remote *provider.Volume) (*model.Volume, error) {
	var local model.Volume
	err := s.db.Where("provider_id = ?", remote.ProviderID).First(&local).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.importRemote(remote)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	local.Status = remote.Status
	local.AttachedTo = s.resolveAttachment(remote.AttachedTo)
	local.Device = remote.Device
	if remote.Name != "" {
		local.Name = remote.Name
	}

	if err := s.db.Save(&local).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return &local, nil
}

// importRemote 根据厂商上报的云盘合成并持久化一条本地记录
func (s *VolumeService) importRemote(remote *provider.Volume) (*model.Volume, error) {
	providerID := remote.ProviderID
	name := remote.Name
	if name == "" {
		name = providerID
	}

	vol := &model.Volume{
		ID:         uuid.NewString(),
		ProviderID: &providerID,
		Name:       name,
		Type:       remote.Type,
		SizeGiB:    remote.SizeGiB,
		Region:     remote.Region,
		Zone:       remote.Zone,
		Encrypted:  remote.Encrypted,
		AttachedTo: s.resolveAttachment(remote.AttachedTo),
		Device:     remote.Device,
		Status:     remote.Status,
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_id"}},
		UpdateAll: true,
	}).Create(vol).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	var saved model.Volume
	if err := s.db.Where("provider_id = ?", remote.ProviderID).First(&saved).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	logx.Info("Imported remote volume, provider_id %s, local_id %s", remote.ProviderID, saved.ID)
	return &saved, nil
}

// resolveAttachment 把远端上报的挂载目标(厂商实例 ID)换算成本地实例 ID,
// 本地尚无对应记录时原样保留厂商 ID
func (s *VolumeService) resolveAttachment(remoteInstanceID string) *string {
	if remoteInstanceID == "" {
		return nil
	}
	var inst model.Instance
	if err := s.db.Where("provider_id = ?", remoteInstanceID).First(&inst).Error; err == nil {
		return &inst.ID
	}
	return &remoteInstanceID
}

// attachLocal 恢复本地挂载关系,仅用于后台回滚
func (s *VolumeService) attachLocal(volumeID, instanceID, device string) {
	err := s.db.Model(&model.Volume{}).Where("id = ?", volumeID).Updates(map[string]any{
		"status":      model.VolumeStatusInUse,
		"attached_to": instanceID,
		"device":      device,
	}).Error
	if err != nil {
		logx.Error("Failed to restore attachment for volume %s: %v", volumeID, err)
	}
}

// detachLocal 解除本地挂载关系并把云盘从实例的挂载列表中移除
func (s *VolumeService) detachLocal(volumeID, instanceID string) {
	err := s.db.Model(&model.Volume{}).Where("id = ?", volumeID).Updates(map[string]any{
		"status":      model.VolumeStatusAvailable,
		"attached_to": nil,
		"device":      "",
	}).Error
	if err != nil {
		logx.Error("Failed to clear attachment for volume %s: %v", volumeID, err)
		return
	}

	var inst model.Instance
	if err := s.db.Where("id = ?", instanceID).First(&inst).Error; err != nil {
		return
	}
	kept := make(model.StringArray, 0, len(inst.VolumeIDs))
	for _, id := range inst.VolumeIDs {
		if id != volumeID {
			kept = append(kept, id)
		}
	}
	inst.VolumeIDs = kept
	if err := s.db.Save(&inst).Error; err != nil {
		logx.Error("Failed to update volume list for instance %s: %v", instanceID, err)
	}
}

// finalizeVolume 云盘后台单元的唯一出口,语义与实例侧 finalizeOperation 一致
func (s *VolumeService) finalizeVolume(task *OperationTask, transition func(*model.Volume), remoteErr error) {
	var vol model.Volume
	if err := s.db.Where("id = ?", task.ResourceID).First(&vol).Error; err != nil {
		logx.Error("Failed to load volume %s for compensating write: %v", task.ResourceID, err)
		task.finish(fmt.Errorf("%w: %v", ErrStoreFailure, err))
		return
	}

	transition(&vol)

	if err := s.db.Save(&vol).Error; err != nil {
		logx.Error("Compensating write failed for volume %s: %v", task.ResourceID, err)
		task.finish(fmt.Errorf("%w: %v", ErrStoreFailure, err))
		return
	}

	metrics.RecordOperation(task.Operation, remoteErr == nil)

	if remoteErr != nil {
		task.finish(fmt.Errorf("%w: %v", ErrProviderUnavailable, remoteErr))
		return
	}
	task.finish(nil)
}
