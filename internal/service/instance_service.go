package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opsre/zencloud/internal/events"
	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider"
)

// InstanceService 实例服务:身份解析、全量同步与乐观操作编排。
// 本地记录归该服务所有,网关只上报状态。
type InstanceService struct {
	db     *gorm.DB
	gw     provider.Gateway
	events *events.Publisher
}

// NewInstanceService 创建实例服务
func NewInstanceService(db *gorm.DB, gw provider.Gateway, publisher *events.Publisher) *InstanceService {
	return &InstanceService{
		db:     db,
		gw:     gw,
		events: publisher,
	}
}

// Resolve 将任意标识解析为本地记录,解析顺序:
// ① 厂商实例 ID ② 本地记录 ID ③ 向云厂商查询并导入。
// ③ 是唯一一条由读操作产生写入的路径;厂商不可达时按未找到处理,不报错。
func (s *InstanceService) Resolve(ctx context.Context, identifier string) (*model.Instance, error) {
	if identifier == "" {
		return nil, ErrNotFound
	}

	var inst model.Instance
	err := s.db.Where("provider_id = ?", identifier).First(&inst).Error
	if err == nil {
		return &inst, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	err = s.db.Where("id = ?", identifier).First(&inst).Error
	if err == nil {
		return &inst, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	remote, err := s.gw.DescribeInstance(ctx, identifier)
	if err != nil {
		if !errors.Is(err, provider.ErrNotFound) {
			logx.Warn("Provider unreachable while resolving %s, treating as not found: %v", identifier, err)
		}
		return nil, ErrNotFound
	}

	return s.importRemote(remote)
}

// Get 按本地 ID 获取记录
func (s *InstanceService) Get(id string) (*model.Instance, error) {
	var inst model.Instance
	err := s.db.Where("id = ?", id).First(&inst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return &inst, nil
}

// ListFilter 本地列表过滤条件
type ListFilter struct {
	Status string
	Stack  string
	Region string
}

// List 列出本地记录
func (s *InstanceService) List(filter *ListFilter) ([]*model.Instance, error) {
	query := s.db.Order("created_at")
	if filter != nil {
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.Stack != "" {
			query = query.Where("stack = ?", filter.Stack)
		}
		if filter.Region != "" {
			query = query.Where("region = ?", filter.Region)
		}
	}

	var instances []*model.Instance
	if err := query.Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return instances, nil
}

// importRemote 根据厂商上报的实例合成并持久化一条本地记录。
// 依赖 provider_id 唯一索引的 upsert,并发导入同一厂商实例会收敛到一行,
// 后写者覆盖,两个调用方都不会收到错误。
func (s *InstanceService) importRemote(remote *provider.Instance) (*model.Instance, error) {
	localID := uuid.NewString()

	name := remote.Name
	if nameTag, ok := remote.Tags["Name"]; ok && nameTag != "" {
		name = nameTag
	}
	if name == "" {
		name = remote.ProviderID
	}

	launchTime := remote.LaunchTime
	if launchTime.IsZero() {
		launchTime = time.Now()
	}

	providerID := remote.ProviderID
	inst := &model.Instance{
		ID:               localID,
		ProviderID:       &providerID,
		Name:             name,
		InstanceType:     remote.InstanceType,
		WorkloadProfile:  model.WorkloadGeneric,
		Status:           remote.Status,
		Region:           remote.Region,
		Zone:             remote.Zone,
		ImageID:          remote.ImageID,
		PublicIP:         remote.PublicIP,
		PrivateIP:        remote.PrivateIP,
		KeyPairName:      remote.KeyPairName,
		VolumeIDs:        remote.VolumeIDs,
		SecurityGroupIDs: remote.SecurityGroupIDs,
		Ephemeral:        remote.Ephemeral,
		Tags:             model.TagMap(remote.Tags).Clone(), // 首次导入原样复制远端标签
		Stack:            deriveStack(localID),
		LaunchTime:       launchTime,
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_id"}},
		UpdateAll: true,
	}).Create(inst).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	// 并发导入时以落库的那行为准
	var saved model.Instance
	if err := s.db.Where("provider_id = ?", remote.ProviderID).First(&saved).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	logx.Info("Imported remote instance, provider_id %s, local_id %s", remote.ProviderID, saved.ID)
	return &saved, nil
}

// deriveStack 从本地 ID 派生分组标签
func deriveStack(localID string) string {
	if len(localID) >= 8 {
		return "stack-" + localID[:8]
	}
	return "stack-" + localID
}

// publish 发布实例事件,未启用事件时为空操作
func (s *InstanceService) publish(operation string, inst *model.Instance) {
	providerID := ""
	if inst.ProviderID != nil {
		providerID = *inst.ProviderID
	}
	s.events.PublishInstanceEvent(operation, inst.ID, providerID, inst.Status)
}
