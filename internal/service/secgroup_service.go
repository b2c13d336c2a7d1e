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

// SecurityGroupService 安全组服务:规则按 (协议, 起止端口, 来源)
// 四元组确定身份,重复规则在本地就拒绝,不发往云厂商。
type SecurityGroupService struct {
	db *gorm.DB
	gw provider.Gateway
}

// NewSecurityGroupService 创建安全组服务
func NewSecurityGroupService(db *gorm.DB, gw provider.Gateway) *SecurityGroupService {
	return &SecurityGroupService{db: db, gw: gw}
}

// Get 按本地 ID 获取安全组
func (s *SecurityGroupService) Get(id string) (*model.SecurityGroup, error) {
	var sg model.SecurityGroup
	err := s.db.Where("id = ?", id).First(&sg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return &sg, nil
}

// Resolve 将任意标识解析为本地安全组记录,先按厂商 ID 再按本地 ID
func (s *SecurityGroupService) Resolve(id string) (*model.SecurityGroup, error) {
	var sg model.SecurityGroup
	err := s.db.Where("provider_id = ?", id).First(&sg).Error
	if err == nil {
		return &sg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return s.Get(id)
}

// List 列出本地安全组记录
func (s *SecurityGroupService) List(region string) ([]*model.SecurityGroup, error) {
	query := s.db.Order("created_at")
	if region != "" {
		query = query.Where("region = ?", region)
	}

	var groups []*model.SecurityGroup
	if err := query.Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return groups, nil
}

// Create 创建安全组。初始规则先做去重校验,后台创建成功后逐条下发
func (s *SecurityGroupService) Create(ctx context.Context, req *model.CreateSecurityGroupRequest) (*model.SecurityGroup, *OperationTask, error) {
	if req.Name == "" {
		return nil, nil, fmt.Errorf("%w: security group name is required", ErrPolicyViolation)
	}

	rules := model.RuleList{}
	for _, rule := range req.Rules {
		if rules.Contains(rule) {
			return nil, nil, fmt.Errorf("%w: duplicate rule %s", ErrPolicyViolation, rule.Key())
		}
		rules = append(rules, rule)
	}

	sg := &model.SecurityGroup{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Region:      req.Region,
		Rules:       rules,
	}
	if err := s.db.Create(sg).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	task := newOperationTask("secgroup.create", sg.ID)
	go func() {
		providerID, err := s.gw.CreateSecurityGroup(context.Background(), req.Name, req.Description, req.Region)
		if err != nil {
			logx.Warn("Background security group create failed for %s, removing local record: %v",
				task.ResourceID, err)
			if delErr := s.db.Delete(&model.SecurityGroup{}, "id = ?", task.ResourceID).Error; delErr != nil {
				logx.Error("Failed to remove security group record %s: %v", task.ResourceID, delErr)
			}
			metrics.RecordOperation(task.Operation, false)
			task.finish(fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
			return
		}

		for i := range rules {
			rule := toProviderRule(rules[i])
			if err := s.gw.AuthorizeSecurityGroupRule(context.Background(), providerID, rule); err != nil {
				logx.Warn("Failed to push initial rule %s to group %s: %v", rules[i].Key(), providerID, err)
			}
		}

		s.finalizeGroup(task, func(g *model.SecurityGroup) {
			g.ProviderID = &providerID
		}, nil)
	}()

	return sg, task, nil
}

// Delete 删除安全组。仍被未释放实例引用时拒绝;本地记录立即移除,
// 远端删除失败只记日志,下一轮全量同步会把仍存在的远端组重新导入。
func (s *SecurityGroupService) Delete(ctx context.Context, id string) (*OperationTask, error) {
	sg, err := s.Resolve(id)
	if err != nil {
		return nil, err
	}

	inUse, err := s.referencedBy(sg)
	if err != nil {
		return nil, err
	}
	if inUse != "" {
		return nil, fmt.Errorf("%w: security group is referenced by instance %s", ErrPolicyViolation, inUse)
	}

	if err := s.db.Delete(&model.SecurityGroup{}, "id = ?", sg.ID).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	task := newOperationTask("secgroup.delete", sg.ID)
	if !sg.HasProviderID() {
		metrics.RecordOperation(task.Operation, true)
		task.finish(nil)
		return task, nil
	}

	providerID := *sg.ProviderID
	go func() {
		err := s.gw.DeleteSecurityGroup(context.Background(), providerID)
		if err != nil {
			logx.Warn("Background security group delete failed for %s, next sync will re-import if it survives: %v",
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

// AddRule 添加入方向规则。身份相同的规则直接拒绝;
// 先写本地,后台下发到云厂商,失败时回滚移除。
func (s *SecurityGroupService) AddRule(ctx context.Context, id string, rule model.SecurityGroupRule) (*model.SecurityGroup, *OperationTask, error) {
	sg, err := s.Resolve(id)
	if err != nil {
		return nil, nil, err
	}
	if sg.Rules.Contains(rule) {
		return nil, nil, fmt.Errorf("%w: rule %s already exists", ErrPolicyViolation, rule.Key())
	}

	sg.Rules = append(sg.Rules, rule)
	if err := s.db.Save(sg).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	task := newOperationTask("secgroup.rule.add", sg.ID)
	if !sg.HasProviderID() {
		// 远端还没确认这个组,规则留在本地,创建完成后的同步会对齐
		metrics.RecordOperation(task.Operation, true)
		task.finish(nil)
		return sg, task, nil
	}

	providerID := *sg.ProviderID
	go func() {
		err := s.gw.AuthorizeSecurityGroupRule(context.Background(), providerID, toProviderRule(rule))
		if err != nil {
			logx.Warn("Background rule add failed for group %s, rolling back: %v", task.ResourceID, err)
			s.finalizeGroup(task, func(g *model.SecurityGroup) {
				g.Rules = g.Rules.Remove(rule)
			}, err)
			return
		}
		s.finalizeGroup(task, func(g *model.SecurityGroup) {}, nil)
	}()

	return sg, task, nil
}

// RemoveRule 移除入方向规则。不存在的规则按未找到处理;
// 先删本地,后台撤销远端,失败时恢复。
func (s *SecurityGroupService) RemoveRule(ctx context.Context, id string, rule model.SecurityGroupRule) (*model.SecurityGroup, *OperationTask, error) {
	sg, err := s.Resolve(id)
	if err != nil {
		return nil, nil, err
	}
	if !sg.Rules.Contains(rule) {
		return nil, nil, fmt.Errorf("%w: rule %s does not exist", ErrNotFound, rule.Key())
	}

	sg.Rules = sg.Rules.Remove(rule)
	if err := s.db.Save(sg).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	task := newOperationTask("secgroup.rule.remove", sg.ID)
	if !sg.HasProviderID() {
		metrics.RecordOperation(task.Operation, true)
		task.finish(nil)
		return sg, task, nil
	}

	providerID := *sg.ProviderID
	go func() {
		err := s.gw.RevokeSecurityGroupRule(context.Background(), providerID, toProviderRule(rule))
		if err != nil {
			logx.Warn("Background rule remove failed for group %s, restoring: %v", task.ResourceID, err)
			s.finalizeGroup(task, func(g *model.SecurityGroup) {
				if !g.Rules.Contains(rule) {
					g.Rules = append(g.Rules, rule)
				}
			}, err)
			return
		}
		s.finalizeGroup(task, func(g *model.SecurityGroup) {}, nil)
	}()

	return sg, task, nil
}

// SyncSecurityGroups 全量同步安全组。厂商不可达时降级返回本地列表,
// 本地存在、远端缺失的记录一律保留。
func (s *SecurityGroupService) SyncSecurityGroups(ctx context.Context) ([]*model.SecurityGroup, error) {
	remotes, err := s.gw.ListSecurityGroups(ctx)
	if err != nil {
		logx.Warn("Provider unreachable during security group sync, serving last-known local state: %v", err)
		metrics.RecordSyncPass("security_groups", true)
		return s.List("")
	}

	current := make([]*model.SecurityGroup, 0, len(remotes))
	for _, remote := range remotes {
		sg, err := s.upsertRemote(remote)
		if err != nil {
			logx.Warn("Failed to reconcile security group %s: %v", remote.ProviderID, err)
			continue
		}
		current = append(current, sg)
	}

	metrics.RecordSyncPass("security_groups", false)
	logx.Info("Security group sync completed, remote_count %d", len(current))
	return current, nil
}

// upsertRemote 导入新发现的远端安全组,或更新已有记录的规则集
func (s *SecurityGroupService) upsertRemote(remote *provider.SecurityGroup) (*model.SecurityGroup, error) {
	var local model.SecurityGroup
	err := s.db.Where("provider_id = ?", remote.ProviderID).First(&local).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.importRemote(remote)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	// 规则集以远端为准:远端是规则真正生效的地方
	local.Rules = fromProviderRules(remote.Rules)
	if remote.Name != "" {
		local.Name = remote.Name
	}
	if remote.Description != "" {
		local.Description = remote.Description
	}

	if err := s.db.Save(&local).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return &local, nil
}

// importRemote 根据厂商上报的安全组合成并持久化一条本地记录
func (s *SecurityGroupService) importRemote(remote *provider.SecurityGroup) (*model.SecurityGroup, error) {
	providerID := remote.ProviderID
	name := remote.Name
	if name == "" {
		name = providerID
	}

	sg := &model.SecurityGroup{
		ID:          uuid.NewString(),
		ProviderID:  &providerID,
		Name:        name,
		Description: remote.Description,
		Region:      remote.Region,
		Rules:       fromProviderRules(remote.Rules),
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_id"}},
		UpdateAll: true,
	}).Create(sg).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	var saved model.SecurityGroup
	if err := s.db.Where("provider_id = ?", remote.ProviderID).First(&saved).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	logx.Info("Imported remote security group, provider_id %s, local_id %s", remote.ProviderID, saved.ID)
	return &saved, nil
}

// referencedBy 返回仍引用该安全组的第一个未释放实例的 ID,没有则返回空串。
// 实例记录里可能存的是本地 ID 也可能是厂商 ID,两个都查。
func (s *SecurityGroupService) referencedBy(sg *model.SecurityGroup) (string, error) {
	candidates := []string{sg.ID}
	if sg.HasProviderID() {
		candidates = append(candidates, *sg.ProviderID)
	}

	for _, candidate := range candidates {
		var inst model.Instance
		err := s.db.Where("status <> ?", model.InstanceStatusTerminated).
			Where("security_group_ids LIKE ?", fmt.Sprintf(`%%"%s"%%`, candidate)).
			First(&inst).Error
		if err == nil {
			return inst.ID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: %v", ErrStoreFailure, err)
		}
	}
	return "", nil
}

// finalizeGroup 安全组后台单元的唯一出口,语义与实例侧 finalizeOperation 一致
func (s *SecurityGroupService) finalizeGroup(task *OperationTask, transition func(*model.SecurityGroup), remoteErr error) {
	var sg model.SecurityGroup
	if err := s.db.Where("id = ?", task.ResourceID).First(&sg).Error; err != nil {
		logx.Error("Failed to load security group %s for compensating write: %v", task.ResourceID, err)
		task.finish(fmt.Errorf("%w: %v", ErrStoreFailure, err))
		return
	}

	transition(&sg)

	if err := s.db.Save(&sg).Error; err != nil {
		logx.Error("Compensating write failed for security group %s: %v", task.ResourceID, err)
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

// toProviderRule 转换为网关侧规则
func toProviderRule(rule model.SecurityGroupRule) *provider.SecurityGroupRule {
	return &provider.SecurityGroupRule{
		Protocol:    rule.Protocol,
		FromPort:    rule.FromPort,
		ToPort:      rule.ToPort,
		Source:      rule.Source,
		Description: rule.Description,
	}
}

// fromProviderRules 转换网关侧规则列表
func fromProviderRules(rules []provider.SecurityGroupRule) model.RuleList {
	out := make(model.RuleList, 0, len(rules))
	for _, r := range rules {
		out = append(out, model.SecurityGroupRule{
			Protocol:    r.Protocol,
			FromPort:    r.FromPort,
			ToPort:      r.ToPort,
			Source:      r.Source,
			Description: r.Description,
		})
	}
	return out
}
