package service

import (
	"context"
	"fmt"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/google/uuid"

	"github.com/opsre/zencloud/internal/metrics"
	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider"
)

// 乐观操作编排。每个操作先提交一次本地状态变更,再派发一个后台单元
// 执行远端调用;调用方轮询记录即可看到意图,无需等待远端往返。
// 后台单元结束后通过 finalizeOperation 提交唯一一次补偿写,
// 成功与失败走同一条代码路径。不加每实例锁:同一实例上并发操作的
// 落库顺序按后写者覆盖处理,这是明确接受的语义而非疏漏。

// CreateInstance 创建实例。先落一条 pending 记录,后台调用云厂商;
// 成功则转入 running 并记下厂商 ID 与地址,失败则转入 terminated。
func (s *InstanceService) CreateInstance(ctx context.Context, req *model.CreateInstanceRequest) (*model.Instance, *OperationTask, error) {
	if req.Name == "" || req.InstanceType == "" || req.Region == "" {
		return nil, nil, fmt.Errorf("%w: name, instance_type and region are required", ErrPolicyViolation)
	}

	profile := req.WorkloadProfile
	if profile == "" {
		profile = model.WorkloadGeneric
	}
	if !model.ValidWorkloadProfile(profile) {
		return nil, nil, fmt.Errorf("%w: unknown workload profile %q", ErrPolicyViolation, req.WorkloadProfile)
	}

	localID := uuid.NewString()
	stack := req.Stack
	if stack == "" {
		stack = deriveStack(localID)
	}

	tags := model.TagMap{}
	for k, v := range req.Tags {
		tags[k] = v
	}
	if req.InstallRequested {
		tags[model.TagInstallRequested] = "true"
		if req.InstallProduct != "" {
			tags[model.TagInstallProduct] = req.InstallProduct
		}
	}

	inst := &model.Instance{
		ID:               localID,
		Name:             req.Name,
		InstanceType:     req.InstanceType,
		WorkloadProfile:  profile,
		Status:           model.InstanceStatusPending,
		Region:           req.Region,
		Zone:             req.Zone,
		ImageID:          req.ImageID,
		KeyPairName:      req.KeyPairName,
		SecurityGroupIDs: req.SecurityGroupIDs,
		Ephemeral:        req.Ephemeral,
		Tags:             tags,
		Stack:            stack,
		LaunchTime:       time.Now(),
	}

	if err := s.db.Create(inst).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	s.publish("create", inst)

	spec := &provider.CreateInstanceSpec{
		Name:             req.Name,
		InstanceType:     req.InstanceType,
		Region:           req.Region,
		Zone:             req.Zone,
		ImageID:          req.ImageID,
		KeyPairName:      req.KeyPairName,
		SecurityGroupIDs: req.SecurityGroupIDs,
		Ephemeral:        req.Ephemeral,
		WorkloadProfile:  profile,
		Tags:             tags,
	}

	task := newOperationTask("create", localID)
	go func() {
		result, err := s.gw.CreateInstance(context.Background(), spec)
		if err != nil {
			logx.Warn("Background create failed for instance %s: %v", localID, err)
			s.finalizeOperation(task, func(inst *model.Instance) {
				inst.Status = model.InstanceStatusTerminated
			}, err)
			return
		}
		s.finalizeOperation(task, func(inst *model.Instance) {
			inst.Status = model.InstanceStatusRunning
			inst.ProviderID = &result.ProviderID
			inst.PublicIP = result.PublicIP
			inst.PrivateIP = result.PrivateIP
			if result.Zone != "" {
				inst.Zone = result.Zone
			}
		}, nil)
	}()

	return inst, task, nil
}

// StartInstance 启动实例。抢占式实例直接拒绝;失败回退为 stopped。
func (s *InstanceService) StartInstance(ctx context.Context, identifier string) (*model.Instance, *OperationTask, error) {
	inst, err := s.Resolve(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}
	if inst.Ephemeral {
		return nil, nil, fmt.Errorf("%w: ephemeral instances cannot be started", ErrPolicyViolation)
	}
	if !inst.HasProviderID() {
		return nil, nil, fmt.Errorf("%w: instance has no provider id yet", ErrPolicyViolation)
	}

	inst.Status = model.InstanceStatusPending
	if err := s.db.Save(inst).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	s.publish("start", inst)

	providerID := *inst.ProviderID
	task := newOperationTask("start", inst.ID)
	go func() {
		err := s.gw.StartInstance(context.Background(), providerID)
		status := model.InstanceStatusRunning
		if err != nil {
			logx.Warn("Background start failed for instance %s: %v", task.ResourceID, err)
			status = model.InstanceStatusStopped
		}
		s.finalizeOperation(task, func(inst *model.Instance) {
			inst.Status = status
		}, err)
	}()

	return inst, task, nil
}

// StopInstance 停止实例。抢占式实例直接拒绝;失败回滚为 running。
func (s *InstanceService) StopInstance(ctx context.Context, identifier string) (*model.Instance, *OperationTask, error) {
	inst, err := s.Resolve(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}
	if inst.Ephemeral {
		return nil, nil, fmt.Errorf("%w: ephemeral instances cannot be stopped", ErrPolicyViolation)
	}
	if !inst.HasProviderID() {
		return nil, nil, fmt.Errorf("%w: instance has no provider id yet", ErrPolicyViolation)
	}

	inst.Status = model.InstanceStatusStopping
	if err := s.db.Save(inst).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	s.publish("stop", inst)

	providerID := *inst.ProviderID
	task := newOperationTask("stop", inst.ID)
	go func() {
		err := s.gw.StopInstance(context.Background(), providerID)
		status := model.InstanceStatusStopped
		if err != nil {
			logx.Warn("Background stop failed for instance %s: %v", task.ResourceID, err)
			status = model.InstanceStatusRunning
		}
		s.finalizeOperation(task, func(inst *model.Instance) {
			inst.Status = status
		}, err)
	}()

	return inst, task, nil
}

// TerminateInstance 释放实例。本地立即进入 terminated 且不再回退,
// 远端调用失败也保持 terminated;记录保留为审计行,不做物理删除。
func (s *InstanceService) TerminateInstance(ctx context.Context, identifier string) (*model.Instance, *OperationTask, error) {
	inst, err := s.Resolve(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}

	inst.Status = model.InstanceStatusTerminated
	if err := s.db.Save(inst).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	s.publish("terminate", inst)

	task := newOperationTask("terminate", inst.ID)
	if !inst.HasProviderID() {
		// 厂商从未确认过创建,没有可释放的远端资源
		s.finalizeOperation(task, func(inst *model.Instance) {}, nil)
		return inst, task, nil
	}

	providerID := *inst.ProviderID
	go func() {
		err := s.gw.TerminateInstance(context.Background(), providerID)
		if err != nil {
			logx.Warn("Background terminate failed for instance %s, local state stays terminated: %v",
				task.ResourceID, err)
		}
		// 终态:成功与失败都不再改状态
		s.finalizeOperation(task, func(inst *model.Instance) {}, err)
	}()

	return inst, task, nil
}

// finalizeOperation 后台单元的唯一出口:读取记录、应用状态转移、
// 落库一次补偿写并投递任务结果。成功与失败共用,避免两条路径分叉。
func (s *InstanceService) finalizeOperation(task *OperationTask, transition func(*model.Instance), remoteErr error) {
	var inst model.Instance
	if err := s.db.Where("id = ?", task.ResourceID).First(&inst).Error; err != nil {
		logx.Error("Failed to load instance %s for compensating write: %v", task.ResourceID, err)
		task.finish(fmt.Errorf("%w: %v", ErrStoreFailure, err))
		return
	}

	transition(&inst)

	if err := s.db.Save(&inst).Error; err != nil {
		// 落库失败留给下一轮全量同步收敛
		logx.Error("Compensating write failed for instance %s: %v", task.ResourceID, err)
		task.finish(fmt.Errorf("%w: %v", ErrStoreFailure, err))
		return
	}

	metrics.RecordOperation(task.Operation, remoteErr == nil)
	s.publish(task.Operation+".done", &inst)

	if remoteErr != nil {
		task.finish(fmt.Errorf("%w: %v", ErrProviderUnavailable, remoteErr))
		return
	}
	task.finish(nil)
}
