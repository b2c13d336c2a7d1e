package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider"
)

func seedInstance(t *testing.T, svc *InstanceService, inst *model.Instance) {
	t.Helper()
	if inst.LaunchTime.IsZero() {
		inst.LaunchTime = time.Now()
	}
	require.NoError(t, svc.db.Create(inst).Error)
}

func TestResolvePrefersProviderID(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstanceService(db, &fakeGateway{}, nil)

	// 构造一行的本地 ID 恰好等于另一行的厂商 ID
	providerID := "i-collision"
	seedInstance(t, svc, &model.Instance{
		ID:         "local-a",
		ProviderID: &providerID,
		Name:       "by-provider",
		Status:     model.InstanceStatusRunning,
	})
	seedInstance(t, svc, &model.Instance{
		ID:     "i-collision",
		Name:   "by-local",
		Status: model.InstanceStatusRunning,
	})

	// 厂商 ID 空间优先
	inst, err := svc.Resolve(context.Background(), "i-collision")
	require.NoError(t, err)
	assert.Equal(t, "local-a", inst.ID)
	assert.Equal(t, "by-provider", inst.Name)
}

func TestResolveFallsBackToLocalID(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstanceService(db, &fakeGateway{}, nil)

	seedInstance(t, svc, &model.Instance{
		ID:     "local-b",
		Name:   "plain",
		Status: model.InstanceStatusStopped,
	})

	inst, err := svc.Resolve(context.Background(), "local-b")
	require.NoError(t, err)
	assert.Equal(t, "plain", inst.Name)
}

func TestResolveImportsUnknownProviderInstance(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{
		describeInstance: func(ctx context.Context, providerID string) (*provider.Instance, error) {
			if providerID != "i-remote-1" {
				return nil, provider.ErrNotFound
			}
			return &provider.Instance{
				ProviderID:   "i-remote-1",
				Name:         "discovered",
				Status:       model.InstanceStatusRunning,
				InstanceType: "t.small",
				Region:       "region-1",
				Tags:         map[string]string{"env": "prod"},
			}, nil
		},
	}
	svc := NewInstanceService(db, gw, nil)

	inst, err := svc.Resolve(context.Background(), "i-remote-1")
	require.NoError(t, err)
	assert.Equal(t, "discovered", inst.Name)
	require.NotNil(t, inst.ProviderID)
	assert.Equal(t, "i-remote-1", *inst.ProviderID)
	assert.NotEmpty(t, inst.ID)
	assert.NotEqual(t, "i-remote-1", inst.ID)
	assert.Equal(t, "prod", inst.Tags["env"])
	assert.NotEmpty(t, inst.Stack)

	// 导入后第二次解析命中本地记录,不再产生新行
	again, err := svc.Resolve(context.Background(), "i-remote-1")
	require.NoError(t, err)
	assert.Equal(t, inst.ID, again.ID)

	var count int64
	db.Model(&model.Instance{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestResolveUnknownIdentifier(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstanceService(db, &fakeGateway{}, nil)

	_, err := svc.Resolve(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveProviderUnreachableTreatedAsNotFound(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{
		describeInstance: func(ctx context.Context, providerID string) (*provider.Instance, error) {
			return nil, errUnreachable
		},
	}
	svc := NewInstanceService(db, gw, nil)

	_, err := svc.Resolve(context.Background(), "i-unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentResolveConvergesToOneRow(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{
		describeInstance: func(ctx context.Context, providerID string) (*provider.Instance, error) {
			return &provider.Instance{
				ProviderID: providerID,
				Name:       "raced",
				Status:     model.InstanceStatusRunning,
			}, nil
		},
	}
	svc := NewInstanceService(db, gw, nil)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Resolve(context.Background(), "i-raced")
		}(i)
	}
	wg.Wait()

	// 两个调用方都拿到结果,库里只有一行
	for _, err := range errs {
		assert.NoError(t, err)
	}
	var count int64
	db.Model(&model.Instance{}).Where("provider_id = ?", "i-raced").Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestListFilters(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstanceService(db, &fakeGateway{}, nil)

	seedInstance(t, svc, &model.Instance{ID: "a", Name: "a", Status: model.InstanceStatusRunning, Stack: "stack-web", Region: "region-1"})
	seedInstance(t, svc, &model.Instance{ID: "b", Name: "b", Status: model.InstanceStatusStopped, Stack: "stack-web", Region: "region-2"})
	seedInstance(t, svc, &model.Instance{ID: "c", Name: "c", Status: model.InstanceStatusRunning, Stack: "stack-db", Region: "region-1"})

	all, err := svc.List(nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	running, err := svc.List(&ListFilter{Status: model.InstanceStatusRunning})
	require.NoError(t, err)
	assert.Len(t, running, 2)

	web, err := svc.List(&ListFilter{Stack: "stack-web", Region: "region-1"})
	require.NoError(t, err)
	require.Len(t, web, 1)
	assert.Equal(t, "a", web[0].ID)
}
