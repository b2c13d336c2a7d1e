package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider"
)

func TestSyncImportsUnknownRemoteInstances(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{
		listInstances: func(ctx context.Context) ([]*provider.Instance, error) {
			return []*provider.Instance{
				{ProviderID: "i-r1", Name: "r1", Status: model.InstanceStatusRunning},
				{ProviderID: "i-r2", Name: "r2", Status: model.InstanceStatusStopped},
			}, nil
		},
	}
	svc := NewInstanceService(db, gw, nil)

	current, err := svc.SyncInstances(context.Background())
	require.NoError(t, err)
	assert.Len(t, current, 2)

	var count int64
	db.Model(&model.Instance{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestSyncUpdatesMutableFieldsAndMergesTags(t *testing.T) {
	db := newTestDB(t)
	providerID := "i-1"
	seedInstance(t, NewInstanceService(db, &fakeGateway{}, nil), &model.Instance{
		ID:         "local-1",
		ProviderID: &providerID,
		Name:       "old-name",
		Status:     model.InstanceStatusPending,
		Region:     "region-1",
		Tags: model.TagMap{
			model.TagInstallRequested: "true",
			model.TagInstallProduct:   "nginx",
			"env":                     "staging",
		},
	})

	gw := &fakeGateway{
		listInstances: func(ctx context.Context) ([]*provider.Instance, error) {
			return []*provider.Instance{{
				ProviderID: "i-1",
				Name:       "new-name",
				Status:     model.InstanceStatusRunning,
				PublicIP:   []string{"203.0.113.7"},
				Tags:       map[string]string{"env": "production"},
			}}, nil
		},
	}
	svc := NewInstanceService(db, gw, nil)

	current, err := svc.SyncInstances(context.Background())
	require.NoError(t, err)
	require.Len(t, current, 1)

	final, err := svc.Get("local-1")
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusRunning, final.Status)
	assert.Equal(t, "new-name", final.Name)
	assert.Equal(t, model.StringArray{"203.0.113.7"}, final.PublicIP)

	// 普通键以远端为准,保留键本地优先
	assert.Equal(t, "production", final.Tags["env"])
	assert.Equal(t, "true", final.Tags[model.TagInstallRequested])
	assert.Equal(t, "nginx", final.Tags[model.TagInstallProduct])
}

func TestSyncNeverDeletesLocalRows(t *testing.T) {
	db := newTestDB(t)
	svcSeed := NewInstanceService(db, &fakeGateway{}, nil)

	providerID := "i-gone"
	seedInstance(t, svcSeed, &model.Instance{
		ID:         "local-gone",
		ProviderID: &providerID,
		Name:       "vanished-remotely",
		Status:     model.InstanceStatusRunning,
	})
	seedInstance(t, svcSeed, &model.Instance{
		ID:     "local-pending",
		Name:   "still-creating",
		Status: model.InstanceStatusPending,
	})

	// 远端什么都没有
	gw := &fakeGateway{
		listInstances: func(ctx context.Context) ([]*provider.Instance, error) {
			return nil, nil
		},
	}
	svc := NewInstanceService(db, gw, nil)

	current, err := svc.SyncInstances(context.Background())
	require.NoError(t, err)
	assert.Empty(t, current)

	// 远端缺席不等于已释放,两行都还在且状态未动
	var count int64
	db.Model(&model.Instance{}).Count(&count)
	assert.EqualValues(t, 2, count)

	gone, err := svc.Get("local-gone")
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusRunning, gone.Status)
}

func TestSyncDegradesToLocalStateWhenProviderDown(t *testing.T) {
	db := newTestDB(t)
	svcSeed := NewInstanceService(db, &fakeGateway{}, nil)

	seedInstance(t, svcSeed, &model.Instance{
		ID:     "local-1",
		Name:   "cached",
		Status: model.InstanceStatusRunning,
		Tags:   model.TagMap{"env": "prod"},
	})

	gw := &fakeGateway{
		listInstances: func(ctx context.Context) ([]*provider.Instance, error) {
			return nil, errUnreachable
		},
	}
	svc := NewInstanceService(db, gw, nil)

	// 降级返回本地列表,不报错
	current, err := svc.SyncInstances(context.Background())
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, "cached", current[0].Name)
	assert.Equal(t, "prod", current[0].Tags["env"])

	// 降级不产生任何写入
	final, err := svc.Get("local-1")
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusRunning, final.Status)
}

func TestFullSyncToleratesPartialFailure(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{
		listInstances: func(ctx context.Context) ([]*provider.Instance, error) {
			return []*provider.Instance{{ProviderID: "i-1", Name: "a", Status: model.InstanceStatusRunning}}, nil
		},
		listVolumes: func(ctx context.Context) ([]*provider.Volume, error) {
			return nil, errUnreachable
		},
	}
	instances := NewInstanceService(db, gw, nil)
	volumes := NewVolumeService(db, gw, instances)
	secgroups := NewSecurityGroupService(db, gw)

	// 云盘同步降级不阻塞其他资源
	FullSync(context.Background(), instances, volumes, secgroups)

	var count int64
	db.Model(&model.Instance{}).Count(&count)
	assert.EqualValues(t, 1, count)
}
