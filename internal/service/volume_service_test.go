package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider"
)

func newVolumeFixture(t *testing.T, gw *fakeGateway) (*VolumeService, *InstanceService) {
	t.Helper()
	db := newTestDB(t)
	instances := NewInstanceService(db, gw, nil)
	volumes := NewVolumeService(db, gw, instances)
	return volumes, instances
}

func TestVolumeCreateSuccess(t *testing.T) {
	volumes, _ := newVolumeFixture(t, &fakeGateway{
		createVolume: func(ctx context.Context, spec *provider.CreateVolumeSpec) (string, error) {
			return "vol-r1", nil
		},
	})

	vol, task, err := volumes.Create(context.Background(), &model.CreateVolumeRequest{
		Name:    "data",
		SizeGiB: 100,
		Region:  "region-1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.VolumeStatusCreating, vol.Status)

	require.NoError(t, task.Wait())

	final, err := volumes.Get(vol.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VolumeStatusAvailable, final.Status)
	require.NotNil(t, final.ProviderID)
	assert.Equal(t, "vol-r1", *final.ProviderID)
}

func TestVolumeCreateFailureRemovesRecord(t *testing.T) {
	volumes, _ := newVolumeFixture(t, &fakeGateway{
		createVolume: func(ctx context.Context, spec *provider.CreateVolumeSpec) (string, error) {
			return "", errUnreachable
		},
	})

	vol, task, err := volumes.Create(context.Background(), &model.CreateVolumeRequest{
		Name:    "data",
		SizeGiB: 100,
		Region:  "region-1",
	})
	require.NoError(t, err)

	err = task.Wait()
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	_, err = volumes.Get(vol.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVolumeCreateValidation(t *testing.T) {
	volumes, _ := newVolumeFixture(t, &fakeGateway{})

	_, _, err := volumes.Create(context.Background(), &model.CreateVolumeRequest{SizeGiB: 0, Region: "region-1"})
	assert.ErrorIs(t, err, ErrPolicyViolation)

	_, _, err = volumes.Create(context.Background(), &model.CreateVolumeRequest{SizeGiB: 10})
	assert.ErrorIs(t, err, ErrPolicyViolation)
}

func seedVolume(t *testing.T, volumes *VolumeService, vol *model.Volume) {
	t.Helper()
	require.NoError(t, volumes.db.Create(vol).Error)
}

func TestVolumeAttachDetachCycle(t *testing.T) {
	volumes, instances := newVolumeFixture(t, &fakeGateway{})

	instProviderID := "i-1"
	seedInstance(t, instances, &model.Instance{
		ID:         "inst-1",
		ProviderID: &instProviderID,
		Name:       "web",
		Status:     model.InstanceStatusRunning,
	})
	volProviderID := "vol-1"
	seedVolume(t, volumes, &model.Volume{
		ID:         "v-1",
		ProviderID: &volProviderID,
		Name:       "data",
		SizeGiB:    100,
		Status:     model.VolumeStatusAvailable,
	})

	vol, task, err := volumes.Attach(context.Background(), "v-1", "inst-1", "/dev/xvdf")
	require.NoError(t, err)
	assert.Equal(t, model.VolumeStatusInUse, vol.Status)
	require.NoError(t, task.Wait())

	final, err := volumes.Get("v-1")
	require.NoError(t, err)
	require.NotNil(t, final.AttachedTo)
	assert.Equal(t, "inst-1", *final.AttachedTo)
	assert.Equal(t, "/dev/xvdf", final.Device)

	inst, err := instances.Get("inst-1")
	require.NoError(t, err)
	assert.Contains(t, inst.VolumeIDs, "v-1")

	// 挂载中不允许再次挂载,也不允许删除
	_, _, err = volumes.Attach(context.Background(), "v-1", "inst-1", "/dev/xvdg")
	assert.ErrorIs(t, err, ErrPolicyViolation)
	_, err = volumes.Delete(context.Background(), "v-1")
	assert.ErrorIs(t, err, ErrPolicyViolation)

	_, task, err = volumes.Detach(context.Background(), "v-1")
	require.NoError(t, err)
	require.NoError(t, task.Wait())

	final, err = volumes.Get("v-1")
	require.NoError(t, err)
	assert.Equal(t, model.VolumeStatusAvailable, final.Status)
	assert.Nil(t, final.AttachedTo)
	assert.Empty(t, final.Device)

	inst, err = instances.Get("inst-1")
	require.NoError(t, err)
	assert.NotContains(t, inst.VolumeIDs, "v-1")
}

func TestVolumeAttachFailureRollsBack(t *testing.T) {
	volumes, instances := newVolumeFixture(t, &fakeGateway{
		attachVolume: func(ctx context.Context, volumeID, instanceID, device string) error {
			return errUnreachable
		},
	})

	instProviderID := "i-1"
	seedInstance(t, instances, &model.Instance{
		ID:         "inst-1",
		ProviderID: &instProviderID,
		Name:       "web",
		Status:     model.InstanceStatusRunning,
	})
	volProviderID := "vol-1"
	seedVolume(t, volumes, &model.Volume{
		ID:         "v-1",
		ProviderID: &volProviderID,
		Name:       "data",
		SizeGiB:    100,
		Status:     model.VolumeStatusAvailable,
	})

	_, task, err := volumes.Attach(context.Background(), "v-1", "inst-1", "/dev/xvdf")
	require.NoError(t, err)

	err = task.Wait()
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	final, err := volumes.Get("v-1")
	require.NoError(t, err)
	assert.Equal(t, model.VolumeStatusAvailable, final.Status)
	assert.Nil(t, final.AttachedTo)

	inst, err := instances.Get("inst-1")
	require.NoError(t, err)
	assert.NotContains(t, inst.VolumeIDs, "v-1")
}

func TestVolumeAttachPolicyChecks(t *testing.T) {
	volumes, instances := newVolumeFixture(t, &fakeGateway{})

	seedInstance(t, instances, &model.Instance{
		ID:     "inst-unconfirmed",
		Name:   "pending",
		Status: model.InstanceStatusPending,
	})
	volProviderID := "vol-1"
	seedVolume(t, volumes, &model.Volume{
		ID:         "v-1",
		ProviderID: &volProviderID,
		Name:       "data",
		SizeGiB:    100,
		Status:     model.VolumeStatusAvailable,
	})
	seedVolume(t, volumes, &model.Volume{
		ID:      "v-creating",
		Name:    "half-born",
		SizeGiB: 50,
		Status:  model.VolumeStatusCreating,
	})

	// 实例没有厂商 ID
	_, _, err := volumes.Attach(context.Background(), "v-1", "inst-unconfirmed", "")
	assert.ErrorIs(t, err, ErrPolicyViolation)

	// 云盘还在 creating
	instProviderID := "i-2"
	seedInstance(t, instances, &model.Instance{
		ID:         "inst-2",
		ProviderID: &instProviderID,
		Name:       "web",
		Status:     model.InstanceStatusRunning,
	})
	_, _, err = volumes.Attach(context.Background(), "v-creating", "inst-2", "")
	assert.ErrorIs(t, err, ErrPolicyViolation)
}

func TestVolumeDeleteRemovesLocalRow(t *testing.T) {
	volumes, _ := newVolumeFixture(t, &fakeGateway{})

	volProviderID := "vol-1"
	seedVolume(t, volumes, &model.Volume{
		ID:         "v-1",
		ProviderID: &volProviderID,
		Name:       "data",
		SizeGiB:    100,
		Status:     model.VolumeStatusAvailable,
	})

	task, err := volumes.Delete(context.Background(), "v-1")
	require.NoError(t, err)
	require.NoError(t, task.Wait())

	_, err = volumes.Get("v-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVolumeSyncMapsAttachmentToLocalInstance(t *testing.T) {
	gw := &fakeGateway{
		listVolumes: func(ctx context.Context) ([]*provider.Volume, error) {
			return []*provider.Volume{{
				ProviderID: "vol-r1",
				Name:       "remote-data",
				SizeGiB:    200,
				Status:     model.VolumeStatusInUse,
				AttachedTo: "i-1",
				Device:     "/dev/xvdf",
			}}, nil
		},
	}
	volumes, instances := newVolumeFixture(t, gw)

	instProviderID := "i-1"
	seedInstance(t, instances, &model.Instance{
		ID:         "inst-local",
		ProviderID: &instProviderID,
		Name:       "web",
		Status:     model.InstanceStatusRunning,
	})

	current, err := volumes.SyncVolumes(context.Background())
	require.NoError(t, err)
	require.Len(t, current, 1)

	// 挂载目标换算成了本地实例 ID
	require.NotNil(t, current[0].AttachedTo)
	assert.Equal(t, "inst-local", *current[0].AttachedTo)
	assert.Equal(t, model.VolumeStatusInUse, current[0].Status)
}

func TestVolumeSyncDegradesWhenProviderDown(t *testing.T) {
	volumes, _ := newVolumeFixture(t, &fakeGateway{
		listVolumes: func(ctx context.Context) ([]*provider.Volume, error) {
			return nil, errUnreachable
		},
	})

	seedVolume(t, volumes, &model.Volume{
		ID:      "v-1",
		Name:    "cached",
		SizeGiB: 10,
		Status:  model.VolumeStatusAvailable,
	})

	current, err := volumes.SyncVolumes(context.Background())
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, "cached", current[0].Name)
}
