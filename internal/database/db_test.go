package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsre/zencloud/internal/model"
)

func TestOpenReturnsIsolatedHandles(t *testing.T) {
	first, err := Open(":memory:")
	require.NoError(t, err)
	second, err := Open(":memory:")
	require.NoError(t, err)

	require.NoError(t, first.Create(&model.Instance{
		ID:     "inst-1",
		Name:   "web",
		Status: model.InstanceStatusRunning,
	}).Error)

	// 每次 Open 返回独立连接,互不共享状态
	var count int64
	require.NoError(t, second.Model(&model.Instance{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, Close(first))
	require.NoError(t, Close(second))
}

func TestOpenRunsMigrations(t *testing.T) {
	gdb, err := Open(":memory:")
	require.NoError(t, err)
	defer Close(gdb)

	// Open 内部完成迁移,所有表直接可用
	for _, m := range []any{&model.Instance{}, &model.Volume{}, &model.SecurityGroup{}} {
		assert.True(t, gdb.Migrator().HasTable(m))
	}
}

func TestCloseNilIsSafe(t *testing.T) {
	assert.NoError(t, Close(nil))
}

func TestGetDBPathEnvOverride(t *testing.T) {
	t.Setenv("ZENCLOUD_DB_PATH", "/tmp/zencloud-test.db")
	assert.Equal(t, "/tmp/zencloud-test.db", getDBPath())

	t.Setenv("ZENCLOUD_DB_PATH", "")
	assert.Equal(t, "./data/zencloud.db", getDBPath())
}
