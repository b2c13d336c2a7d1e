package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsre/zencloud/internal/config"
	"github.com/opsre/zencloud/internal/database"
	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider/mock"
	"github.com/opsre/zencloud/internal/service"
)

func newTestServer(t *testing.T, cfg *config.Config) *HTTPGinServer {
	t.Helper()

	if cfg == nil {
		cfg = &config.Config{}
	}

	db, err := database.Open(":memory:")
	require.NoError(t, err)

	gw := mock.NewGateway()
	require.NoError(t, gw.Initialize(nil))

	instances := service.NewInstanceService(db, gw, nil)
	volumes := service.NewVolumeService(db, gw, instances)
	secgroups := service.NewSecurityGroupService(db, gw)

	return NewHTTPGinServer(cfg, gw, instances, volumes, secgroups)
}

func doRequest(s *HTTPGinServer, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var resp struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var data map[string]string
	decodeData(t, w, &data)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, "mock", data["provider"])
}

func TestInstanceCreateAndGet(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/instances", model.CreateInstanceRequest{
		Name:         "web-1",
		InstanceType: "mock.small",
		Region:       "mock-1",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var created model.Instance
	decodeData(t, w, &created)
	assert.Equal(t, model.InstanceStatusPending, created.Status)
	require.NotEmpty(t, created.ID)

	w = doRequest(s, http.MethodGet, "/api/v1/instances/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInstanceCreateValidationError(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/instances", model.CreateInstanceRequest{
		InstanceType: "mock.small",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInstanceGetNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodGet, "/api/v1/instances/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInstallStatusEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/instances", model.CreateInstanceRequest{
		Name:             "web-1",
		InstanceType:     "mock.small",
		Region:           "mock-1",
		InstallRequested: true,
		InstallProduct:   "nginx",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	var created model.Instance
	decodeData(t, w, &created)

	// 刚创建还在安装窗口内
	w = doRequest(s, http.MethodGet, "/api/v1/instances/"+created.ID+"/install-status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status service.InstallStatusResult
	decodeData(t, w, &status)
	assert.Equal(t, service.InstallStatusInstalling, status.Status)
	assert.Equal(t, "nginx", status.Product)

	// 写入完成回执
	w = doRequest(s, http.MethodPost, "/api/v1/instances/"+created.ID+"/install-status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVolumeEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/volumes", model.CreateVolumeRequest{
		Name:    "data",
		SizeGiB: 100,
		Region:  "mock-1",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var created model.Volume
	decodeData(t, w, &created)
	assert.Equal(t, model.VolumeStatusCreating, created.Status)

	// 容量非法
	w = doRequest(s, http.MethodPost, "/api/v1/volumes", model.CreateVolumeRequest{
		Name:   "bad",
		Region: "mock-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSecurityGroupEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/security-groups", model.CreateSecurityGroupRequest{
		Name:   "web-sg",
		Region: "mock-1",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var created model.SecurityGroup
	decodeData(t, w, &created)
	require.NotEmpty(t, created.ID)

	w = doRequest(s, http.MethodGet, "/api/v1/security-groups/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetaEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{
		"/api/v1/meta/regions",
		"/api/v1/meta/instance-types",
		"/api/v1/meta/key-pairs",
	} {
		w := doRequest(s, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestMetaEndpointsReturnCatalogModels(t *testing.T) {
	s := newTestServer(t, nil)

	// 元数据和其他接口一样输出 snake_case 字段
	w := doRequest(s, http.MethodGet, "/api/v1/meta/regions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var regionList struct {
		Items []model.Region `json:"items"`
	}
	decodeData(t, w, &regionList)
	require.NotEmpty(t, regionList.Items)
	assert.NotEmpty(t, regionList.Items[0].ID)
	assert.Contains(t, w.Body.String(), `"id"`)
	assert.NotContains(t, w.Body.String(), `"ID"`)

	w = doRequest(s, http.MethodGet, "/api/v1/meta/instance-types", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var typeList struct {
		Items []model.InstanceTypeInfo `json:"items"`
	}
	decodeData(t, w, &typeList)
	require.NotEmpty(t, typeList.Items)
	assert.NotZero(t, typeList.Items[0].MemoryMB)
	assert.Contains(t, w.Body.String(), `"memory_mb"`)

	w = doRequest(s, http.MethodGet, "/api/v1/meta/key-pairs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var keyList struct {
		Items []model.KeyPair `json:"items"`
	}
	decodeData(t, w, &keyList)
	require.NotEmpty(t, keyList.Items)
	assert.NotEmpty(t, keyList.Items[0].Name)
	assert.Contains(t, w.Body.String(), `"fingerprint"`)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.Tokens = []string{"secret-token"}
	s := newTestServer(t, cfg)

	// 没带 token
	w := doRequest(s, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 带错误 token
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 带正确 token
	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// 指标端点不在认证范围内
	w = doRequest(s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
