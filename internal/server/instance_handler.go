package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/service"
)

// ==================== 实例 API ====================

// handleInstanceList 列出实例。sync=true 时先触发一次全量同步,
// 返回权威的"当前"视图;否则只读本地记录。
func (s *HTTPGinServer) handleInstanceList(c *gin.Context) {
	if c.Query("sync") == "true" {
		instances, err := s.instances.ListCurrent(c.Request.Context())
		if err != nil {
			s.serviceError(c, err)
			return
		}
		s.success(c, model.ListResponse{Items: instances})
		return
	}

	filter := &service.ListFilter{
		Status: c.Query("status"),
		Stack:  c.Query("stack"),
		Region: c.Query("region"),
	}
	instances, err := s.instances.List(filter)
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.success(c, model.ListResponse{Items: instances})
}

func (s *HTTPGinServer) handleInstanceGet(c *gin.Context) {
	inst, err := s.instances.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.success(c, inst)
}

func (s *HTTPGinServer) handleInstanceCreate(c *gin.Context) {
	var req model.CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, err.Error())
		return
	}

	inst, _, err := s.instances.CreateInstance(c.Request.Context(), &req)
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.accepted(c, inst)
}

func (s *HTTPGinServer) handleInstanceStart(c *gin.Context) {
	inst, _, err := s.instances.StartInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.accepted(c, inst)
}

func (s *HTTPGinServer) handleInstanceStop(c *gin.Context) {
	inst, _, err := s.instances.StopInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.accepted(c, inst)
}

func (s *HTTPGinServer) handleInstanceTerminate(c *gin.Context) {
	inst, _, err := s.instances.TerminateInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.accepted(c, inst)
}

// ==================== 安装状态 API ====================

func (s *HTTPGinServer) handleInstallStatusGet(c *gin.Context) {
	result, err := s.instances.GetInstallStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.success(c, result)
}

// handleInstallStatusComplete 安装完成回执,由装机流程回调
func (s *HTTPGinServer) handleInstallStatusComplete(c *gin.Context) {
	inst, err := s.instances.MarkInstallCompleted(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.success(c, inst)
}
