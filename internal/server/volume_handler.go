package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/service"
)

// ==================== 云盘 API ====================

func (s *HTTPGinServer) handleVolumeList(c *gin.Context) {
	if c.Query("sync") == "true" {
		volumes, err := s.volumes.SyncVolumes(c.Request.Context())
		if err != nil {
			s.serviceError(c, err)
			return
		}
		s.success(c, model.ListResponse{Items: volumes})
		return
	}

	filter := &service.VolumeFilter{
		Status: c.Query("status"),
		Region: c.Query("region"),
	}
	volumes, err := s.volumes.List(filter)
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.success(c, model.ListResponse{Items: volumes})
}

func (s *HTTPGinServer) handleVolumeGet(c *gin.Context) {
	vol, err := s.volumes.Resolve(c.Param("id"))
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.success(c, vol)
}

func (s *HTTPGinServer) handleVolumeCreate(c *gin.Context) {
	var req model.CreateVolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, err.Error())
		return
	}

	vol, _, err := s.volumes.Create(c.Request.Context(), &req)
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.accepted(c, vol)
}

// attachRequest 挂载云盘请求
type attachRequest struct {
	InstanceID string `json:"instance_id"`
	Device     string `json:"device"`
}

func (s *HTTPGinServer) handleVolumeAttach(c *gin.Context) {
	var req attachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.InstanceID == "" {
		s.error(c, http.StatusBadRequest, "instance_id is required")
		return
	}

	vol, _, err := s.volumes.Attach(c.Request.Context(), c.Param("id"), req.InstanceID, req.Device)
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.accepted(c, vol)
}

func (s *HTTPGinServer) handleVolumeDetach(c *gin.Context) {
	vol, _, err := s.volumes.Detach(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.accepted(c, vol)
}

func (s *HTTPGinServer) handleVolumeDelete(c *gin.Context) {
	_, err := s.volumes.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.accepted(c, gin.H{"id": c.Param("id"), "deleted": true})
}
