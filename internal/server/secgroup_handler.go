package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opsre/zencloud/internal/model"
)

// ==================== 安全组 API ====================

func (s *HTTPGinServer) handleSecurityGroupList(c *gin.Context) {
	if c.Query("sync") == "true" {
		groups, err := s.secgroups.SyncSecurityGroups(c.Request.Context())
		if err != nil {
			s.serviceError(c, err)
			return
		}
		s.success(c, model.ListResponse{Items: groups})
		return
	}

	groups, err := s.secgroups.List(c.Query("region"))
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.success(c, model.ListResponse{Items: groups})
}

func (s *HTTPGinServer) handleSecurityGroupGet(c *gin.Context) {
	sg, err := s.secgroups.Resolve(c.Param("id"))
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.success(c, sg)
}

func (s *HTTPGinServer) handleSecurityGroupCreate(c *gin.Context) {
	var req model.CreateSecurityGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, err.Error())
		return
	}

	sg, _, err := s.secgroups.Create(c.Request.Context(), &req)
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.accepted(c, sg)
}

func (s *HTTPGinServer) handleSecurityGroupDelete(c *gin.Context) {
	_, err := s.secgroups.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.accepted(c, gin.H{"id": c.Param("id"), "deleted": true})
}

func (s *HTTPGinServer) handleSecurityGroupAddRule(c *gin.Context) {
	var rule model.SecurityGroupRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		s.error(c, http.StatusBadRequest, err.Error())
		return
	}

	sg, _, err := s.secgroups.AddRule(c.Request.Context(), c.Param("id"), rule)
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.accepted(c, sg)
}

func (s *HTTPGinServer) handleSecurityGroupRemoveRule(c *gin.Context) {
	var rule model.SecurityGroupRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		s.error(c, http.StatusBadRequest, err.Error())
		return
	}

	sg, _, err := s.secgroups.RemoveRule(c.Request.Context(), c.Param("id"), rule)
	if err != nil {
		s.serviceError(c, err)
		return
	}
	s.accepted(c, sg)
}
