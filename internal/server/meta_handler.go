package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/provider"
)

// ==================== 元数据 API ====================
// 元数据直接透传网关,不落库:区域和规格由云厂商定义,本地没有权威性。
// 网关返回的是内部视图,输出前转换成对外的目录模型。

func (s *HTTPGinServer) handleMetaRegions(c *gin.Context) {
	regions, err := s.gw.ListRegions(c.Request.Context())
	if err != nil {
		s.error(c, http.StatusBadGateway, fmt.Sprintf("Failed to list regions: %v", err))
		return
	}
	s.success(c, model.ListResponse{Items: toRegions(regions)})
}

func (s *HTTPGinServer) handleMetaInstanceTypes(c *gin.Context) {
	types, err := s.gw.ListInstanceTypes(c.Request.Context(), c.Query("region"))
	if err != nil {
		s.error(c, http.StatusBadGateway, fmt.Sprintf("Failed to list instance types: %v", err))
		return
	}
	s.success(c, model.ListResponse{Items: toInstanceTypes(types)})
}

func (s *HTTPGinServer) handleMetaKeyPairs(c *gin.Context) {
	keyPairs, err := s.gw.ListKeyPairs(c.Request.Context())
	if err != nil {
		s.error(c, http.StatusBadGateway, fmt.Sprintf("Failed to list key pairs: %v", err))
		return
	}
	s.success(c, model.ListResponse{Items: toKeyPairs(keyPairs)})
}

// toRegions 转换为对外的区域目录模型
func toRegions(in []*provider.Region) []*model.Region {
	out := make([]*model.Region, 0, len(in))
	for _, r := range in {
		out = append(out, &model.Region{ID: r.ID, Name: r.Name})
	}
	return out
}

// toInstanceTypes 转换为对外的实例规格目录模型
func toInstanceTypes(in []*provider.InstanceTypeInfo) []*model.InstanceTypeInfo {
	out := make([]*model.InstanceTypeInfo, 0, len(in))
	for _, t := range in {
		out = append(out, &model.InstanceTypeInfo{
			ID:       t.ID,
			Family:   t.Family,
			CPU:      t.CPU,
			MemoryMB: t.MemoryMB,
		})
	}
	return out
}

// toKeyPairs 转换为对外的密钥对目录模型
func toKeyPairs(in []*provider.KeyPair) []*model.KeyPair {
	out := make([]*model.KeyPair, 0, len(in))
	for _, kp := range in {
		out = append(out, &model.KeyPair{Name: kp.Name, Fingerprint: kp.Fingerprint})
	}
	return out
}
