package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsre/zencloud/internal/config"
	"github.com/opsre/zencloud/internal/metrics"
	"github.com/opsre/zencloud/internal/provider"
	"github.com/opsre/zencloud/internal/service"
)

// HTTPGinServer 基于 Gin 的 HTTP 服务器
type HTTPGinServer struct {
	config    *config.Config
	engine    *gin.Engine
	server    *http.Server
	gw        provider.Gateway
	instances *service.InstanceService
	volumes   *service.VolumeService
	secgroups *service.SecurityGroupService
}

// NewHTTPGinServer 创建基于 Gin 的 HTTP 服务器
func NewHTTPGinServer(cfg *config.Config, gw provider.Gateway,
	instances *service.InstanceService, volumes *service.VolumeService,
	secgroups *service.SecurityGroupService) *HTTPGinServer {
	// 设置 Gin 模式
	if cfg.Server.HTTP.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &HTTPGinServer{
		config:    cfg,
		engine:    gin.New(),
		gw:        gw,
		instances: instances,
		volumes:   volumes,
		secgroups: secgroups,
	}

	// 注册中间件
	s.registerMiddlewares()

	// 注册路由
	s.registerRoutes()

	return s
}

// registerMiddlewares 注册中间件
func (s *HTTPGinServer) registerMiddlewares() {
	// 恢复中间件 - 从 panic 恢复
	s.engine.Use(gin.Recovery())

	// 自定义日志中间件
	s.engine.Use(s.loggingMiddleware())

	// CORS 中间件(如果需要)
	s.engine.Use(s.corsMiddleware())

	// 请求指标中间件
	s.engine.Use(s.metricsMiddleware())
}

// loggingMiddleware 自定义日志中间件
func (s *HTTPGinServer) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		logx.Info("HTTP request, method %s, path %s, remote_addr %s", method, path, c.ClientIP())

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		logx.Info("HTTP response, method %s, path %s, status %d, duration %s",
			method, path, status, duration)
	}
}

// corsMiddleware CORS 中间件
func (s *HTTPGinServer) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// metricsMiddleware 请求指标中间件
func (s *HTTPGinServer) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// authMiddleware Bearer Token 认证中间件
func (s *HTTPGinServer) authMiddleware() gin.HandlerFunc {
	allowed := make(map[string]bool, len(s.config.Auth.Tokens))
	for _, token := range s.config.Auth.Tokens {
		allowed[token] = true
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix || !allowed[header[len(prefix):]] {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Code:    401,
				Message: "invalid or missing token",
			})
			return
		}
		c.Next()
	}
}

// registerRoutes 注册路由
func (s *HTTPGinServer) registerRoutes() {
	// Prometheus 指标
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 路由组
	v1 := s.engine.Group("/api/v1")
	if s.config.Auth.Enabled {
		v1.Use(s.authMiddleware())
	}
	{
		// 健康检查
		v1.GET("/health", s.handleHealth)

		// 实例路由
		instances := v1.Group("/instances")
		{
			instances.GET("", s.handleInstanceList)
			instances.POST("", s.handleInstanceCreate)
			instances.GET("/:id", s.handleInstanceGet)
			instances.POST("/:id/start", s.handleInstanceStart)
			instances.POST("/:id/stop", s.handleInstanceStop)
			instances.DELETE("/:id", s.handleInstanceTerminate)
			instances.GET("/:id/install-status", s.handleInstallStatusGet)
			instances.POST("/:id/install-status", s.handleInstallStatusComplete)
		}

		// 云盘路由
		volumes := v1.Group("/volumes")
		{
			volumes.GET("", s.handleVolumeList)
			volumes.POST("", s.handleVolumeCreate)
			volumes.GET("/:id", s.handleVolumeGet)
			volumes.DELETE("/:id", s.handleVolumeDelete)
			volumes.POST("/:id/attach", s.handleVolumeAttach)
			volumes.POST("/:id/detach", s.handleVolumeDetach)
		}

		// 安全组路由
		secgroups := v1.Group("/security-groups")
		{
			secgroups.GET("", s.handleSecurityGroupList)
			secgroups.POST("", s.handleSecurityGroupCreate)
			secgroups.GET("/:id", s.handleSecurityGroupGet)
			secgroups.DELETE("/:id", s.handleSecurityGroupDelete)
			secgroups.POST("/:id/rules", s.handleSecurityGroupAddRule)
			secgroups.DELETE("/:id/rules", s.handleSecurityGroupRemoveRule)
		}

		// 元数据路由
		meta := v1.Group("/meta")
		{
			meta.GET("/regions", s.handleMetaRegions)
			meta.GET("/instance-types", s.handleMetaInstanceTypes)
			meta.GET("/key-pairs", s.handleMetaKeyPairs)
		}
	}
}

// Start 启动 HTTP 服务器
func (s *HTTPGinServer) Start() error {
	addr := fmt.Sprintf("0.0.0.0:%d", s.config.Server.HTTP.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	logx.Info("🛜 Starting HTTP Server (Gin), Addr %s", addr)
	return s.server.ListenAndServe()
}

// Stop 停止 HTTP 服务器
func (s *HTTPGinServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Engine 返回底层 Gin 引擎
func (s *HTTPGinServer) Engine() *gin.Engine {
	return s.engine
}

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// success 返回成功响应
func (s *HTTPGinServer) success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: "Success",
		Data:    data,
	})
}

// accepted 返回已受理响应,用于后台仍在执行远端调用的乐观操作
func (s *HTTPGinServer) accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, Response{
		Code:    202,
		Message: "Accepted",
		Data:    data,
	})
}

// error 返回错误响应
func (s *HTTPGinServer) error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// serviceError 把服务层错误族映射为 HTTP 状态码
func (s *HTTPGinServer) serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		s.error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrPolicyViolation):
		s.error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProviderUnavailable):
		s.error(c, http.StatusBadGateway, err.Error())
	default:
		s.error(c, http.StatusInternalServerError, err.Error())
	}
}

// ==================== 健康检查 ====================

func (s *HTTPGinServer) handleHealth(c *gin.Context) {
	s.success(c, gin.H{
		"status":   "healthy",
		"provider": s.gw.GetName(),
	})
}
