package imcp

import (
	"context"
	"fmt"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/opsre/zencloud/internal/config"
	"github.com/opsre/zencloud/internal/service"
)

// MCPServer MCP 服务器,向 AI 助手暴露只读查询工具。
// 所有工具走同一套 service 层,不绕过身份解析与合并语义;
// 写操作一律不暴露。
type MCPServer struct {
	config     *config.Config
	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
	instances  *service.InstanceService
	volumes    *service.VolumeService
}

// NewMCPServer 创建 MCP 服务器
func NewMCPServer(cfg *config.Config, instances *service.InstanceService, volumes *service.VolumeService) *MCPServer {
	s := &MCPServer{
		config:    cfg,
		instances: instances,
		volumes:   volumes,
	}

	s.mcpServer = server.NewMCPServer(
		"zencloud",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.registerTools()

	return s
}

// registerTools 注册工具
func (s *MCPServer) registerTools() {
	// 列出实例
	s.mcpServer.AddTool(mcp.NewTool("list_instances",
		mcp.WithDescription("列出云实例,支持按状态、分组、区域过滤"),
		mcp.WithString("status", mcp.Description("实例状态 (pending, running, stopped, terminated)")),
		mcp.WithString("stack", mcp.Description("分组标签")),
		mcp.WithString("region", mcp.Description("区域")),
	), s.handleListInstances)

	// 获取实例详情
	s.mcpServer.AddTool(mcp.NewTool("get_instance",
		mcp.WithDescription("根据实例 ID 获取实例详情,本地 ID 和云厂商 ID 都可以"),
		mcp.WithString("id", mcp.Required(), mcp.Description("实例 ID")),
	), s.handleGetInstance)

	// 查询安装状态
	s.mcpServer.AddTool(mcp.NewTool("install_status",
		mcp.WithDescription("查询实例的软件安装状态"),
		mcp.WithString("id", mcp.Required(), mcp.Description("实例 ID")),
	), s.handleInstallStatus)

	// 列出云盘
	s.mcpServer.AddTool(mcp.NewTool("list_volumes",
		mcp.WithDescription("列出云盘,支持按状态、区域过滤"),
		mcp.WithString("status", mcp.Description("云盘状态 (creating, available, in-use)")),
		mcp.WithString("region", mcp.Description("区域")),
	), s.handleListVolumes)
}

// Start 启动 MCP 服务器
func (s *MCPServer) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Server.MCP.Port)
	s.httpServer = server.NewStreamableHTTPServer(s.mcpServer)

	logx.Info("🔌 Starting MCP Server, Addr %s", addr)
	return s.httpServer.Start(addr)
}

// Stop 停止 MCP 服务器
func (s *MCPServer) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
