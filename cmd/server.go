package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/spf13/cobra"

	"github.com/opsre/zencloud/internal/database"
	"github.com/opsre/zencloud/internal/events"
	"github.com/opsre/zencloud/internal/imcp"
	"github.com/opsre/zencloud/internal/metrics"
	"github.com/opsre/zencloud/internal/provider"
	"github.com/opsre/zencloud/internal/server"
	"github.com/opsre/zencloud/internal/service"

	// 注册网关实现
	_ "github.com/opsre/zencloud/internal/provider/aliyun"
	_ "github.com/opsre/zencloud/internal/provider/amazon"
	_ "github.com/opsre/zencloud/internal/provider/mock"
)

// serverCmd 启动服务
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 HTTP 和 MCP 服务",
	Long:  `启动 ZenCloud 服务:HTTP API、可选的 MCP 服务与周期性全量同步。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer() error {
	logx.Info("🚀 Starting ZenCloud ...")

	// 初始化数据库
	db, err := openDatabase()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close(db)

	// 初始化云厂商网关,进程启动时构造一次
	gw, err := provider.New(cfg.Provider.Driver)
	if err != nil {
		return fmt.Errorf("failed to create provider gateway: %w", err)
	}
	if err := gw.Initialize(cfg.Provider.Settings()); err != nil {
		return fmt.Errorf("failed to initialize provider gateway: %w", err)
	}
	logx.Info("Provider gateway ready, driver %s", gw.GetName())

	// 初始化事件发布(未启用时为 nil,发布调用全部空操作)
	var publisher *events.Publisher
	if cfg.Events.Enabled {
		publisher, err = events.NewPublisher(cfg.Events.URL, cfg.Events.SubjectPrefix)
		if err != nil {
			logx.Warn("Failed to connect event bus, events disabled: %v", err)
		} else {
			defer publisher.Close()
		}
	}

	// 注册指标
	metrics.Register()

	// 初始化服务层
	instances := service.NewInstanceService(db, gw, publisher)
	volumes := service.NewVolumeService(db, gw, instances)
	secgroups := service.NewSecurityGroupService(db, gw)

	// 启动 HTTP 服务
	var httpServer *server.HTTPGinServer
	if cfg.Server.HTTP.Enabled {
		httpServer = server.NewHTTPGinServer(cfg, gw, instances, volumes, secgroups)
		go func() {
			if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
				logx.Error("HTTP server failed: %v", err)
			}
		}()
	}

	// 启动 MCP 服务
	var mcpServer *imcp.MCPServer
	if cfg.Server.MCP.Enabled {
		mcpServer = imcp.NewMCPServer(cfg, instances, volumes)
		go func() {
			if err := mcpServer.Start(); err != nil && err != http.ErrServerClosed {
				logx.Error("MCP server failed: %v", err)
			}
		}()
	}

	// 启动周期性全量同步
	syncCtx, cancelSync := context.WithCancel(context.Background())
	defer cancelSync()
	if cfg.Sync.Enabled {
		go runSyncLoop(syncCtx, instances, volumes, secgroups)
	}

	logx.Info("✅ ZenCloud started")

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logx.Info("Shutting down ...")
	cancelSync()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logx.Warn("HTTP server shutdown: %v", err)
		}
	}
	if mcpServer != nil {
		if err := mcpServer.Stop(shutdownCtx); err != nil {
			logx.Warn("MCP server shutdown: %v", err)
		}
	}

	logx.Info("👋 ZenCloud stopped")
	return nil
}

// runSyncLoop 周期性对账:启动时先跑一轮,之后按配置间隔触发
func runSyncLoop(ctx context.Context, instances *service.InstanceService,
	volumes *service.VolumeService, secgroups *service.SecurityGroupService) {
	interval := cfg.Sync.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	service.FullSync(ctx, instances, volumes, secgroups)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			service.FullSync(ctx, instances, volumes, secgroups)
		}
	}
}
