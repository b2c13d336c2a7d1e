package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsre/zencloud/internal/provider"
	"github.com/opsre/zencloud/internal/service"

	// 注册网关实现
	_ "github.com/opsre/zencloud/internal/provider/aliyun"
	_ "github.com/opsre/zencloud/internal/provider/amazon"
	_ "github.com/opsre/zencloud/internal/provider/mock"
)

// queryCmd 查询命令组
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "查询本地资源镜像",
	Long:  `查询本地记录的实例、云盘信息。加 --sync 先对照云厂商校准一轮再输出。`,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

// buildServices 查询命令共用的初始化:数据库 + 网关 + 服务层
func buildServices() (*service.InstanceService, *service.VolumeService, error) {
	db, err := openDatabase()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	gw, err := provider.New(cfg.Provider.Driver)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create provider gateway: %w", err)
	}
	if err := gw.Initialize(cfg.Provider.Settings()); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize provider gateway: %w", err)
	}

	instances := service.NewInstanceService(db, gw, nil)
	volumes := service.NewVolumeService(db, gw, instances)
	return instances, volumes, nil
}
