package cmd

import (
	"context"
	"fmt"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/spf13/cobra"

	"github.com/opsre/zencloud/internal/database"
	"github.com/opsre/zencloud/internal/provider"
	"github.com/opsre/zencloud/internal/service"

	// 注册网关实现
	_ "github.com/opsre/zencloud/internal/provider/aliyun"
	_ "github.com/opsre/zencloud/internal/provider/amazon"
	_ "github.com/opsre/zencloud/internal/provider/mock"
)

// syncCmd 一次性全量同步
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "执行一次全量同步",
	Long:  `对照云厂商当前资源列表校准本地记录:实例、云盘、安全组各跑一轮。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close(db)

		gw, err := provider.New(cfg.Provider.Driver)
		if err != nil {
			return fmt.Errorf("failed to create provider gateway: %w", err)
		}
		if err := gw.Initialize(cfg.Provider.Settings()); err != nil {
			return fmt.Errorf("failed to initialize provider gateway: %w", err)
		}

		instances := service.NewInstanceService(db, gw, nil)
		volumes := service.NewVolumeService(db, gw, instances)
		secgroups := service.NewSecurityGroupService(db, gw)

		service.FullSync(context.Background(), instances, volumes, secgroups)
		logx.Info("Full sync finished")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
