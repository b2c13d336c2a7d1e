package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/opsre/zencloud/internal/config"
	"github.com/opsre/zencloud/internal/database"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "zencloud",
	Short: "云实例供给与对账平台",
	Long: `ZenCloud 是一个云实例供给平台:操作先落库记录意图再执行远端调用,
全量同步以云厂商当前列表为准校准本地记录,厂商不可达时降级返回本地视图。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径 (默认搜索 ./config.yaml)")
}

// openDatabase 打开数据库。配置显式给出路径时按路径打开,
// 未配置时退回单例,路径由 ZENCLOUD_DB_PATH 或默认值决定。
func openDatabase() (*gorm.DB, error) {
	if cfg.Database.Path == "" {
		return database.GetDB(), nil
	}
	return database.Open(cfg.Database.Path)
}
