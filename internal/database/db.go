package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	db   *gorm.DB
	once sync.Once
)

// GetDB 获取数据库连接实例(单例模式)。
// 配置未指定路径时命令层退回这里,路径由环境变量或默认值决定。
func GetDB() *gorm.DB {
	once.Do(func() {
		var err error
		db, err = Open(getDBPath())
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
	})
	return db
}

// Open 打开指定路径的数据库并完成迁移。
// 传入 ":memory:" 时使用内存库,测试代码依赖这一点。
func Open(dbPath string) (*gorm.DB, error) {
	if dbPath != ":memory:" {
		// 确保数据目录存在
		dbDir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	gdb, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		// 禁用外键(指定外键时不会在sqlite创建真实的外键约束)
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect sqlite: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite database object: %w", err)
	}

	// 参见： https://github.com/glebarez/sqlite/issues/52
	// SQLite 只支持单个写入连接
	sqlDB.SetMaxOpenConns(1)

	// 自动迁移数据库表结构
	if err := AutoMigrate(gdb); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return gdb, nil
}

// getDBPath 获取数据库文件路径
func getDBPath() string {
	// 优先使用环境变量
	if dbPath := os.Getenv("ZENCLOUD_DB_PATH"); dbPath != "" {
		return dbPath
	}

	// 默认使用当前目录下的 data/zencloud.db
	return "./data/zencloud.db"
}

// Close 关闭指定的数据库连接,nil 安全
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
