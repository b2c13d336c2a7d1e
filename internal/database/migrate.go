package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/opsre/zencloud/internal/model"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Instance{},
		&model.Volume{},
		&model.SecurityGroup{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}

	return nil
}
