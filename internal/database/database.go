package database

import (
	"fmt"

	"github.com/blues/agrofund/internal/config"
	"github.com/blues/agrofund/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Models 需要自动迁移的表
func Models() []interface{} {
	return []interface{}{
		&model.ProjectModel{},
		&model.ContributionModel{},
		&model.UserModel{},
	}
}

// GormConfig 统一的gorm配置
//
// TranslateError 打开后唯一索引冲突会被翻译成 gorm.ErrDuplicatedKey,
// 出资记录的幂等依赖这一点。
func GormConfig(debug bool) *gorm.Config {
	level := gormLogger.Silent // 禁用 GORM 的默认日志输出
	if debug {
		level = gormLogger.Info
	}
	return &gorm.Config{
		Logger:         gormLogger.Default.LogMode(level),
		TranslateError: true,
		NamingStrategy: &schema.NamingStrategy{
			SingularTable: true, // 禁用复数表名
		},
	}
}

// Migrate 自动迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), GormConfig(cfg.Debug))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
