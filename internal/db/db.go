package db

import (
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"city.newnan/mc-console/internal/config"
	"city.newnan/mc-console/internal/model"
)

var (
	// DB 全局数据库连接实例
	DB *gorm.DB
)

// InitDB 初始化数据库连接
func InitDB(cfg *config.Config) error {
	var err error
	var dialector gorm.Dialector

	switch cfg.DBType {
	case "mysql":
		dialector = mysql.Open(cfg.GetDBConnString())
	case "sqlite":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return fmt.Errorf("不支持的数据库类型: %s", cfg.DBType)
	}

	// 状态消息每个轮询周期都会写库，只记录警告以上的日志
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	DB, err = gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}

	if cfg.DBType == "sqlite" {
		// SQLite 不支持并发写入
		if sqlDB, err := DB.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	log.Printf("成功连接到数据库: %s", cfg.DBType)
	return nil
}

// CloseDB 关闭数据库连接
func CloseDB() {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			log.Printf("获取原生数据库连接失败: %v", err)
			return
		}
		if err := sqlDB.Close(); err != nil {
			log.Printf("关闭数据库连接失败: %v", err)
		}
	}
}

// AutoMigrate 自动迁移模型到数据库
func AutoMigrate(models ...interface{}) error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}
	return DB.AutoMigrate(models...)
}

// Migrate 迁移控制台使用的全部模型
func Migrate() error {
	return AutoMigrate(
		&model.Role{},
		&model.Operator{},
		&model.StatusMessage{},
		&model.ListCache{},
	)
}
