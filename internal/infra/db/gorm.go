package db

import (
	"fmt"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case config.DriverPostgres:
		return gorm.Open(postgres.Open(cfg.PostgresDSN()), gormConfig())
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// OpenSQLite は開発・テスト用。
// SQLiteは行ロックを持たないので接続を1本にしてTxを直列化する
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	gdb, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return gdb, nil
}

// Migrate はテーブルを作る
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(model.All()...)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		//unique/check違反をgormのエラーに変換する
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}
