// Package testutil 为各包测试提供已迁移的 SQLite 数据库
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"formquiz_backend/internal/model"
	"formquiz_backend/pkg/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB 在测试临时目录中创建 SQLite 数据库文件，并执行与生产一致的迁移
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate", filepath.Join(t.TempDir(), "test.db"))
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(gormlogger.Silent))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateUser 创建用户，邮箱由 name 派生以保证唯一
func CreateUser(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: name + "@example.com"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func Float(v float64) *float64 { return &v }

func String(s string) *string { return &s }
