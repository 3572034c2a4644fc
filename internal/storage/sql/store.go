package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver，注册为 "pgx"
	_ "github.com/lib/pq"              // PostgreSQL driver，注册为 "postgres"
	_ "github.com/mattn/go-sqlite3"    // SQLite driver，注册为 "sqlite3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage"
)

// Store 基于 GORM 的 SQL 存储实现（支持 MySQL、PostgreSQL 和 SQLite）
type Store struct {
	db  *gorm.DB
	sql *sql.DB
	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// driverNames 把配置里的数据库类型映射为 database/sql 驱动名
var driverNames = map[string]string{
	"mysql":    "mysql",
	"postgres": "postgres",
	"pgx":      "pgx",
	"sqlite":   "sqlite3",
}

// Open 按配置打开数据库连接，不执行迁移
func Open(cfg config.DatabaseConfig) (*Store, error) {
	driverName, ok := driverNames[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres, pgx, sqlite)", cfg.Type)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Type == "sqlite" {
		// SQLite 只允许一个写连接；内存库在连接关闭后即丢失
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "mysql":
		dialector = mysql.New(mysql.Config{Conn: db})
	case "postgres", "pgx":
		dialector = postgres.New(postgres.Config{Conn: db})
	case "sqlite":
		dialector = sqlite.New(sqlite.Config{DriverName: driverName, DSN: cfg.DSN, Conn: db})
	}

	store, err := NewWithDialector(dialector)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewWithDialector 使用指定的 GORM dialector 创建存储实例
func NewWithDialector(dialector gorm.Dialector) (*Store, error) {
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	return &Store{
		db:  gormDB,
		sql: sqlDB,
		now: time.Now,
	}, nil
}

// Migrate 自动迁移数据库表结构
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&domain.Mailbox{},
		&domain.Email{},
		&domain.Attachment{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.sql != nil {
		return s.sql.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health(ctx context.Context) error {
	if s.sql == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.sql.PingContext(ctx)
}

// notFound 把 gorm.ErrRecordNotFound 转换为存储层的哨兵错误
func notFound(err, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}
