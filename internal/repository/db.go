package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/user/cineverse/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite://"

// Open 按 URL 选择数据库：sqlite:// 用于本地开发，其余按 PostgreSQL 处理
func Open(databaseURL string) (*gorm.DB, error) {
	if strings.HasPrefix(databaseURL, sqlitePrefix) {
		return OpenSQLite(strings.TrimPrefix(databaseURL, sqlitePrefix))
	}
	return InitDB(databaseURL)
}

// OpenSQLite 打开 SQLite 数据库，":memory:" 时限制为单连接
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开 SQLite 失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// 内存库只能有一个连接，否则每个连接都是独立的空库
	if dsn == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// InitDB 初始化数据库连接（lib/pq 驱动 + gorm）
func InitDB(databaseURL string) (*gorm.DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库 ping 失败: %w", err)
	}

	// 设置连接池
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 gorm 失败: %w", err)
	}

	return db, nil
}

// Migrate 建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Account{},
		&model.Profile{},
		&model.MovieRecord{},
		&model.MovieStatusRecord{},
		&model.ReviewRecord{},
	)
}

// IsUniqueViolation 是否违反唯一约束
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Repositories 仓库集合
type Repositories struct {
	DB          *gorm.DB
	Account     *AccountRepository
	Profile     *ProfileRepository
	Movie       *MovieRepository
	MovieStatus *MovieStatusRepository
	Review      *ReviewRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:          db,
		Account:     NewAccountRepository(db),
		Profile:     NewProfileRepository(db),
		Movie:       NewMovieRepository(db),
		MovieStatus: NewMovieStatusRepository(db),
		Review:      NewReviewRepository(db),
	}
}
