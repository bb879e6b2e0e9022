package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/BaSui01/agentforum/config"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

// VersionTable 记录已应用版本的表，与应用表共用同一个库
const VersionTable = "agentforum_schema_migrations"

// ErrUnsupported 该驱动没有 SQL 迁移，sqlite 使用 gorm AutoMigrate 建表
var ErrUnsupported = errors.New("migrations are not supported for this database type")

// Dialect 是带有嵌入迁移脚本的数据库方言
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// DialectFor 把 database.driver 配置映射为方言
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return "", fmt.Errorf("%w: sqlite", ErrUnsupported)
	default:
		return "", fmt.Errorf("unsupported database driver: %q", driver)
	}
}

func (d Dialect) dir() string { return "migrations/" + string(d) }

// MigrationStatus 单个迁移脚本的状态
type MigrationStatus struct {
	Version uint
	Name    string
	Applied bool
	Dirty   bool
}

// MigrationInfo 汇总当前版本与待执行数量
type MigrationInfo struct {
	CurrentVersion    uint
	Dirty             bool
	TotalMigrations   int
	AppliedMigrations int
	PendingMigrations int
}

// Migrator 是 CLI 依赖的迁移操作
type Migrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Version(ctx context.Context) (uint, bool, error)
	Status(ctx context.Context) ([]MigrationStatus, error)
	Info(ctx context.Context) (*MigrationInfo, error)
	Close() error
}

// SQLMigrator 用 golang-migrate 执行嵌入的脚本
type SQLMigrator struct {
	dialect Dialect
	migrate *migrate.Migrate
}

var _ Migrator = (*SQLMigrator)(nil)

// Open 按应用的数据库配置连接并准备迁移
func Open(ctx context.Context, dbCfg config.DatabaseConfig) (*SQLMigrator, error) {
	dialect, err := DialectFor(dbCfg.Driver)
	if err != nil {
		return nil, err
	}

	// lib/pq 与 go-sql-driver/mysql 分别由 migrate 的驱动包注册
	db, err := sql.Open(string(dialect), dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var driver database.Driver
	switch dialect {
	case DialectPostgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{MigrationsTable: VersionTable})
	case DialectMySQL:
		driver, err = mysql.WithInstance(db, &mysql.Config{MigrationsTable: VersionTable})
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, dialect.dir())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &SQLMigrator{dialect: dialect, migrate: m}, nil
}

// Up 应用全部待执行迁移
func (m *SQLMigrator) Up(context.Context) error {
	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Down 回滚一个版本
func (m *SQLMigrator) Down(context.Context) error {
	if err := m.migrate.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Version 返回当前版本；从未迁移时为 0
func (m *SQLMigrator) Version(context.Context) (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

// Status 列出每个嵌入脚本是否已应用
func (m *SQLMigrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	scripts, err := embedded(m.dialect)
	if err != nil {
		return nil, err
	}
	return statusOf(scripts, current, dirty), nil
}

// Info 汇总 Status
func (m *SQLMigrator) Info(ctx context.Context) (*MigrationInfo, error) {
	statuses, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	return summarize(statuses, current, dirty), nil
}

// Close 释放源驱动与数据库连接
func (m *SQLMigrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}

type script struct {
	version uint
	name    string
}

// embedded 读取方言目录下的 .up.sql，按版本排序。
// 文件名形如 000001_create_scenarios.up.sql。
func embedded(d Dialect) ([]script, error) {
	entries, err := fs.ReadDir(migrationsFS, d.dir())
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations for %s: %w", d, err)
	}

	var scripts []script
	for _, entry := range entries {
		base, ok := strings.CutSuffix(entry.Name(), ".up.sql")
		if entry.IsDir() || !ok {
			continue
		}
		num, name, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		version, err := strconv.ParseUint(num, 10, 32)
		if err != nil {
			continue
		}
		scripts = append(scripts, script{version: uint(version), name: name})
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].version < scripts[j].version })
	return scripts, nil
}

func statusOf(scripts []script, current uint, dirty bool) []MigrationStatus {
	statuses := make([]MigrationStatus, 0, len(scripts))
	for _, s := range scripts {
		statuses = append(statuses, MigrationStatus{
			Version: s.version,
			Name:    s.name,
			Applied: s.version <= current,
			Dirty:   dirty && s.version == current,
		})
	}
	return statuses
}

func summarize(statuses []MigrationStatus, current uint, dirty bool) *MigrationInfo {
	info := &MigrationInfo{CurrentVersion: current, Dirty: dirty, TotalMigrations: len(statuses)}
	for _, s := range statuses {
		if s.Applied {
			info.AppliedMigrations++
		}
	}
	info.PendingMigrations = info.TotalMigrations - info.AppliedMigrations
	return info
}
