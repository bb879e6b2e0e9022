package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/agentforum/config"
)

// sqliteMemoryDSN 是 sqlite 未指定文件时使用的共享内存库
const sqliteMemoryDSN = "file::memory:?cache=shared"

// ErrPoolClosed 连接池已关闭
var ErrPoolClosed = errors.New("database pool is closed")

// StatsRecorder 接收连接池统计，由 internal/metrics.Collector 实现
type StatsRecorder interface {
	RecordDBConnections(database string, open, idle int)
}

// Limits 连接池上限
type Limits struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

func (l Limits) validate() error {
	switch {
	case l.MaxOpen <= 0:
		return fmt.Errorf("max_open_conns must be positive, got %d", l.MaxOpen)
	case l.MaxIdle <= 0:
		return fmt.Errorf("max_idle_conns must be positive, got %d", l.MaxIdle)
	case l.MaxIdle > l.MaxOpen:
		return fmt.Errorf("max_idle_conns %d exceeds max_open_conns %d", l.MaxIdle, l.MaxOpen)
	}
	return nil
}

// limitsFor 从配置推导上限；sqlite 只允许单个写连接
func limitsFor(cfg config.DatabaseConfig) Limits {
	l := Limits{MaxOpen: 10, MaxIdle: 2, MaxLifetime: 5 * time.Minute, MaxIdleTime: time.Minute}
	if cfg.Driver == "sqlite" {
		l.MaxOpen, l.MaxIdle = 1, 1
		return l
	}
	if cfg.MaxOpenConns > 0 {
		l.MaxOpen = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		l.MaxIdle = min(cfg.MaxIdleConns, l.MaxOpen)
	}
	if cfg.ConnMaxLifetime > 0 {
		l.MaxLifetime = cfg.ConnMaxLifetime
	}
	return l
}

// Dialector 按驱动名返回 GORM 方言
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	dsn := cfg.DSN()
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		if dsn == "" {
			dsn = sqliteMemoryDSN
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// =============================================================================
// 🗄️ 连接池
// =============================================================================

// Pool 持有场景库的 GORM 连接，可选地在后台探活并上报连接数
type Pool struct {
	db       *gorm.DB
	sqlDB    *sql.DB
	label    string
	recorder StatsRecorder
	interval time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
	done   chan struct{}
}

// Option 配置 Pool
type Option func(*Pool)

// WithStatsRecorder 每次探活后上报连接数，label 作为 database 标签
func WithStatsRecorder(label string, r StatsRecorder) Option {
	return func(p *Pool) {
		p.label = label
		p.recorder = r
	}
}

// WithHealthCheck 设置探活间隔，0 关闭后台探活
func WithHealthCheck(interval time.Duration) Option {
	return func(p *Pool) { p.interval = interval }
}

// Open 按配置连接数据库
func Open(cfg config.DatabaseConfig, logger *zap.Logger, opts ...Option) (*Pool, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	return Wrap(db, limitsFor(cfg), logger, opts...)
}

// Wrap 为已打开的 GORM 连接设置上限并启动探活
func Wrap(db *gorm.DB, limits Limits, logger *zap.Logger, opts ...Option) (*Pool, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := limits.validate(); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(limits.MaxOpen)
	sqlDB.SetMaxIdleConns(limits.MaxIdle)
	sqlDB.SetConnMaxLifetime(limits.MaxLifetime)
	sqlDB.SetConnMaxIdleTime(limits.MaxIdleTime)

	p := &Pool{
		db:       db,
		sqlDB:    sqlDB,
		label:    db.Name(),
		interval: 30 * time.Second,
		logger:   logger.With(zap.String("component", "db_pool")),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.interval > 0 {
		go p.healthCheckLoop()
	} else {
		close(p.done)
	}
	p.logger.Info("database pool ready",
		zap.String("dialect", db.Name()),
		zap.Int("max_open_conns", limits.MaxOpen),
		zap.Int("max_idle_conns", limits.MaxIdle))
	return p, nil
}

// DB 返回 GORM 实例
func (p *Pool) DB() *gorm.DB { return p.db }

// Ping 探测数据库连接
func (p *Pool) Ping(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	return p.sqlDB.PingContext(ctx)
}

// Close 停止探活并关闭连接，可重复调用
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stop)
	p.mu.Unlock()

	<-p.done
	return p.sqlDB.Close()
}

func (p *Pool) healthCheckLoop() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.check()
		}
	}
}

func (p *Pool) check() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		p.logger.Error("database health check failed", zap.Error(err))
		return
	}
	stats := p.sqlDB.Stats()
	if p.recorder != nil {
		p.recorder.RecordDBConnections(p.label, stats.OpenConnections, stats.Idle)
	}
}
