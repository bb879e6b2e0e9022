// 配置文件变更监听与日志级别热更新。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileWatcher 通过轮询修改时间监听文件变化
type FileWatcher struct {
	mu sync.Mutex

	paths         []string
	debounceDelay time.Duration
	pollInterval  time.Duration

	running  bool
	stopChan chan struct{}
	done     chan struct{}

	callbacks    []func(event FileEvent)
	lastModTimes map[string]time.Time

	logger *zap.Logger
}

// FileEvent 文件变更事件
type FileEvent struct {
	Path      string    `json:"path"`
	Op        FileOp    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// FileOp 文件操作类型
type FileOp int

const (
	// FileOpCreate 表示文件已创建
	FileOpCreate FileOp = iota
	// FileOpWrite 指示文件已被修改
	FileOpWrite
	// FileOpRemove 表示文件已被删除
	FileOpRemove
)

// String returns the string representation of FileOp
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "CREATE"
	case FileOpWrite:
		return "WRITE"
	case FileOpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// WatcherOption configures the FileWatcher
type WatcherOption func(*FileWatcher)

// WithDebounceDelay 设置事件合并延迟
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		w.debounceDelay = d
	}
}

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		w.pollInterval = d
	}
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *FileWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewFileWatcher 创建文件监听器，不存在的路径会在创建后触发 CREATE
func NewFileWatcher(paths []string, opts ...WatcherOption) (*FileWatcher, error) {
	w := &FileWatcher{
		paths:         append([]string(nil), paths...),
		debounceDelay: 100 * time.Millisecond,
		pollInterval:  time.Second,
		lastModTimes:  make(map[string]time.Time),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, path := range w.paths {
		if _, err := os.Stat(path); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to stat path %s: %w", path, err)
			}
			w.logger.Warn("config file does not exist, will watch for creation",
				zap.String("path", path))
		}
	}
	return w, nil
}

// OnChange 注册变更回调。回调在监听协程中顺序执行。
func (w *FileWatcher) OnChange(callback func(FileEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start 开始监听，直到 ctx 结束或调用 Stop
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	for _, path := range w.paths {
		if info, err := os.Stat(path); err == nil {
			w.lastModTimes[path] = info.ModTime()
		}
	}
	w.mu.Unlock()

	go w.loop(ctx)

	w.logger.Info("file watcher started",
		zap.Strings("paths", w.paths),
		zap.Duration("debounce_delay", w.debounceDelay))
	return nil
}

// Stop 停止监听并等待监听协程退出
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopChan)
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("file watcher stopped")
	return nil
}

// IsRunning returns whether the watcher is running
func (w *FileWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Paths returns the list of watched paths
func (w *FileWatcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.paths...)
}

func (w *FileWatcher) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	pending := make(map[string]FileEvent)
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			events := w.checkFiles()
			if len(events) == 0 {
				continue
			}
			for _, ev := range events {
				pending[ev.Path] = ev
			}
			fire = time.After(w.debounceDelay)
		case <-fire:
			fire = nil
			w.dispatch(pending)
			pending = make(map[string]FileEvent)
		}
	}
}

// checkFiles 比较修改时间，返回检测到的事件
func (w *FileWatcher) checkFiles() []FileEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	var events []FileEvent
	now := time.Now()
	for _, path := range w.paths {
		info, err := os.Stat(path)
		if err != nil {
			if _, existed := w.lastModTimes[path]; existed && os.IsNotExist(err) {
				delete(w.lastModTimes, path)
				events = append(events, FileEvent{Path: path, Op: FileOpRemove, Timestamp: now})
			}
			continue
		}

		lastMod, existed := w.lastModTimes[path]
		switch {
		case !existed:
			w.lastModTimes[path] = info.ModTime()
			events = append(events, FileEvent{Path: path, Op: FileOpCreate, Timestamp: now})
		case info.ModTime().After(lastMod):
			w.lastModTimes[path] = info.ModTime()
			events = append(events, FileEvent{Path: path, Op: FileOpWrite, Timestamp: now})
		}
	}
	return events
}

func (w *FileWatcher) dispatch(pending map[string]FileEvent) {
	w.mu.Lock()
	callbacks := append([]func(FileEvent){}, w.callbacks...)
	w.mu.Unlock()

	for path, ev := range pending {
		w.logger.Debug("dispatching file event",
			zap.String("path", path),
			zap.String("op", ev.Op.String()))
		for _, cb := range callbacks {
			cb(ev)
		}
	}
}

// =============================================================================
// 🔄 日志级别热更新
// =============================================================================

// ZapLevel 解析日志级别，空字符串视为 info
func (c LogConfig) ZapLevel() (zapcore.Level, error) {
	if c.Level == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(c.Level)
}

// Reloader 在配置文件变化时重新加载配置。
// 新配置校验失败时保留旧配置；只有日志级别会被立即应用，
// 其他字段交给 OnReload 回调决定。
type Reloader struct {
	mu        sync.RWMutex
	loader    *Loader
	current   *Config
	level     zap.AtomicLevel
	watcher   *FileWatcher
	callbacks []func(oldCfg, newCfg *Config)
	logger    *zap.Logger
}

// NewReloader 创建热更新器，current 为启动时已加载的配置
func NewReloader(path string, current *Config, level zap.AtomicLevel, logger *zap.Logger, opts ...WatcherOption) (*Reloader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "config_reloader"))
	opts = append([]WatcherOption{WithWatcherLogger(logger)}, opts...)
	w, err := NewFileWatcher([]string{path}, opts...)
	if err != nil {
		return nil, err
	}
	r := &Reloader{
		loader:  NewLoader().WithConfigPath(path),
		current: current,
		level:   level,
		watcher: w,
		logger:  logger,
	}
	w.OnChange(r.handle)
	return r, nil
}

// OnReload 注册配置更新回调
func (r *Reloader) OnReload(fn func(oldCfg, newCfg *Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, fn)
}

// Current 返回当前生效的配置
func (r *Reloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Start 开始监听
func (r *Reloader) Start(ctx context.Context) error { return r.watcher.Start(ctx) }

// Stop 停止监听
func (r *Reloader) Stop() error { return r.watcher.Stop() }

func (r *Reloader) handle(ev FileEvent) {
	if ev.Op == FileOpRemove {
		r.logger.Warn("config file removed, keeping current config", zap.String("path", ev.Path))
		return
	}
	if err := r.Reload(); err != nil {
		r.logger.Error("config reload rejected", zap.Error(err))
	}
}

// Reload 立即重新加载配置
func (r *Reloader) Reload() error {
	next, err := r.loader.Load()
	if err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	lvl, err := next.Log.ZapLevel()
	if err != nil {
		return err
	}

	r.mu.Lock()
	prev := r.current
	r.current = next
	callbacks := append([]func(oldCfg, newCfg *Config){}, r.callbacks...)
	r.mu.Unlock()

	if r.level.Level() != lvl {
		r.logger.Info("log level changed",
			zap.String("from", r.level.Level().String()),
			zap.String("to", lvl.String()))
		r.level.SetLevel(lvl)
	}
	for _, cb := range callbacks {
		cb(prev, next)
	}
	return nil
}
