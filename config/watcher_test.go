package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func fastWatch() []WatcherOption {
	return []WatcherOption{
		WithPollInterval(20 * time.Millisecond),
		WithDebounceDelay(20 * time.Millisecond),
	}
}

// touch 写入文件并把修改时间推后，避免文件系统时间精度导致漏检
func touch(t *testing.T, path, content string, offset time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	ts := time.Now().Add(offset)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func TestNewFileWatcher_Defaults(t *testing.T) {
	f := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(f, []byte("key: val"), 0644))

	w, err := NewFileWatcher([]string{f})
	require.NoError(t, err)
	assert.Equal(t, []string{f}, w.Paths())
	assert.False(t, w.IsRunning())
	assert.Equal(t, 100*time.Millisecond, w.debounceDelay)
	assert.Equal(t, time.Second, w.pollInterval)
}

func TestNewFileWatcher_NonExistentPath(t *testing.T) {
	w, err := NewFileWatcher([]string{"/nonexistent/path/config.yaml"})
	require.NoError(t, err)
	require.NotNil(t, w)
}

func TestFileWatcher_StartStop(t *testing.T) {
	f := filepath.Join(t.TempDir(), "a.yaml")
	require.NoError(t, os.WriteFile(f, []byte("a"), 0644))

	w, err := NewFileWatcher([]string{f}, fastWatch()...)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(context.Background()))

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	require.NoError(t, w.Stop())
}

func TestFileWatcher_DetectsWriteCreateRemove(t *testing.T) {
	f := filepath.Join(t.TempDir(), "a.yaml")

	w, err := NewFileWatcher([]string{f}, fastWatch()...)
	require.NoError(t, err)

	var mu sync.Mutex
	var ops []FileOp
	w.OnChange(func(ev FileEvent) {
		mu.Lock()
		defer mu.Unlock()
		ops = append(ops, ev.Op)
	})
	seen := func(op FileOp) func() bool {
		return func() bool {
			mu.Lock()
			defer mu.Unlock()
			for _, o := range ops {
				if o == op {
					return true
				}
			}
			return false
		}
	}

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	touch(t, f, "v1", 0)
	require.Eventually(t, seen(FileOpCreate), 2*time.Second, 10*time.Millisecond)

	touch(t, f, "v2", time.Minute)
	require.Eventually(t, seen(FileOpWrite), 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(f))
	require.Eventually(t, seen(FileOpRemove), 2*time.Second, 10*time.Millisecond)
}

func TestFileWatcher_StopsOnContextCancel(t *testing.T) {
	w, err := NewFileWatcher(nil, fastWatch()...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop did not exit")
	}
}

func TestFileOp_String(t *testing.T) {
	assert.Equal(t, "CREATE", FileOpCreate.String())
	assert.Equal(t, "WRITE", FileOpWrite.String())
	assert.Equal(t, "REMOVE", FileOpRemove.String())
	assert.Equal(t, "UNKNOWN", FileOp(42).String())
}

func TestLogConfig_ZapLevel(t *testing.T) {
	lvl, err := LogConfig{}.ZapLevel()
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)

	lvl, err = LogConfig{Level: "debug"}.ZapLevel()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)

	_, err = LogConfig{Level: "loud"}.ZapLevel()
	assert.Error(t, err)
}

func TestReloader_AppliesLogLevel(t *testing.T) {
	f := filepath.Join(t.TempDir(), "agentforum.yaml")
	touch(t, f, "log:\n  level: info\n", 0)

	cfg, err := NewLoader().WithConfigPath(f).Load()
	require.NoError(t, err)
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	r, err := NewReloader(f, cfg, level, nil, fastWatch()...)
	require.NoError(t, err)

	reloaded := make(chan *Config, 1)
	r.OnReload(func(_, newCfg *Config) { reloaded <- newCfg })

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	touch(t, f, "log:\n  level: debug\n", time.Minute)

	select {
	case got := <-reloaded:
		assert.Equal(t, "debug", got.Log.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("reload not triggered")
	}
	assert.Equal(t, zapcore.DebugLevel, level.Level())
	assert.Equal(t, "debug", r.Current().Log.Level)
}

func TestReloader_RejectsInvalidConfig(t *testing.T) {
	f := filepath.Join(t.TempDir(), "agentforum.yaml")
	touch(t, f, "log:\n  level: warn\n", 0)

	cfg, err := NewLoader().WithConfigPath(f).Load()
	require.NoError(t, err)
	level := zap.NewAtomicLevelAt(zapcore.WarnLevel)

	r, err := NewReloader(f, cfg, level, nil)
	require.NoError(t, err)

	touch(t, f, "log:\n  level: debug\nconversation:\n  num_participants: 9\n", time.Minute)
	require.Error(t, r.Reload())
	assert.Same(t, cfg, r.Current())
	assert.Equal(t, zapcore.WarnLevel, level.Level())

	touch(t, f, "log:\n  level: shout\n", 2*time.Minute)
	require.Error(t, r.Reload())
	assert.Equal(t, zapcore.WarnLevel, level.Level())
}
