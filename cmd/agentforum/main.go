// =============================================================================
// AgentForum 主入口
// =============================================================================
// 多模型圆桌对话：前台运行、HTTP 服务、迁移与健康检查
//
// 使用方法:
//
//	agentforum run                          # 前台运行一场对话
//	agentforum run --config config.yaml     # 指定配置文件
//	agentforum serve                        # 启动服务
//	agentforum version                      # 显示版本信息
//	agentforum health                       # 健康检查
//	agentforum migrate up                   # 运行数据库迁移
//	agentforum migrate up --seed s.yaml     # 迁移并导入场景
//	agentforum migrate status               # 查看迁移状态
//	agentforum schema > agentforum.schema.json  # 导出配置 JSON Schema
// =============================================================================

package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/agentforum/config"
	"github.com/BaSui01/agentforum/internal/tlsutil"
)

// 构建时通过 -ldflags 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// command 是一个子命令
type command struct {
	name  string
	usage string
	run   func(args []string) error
}

func commands() []command {
	return []command{
		{"run", "Run one conversation in the foreground", runConversation},
		{"serve", "Run a conversation behind the HTTP API", runServe},
		{"migrate", "Database migration commands", runMigrate},
		{"health", "Check server health", runHealthCheck},
		{"schema", "Print the configuration JSON Schema", func([]string) error { return printSchema(os.Stdout) }},
		{"version", "Show version information", func([]string) error { printVersion(os.Stdout); return nil }},
	}
}

func main() {
	os.Exit(dispatch(os.Args[1:], os.Stdout, os.Stderr))
}

// dispatch 执行子命令并返回退出码
func dispatch(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 1
	}
	switch args[0] {
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	}
	for _, c := range commands() {
		if c.name != args[0] {
			continue
		}
		if err := c.run(args[1:]); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
	printUsage(stderr)
	return 1
}

// loadConfig 加载并校验配置。path 为空时只使用默认值与环境变量。
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.NewLoader().WithConfigPath(path).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

func runHealthCheck(args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkHealth(tlsutil.HTTPClient(*timeout), *addr); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func checkHealth(client *http.Client, addr string) error {
	resp, err := client.Get(strings.TrimRight(addr, "/") + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	return nil
}

func printSchema(w io.Writer) error {
	data, err := config.Schema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "AgentForum %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, "AgentForum - multi-model roundtable conversations\n\nUsage:\n  agentforum <command> [options]\n\nCommands:\n")
	for _, c := range commands() {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.usage)
	}
	fmt.Fprint(w, `  help      Show this help message

Options for 'run' and 'serve':
  --config <path>     Path to configuration file (YAML)
  --scenario <name>   Override conversation.scenario
  --turns <n>         Override conversation.max_turns

Migration subcommands:
  migrate up [--seed <file>]  Apply all pending migrations, optionally import scenarios
  migrate down                Rollback the last migration
  migrate status              Show migration status
  migrate version             Show current migration version

Examples:
  agentforum run --scenario "Philosophy Debate" --turns 4
  agentforum serve --config /etc/agentforum/config.yaml
  agentforum migrate up --seed scenarios.yaml
  agentforum health --addr http://localhost:8080
`)
}

// =============================================================================
// 🔧 日志
// =============================================================================

// initLogger 构建 zap logger，返回的 AtomicLevel 供配置热重载调整级别。
func initLogger(cfg config.LogConfig) (*zap.Logger, zap.AtomicLevel) {
	level, err := cfg.ZapLevel()
	if err != nil {
		level = zapcore.InfoLevel
	}
	atom := zap.NewAtomicLevelAt(level)

	zc := zap.NewProductionConfig()
	zc.Level = atom
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Format == "console" {
		zc.Encoding = "console"
		zc.Development = true
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	} else {
		zc.OutputPaths = []string{"stderr"}
	}
	zc.DisableCaller = !cfg.EnableCaller
	zc.DisableStacktrace = !cfg.EnableStacktrace
	zc.Sampling = nil

	logger, err := zc.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger, atom
}
