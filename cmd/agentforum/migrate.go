package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/agent/scenario"
	"github.com/BaSui01/agentforum/config"
	"github.com/BaSui01/agentforum/internal/database"
	"github.com/BaSui01/agentforum/internal/migration"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

// runMigrate handles the migrate command and its subcommands
func runMigrate(args []string) error {
	if len(args) < 1 {
		printMigrateUsage()
		return errors.New("missing migrate subcommand")
	}

	subcommand := args[0]
	fs := flag.NewFlagSet("migrate "+subcommand, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	seedPath := fs.String("seed", "", "YAML scenario file to import after migrating (up only)")

	switch subcommand {
	case "up", "down", "status", "version":
	case "help", "-h", "--help":
		printMigrateUsage()
		return nil
	default:
		printMigrateUsage()
		return fmt.Errorf("unknown migrate subcommand: %s", subcommand)
	}

	fs.Parse(args[1:])
	if *seedPath != "" && subcommand != "up" {
		return errors.New("--seed is only valid with 'migrate up'")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger, _ := initLogger(cfg.Log)
	defer logger.Sync()

	ctx := context.Background()

	// sqlite 不走 golang-migrate（其驱动依赖 cgo），表结构由 AutoMigrate 创建
	if cfg.Database.Driver == "sqlite" {
		if subcommand != "up" {
			return fmt.Errorf("migrate %s: %w", subcommand, migration.ErrUnsupported)
		}
		return migrateSQLite(ctx, cfg, *seedPath, os.Stdout, logger)
	}

	migrator, err := migration.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator, os.Stdout)
	switch subcommand {
	case "up":
		if err := cli.RunUp(ctx); err != nil {
			return err
		}
	case "down":
		return cli.RunDown(ctx)
	case "status":
		return cli.RunStatus(ctx)
	case "version":
		return cli.RunVersion(ctx)
	}

	if *seedPath == "" {
		return nil
	}
	pool, err := database.Open(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	return seedScenarios(ctx, scenario.NewDBSource(pool.DB(), logger), *seedPath, os.Stdout)
}

// migrateSQLite 创建 sqlite 表结构并可选导入场景
func migrateSQLite(ctx context.Context, cfg *config.Config, seedPath string, out io.Writer, logger *zap.Logger) error {
	pool, err := database.Open(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	src := scenario.NewDBSource(pool.DB(), logger)
	if err := src.AutoMigrate(); err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	fmt.Fprintln(out, "sqlite schema is up to date")

	if seedPath == "" {
		return nil
	}
	return seedScenarios(ctx, src, seedPath, out)
}

// seedScenarios 从 YAML 文件导入场景，按名称 upsert
func seedScenarios(ctx context.Context, src *scenario.DBSource, path string, out io.Writer) error {
	file, err := scenario.LoadYAMLFile(path)
	if err != nil {
		return err
	}
	all := file.All()
	if err := src.Save(ctx, all); err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported %d scenarios from %s\n", len(all), path)
	return nil
}

// printMigrateUsage prints the usage information for migrate command
func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  agentforum migrate <subcommand> [options]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration
  status    Show migration status
  version   Show current migration version
  help      Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --seed <file>       Import scenarios from a YAML file after 'up'

SQLite databases are created with gorm AutoMigrate; only 'up' is supported.

Examples:
  agentforum migrate up
  agentforum migrate up --seed scenarios.yaml
  agentforum migrate down --config /etc/agentforum/config.yaml
  agentforum migrate status`)
}
