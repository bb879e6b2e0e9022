package migration

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
)

// CLI 把迁移结果以文本形式输出，供 migrate 子命令使用
type CLI struct {
	migrator Migrator
	out      io.Writer
}

// NewCLI 创建输出到 out 的 CLI
func NewCLI(migrator Migrator, out io.Writer) *CLI {
	return &CLI{migrator: migrator, out: out}
}

// RunUp 应用全部待执行迁移并报告本次应用的数量
func (c *CLI) RunUp(ctx context.Context) error {
	before, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	if before.PendingMigrations == 0 {
		fmt.Fprintf(c.out, "Schema is up to date (version %d).\n", before.CurrentVersion)
		return nil
	}

	fmt.Fprintf(c.out, "Applying %d migration(s)...\n", before.PendingMigrations)
	if err := c.migrator.Up(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	after, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Migrations complete. Current version: %d\n", after.CurrentVersion)
	return nil
}

// RunDown 回滚最近一次迁移；未应用任何迁移时不做操作
func (c *CLI) RunDown(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	if version == 0 && !dirty {
		fmt.Fprintln(c.out, "Nothing to roll back.")
		return nil
	}

	fmt.Fprintf(c.out, "Rolling back version %d...\n", version)
	if err := c.migrator.Down(ctx); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Rollback complete. Current version: %d\n", info.CurrentVersion)
	return nil
}

// RunVersion 输出当前版本，dirty 状态需要人工修复
func (c *CLI) RunVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}

	switch {
	case version == 0 && !dirty:
		fmt.Fprintln(c.out, "No migrations applied yet.")
	case dirty:
		fmt.Fprintf(c.out, "Current version: %d (dirty, fix the schema by hand before migrating again)\n", version)
	default:
		fmt.Fprintf(c.out, "Current version: %d\n", version)
	}
	return nil
}

// RunStatus 以表格输出每个迁移的状态
func (c *CLI) RunStatus(ctx context.Context) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(c.out, "No migrations found.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
	for _, s := range statuses {
		fmt.Fprintf(w, "%06d\t%s\t%s\n", s.Version, s.Name, statusLabel(s))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\nTotal: %d, Applied: %d, Pending: %d\n",
		info.TotalMigrations, info.AppliedMigrations, info.PendingMigrations)
	return nil
}

func statusLabel(s MigrationStatus) string {
	switch {
	case s.Dirty:
		return "Dirty"
	case s.Applied:
		return "Applied"
	default:
		return "Pending"
	}
}
