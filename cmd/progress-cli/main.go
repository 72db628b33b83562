package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	sqliteadapter "progress-map/internal/adapters/store/sqlite"
	"progress-map/internal/app"
	"progress-map/internal/platform/logging"
	"progress-map/internal/services/webapp"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CLI 入口。所有子命令错误都统一输出到 stderr 并返回非 0 状态码。
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// cli 保存全局参数与 PersistentPreRunE 构建出的配置/日志。
type cli struct {
	configPath string
	verbose    bool

	// 命令行覆盖项；为空表示沿用配置文件/环境变量。
	dbPath      string
	catalogPath string
	csvPath     string
	geoPath     string

	cfg    app.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "progress-cli",
		Short:         "Regional rollout progress map: reports, rendering and audit tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "YAML config file")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&c.dbPath, "db", "", "sqlite database path")
	pf.StringVar(&c.catalogPath, "catalog", "", "region catalog YAML (empty: embedded)")
	pf.StringVar(&c.csvPath, "csv", "", "deployment table CSV")
	pf.StringVar(&c.geoPath, "geojson", "", "region boundaries GeoJSON")

	root.AddCommand(
		c.migrateCmd(),
		c.catalogCmd(),
		c.renderCmd(),
		c.reportCmd(),
		c.verifyCmd(),
		c.serveCmd(),
		versionCmd(),
	)
	return root
}

func (c *cli) init() error {
	cfg, err := app.LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.DBPath, c.dbPath)
	override(&cfg.CatalogPath, c.catalogPath)
	override(&cfg.DeploymentsCSV, c.csvPath)
	override(&cfg.GeoJSONPath, c.geoPath)
	c.cfg = cfg

	logger, err := logging.New(cfg.LogLevel, c.verbose)
	if err != nil {
		return err
	}
	c.logger = logger
	return nil
}

// openStore 打开数据库并执行迁移；调用方负责关闭返回的 *sql.DB。
func (c *cli) openStore(ctx context.Context) (*sql.DB, *sqliteadapter.Store, error) {
	db, err := sqliteadapter.Open(ctx, c.cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping sqlite: %w", err)
	}
	applied, err := sqliteadapter.NewMigrator(db).Up(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}
	if len(applied) > 0 {
		c.logger.Info("migrations applied", zap.Strings("files", applied))
	}
	return db, sqliteadapter.NewStore(db), nil
}

// migrateCmd 执行 SQLite 迁移，确保数据库结构完整。
func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied successfully: db=%s\n", c.cfg.DBPath)
			return nil
		},
	}
}

func (c *cli) serveCmd() *cobra.Command {
	var listen string
	var noMetrics bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				c.cfg.ListenAddr = listen
			}
			return webapp.Run(cmd.Context(), webapp.Options{
				DBPath:         c.cfg.DBPath,
				CatalogPath:    c.cfg.CatalogPath,
				DeploymentsCSV: c.cfg.DeploymentsCSV,
				GeoJSONPath:    c.cfg.GeoJSONPath,
				ListenAddr:     c.cfg.ListenAddr,
				ReportUser:     c.cfg.ReportUser,
				ReportDir:      c.cfg.ReportDir,
				SessionTTL:     c.cfg.SessionTTL,
				EnableMetrics:  c.cfg.Metrics && !noMetrics,
				Logger:         c.logger,
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "disable /metrics")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), app.VersionString())
		},
	}
}

func printJSON(w io.Writer, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}
