package webapp

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"time"

	catalogadapter "progress-map/internal/adapters/catalog"
	"progress-map/internal/adapters/deployments"
	"progress-map/internal/adapters/geo"
	sqliteadapter "progress-map/internal/adapters/store/sqlite"
	"progress-map/internal/platform/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 前端静态文件随二进制发布；ui_dist/ 至少要有 index.html，否则 go:embed 编译失败。
//
//go:embed ui_dist
var uiFS embed.FS

// Options 定义 Web UI + API 服务启动参数。
type Options struct {
	DBPath         string
	CatalogPath    string
	DeploymentsCSV string
	GeoJSONPath    string
	ListenAddr     string
	ReportUser     string
	ReportDir      string
	SessionTTL     time.Duration
	EnableMetrics  bool
	Logger         *zap.Logger
}

// Run 打开数据库、加载目录与几何文件，然后启动 HTTP 服务直到 ctx 取消。
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sqliteadapter.Open(ctx, opts.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	applied, err := sqliteadapter.NewMigrator(db).Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", zap.Strings("files", applied))
	}
	store := sqliteadapter.NewStore(db)

	loadedCatalog, err := catalogadapter.NewLoader(opts.CatalogPath).Load(ctx)
	if err != nil {
		return err
	}

	// 几何文件缺失不致命：地图接口只返回指标表，由前端提示。
	var geometry *geo.LoadedGeometry
	if g, err := geo.NewLoader(opts.GeoJSONPath).Load(ctx); err != nil {
		logger.Warn("geojson not loaded; map renders without geometry", zap.Error(err))
	} else {
		geometry = g
		codes := make([]string, 0, len(loadedCatalog.Bundle.Regions))
		for _, e := range loadedCatalog.Bundle.Regions {
			codes = append(codes, string(e.Code))
		}
		if missing := geometry.MissingIDs(codes); len(missing) > 0 {
			logger.Warn("geojson lacks features for regions", zap.Strings("regions", missing))
		}
	}

	var m *metrics.Metrics
	if opts.EnableMetrics {
		m = metrics.New()
	}

	deps := Deps{
		Store:       store,
		Audit:       store,
		Schema:      store,
		Catalog:     loadedCatalog,
		Deployments: deployments.NewReader(opts.DeploymentsCSV),
		Metrics:     m,
		Logger:      logger,
	}
	if geometry != nil {
		deps.GeoJSON = geometry.Raw
	}
	s, err := NewServer(opts, deps)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("webapp listening", zap.String("url", "http://"+opts.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		s.sweepSessions(gctx, time.Minute)
		return nil
	})
	return g.Wait()
}
