package webapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	catalogadapter "progress-map/internal/adapters/catalog"
	"progress-map/internal/adapters/deployments"
	"progress-map/internal/domain/model"
	"progress-map/internal/platform/metrics"
	"progress-map/internal/services/aggregate"
	"progress-map/internal/services/auditverify"
	"progress-map/internal/services/mapview"
	"progress-map/internal/services/regions"
	"progress-map/internal/services/reports"
	"progress-map/internal/services/session"

	"go.uber.org/zap"
)

// SessionCookie 是浏览器会话 cookie 名。
const SessionCookie = "progress_map_session"

// DeploymentSource 在每次渲染时提供最新的部署表，通常是 *deployments.Reader。
type DeploymentSource interface {
	Load(ctx context.Context) (*deployments.LoadedTable, error)
}

// AuditStore 是审计日志的读写能力，通常是 *sqlite.Store。
type AuditStore interface {
	reports.AuditRecorder
	auditverify.AuditSource
	ListAuditLogs(ctx context.Context, collection string, limit int) ([]model.AuditLog, error)
}

// SchemaReader 读取 schema 元数据。
type SchemaReader interface {
	GetSchemaMetaValue(ctx context.Context, key string) (string, error)
}

// Deps 是 Server 的外部依赖；Audit/Schema/Metrics/GeoJSON 可为空。
type Deps struct {
	Store       model.DocumentStore
	Audit       AuditStore
	Schema      SchemaReader
	Catalog     *catalogadapter.LoadedCatalog
	Deployments DeploymentSource
	GeoJSON     json.RawMessage
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	Clock       func() time.Time
}

// Server 是内置 Web UI/API 的运行时对象。
type Server struct {
	opts Options

	catalog     *regions.Catalog
	catalogInfo *catalogadapter.LoadedCatalog
	reports     *reports.Service
	audit       AuditStore
	schema      SchemaReader
	deployments DeploymentSource
	builder     *mapview.Builder
	sessions    *session.Manager
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time

	ui fs.FS
}

func NewServer(opts Options, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if deps.Deployments == nil {
		return nil, fmt.Errorf("deployment source is required")
	}
	if deps.Catalog == nil {
		deps.Catalog = catalogadapter.Embedded()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if strings.TrimSpace(opts.ReportUser) == "" {
		opts.ReportUser = model.DefaultUserName
	}
	if strings.TrimSpace(opts.ReportDir) == "" {
		opts.ReportDir = "data/reports"
	}

	catalog, err := regions.FromLoaded(deps.Catalog)
	if err != nil {
		return nil, err
	}

	ui, err := fs.Sub(uiFS, "ui_dist")
	if err != nil {
		return nil, fmt.Errorf("sub ui fs: %w", err)
	}

	agg := aggregate.New(catalog)
	agg.SetLogger(deps.Logger.Named("aggregate"))

	reportOpts := reports.Options{
		Clock:  deps.Clock,
		Logger: deps.Logger.Named("reports"),
		Source: "webapp",
	}
	if deps.Audit != nil {
		reportOpts.Audit = deps.Audit
	}

	return &Server{
		opts:        opts,
		catalog:     catalog,
		catalogInfo: deps.Catalog,
		reports:     reports.New(deps.Store, catalog, reportOpts),
		audit:       deps.Audit,
		schema:      deps.Schema,
		deployments: deps.Deployments,
		builder:     mapview.NewBuilder(agg, deps.GeoJSON),
		sessions:    session.NewManager(catalog, opts.SessionTTL),
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         deps.Clock,
		ui:          ui,
	}, nil
}

// Handler 返回注册好全部路由的 http.Handler。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	s.route(mux, "/api/health", s.handleHealth)
	s.route(mux, "/api/meta", s.handleMeta)
	s.route(mux, "/api/regions", s.handleRegions)
	s.route(mux, "/api/progress", s.handleProgress)
	s.route(mux, "/api/progress/", s.handleProgressRoutes)
	s.route(mux, "/api/map", s.handleMap)
	s.route(mux, "/api/reports", s.handleReports)
	s.route(mux, "/api/reports/", s.handleReportRoutes)
	s.route(mux, "/api/audits", s.handleAudits)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	// UI（单页应用 + 静态资源）：
	// 先按路径返回静态文件；缺失且无扩展名的路径回落到 index.html；缺失的静态资源返回 404。
	uiFileServer := http.FileServer(http.FS(s.ui))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.handleUI(w, r, uiFileServer)
	})
}

// route 注册处理函数，启用指标时按路由模板统计。
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	if s.metrics == nil {
		mux.HandleFunc(pattern, h)
		return
	}
	label := pattern
	if strings.HasSuffix(pattern, "/") {
		label = pattern + "{id}"
	}
	mux.Handle(pattern, s.metrics.Middleware(label, h))
}

func (s *Server) handleUI(w http.ResponseWriter, r *http.Request, uiFileServer http.Handler) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	// 不要改写到 /index.html：FileServer 会把它 301 重定向到 "./"。
	if r.URL.Path == "/" || r.URL.Path == "" {
		uiFileServer.ServeHTTP(w, r)
		return
	}

	reqPath := strings.TrimPrefix(r.URL.Path, "/")
	if info, err := fs.Stat(s.ui, reqPath); err == nil && !info.IsDir() {
		uiFileServer.ServeHTTP(w, r)
		return
	}
	if strings.Contains(reqPath, ".") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	r2 := r.Clone(r.Context())
	r2.URL.Path = "/"
	uiFileServer.ServeHTTP(w, r2)
}

// session 返回请求所属会话，必要时新建并下发 cookie。
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	id := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, created := s.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		s.logger.Debug("session created", zap.String("session", sess.ID))
		if s.metrics != nil {
			s.metrics.SetSessions(s.sessions.Len())
		}
	}
	return sess
}

// sweepSessions 定期清理空闲会话，直到 ctx 取消。
func (s *Server) sweepSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.Sweep(); n > 0 {
				s.logger.Debug("idle sessions removed", zap.Int("count", n))
			}
			if s.metrics != nil {
				s.metrics.SetSessions(s.sessions.Len())
			}
		}
	}
}
