// Package metrics 定义进度看板的 Prometheus 指标与 HTTP 中间件。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "progress_map"

// Metrics 持有全部指标。每个实例使用独立 Registry，测试之间互不干扰。
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	reportOps    *prometheus.CounterVec
	renderRows   *prometheus.HistogramVec
	dropped      prometheus.Counter
	sessions     prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		reportOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_operations_total",
			Help:      "Report store operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		renderRows: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_rows",
			Help:      "Regions per map render.",
			Buckets:   []float64{0, 1, 5, 10, 20, 32},
		}, []string{"mode"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployment_rows_dropped_total",
			Help:      "Deployment rows dropped for data-quality reasons.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Live browser sessions.",
		}),
	}
	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.reportOps,
		m.renderRows,
		m.dropped,
		m.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler 暴露 /metrics。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ReportOp 记录一次报告操作；err 非空时 outcome=error。
func (m *Metrics) ReportOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.reportOps.WithLabelValues(op, outcome).Inc()
}

// Render 记录一次地图渲染的行数和丢弃行数。
func (m *Metrics) Render(mode string, rows, dropped int) {
	m.renderRows.WithLabelValues(mode).Observe(float64(rows))
	if dropped > 0 {
		m.dropped.Add(float64(dropped))
	}
}

// SetSessions 更新活跃会话数。
func (m *Metrics) SetSessions(n int) {
	m.sessions.Set(float64(n))
}

// Middleware 按 route 标签统计请求数与耗时。route 应为模板名而不是原始路径，避免标签爆炸。
func (m *Metrics) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
