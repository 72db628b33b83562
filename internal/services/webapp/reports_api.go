package webapp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"progress-map/internal/domain/model"
	"progress-map/internal/services/reportbundle"
	"progress-map/internal/services/reportpdf"
	"progress-map/internal/services/reports"

	"go.uber.org/zap"
)

// handleReports：
//   - GET  /api/reports             按名称排序的报告列表
//   - POST /api/reports             body: {"name": "...", "user": "..."}，name 为空时用默认名
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		names, err := s.reports.List(r.Context())
		s.observe("list", err)
		if err != nil {
			writeAppError(w, err)
			return
		}
		sort.Strings(names)
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"reports": names,
			"total":   len(names),
		})
	case http.MethodPost:
		s.handleReportSave(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleReportSave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name,omitempty"`
		User string `json:"user,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = reports.DefaultReportName(s.now())
	}
	if strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, fmt.Errorf("report name must not contain '/'"))
		return
	}
	user := strings.TrimSpace(req.User)
	if user == "" {
		user = s.opts.ReportUser
	}

	sess := s.session(w, r)
	report, err := s.reports.Save(r.Context(), sess.State.Snapshot(), name, user)
	s.observe("save", err)
	if err != nil {
		writeAppError(w, err)
		return
	}
	sess.State.MarkSaved()
	sess.SetLastReport(report.ID)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"report": report,
	})
}

// handleReportRoutes：
//   - GET    /api/reports/{name}      只读查看报告，不改动会话
//   - DELETE /api/reports/{name}
//   - POST   /api/reports/{name}/load  加载报告并替换当前会话进度
//   - GET    /api/reports/{name}/pdf  导出 PDF 并下载
//   - GET    /api/reports/{name}/bundle  导出 ZIP 包（报告 + PDF + 部署表 + 清单）
func (s *Server) handleReportRoutes(w http.ResponseWriter, r *http.Request) {
	parts, err := pathName(r, "/api/reports/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(parts) == 0 || len(parts) > 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	name := parts[0]
	if len(parts) == 2 {
		switch parts[1] {
		case "load":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			s.handleReportLoad(w, r, name)
		case "pdf":
			s.handleReportPDF(w, r, name)
		case "bundle":
			s.handleReportBundle(w, r, name)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleReportGet(w, r, name)
	case http.MethodDelete:
		err := s.reports.Delete(r.Context(), name)
		s.observe("delete", err)
		if err != nil {
			writeAppError(w, err)
			return
		}
		sess := s.session(w, r)
		if sess.LastReport() == reports.NormalizeName(name) {
			sess.SetLastReport("")
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": name})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleReportGet 返回报告内容；会话进度与 last_report 保持不变。
func (s *Server) handleReportGet(w http.ResponseWriter, r *http.Request, name string) {
	res, err := s.reports.Load(r.Context(), name)
	s.observe("get", err)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !res.Found {
		writeNotFound(w, name)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"found":    true,
		"progress": s.progressItems(res.Report.Progress),
		"report":   reportMeta(res.Report),
	})
}

func (s *Server) handleReportLoad(w http.ResponseWriter, r *http.Request, name string) {
	sess := s.session(w, r)
	res, err := s.reports.LoadInto(r.Context(), name, sess.State)
	s.observe("load", err)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !res.Found {
		writeNotFound(w, name)
		return
	}
	sess.SetLastReport(res.Report.ID)

	payload := s.progressPayload(sess.State, res.Report.ID)
	payload["found"] = true
	payload["report"] = reportMeta(res.Report)
	writeJSON(w, http.StatusOK, payload)
}

func writeNotFound(w http.ResponseWriter, name string) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"ok":    false,
		"found": false,
		"error": fmt.Sprintf("report not found: %s", name),
	})
}

func reportMeta(r model.Report) map[string]any {
	return map[string]any{
		"id":         r.ID,
		"created_at": unixOrZero(r.CreatedAt),
		"created_by": r.CreatedBy,
		"version":    r.Version,
	}
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	operator := strings.TrimSpace(r.URL.Query().Get("operator"))
	if operator == "" {
		operator = s.opts.ReportUser
	}

	opts := reportpdf.Options{
		OutputDir: s.opts.ReportDir,
		Operator:  operator,
		Note:      strings.TrimSpace(r.URL.Query().Get("note")),
		Clock:     s.now,
	}
	if s.audit != nil {
		opts.Audit = s.audit
	}
	res, err := reportpdf.Export(r.Context(), s.reports, s.catalog, name, opts)
	s.observe("export", err)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.logger.Info("report pdf exported",
		zap.String("report", name),
		zap.String("path", res.PDFPath),
		zap.String("sha256", res.PDFSHA256))

	if parseBool(r.URL.Query().Get("download"), true) {
		w.Header().Set("X-Content-SHA256", res.PDFSHA256)
		serveFile(w, r, res.PDFPath, reportpdf.FileSafe(name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "export": res})
}

func (s *Server) handleReportBundle(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	operator := strings.TrimSpace(r.URL.Query().Get("operator"))
	if operator == "" {
		operator = s.opts.ReportUser
	}
	opts := reportbundle.Options{
		OutputDir:      s.opts.ReportDir,
		DeploymentsCSV: s.opts.DeploymentsCSV,
		Operator:       operator,
		Note:           strings.TrimSpace(r.URL.Query().Get("note")),
		Clock:          s.now,
	}
	if s.audit != nil {
		opts.Audits = s.audit
		opts.Audit = s.audit
	}
	res, err := reportbundle.Export(r.Context(), s.reports, s.catalogInfo, name, opts)
	s.observe("bundle", err)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.logger.Info("report bundle exported",
		zap.String("report", name),
		zap.String("path", res.ZipPath),
		zap.Strings("warnings", res.Warnings))

	if parseBool(r.URL.Query().Get("download"), true) {
		w.Header().Set("X-Content-SHA256", res.ZipSHA256)
		serveFile(w, r, res.ZipPath, reportpdf.FileSafe(name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "export": res})
}

func (s *Server) observe(op string, err error) {
	if s.metrics != nil {
		s.metrics.ReportOp(op, err)
	}
}

// handleAudits：GET /api/audits?limit=200&verify=1
func (s *Server) handleAudits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.audit == nil {
		writeError(w, http.StatusNotImplemented, fmt.Errorf("audit log not configured"))
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 200)
	logs, err := s.audit.ListAuditLogs(r.Context(), model.ReportCollection, limit)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	out := map[string]any{
		"ok":     true,
		"audits": logs,
		"total":  len(logs),
	}
	if parseBool(r.URL.Query().Get("verify"), false) {
		res, err := auditVerify(r, s.audit)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		out["verify"] = res
	}
	writeJSON(w, http.StatusOK, out)
}
