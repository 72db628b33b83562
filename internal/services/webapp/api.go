package webapp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"progress-map/internal/domain/model"
	"progress-map/internal/services/progress"

	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "webapp",
		"time":    s.now().Unix(),
	})
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"regions": s.catalog.Entries(),
	})
}

// progressView 是会话进度的完整视图：按目录顺序列出全部区域，未设置的取默认值。
type progressView struct {
	Code     model.RegionCode `json:"code"`
	Name     string           `json:"name"`
	Value    int              `json:"value"`
	Explicit bool             `json:"explicit"`
}

func (s *Server) progressPayload(state *progress.State, lastReport string) map[string]any {
	return map[string]any{
		"ok":          true,
		"progress":    s.progressItems(state.Snapshot()),
		"dirty":       state.Dirty(),
		"last_report": lastReport,
	}
}

func (s *Server) progressItems(values map[model.RegionCode]int) []progressView {
	entries := s.catalog.Entries()
	items := make([]progressView, 0, len(entries))
	for _, e := range entries {
		v, ok := values[e.Code]
		if !ok {
			v = model.DefaultProgress
		}
		items = append(items, progressView{Code: e.Code, Name: e.DisplayName, Value: v, Explicit: ok})
	}
	return items
}

// handleProgress：GET /api/progress 返回当前会话的全部区域进度。
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess := s.session(w, r)
	writeJSON(w, http.StatusOK, s.progressPayload(sess.State, sess.LastReport()))
}

// handleProgressRoutes：
//   - GET /api/progress/{code}
//   - PUT /api/progress/{code}  body: {"value": 37}
func (s *Server) handleProgressRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/progress/"), "/")
	if rest == "" || strings.Contains(rest, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	code := model.RegionCode(strings.ToUpper(rest))
	sess := s.session(w, r)

	switch r.Method {
	case http.MethodGet:
		v, err := sess.State.Get(code)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "code": code, "value": v})
	case http.MethodPut, http.MethodPost:
		var req struct {
			Value *int `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
			return
		}
		if req.Value == nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("value is required"))
			return
		}
		if err := sess.State.Set(code, *req.Value); err != nil {
			writeAppError(w, err)
			return
		}
		s.logger.Debug("progress updated",
			zap.String("session", sess.ID),
			zap.String("region", string(code)),
			zap.Int("value", *req.Value))
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":    true,
			"code":  code,
			"value": *req.Value,
			"dirty": sess.State.Dirty(),
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleMap：GET /api/map?mode=count|weighted
// 每次请求都重新读取部署表，文件更新后无需重启。
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	mode := model.AggregationMode(strings.TrimSpace(r.URL.Query().Get("mode")))
	switch mode {
	case "", model.ModeCount, model.ModeWeighted:
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown aggregation mode: %q", mode))
		return
	}
	sess := s.session(w, r)

	loaded, err := s.deployments.Load(r.Context())
	if err != nil {
		s.logger.Error("deployment table not loaded", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	req, err := s.builder.Build(mode, loaded.Table, sess.State)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.Render(string(req.Mode), len(req.Rows), len(req.Warnings))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"map":    req,
		"source": loaded.Source,
		"sha256": loaded.SHA256,
	})
}

// pathName 从转义后的路径中取出报告名，允许报告名包含 "/" 以外的任意字符。
func pathName(r *http.Request, prefix string) ([]string, error) {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil, nil
	}
	parts := strings.Split(rest, "/")
	for i, p := range parts {
		v, err := url.PathUnescape(p)
		if err != nil {
			return nil, fmt.Errorf("invalid path segment: %w", err)
		}
		parts[i] = v
	}
	return parts, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
	})
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseBool(s string, def bool) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return def
	}
	switch s {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
