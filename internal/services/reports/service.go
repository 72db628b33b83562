// Package reports 持久化与恢复命名的进度快照。
//
// 文档写入固定集合 "reportes"，key 即报告名。同名保存直接覆盖（last write wins），
// Version 只是每次覆盖递增的信息字段，不做并发控制。存储层故障统一包装为
// apperrors.PersistenceError，不重试，也不回落到本地存储。
package reports

import (
	"context"
	"errors"
	"strings"
	"time"

	"progress-map/internal/apperrors"
	"progress-map/internal/domain/model"
	"progress-map/internal/services/progress"

	"go.uber.org/zap"
)

// ErrEmptyName 表示保存时报告名为空。
var ErrEmptyName = errors.New("report name is empty")

// AuditRecorder 记录报告操作，通常是 *sqlite.Store。
type AuditRecorder interface {
	AppendAudit(ctx context.Context, collection, reportID, eventType, action, status, actor, source string, detail any) error
}

// Replacer 是加载报告时被整体替换的状态，通常是 *progress.State。
type Replacer interface {
	ReplaceAll(mapping map[model.RegionCode]int) error
}

// Options 是可选依赖；零值可用。
type Options struct {
	Clock  func() time.Time
	Audit  AuditRecorder
	Logger *zap.Logger
	// Source 写入审计日志的 source 字段，例如 "cli" / "web"。
	Source string
}

// LoadResult 把"不存在"作为值返回，而非错误。
type LoadResult struct {
	Found  bool
	Report model.Report
}

// Service 是报告存储的业务入口，可被多个会话共享。
type Service struct {
	store   model.DocumentStore
	regions progress.RegionValidator
	now     func() time.Time
	audit   AuditRecorder
	logger  *zap.Logger
	source  string
}

func New(store model.DocumentStore, regions progress.RegionValidator, opts Options) *Service {
	s := &Service{
		store:   store,
		regions: regions,
		now:     opts.Clock,
		audit:   opts.Audit,
		logger:  opts.Logger,
		source:  opts.Source,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Save 以 name 为主键保存快照并返回写入的报告。user 为空时使用 "admin"。
func (s *Service) Save(ctx context.Context, snapshot map[model.RegionCode]int, name, user string) (model.Report, error) {
	name = NormalizeName(name)
	if name == "" {
		return model.Report{}, apperrors.InvalidReportDataError{Cause: ErrEmptyName}
	}
	if strings.TrimSpace(user) == "" {
		user = model.DefaultUserName
	}
	if err := progress.ValidateMapping(s.regions, snapshot); err != nil {
		return model.Report{}, apperrors.InvalidReportDataError{Report: name, Cause: err}
	}

	version, err := s.currentVersion(ctx, name)
	if err != nil {
		return model.Report{}, err
	}

	report := model.Report{
		ID:        name,
		CreatedAt: s.now().UTC().Truncate(time.Second),
		Progress:  make(map[model.RegionCode]int, len(snapshot)),
		CreatedBy: user,
		Version:   version + 1,
	}
	for k, v := range snapshot {
		report.Progress[k] = v
	}

	if err := s.store.PutDocument(ctx, model.ReportCollection, name, encodeReport(report)); err != nil {
		s.record(ctx, name, "save", "failed", user, map[string]string{"error": err.Error()})
		return model.Report{}, apperrors.PersistenceError{Op: "put", Key: name, Cause: err}
	}

	s.logger.Info("report saved",
		zap.String("report", name),
		zap.String("user", user),
		zap.Int("regions", len(report.Progress)),
		zap.Int64("version", report.Version),
	)
	s.record(ctx, name, "save", "success", user, map[string]any{
		"regions": len(report.Progress),
		"version": report.Version,
	})
	return report, nil
}

// Load 读取报告。不存在时返回 Found=false；文档无法解析或含非法条目时返回 InvalidReportDataError。
func (s *Service) Load(ctx context.Context, name string) (LoadResult, error) {
	name = NormalizeName(name)
	doc, found, err := s.store.GetDocument(ctx, model.ReportCollection, name)
	if err != nil {
		return LoadResult{}, apperrors.PersistenceError{Op: "get", Key: name, Cause: err}
	}
	if !found {
		s.record(ctx, name, "load", "not_found", "", nil)
		return LoadResult{}, nil
	}

	report, err := decodeReport(name, doc)
	if err != nil {
		s.record(ctx, name, "load", "invalid", "", map[string]string{"error": err.Error()})
		return LoadResult{}, apperrors.InvalidReportDataError{Report: name, Cause: err}
	}
	if err := progress.ValidateMapping(s.regions, report.Progress); err != nil {
		s.record(ctx, name, "load", "invalid", "", map[string]string{"error": err.Error()})
		return LoadResult{}, apperrors.InvalidReportDataError{Report: name, Cause: err}
	}

	s.record(ctx, name, "load", "success", "", map[string]any{"regions": len(report.Progress)})
	return LoadResult{Found: true, Report: report}, nil
}

// LoadInto 加载报告并整体替换 target；报告不存在时 target 保持不变。
func (s *Service) LoadInto(ctx context.Context, name string, target Replacer) (LoadResult, error) {
	res, err := s.Load(ctx, name)
	if err != nil || !res.Found {
		return res, err
	}
	if err := target.ReplaceAll(res.Report.Progress); err != nil {
		return LoadResult{}, err
	}
	return res, nil
}

// Delete 删除报告；不存在时同样成功。
func (s *Service) Delete(ctx context.Context, name string) error {
	name = NormalizeName(name)
	if err := s.store.DeleteDocument(ctx, model.ReportCollection, name); err != nil {
		return apperrors.PersistenceError{Op: "delete", Key: name, Cause: err}
	}
	s.logger.Info("report deleted", zap.String("report", name))
	s.record(ctx, name, "delete", "success", "", nil)
	return nil
}

// List 返回全部报告名，顺序由存储后端决定。
func (s *Service) List(ctx context.Context) ([]string, error) {
	keys, err := s.store.ListKeys(ctx, model.ReportCollection)
	if err != nil {
		return nil, apperrors.PersistenceError{Op: "list", Cause: err}
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// NormalizeName 是报告名到存储主键的唯一映射，Save/Load/Delete 共用。
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// currentVersion 读取同名报告当前版本；不存在或字段缺失时为 0。
func (s *Service) currentVersion(ctx context.Context, name string) (int64, error) {
	doc, found, err := s.store.GetDocument(ctx, model.ReportCollection, name)
	if err != nil {
		return 0, apperrors.PersistenceError{Op: "get", Key: name, Cause: err}
	}
	if !found {
		return 0, nil
	}
	v, err := toInt64(doc[model.FieldVersion])
	if err != nil {
		return 0, nil
	}
	return v, nil
}

// record 写审计日志；审计失败只告警，不影响业务结果。
func (s *Service) record(ctx context.Context, reportID, action, status, actor string, detail any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.AppendAudit(ctx, model.ReportCollection, reportID, "report", action, status, actor, s.source, detail); err != nil {
		s.logger.Warn("append audit failed",
			zap.String("report", reportID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
