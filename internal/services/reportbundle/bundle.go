// Package reportbundle 把一份已保存的报告打包成可流转的 ZIP：
// 报告 JSON、PDF、部署表快照、清单 manifest.json 以及 hashes.sha256。
package reportbundle

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	catalogadapter "progress-map/internal/adapters/catalog"
	"progress-map/internal/app"
	"progress-map/internal/domain/model"
	"progress-map/internal/services/auditverify"
	"progress-map/internal/services/regions"
	"progress-map/internal/services/reportpdf"
)

const (
	manifestSchemaV1 = "progress_map.report_bundle_manifest.v1"
	GeneratorVersion = "reportbundle-1.0.0"
)

// Options 定义打包参数。OutputDir 必填，其余可选。
type Options struct {
	OutputDir string
	// DeploymentsCSV 非空时把部署表原文件一并打包（缺失只告警）。
	DeploymentsCSV string
	Operator       string
	Note           string
	Audits         auditverify.AuditSource
	Audit          reportpdf.AuditRecorder
	Clock          func() time.Time
}

type FileHashEntry struct {
	Path      string `json:"path"` // ZIP 内路径（使用 "/" 分隔）
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
	Kind      string `json:"kind"` // report|pdf|deployments|manifest
}

type Manifest struct {
	Schema      string `json:"schema"`
	GeneratedAt int64  `json:"generated_at"`

	App struct {
		Version   string `json:"version"`
		Commit    string `json:"commit"`
		BuildTime string `json:"build_time"`
	} `json:"app"`

	Report  model.Report `json:"report"`
	Catalog struct {
		Source  string `json:"source"`
		Version string `json:"version"`
		SHA256  string `json:"sha256"`
		Regions int    `json:"regions"`
	} `json:"catalog"`
	Audits   []model.AuditLog `json:"audits"`
	Files    []FileHashEntry  `json:"files"`
	Warnings []string         `json:"warnings,omitempty"`
	Operator string           `json:"operator"`
	Note     string           `json:"note,omitempty"`
}

// Result 是一次打包的摘要。
type Result struct {
	ReportName string   `json:"report_name"`
	ZipPath    string   `json:"zip_path"`
	ZipSHA256  string   `json:"zip_sha256"`
	Files      int      `json:"files"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Export 加载报告并写出 <name>_bundle_<unix>.zip。
func Export(ctx context.Context, loader reportpdf.ReportLoader, loaded *catalogadapter.LoadedCatalog, name string, opts Options) (*Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("report name is required")
	}
	dir := strings.TrimSpace(opts.OutputDir)
	if dir == "" {
		return nil, fmt.Errorf("output dir is required")
	}
	if loaded == nil {
		loaded = catalogadapter.Embedded()
	}
	catalog, err := regions.FromLoaded(loaded)
	if err != nil {
		return nil, err
	}
	operator := strings.TrimSpace(opts.Operator)
	if operator == "" {
		operator = model.DefaultUserName
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	now := clock()

	res, err := loader.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	if !res.Found {
		return nil, reportpdf.ReportNotFoundError{Name: name}
	}

	var warnings []string
	reportJSON, err := json.MarshalIndent(res.Report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	var pdfBuf bytes.Buffer
	pdfWarnings, err := reportpdf.Write(&pdfBuf, res.Report, catalog, reportpdf.Meta{Operator: operator, Note: opts.Note, GeneratedAt: now})
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, pdfWarnings...)

	var audits []model.AuditLog
	if opts.Audits != nil {
		err := auditverify.ForEach(ctx, opts.Audits, model.ReportCollection, func(l model.AuditLog) {
			if l.ReportID == name {
				audits = append(audits, l)
			}
		})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("audit logs incomplete: %v", err))
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	zipPath := filepath.Join(dir, fmt.Sprintf("%s_bundle_%d.zip", reportpdf.FileSafe(name), now.Unix()))
	f, err := os.Create(zipPath)
	if err != nil {
		return nil, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = f.Close() }()

	zipHasher := sha256.New()
	zw := zip.NewWriter(io.MultiWriter(f, zipHasher))
	defer func() { _ = zw.Close() }()

	var files []FileHashEntry
	addBytes := func(zipPath, kind string, b []byte) error {
		sum, size, err := writeZipFileFromBytes(zw, zipPath, b, now)
		if err != nil {
			return fmt.Errorf("write %s to zip: %w", zipPath, err)
		}
		files = append(files, FileHashEntry{Path: zipPath, SHA256: sum, SizeBytes: size, Kind: kind})
		return nil
	}

	if err := addBytes("report.json", "report", reportJSON); err != nil {
		return nil, err
	}
	if err := addBytes("report.pdf", "pdf", pdfBuf.Bytes()); err != nil {
		return nil, err
	}
	if src := strings.TrimSpace(opts.DeploymentsCSV); src != "" {
		zp := "deployments/" + filepath.Base(src)
		sum, size, err := writeZipFileFromDisk(zw, src, zp)
		if err != nil {
			// 缺失文件不阻断导出，但必须在 manifest 里留下痕迹。
			warnings = append(warnings, fmt.Sprintf("skip file %s -> %s: %v", src, zp, err))
		} else {
			files = append(files, FileHashEntry{Path: zp, SHA256: sum, SizeBytes: size, Kind: "deployments"})
		}
	}

	manifest := Manifest{
		Schema:      manifestSchemaV1,
		GeneratedAt: now.Unix(),
		Report:      res.Report,
		Audits:      audits,
		Warnings:    warnings,
		Operator:    operator,
		Note:        strings.TrimSpace(opts.Note),
	}
	manifest.App.Version = app.Version
	manifest.App.Commit = app.Commit
	manifest.App.BuildTime = app.BuildTime
	manifest.Catalog.Source = loaded.Source
	manifest.Catalog.Version = loaded.Bundle.Version
	manifest.Catalog.SHA256 = loaded.SHA256
	manifest.Catalog.Regions = catalog.Len()

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	manifest.Files = append([]FileHashEntry(nil), files...)

	manifestRaw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := addBytes("manifest.json", "manifest", manifestRaw); err != nil {
		return nil, err
	}

	// hashes.sha256（sha256sum 兼容格式，不包含自身）
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	lines := []string{
		"# progress-map report bundle hash list",
		fmt.Sprintf("# generated_at=%d", now.Unix()),
		"# format: <sha256><two spaces><path>",
	}
	for _, fh := range files {
		lines = append(lines, fmt.Sprintf("%s  %s", fh.SHA256, fh.Path))
	}
	lines = append(lines, "")
	if _, _, err := writeZipFileFromBytes(zw, "hashes.sha256", []byte(strings.Join(lines, "\n")), now); err != nil {
		return nil, fmt.Errorf("write hashes.sha256 to zip: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close zip file: %w", err)
	}
	zipSum := hex.EncodeToString(zipHasher.Sum(nil))

	if opts.Audit != nil {
		_ = opts.Audit.AppendAudit(ctx, model.ReportCollection, name, "export", "report_bundle", "success", operator, "reportbundle.Export", map[string]any{
			"zip_path":   zipPath,
			"zip_sha256": zipSum,
			"generator":  GeneratorVersion,
			"warnings":   warnings,
		})
	}

	return &Result{
		ReportName: name,
		ZipPath:    zipPath,
		ZipSHA256:  zipSum,
		Files:      len(files) + 1,
		Warnings:   warnings,
	}, nil
}

func writeZipFileFromDisk(zw *zip.Writer, srcPath, zipPath string) (sum string, size int64, err error) {
	fi, err := os.Stat(srcPath)
	if err != nil {
		return "", 0, err
	}
	if fi.IsDir() {
		return "", 0, fmt.Errorf("is a directory")
	}

	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return "", 0, err
	}
	hdr.Name = zipPath
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return "", 0, err
	}
	f, err := os.Open(srcPath)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, hasher), f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

func writeZipFileFromBytes(zw *zip.Writer, zipPath string, b []byte, modified time.Time) (sum string, size int64, err error) {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     zipPath,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return "", 0, err
	}
	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, hasher), bytes.NewReader(b))
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}
