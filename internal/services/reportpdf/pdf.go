// Package reportpdf 把已保存的进度报告导出为 PDF。
//
// PDF 按目录顺序列出全部区域：显式保存的值原样输出，未保存的区域标注为默认值 50。
// 导出到磁盘时会计算文件 SHA-256 并写入审计日志。
package reportpdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"progress-map/internal/domain/model"
	"progress-map/internal/platform/hash"
	"progress-map/internal/services/reports"

	"github.com/phpdave11/gofpdf"
)

// GeneratorVersion 写入审计明细，便于追溯导出格式。
const GeneratorVersion = "reportpdf-1.0.0"

// FontEnv 指定 UTF-8 TrueType 字体路径的环境变量。
const FontEnv = "PROGRESS_MAP_PDF_FONT"

// RegionCatalog 提供按目录顺序排列的区域列表。
type RegionCatalog interface {
	Entries() []model.RegionEntry
}

// ReportLoader 通常是 *reports.Service。
type ReportLoader interface {
	Load(ctx context.Context, name string) (reports.LoadResult, error)
}

// AuditRecorder 记录导出动作。
type AuditRecorder interface {
	AppendAudit(ctx context.Context, collection, reportID, eventType, action, status, actor, source string, detail any) error
}

type Options struct {
	OutputDir string
	Operator  string
	Note      string
	Audit     AuditRecorder
	Clock     func() time.Time
}

type Result struct {
	ReportName  string   `json:"report_name"`
	PDFPath     string   `json:"pdf_path"`
	PDFSHA256   string   `json:"pdf_sha256"`
	Warnings    []string `json:"warnings,omitempty"`
	GeneratedAt int64    `json:"generated_at"`
}

// ReportNotFoundError 表示要导出的报告不存在。
type ReportNotFoundError struct {
	Name string
}

func (e ReportNotFoundError) Error() string {
	return fmt.Sprintf("report not found: %s", e.Name)
}

// Meta 是页眉中的附加信息。
type Meta struct {
	Operator    string
	Note        string
	GeneratedAt time.Time
}

// Export 加载报告并写出 PDF 文件。
func Export(ctx context.Context, loader ReportLoader, catalog RegionCatalog, name string, opts Options) (*Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("report name is required")
	}
	dir := strings.TrimSpace(opts.OutputDir)
	if dir == "" {
		return nil, fmt.Errorf("output dir is required")
	}
	operator := strings.TrimSpace(opts.Operator)
	if operator == "" {
		operator = model.DefaultUserName
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	res, err := loader.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	if !res.Found {
		return nil, ReportNotFoundError{Name: name}
	}

	now := clock()
	var buf bytes.Buffer
	warnings, err := Write(&buf, res.Report, catalog, Meta{Operator: operator, Note: opts.Note, GeneratedAt: now})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir reports: %w", err)
	}
	pdfPath := filepath.Join(dir, fmt.Sprintf("%s_%d.pdf", FileSafe(name), now.Unix()))
	if err := os.WriteFile(pdfPath, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	digest := hash.Bytes(buf.Bytes())

	if opts.Audit != nil {
		_ = opts.Audit.AppendAudit(ctx, model.ReportCollection, name, "export", "report_pdf", "success", operator, "reportpdf.Export", map[string]any{
			"pdf":        pdfPath,
			"pdf_sha256": digest,
			"generator":  GeneratorVersion,
			"note":       strings.TrimSpace(opts.Note),
			"warnings":   warnings,
		})
	}

	return &Result{
		ReportName:  name,
		PDFPath:     pdfPath,
		PDFSHA256:   digest,
		Warnings:    warnings,
		GeneratedAt: now.Unix(),
	}, nil
}

// Write 把报告渲染为 PDF 写入 w，返回渲染过程中的告警。
func Write(w io.Writer, report model.Report, catalog RegionCatalog, meta Meta) ([]string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle("Progress Map - "+report.ID, true)

	fontFamily, utf8OK := initPDFUnicodeFont(pdf)
	var warnings []string
	if !utf8OK {
		warnings = append(warnings, "pdf utf8 font not available; accented text is transliterated")
	}

	pdf.AddPage()
	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 9, "Reporte de avance por estado", "", 1, "L", false, 0, "")

	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated at: %s", fmtTime(meta.GeneratedAt)), "", 1, "L", false, 0, "")
	if strings.TrimSpace(meta.Operator) != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("Operator: %s", safeText(meta.Operator, utf8OK)), "", 1, "L", false, 0, "")
	}
	if strings.TrimSpace(meta.Note) != "" {
		pdf.MultiCell(0, 5, fmt.Sprintf("Note: %s", safeText(meta.Note, utf8OK)), "", "L", false)
	}
	pdf.Ln(2)

	entries := catalog.Entries()
	sum := summarize(report, entries)

	sectionTitle(pdf, fontFamily, "1. Report")
	kv(pdf, fontFamily, utf8OK, "Report", report.ID)
	kv(pdf, fontFamily, utf8OK, "Created At", fmtTime(report.CreatedAt))
	kv(pdf, fontFamily, utf8OK, "Created By", report.CreatedBy)
	if report.Version > 0 {
		kv(pdf, fontFamily, utf8OK, "Version", fmt.Sprintf("%d", report.Version))
	}
	kv(pdf, fontFamily, utf8OK, "Regions Set", fmt.Sprintf("%d / %d", sum.explicit, len(entries)))
	kv(pdf, fontFamily, utf8OK, "Average", fmt.Sprintf("%.1f%%", sum.average))
	kv(pdf, fontFamily, utf8OK, "Completed", fmt.Sprintf("%d", sum.complete))
	pdf.Ln(2)

	if len(warnings) > 0 {
		sectionTitle(pdf, fontFamily, "Warnings")
		pdf.SetFont(fontFamily, "", 9)
		pdf.SetTextColor(120, 80, 0)
		for _, w := range warnings {
			pdf.MultiCell(0, 4.5, "- "+safeText(w, utf8OK), "", "L", false)
		}
		pdf.Ln(2)
	}

	sectionTitle(pdf, fontFamily, "2. Progress by Region")
	progressTable(pdf, fontFamily, utf8OK, report, entries)

	pdf.Ln(2)
	pdf.SetFont(fontFamily, "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.MultiCell(0, 4.5, fmt.Sprintf("Regions marked * were not set in this report and show the default value (%d%%).", model.DefaultProgress), "", "L", false)

	if err := pdf.Output(w); err != nil {
		return warnings, fmt.Errorf("render pdf: %w", err)
	}
	return warnings, nil
}

type summary struct {
	explicit int
	complete int
	average  float64
}

func summarize(report model.Report, entries []model.RegionEntry) summary {
	var s summary
	total := 0
	for _, e := range entries {
		v, ok := report.Progress[e.Code]
		if ok {
			s.explicit++
		} else {
			v = model.DefaultProgress
		}
		if v == 100 {
			s.complete++
		}
		total += v
	}
	if len(entries) > 0 {
		s.average = float64(total) / float64(len(entries))
	}
	return s
}

func progressTable(pdf *gofpdf.Fpdf, fontFamily string, utf8OK bool, report model.Report, entries []model.RegionEntry) {
	const (
		codeW = 24.0
		nameW = 62.0
		pctW  = 18.0
		barW  = 78.0
		rowH  = 6.0
	)

	pdf.SetFont(fontFamily, "B", 9)
	pdf.SetFillColor(235, 235, 235)
	pdf.SetTextColor(20, 20, 20)
	pdf.CellFormat(codeW, rowH, "Code", "1", 0, "L", true, 0, "")
	pdf.CellFormat(nameW, rowH, "Region", "1", 0, "L", true, 0, "")
	pdf.CellFormat(pctW, rowH, "Progress", "1", 0, "R", true, 0, "")
	pdf.CellFormat(barW, rowH, "", "1", 1, "L", true, 0, "")

	pdf.SetFont(fontFamily, "", 9)
	for _, e := range entries {
		v, ok := report.Progress[e.Code]
		label := fmt.Sprintf("%d%%", v)
		if !ok {
			v = model.DefaultProgress
			label = fmt.Sprintf("%d%% *", v)
		}

		x, y := pdf.GetXY()
		pdf.CellFormat(codeW, rowH, string(e.Code), "1", 0, "L", false, 0, "")
		pdf.CellFormat(nameW, rowH, safeText(e.DisplayName, utf8OK), "1", 0, "L", false, 0, "")
		pdf.CellFormat(pctW, rowH, label, "1", 0, "R", false, 0, "")
		pdf.CellFormat(barW, rowH, "", "1", 1, "L", false, 0, "")

		r, g, b := barColor(v)
		pdf.SetFillColor(r, g, b)
		pdf.Rect(x+codeW+nameW+pctW+1, y+1.2, (barW-2)*float64(v)/100, rowH-2.4, "F")
	}
}

// barColor 在 Viridis 两端之间做线性插值，与地图配色保持一致。
func barColor(pct int) (int, int, int) {
	lo := [3]float64{68, 1, 84}
	hi := [3]float64{253, 231, 37}
	t := float64(pct) / 100
	return int(lo[0] + (hi[0]-lo[0])*t), int(lo[1] + (hi[1]-lo[1])*t), int(lo[2] + (hi[2]-lo[2])*t)
}

func sectionTitle(pdf *gofpdf.Fpdf, fontFamily string, title string) {
	pdf.SetFont(fontFamily, "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(pdf.GetX(), pdf.GetY(), 196, pdf.GetY())
	pdf.Ln(2)
}

func kv(pdf *gofpdf.Fpdf, fontFamily string, utf8OK bool, key string, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(36, 5.2, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(20, 20, 20)
	pdf.MultiCell(0, 5.2, safeText(value, utf8OK), "", "L", false)
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

var accentFold = strings.NewReplacer(
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U", "Ñ", "N",
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

// safeText 去掉换行；没有 UTF-8 字体时先去重音，其余非 ASCII 字符替换为 '?'。
func safeText(s string, utf8OK bool) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.TrimSpace(s)
	if utf8OK {
		return s
	}
	s = accentFold.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		} else {
			b.WriteRune('?')
		}
	}
	return b.String()
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileSafe 把报告名转换为可用作文件名的片段，PDF、ZIP 与下载名共用。
func FileSafe(name string) string {
	out := strings.Trim(unsafeFileChars.ReplaceAllString(name, "_"), "_")
	if out == "" || out == "." || out == ".." {
		return "reporte"
	}
	return out
}

// initPDFUnicodeFont 尝试加载 UTF-8 字体；找不到时回退到 Helvetica。
// 优先读取 PROGRESS_MAP_PDF_FONT，然后按平台探测常见系统字体。
func initPDFUnicodeFont(pdf *gofpdf.Fpdf) (family string, utf8OK bool) {
	const familyName = "unicode"
	candidates := []string{}

	if v := strings.TrimSpace(os.Getenv(FontEnv)); v != "" {
		candidates = append(candidates, v)
	}

	switch runtime.GOOS {
	case "darwin":
		candidates = append(candidates,
			"/System/Library/Fonts/Supplemental/Arial Unicode.ttf",
			"/Library/Fonts/Arial Unicode.ttf",
		)
	case "windows":
		candidates = append(candidates,
			`C:\Windows\Fonts\arialuni.ttf`,
			`C:\Windows\Fonts\arial.ttf`,
		)
	default:
		candidates = append(candidates,
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
		)
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		pdf.AddUTF8Font(familyName, "", p)
		if pdf.Err() {
			pdf.ClearError()
			continue
		}
		// bold 复用同一文件，避免 SetFont(...,"B",...) 报错。
		pdf.AddUTF8Font(familyName, "B", p)
		if pdf.Err() {
			pdf.ClearError()
		}
		return familyName, true
	}
	return "Helvetica", false
}
