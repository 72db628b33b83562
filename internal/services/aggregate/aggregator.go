// Package aggregate 把原始部署行归约成每个区域一条的渲染指标。
//
// 两种模式：
//   - count：按 Estado 分组计数
//   - weighted：按 (Estado, HOSTNAME, OP) 分组并拼接状态文本，指标取区域进度 / 100
//
// 未在目录中的区域行会被丢弃并记录为数据质量告警，不视为致命错误。
// 只有出现在原始数据里的区域才会输出（"只展示已部署区域"）。
package aggregate

import (
	"fmt"
	"strings"

	"progress-map/internal/apperrors"
	"progress-map/internal/domain/model"

	"go.uber.org/zap"
)

// RegionCatalog 是聚合器需要的目录能力。
type RegionCatalog interface {
	Contains(code model.RegionCode) bool
	DisplayName(code model.RegionCode) (string, error)
}

// ProgressReader 是加权模式读取区域进度的接口，通常是 *progress.State。
type ProgressReader interface {
	Get(code model.RegionCode) (int, error)
}

// Aggregator 是无状态的归约器，可在多个会话间共享。
type Aggregator struct {
	regions RegionCatalog
	logger  *zap.Logger
}

func New(regions RegionCatalog) *Aggregator {
	return &Aggregator{regions: regions, logger: zap.NewNop()}
}

// SetLogger 配置数据质量告警的日志输出。
func (a *Aggregator) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	a.logger = l
}

// CountResult 是计数模式的结果。
type CountResult struct {
	Rows     []model.CountRow `json:"rows"`
	Warnings []string         `json:"warnings,omitempty"`
}

// WeightedResult 是加权模式的结果。
type WeightedResult struct {
	Groups   []model.DeploymentGroup `json:"groups"`
	Warnings []string                `json:"warnings,omitempty"`
}

// Count 按区域计数。输出顺序为区域在输入中首次出现的顺序。
func (a *Aggregator) Count(table model.DeploymentTable) (*CountResult, error) {
	layout, err := resolveLayout(table.Columns, false)
	if err != nil {
		return nil, err
	}

	res := &CountResult{Rows: []model.CountRow{}}
	pos := make(map[model.RegionCode]int)
	for i, row := range table.Rows {
		code, ok := a.acceptRow(i, row, layout, &res.Warnings)
		if !ok {
			continue
		}
		if p, seen := pos[code]; seen {
			res.Rows[p].Count++
			continue
		}
		pos[code] = len(res.Rows)
		res.Rows = append(res.Rows, model.CountRow{Region: code, Count: 1})
	}
	return res, nil
}

// Weighted 按 (Estado, HOSTNAME, OP) 分组，五个状态字段按原始行顺序以单个空格拼接。
// 同一主机+操作的冲突值会被合并成一个字符串，这是有损合并，调用方需要知晓。
func (a *Aggregator) Weighted(table model.DeploymentTable, progress ProgressReader) (*WeightedResult, error) {
	layout, err := resolveLayout(table.Columns, true)
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		region   model.RegionCode
		hostname string
		op       string
	}
	type groupAcc struct {
		group  model.DeploymentGroup
		status [model.StatusColumnCount][]string
	}

	var order []groupKey
	groups := make(map[groupKey]*groupAcc)
	res := &WeightedResult{Groups: []model.DeploymentGroup{}}

	for i, row := range table.Rows {
		code, ok := a.acceptRow(i, row, layout, &res.Warnings)
		if !ok {
			continue
		}
		key := groupKey{region: code, hostname: row[layout.hostname], op: row[layout.op]}
		acc, seen := groups[key]
		if !seen {
			acc = &groupAcc{group: model.DeploymentGroup{
				Region:   code,
				Hostname: key.hostname,
				Op:       key.op,
			}}
			groups[key] = acc
			order = append(order, key)
		}
		acc.group.Rows++
		for j, col := range layout.status {
			acc.status[j] = append(acc.status[j], row[col])
		}
	}

	metrics := make(map[model.RegionCode]float64)
	for _, key := range order {
		acc := groups[key]
		for j := range acc.status {
			acc.group.Status[j] = strings.Join(acc.status[j], " ")
		}

		m, ok := metrics[key.region]
		if !ok {
			pct, err := progress.Get(key.region)
			if err != nil {
				return nil, fmt.Errorf("read progress for %s: %w", key.region, err)
			}
			m = float64(pct) / 100
			metrics[key.region] = m
		}
		acc.group.Metric = m
		res.Groups = append(res.Groups, acc.group)
	}
	return res, nil
}

// RenderRows 把任一模式的结果归约为每个区域一行的渲染表。
// progress 仅在 weighted 模式下使用。
func (a *Aggregator) RenderRows(mode model.AggregationMode, table model.DeploymentTable, progress ProgressReader) ([]model.RenderRow, []string, error) {
	switch mode {
	case model.ModeCount, "":
		res, err := a.Count(table)
		if err != nil {
			return nil, nil, err
		}
		out := make([]model.RenderRow, 0, len(res.Rows))
		for _, r := range res.Rows {
			out = append(out, model.RenderRow{Region: r.Region, Name: a.name(r.Region), Metric: float64(r.Count)})
		}
		return out, res.Warnings, nil
	case model.ModeWeighted:
		if progress == nil {
			return nil, nil, fmt.Errorf("weighted mode requires progress state")
		}
		res, err := a.Weighted(table, progress)
		if err != nil {
			return nil, nil, err
		}
		out := []model.RenderRow{}
		seen := make(map[model.RegionCode]struct{})
		for _, g := range res.Groups {
			if _, ok := seen[g.Region]; ok {
				continue
			}
			seen[g.Region] = struct{}{}
			out = append(out, model.RenderRow{Region: g.Region, Name: a.name(g.Region), Metric: g.Metric})
		}
		return out, res.Warnings, nil
	default:
		return nil, nil, fmt.Errorf("unknown aggregation mode: %q", mode)
	}
}

// acceptRow 校验单行：行宽不足或区域未知时丢弃并记录告警。
func (a *Aggregator) acceptRow(i int, row []string, layout columnLayout, warnings *[]string) (model.RegionCode, bool) {
	if len(row) <= layout.maxIndex {
		msg := fmt.Sprintf("row %d: has %d cells, need at least %d; dropped", i+1, len(row), layout.maxIndex+1)
		*warnings = append(*warnings, msg)
		a.logger.Warn("deployment row dropped", zap.Int("row", i+1), zap.Int("cells", len(row)))
		return "", false
	}
	code := model.RegionCode(strings.TrimSpace(row[layout.region]))
	if !a.regions.Contains(code) {
		msg := fmt.Sprintf("row %d: unknown region %q; dropped", i+1, code)
		*warnings = append(*warnings, msg)
		a.logger.Warn("deployment row with unknown region dropped", zap.Int("row", i+1), zap.String("region", string(code)))
		return "", false
	}
	return code, true
}

func (a *Aggregator) name(code model.RegionCode) string {
	n, err := a.regions.DisplayName(code)
	if err != nil {
		return ""
	}
	return n
}

// columnLayout 记录各必需列在表头中的位置。
type columnLayout struct {
	region   int
	hostname int
	op       int
	status   []int
	maxIndex int
}

// resolveLayout 定位必需列。Estado/HOSTNAME/OP 按列名匹配；
// 五个状态列按位置取表头最后五列（不能与键列重叠）。
func resolveLayout(columns []string, weighted bool) (columnLayout, error) {
	layout := columnLayout{region: -1, hostname: -1, op: -1}
	for i, c := range columns {
		switch strings.TrimSpace(c) {
		case model.ColumnRegion:
			if layout.region < 0 {
				layout.region = i
			}
		case model.ColumnHostname:
			if layout.hostname < 0 {
				layout.hostname = i
			}
		case model.ColumnOp:
			if layout.op < 0 {
				layout.op = i
			}
		}
	}

	var missing []string
	if layout.region < 0 {
		missing = append(missing, model.ColumnRegion)
	}
	if weighted {
		if layout.hostname < 0 {
			missing = append(missing, model.ColumnHostname)
		}
		if layout.op < 0 {
			missing = append(missing, model.ColumnOp)
		}
		start := len(columns) - model.StatusColumnCount
		for j := 0; j < model.StatusColumnCount; j++ {
			idx := start + j
			if idx < 0 || idx == layout.region || idx == layout.hostname || idx == layout.op {
				missing = append(missing, model.StatusFieldNames[j])
				continue
			}
			layout.status = append(layout.status, idx)
		}
	}
	if len(missing) > 0 {
		return columnLayout{}, apperrors.MalformedInputError{Missing: missing}
	}

	layout.maxIndex = layout.region
	for _, idx := range append([]int{layout.hostname, layout.op}, layout.status...) {
		if idx > layout.maxIndex {
			layout.maxIndex = idx
		}
	}
	return layout, nil
}
