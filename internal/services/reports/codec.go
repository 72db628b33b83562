package reports

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"progress-map/internal/domain/model"
)

// DefaultNameLayout 对应默认报告名 Reporte_YYYY-MM-DD_HH-MM。
const DefaultNameLayout = "2006-01-02_15-04"

// DefaultReportName 生成未指定名称时使用的报告名（本地时间，精确到分钟）。
func DefaultReportName(now time.Time) string {
	return "Reporte_" + now.Format(DefaultNameLayout)
}

// encodeReport 把报告转换为扁平文档。时间统一写 UTC RFC3339。
func encodeReport(r model.Report) model.Document {
	progress := make(map[string]int, len(r.Progress))
	for k, v := range r.Progress {
		progress[string(k)] = v
	}
	return model.Document{
		model.FieldID:        r.ID,
		model.FieldCreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		model.FieldProgress:  progress,
		model.FieldCreatedBy: r.CreatedBy,
		model.FieldVersion:   r.Version,
	}
}

// decodeReport 解析存储文档。key 在文档缺少 id 字段时作为 ID。
// 只做结构解析，区域与取值范围由调用方校验。
func decodeReport(key string, doc model.Document) (model.Report, error) {
	var r model.Report

	r.ID = key
	if raw, ok := doc[model.FieldID]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return r, fmt.Errorf("field %s: expected string, got %T", model.FieldID, raw)
		}
		if strings.TrimSpace(s) != "" {
			r.ID = s
		}
	}

	created, err := decodeTime(doc[model.FieldCreatedAt])
	if err != nil {
		return r, fmt.Errorf("field %s: %w", model.FieldCreatedAt, err)
	}
	r.CreatedAt = created

	if raw, ok := doc[model.FieldCreatedBy]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return r, fmt.Errorf("field %s: expected string, got %T", model.FieldCreatedBy, raw)
		}
		r.CreatedBy = s
	}

	progress, err := decodeProgress(doc[model.FieldProgress])
	if err != nil {
		return r, fmt.Errorf("field %s: %w", model.FieldProgress, err)
	}
	r.Progress = progress

	if raw, ok := doc[model.FieldVersion]; ok && raw != nil {
		v, err := toInt64(raw)
		if err != nil {
			return r, fmt.Errorf("field %s: %w", model.FieldVersion, err)
		}
		r.Version = v
	}
	return r, nil
}

func decodeTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, errors.New("missing")
	case time.Time:
		return v.UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v))
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("expected RFC3339 string, got %T", raw)
	}
}

func decodeProgress(raw any) (map[model.RegionCode]int, error) {
	out := map[model.RegionCode]int{}
	switch m := raw.(type) {
	case nil:
		return nil, errors.New("missing")
	case map[string]int:
		for k, v := range m {
			out[model.RegionCode(k)] = v
		}
	case map[model.RegionCode]int:
		for k, v := range m {
			out[k] = v
		}
	case map[string]any:
		for k, v := range m {
			n, err := toInt64(v)
			if err != nil {
				return nil, fmt.Errorf("region %s: %w", k, err)
			}
			if n < math.MinInt32 || n > math.MaxInt32 {
				return nil, fmt.Errorf("region %s: value %d overflows", k, n)
			}
			out[model.RegionCode(k)] = int(n)
		}
	default:
		return nil, fmt.Errorf("expected object, got %T", raw)
	}
	return out, nil
}

// toInt64 接受 JSON 解码可能产生的各种数值类型，拒绝非整数。
func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("non-integer value %v", v)
		}
		return int64(v), nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", v.String())
		}
		return toInt64(f)
	default:
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
}
