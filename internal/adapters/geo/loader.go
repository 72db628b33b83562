// Package geo 读取区域边界几何文档（GeoJSON FeatureCollection）。
//
// 几何对核心是不透明的：这里只确认顶层类型并收集每个 feature 的 properties.id，
// 原始字节原样交给渲染层。
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// DefaultFile 是未配置路径时尝试读取的文件名。
const DefaultFile = "mexicoHigh.json"

// Loader 从磁盘读取 GeoJSON。
type Loader struct {
	File string
}

// LoadedGeometry 是校验后的几何文档。
type LoadedGeometry struct {
	Raw        json.RawMessage
	FeatureIDs []string
	Source     string
}

func NewLoader(file string) *Loader {
	return &Loader{File: file}
}

// Load 读取并校验文件。
func (l *Loader) Load(ctx context.Context) (*LoadedGeometry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimSpace(l.File)
	if path == "" {
		path = DefaultFile
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}
	g, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	g.Source = path
	return g, nil
}

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

// Parse 校验 raw 为 FeatureCollection，并提取 properties.id（缺失的 feature 跳过）。
func Parse(raw []byte) (*LoadedGeometry, error) {
	var fc featureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("geojson type must be FeatureCollection, got %q", fc.Type)
	}
	if len(fc.Features) == 0 {
		return nil, errors.New("geojson has no features")
	}

	ids := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		id, ok := f.Properties["id"].(string)
		if !ok || strings.TrimSpace(id) == "" {
			continue
		}
		ids = append(ids, id)
	}
	return &LoadedGeometry{Raw: json.RawMessage(raw), FeatureIDs: ids}, nil
}

// MissingIDs 返回 codes 中没有对应 feature 的编码，顺序与 codes 一致。
func (g *LoadedGeometry) MissingIDs(codes []string) []string {
	have := make(map[string]struct{}, len(g.FeatureIDs))
	for _, id := range g.FeatureIDs {
		have[id] = struct{}{}
	}
	var missing []string
	for _, c := range codes {
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
