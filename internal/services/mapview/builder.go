// Package mapview 组装交给可视化层的 choropleth 渲染请求。
package mapview

import (
	"encoding/json"

	"progress-map/internal/domain/model"
	"progress-map/internal/services/aggregate"
)

// 默认地图参数。
const (
	FeatureIDKey = "properties.id"
	ColorScale   = "Viridis"
	MapStyle     = "carto-positron"
	DefaultZoom  = 5
	Opacity      = 0.5
	Height       = 700

	ColorColumnCount    = "Cantidad"
	ColorColumnWeighted = "Avance"
)

// DefaultCenter 是墨西哥地理中心。
var DefaultCenter = model.MapCenter{Lat: 23.6345, Lon: -102.5528}

// Builder 每次渲染都从原始部署表重新计算指标。
type Builder struct {
	agg     *aggregate.Aggregator
	geojson json.RawMessage
}

// NewBuilder 创建构建器；geojson 可为空（仅输出指标表）。
func NewBuilder(agg *aggregate.Aggregator, geojson json.RawMessage) *Builder {
	return &Builder{agg: agg, geojson: geojson}
}

// Build 生成渲染请求。progress 仅在 weighted 模式下使用。
func (b *Builder) Build(mode model.AggregationMode, table model.DeploymentTable, progress aggregate.ProgressReader) (*model.MapRenderRequest, error) {
	if mode == "" {
		mode = model.ModeCount
	}
	rows, warnings, err := b.agg.RenderRows(mode, table, progress)
	if err != nil {
		return nil, err
	}

	color := ColorColumnCount
	if mode == model.ModeWeighted {
		color = ColorColumnWeighted
	}
	return &model.MapRenderRequest{
		Mode:         mode,
		Rows:         rows,
		ColorColumn:  color,
		FeatureIDKey: FeatureIDKey,
		ColorScale:   ColorScale,
		MapStyle:     MapStyle,
		Zoom:         DefaultZoom,
		Center:       DefaultCenter,
		Opacity:      Opacity,
		Height:       Height,
		GeoJSON:      b.geojson,
		Warnings:     warnings,
	}, nil
}

// HasGeometry 表示是否加载了区域边界。
func (b *Builder) HasGeometry() bool {
	return len(b.geojson) > 0
}
