package model

import "encoding/json"

// MapCenter 是地图初始中心点。
type MapCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MapRenderRequest 是交给可视化协作方的载荷：区域指标表 + 不透明的几何文档。
type MapRenderRequest struct {
	Mode         AggregationMode `json:"mode"`
	Rows         []RenderRow     `json:"rows"`
	ColorColumn  string          `json:"color_column"`
	FeatureIDKey string          `json:"featureidkey"`
	ColorScale   string          `json:"color_continuous_scale"`
	MapStyle     string          `json:"map_style"`
	Zoom         float64         `json:"zoom"`
	Center       MapCenter       `json:"center"`
	Opacity      float64         `json:"opacity"`
	Height       int             `json:"height"`
	GeoJSON      json.RawMessage `json:"geojson,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
}
