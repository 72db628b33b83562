package model

// 部署表列名。状态类五列按位置映射（表头最后五列），不按列名匹配。
const (
	ColumnRegion   = "Estado"
	ColumnHostname = "HOSTNAME"
	ColumnOp       = "OP"

	StatusColumnCount = 5
)

// StatusFieldNames 是五个位置列的规范名称，仅用于输出与展示。
var StatusFieldNames = [StatusColumnCount]string{
	"Fecha Planeada Update",
	"Fecha Real Update",
	"Estatus Update",
	"Estatus Impresión",
	"Observaciones",
}

// DeploymentTable 是已解析的原始部署数据：表头 + 原始文本行。
type DeploymentTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// AggregationMode 决定渲染指标的计算方式。
type AggregationMode string

const (
	// ModeCount 按区域计数部署行。
	ModeCount AggregationMode = "count"
	// ModeWeighted 使用区域进度 / 100 作为指标。
	ModeWeighted AggregationMode = "weighted"
)

// CountRow 是计数模式的一行输出。
type CountRow struct {
	Region RegionCode `json:"region"`
	Count  int        `json:"count"`
}

// DeploymentGroup 是加权模式下 (Estado, HOSTNAME, OP) 分组后的一行。
// Status 五个字段为组内原始行按顺序空格拼接的结果。
type DeploymentGroup struct {
	Region   RegionCode                `json:"region"`
	Hostname string                    `json:"hostname"`
	Op       string                    `json:"op"`
	Status   [StatusColumnCount]string `json:"status"`
	Rows     int                       `json:"rows"`
	Metric   float64                   `json:"metric"`
}

// RenderRow 是交给可视化的派生视图，每次渲染重新计算，不落库。
type RenderRow struct {
	Region RegionCode `json:"region"`
	Name   string     `json:"name,omitempty"`
	Metric float64    `json:"metric"`
}
