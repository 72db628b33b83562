package model

import "time"

// ReportCollection 是报告文档所在的固定集合名。
const ReportCollection = "reportes"

// 报告文档字段名（扁平字段映射）。
const (
	FieldID         = "id"
	FieldCreatedAt  = "fecha_creacion"
	FieldProgress   = "valores_avance"
	FieldCreatedBy  = "usuario"
	FieldVersion    = "version"
	DefaultUserName = "admin"
)

// Report 是一次命名的进度快照。
// ID 为主键：同名保存直接覆盖（last write wins）。
// Version 只做信息展示：同一 ID 每保存一次加一，不参与并发控制。
type Report struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"fecha_creacion"`
	Progress  map[RegionCode]int `json:"valores_avance"`
	CreatedBy string             `json:"usuario"`
	Version   int64              `json:"version,omitempty"`
}

// Document 是持久化协作方看到的扁平字段映射。
type Document map[string]any
