package model

import "encoding/json"

// AuditLog 表示一条报告操作审计记录（audit_logs 表）。
// 同一 collection 内的记录按 occurred_at 串成哈希链。
type AuditLog struct {
	EventID       string          `json:"event_id"`
	Collection    string          `json:"collection"`
	ReportID      string          `json:"report_id,omitempty"`
	EventType     string          `json:"event_type"`
	Action        string          `json:"action"`
	Status        string          `json:"status"`
	Actor         string          `json:"actor,omitempty"`
	Source        string          `json:"source,omitempty"`
	DetailJSON    json.RawMessage `json:"detail_json,omitempty"`
	OccurredAt    int64           `json:"occurred_at"`
	ChainPrevHash string          `json:"chain_prev_hash,omitempty"`
	ChainHash     string          `json:"chain_hash"`
}
