// Package auditverify 校验报告审计日志的哈希链。
package auditverify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"progress-map/internal/domain/model"
	"progress-map/internal/platform/hash"
)

// PageSize 是分页读取审计日志的每页条数。
const PageSize = 1000

// AuditSource 按写入顺序分页提供集合的审计日志，通常是 *sqlite.Store。
type AuditSource interface {
	ListAuditLogsPage(ctx context.Context, collection string, offset, limit int) ([]model.AuditLog, error)
}

// ForEach 按写入顺序遍历集合的全部审计日志。
func ForEach(ctx context.Context, src AuditSource, collection string, fn func(model.AuditLog)) error {
	for offset := 0; ; offset += PageSize {
		page, err := src.ListAuditLogsPage(ctx, collection, offset, PageSize)
		if err != nil {
			return fmt.Errorf("list audit logs: %w", err)
		}
		for _, l := range page {
			fn(l)
		}
		if len(page) < PageSize {
			return nil
		}
	}
}

// FailureItem 表示一次审计链校验失败的明细项（用于 UI/CLI 展示）。
type FailureItem struct {
	Index int `json:"index"`

	EventID    string `json:"event_id"`
	ReportID   string `json:"report_id,omitempty"`
	OccurredAt int64  `json:"occurred_at"`
	EventType  string `json:"event_type"`
	Action     string `json:"action"`
	Status     string `json:"status"`

	PrevHashMismatch bool   `json:"prev_hash_mismatch"`
	ExpectedPrevHash string `json:"expected_prev_hash,omitempty"`
	ActualPrevHash   string `json:"actual_prev_hash,omitempty"`

	ChainHashMismatch bool   `json:"chain_hash_mismatch"`
	ExpectedChainHash string `json:"expected_chain_hash,omitempty"`
	ActualChainHash   string `json:"actual_chain_hash,omitempty"`

	Message string `json:"message,omitempty"`
}

// Result 是审计链校验结果。
type Result struct {
	OK         bool   `json:"ok"`
	Collection string `json:"collection,omitempty"`
	Total      int    `json:"total"`

	Failed          int `json:"failed"`
	PrevHashFailed  int `json:"prev_hash_failed"`
	ChainHashFailed int `json:"chain_hash_failed"`

	LastChainHash string `json:"last_chain_hash,omitempty"`

	Failures []FailureItem `json:"failures,omitempty"`
}

// Verify 分页读取集合的全部审计日志并校验，LastChainHash 是整条链的末端。
func Verify(ctx context.Context, src AuditSource, collection string) (Result, error) {
	c := newChecker()
	if err := ForEach(ctx, src, collection, c.add); err != nil {
		return Result{}, err
	}
	c.res.Collection = collection
	return c.res, nil
}

// ExpectedChainHash 按写入公式重算一条记录的 chain_hash。
// 公式必须与 sqlite.Store.AppendAudit 保持一致。
func ExpectedChainHash(prev string, l model.AuditLog) string {
	return hash.Text(
		prev,
		l.Collection,
		l.EventType,
		l.Action,
		l.Status,
		fmt.Sprintf("%d", l.OccurredAt),
		compactJSON(l.DetailJSON),
	)
}

// VerifyAuditLogs 校验 chain_prev_hash 连续性，并重算每条 chain_hash。
// logs 必须属于同一集合且按写入顺序排列。
func VerifyAuditLogs(logs []model.AuditLog) Result {
	c := newChecker()
	for _, l := range logs {
		c.add(l)
	}
	return c.res
}

// checker 逐条推进校验，分页读取时不必把整条链留在内存里。
type checker struct {
	res  Result
	prev string
}

func newChecker() *checker {
	return &checker{res: Result{OK: true, Failures: []FailureItem{}}}
}

func (c *checker) add(it model.AuditLog) {
	i := c.res.Total
	c.res.Total++

	expectedPrev := c.prev
	actualPrev := strings.TrimSpace(it.ChainPrevHash)
	expectedChain := ExpectedChainHash(expectedPrev, it)
	actualChain := strings.TrimSpace(it.ChainHash)

	prevMismatch := actualPrev != expectedPrev
	chainMismatch := actualChain != expectedChain

	if prevMismatch || chainMismatch {
		c.res.OK = false
		c.res.Failed++
		item := FailureItem{
			Index:      i,
			EventID:    it.EventID,
			ReportID:   it.ReportID,
			OccurredAt: it.OccurredAt,
			EventType:  it.EventType,
			Action:     it.Action,
			Status:     it.Status,
		}
		if prevMismatch {
			c.res.PrevHashFailed++
			item.PrevHashMismatch = true
			item.ExpectedPrevHash = expectedPrev
			item.ActualPrevHash = actualPrev
		}
		if chainMismatch {
			c.res.ChainHashFailed++
			item.ChainHashMismatch = true
			item.ExpectedChainHash = expectedChain
			item.ActualChainHash = actualChain
		}
		switch {
		case prevMismatch && chainMismatch:
			item.Message = "chain_prev_hash and chain_hash mismatch"
		case prevMismatch:
			item.Message = "chain_prev_hash mismatch"
		default:
			item.Message = "chain_hash mismatch"
		}
		c.res.Failures = append(c.res.Failures, item)
	}

	// 以存量 chain_hash 推进，篡改点之后的记录仍可单独定位。
	c.prev = actualChain
	c.res.LastChainHash = actualChain
}

// compactJSON 消除仅格式不同（缩进/换行）的差异；空 detail 视为 "{}"。
func compactJSON(in []byte) string {
	if len(bytes.TrimSpace(in)) == 0 {
		return "{}"
	}
	var b bytes.Buffer
	if err := json.Compact(&b, in); err == nil {
		return b.String()
	}
	return strings.TrimSpace(string(in))
}
