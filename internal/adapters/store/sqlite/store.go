// Package sqlite 是基于 SQLite 的文档存储与审计日志实现。
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"progress-map/internal/domain/model"
	"progress-map/internal/platform/hash"
	"progress-map/internal/platform/id"

	_ "modernc.org/sqlite"
)

// Store 封装与 SQLite 的读写逻辑。
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ model.DocumentStore = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open 打开（必要时创建）数据库文件。
// 单机工具优先稳定性：单连接 + busy_timeout 减少 "database is locked"。
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	return db, nil
}

// GetSchemaMetaValue 查询 schema_meta 表指定 key 的 value。
func (s *Store) GetSchemaMetaValue(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `
		SELECT value
		FROM schema_meta
		WHERE key = ?
		LIMIT 1
	`, key).Scan(&v)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("query schema_meta %s: %w", key, err)
	}
	return v, nil
}

// PutDocument 整体写入文档；同 key 已存在时覆盖。
func (s *Store) PutDocument(ctx context.Context, collection, key string, doc model.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	now := s.now().Unix()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents(collection, doc_key, body_json, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(collection, doc_key) DO UPDATE SET
			body_json=excluded.body_json,
			updated_at=excluded.updated_at
	`, collection, key, string(body), now, now)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// GetDocument 读取文档。数值字段以 json.Number 返回。
func (s *Store) GetDocument(ctx context.Context, collection, key string) (model.Document, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT body_json
		FROM documents
		WHERE collection = ? AND doc_key = ?
		LIMIT 1
	`, collection, key).Scan(&body)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query document: %w", err)
	}
	doc, err := decodeDocument([]byte(body))
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// DeleteDocument 删除文档；不存在时不报错。
func (s *Store) DeleteDocument(ctx context.Context, collection, key string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = ? AND doc_key = ?
	`, collection, key); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// ListKeys 按 key 字典序返回集合内全部 key。
func (s *Store) ListKeys(ctx context.Context, collection string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_key
		FROM documents
		WHERE collection = ?
		ORDER BY doc_key ASC
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("query document keys: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan document key: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document keys: %w", err)
	}
	return out, nil
}

// AppendAudit 写入审计日志，并生成链式 hash 以便后续校验完整性。
// 链按 collection 划分；查询上一条与插入在同一事务内完成。
func (s *Store) AppendAudit(ctx context.Context, collection, reportID, eventType, action, status, actor, source string, detail any) (err error) {
	detailJSON := []byte("{}")
	if detail != nil {
		raw, mErr := json.Marshal(detail)
		if mErr == nil {
			detailJSON = raw
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	prev := ""
	err = tx.QueryRowContext(ctx, `
		SELECT chain_hash
		FROM audit_logs
		WHERE collection = ?
		ORDER BY occurred_at DESC, rowid DESC
		LIMIT 1
	`, collection).Scan(&prev)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("query previous chain hash: %w", err)
	}
	err = nil

	now := s.now().Unix()
	eventID := id.New("evt")
	chain := hash.Text(prev, collection, eventType, action, status, fmt.Sprintf("%d", now), string(detailJSON))

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_logs(
			event_id, collection, report_id, event_type, action, status,
			actor, source, detail_json, occurred_at, chain_prev_hash, chain_hash
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, eventID, collection, nullIfEmpty(reportID), eventType, action, status, actor, source, string(detailJSON), now, nullIfEmpty(prev), chain)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit audit log: %w", err)
	}
	return nil
}

// ListAuditLogs 返回集合审计日志（按写入顺序升序）的前 limit 条。
func (s *Store) ListAuditLogs(ctx context.Context, collection string, limit int) ([]model.AuditLog, error) {
	return s.ListAuditLogsPage(ctx, collection, 0, limit)
}

// ListAuditLogsPage 从第 offset 条开始按写入顺序返回最多 limit 条，limit 上限 5000。
func (s *Store) ListAuditLogsPage(ctx context.Context, collection string, offset, limit int) ([]model.AuditLog, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 500
	}
	if limit > 5000 {
		limit = 5000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			event_id,
			collection,
			COALESCE(report_id, ''),
			event_type,
			action,
			status,
			COALESCE(actor, ''),
			COALESCE(source, ''),
			COALESCE(detail_json, '{}'),
			occurred_at,
			COALESCE(chain_prev_hash, ''),
			chain_hash
		FROM audit_logs
		WHERE collection = ?
		ORDER BY occurred_at ASC, rowid ASC
		LIMIT ? OFFSET ?
	`, collection, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	out := []model.AuditLog{}
	for rows.Next() {
		var item model.AuditLog
		var detail string
		if err := rows.Scan(
			&item.EventID,
			&item.Collection,
			&item.ReportID,
			&item.EventType,
			&item.Action,
			&item.Status,
			&item.Actor,
			&item.Source,
			&detail,
			&item.OccurredAt,
			&item.ChainPrevHash,
			&item.ChainHash,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		item.DetailJSON = json.RawMessage(detail)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return out, nil
}

func decodeDocument(body []byte) (model.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc model.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		doc = model.Document{}
	}
	return doc, nil
}

// 空字符串按 NULL 写入，避免无意义空值污染查询条件。
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
