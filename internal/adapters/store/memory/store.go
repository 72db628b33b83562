// Package memory 是进程内的文档存储，用于测试与无数据库的演示模式。
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"progress-map/internal/domain/model"
)

// Store 以 JSON 字节保存文档，读写语义与 SQLite 实现一致（数值读回为 json.Number）。
// ListKeys 按首次写入顺序返回。
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	order []string
	docs  map[string][]byte
}

var _ model.DocumentStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) PutDocument(ctx context.Context, name, key string, doc model.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string][]byte)}
		s.collections[name] = c
	}
	if _, exists := c.docs[key]; !exists {
		c.order = append(c.order, key)
	}
	c.docs[key] = body
	return nil
}

func (s *Store) GetDocument(ctx context.Context, name, key string) (model.Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	var body []byte
	if c, ok := s.collections[name]; ok {
		body = c.docs[key]
	}
	s.mu.RUnlock()
	if body == nil {
		return nil, false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc model.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, false, fmt.Errorf("decode document: %w", err)
	}
	return doc, true, nil
}

func (s *Store) DeleteDocument(ctx context.Context, name, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	if _, exists := c.docs[key]; !exists {
		return nil
	}
	delete(c.docs, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) ListKeys(ctx context.Context, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []string{}
	if c, ok := s.collections[name]; ok {
		out = append(out, c.order...)
	}
	return out, nil
}
