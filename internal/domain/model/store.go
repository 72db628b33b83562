package model

import "context"

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

// DocumentStore 是按 collection/key 寻址的文档持久化协作方。
// 单文档写入须是原子的；ListKeys 的顺序由后端决定。
type DocumentStore interface {
	PutDocument(ctx context.Context, collection, key string, doc Document) error
	// GetDocument 在文档不存在时返回 found=false 且 err=nil。
	GetDocument(ctx context.Context, collection, key string) (doc Document, found bool, err error)
	// DeleteDocument 对不存在的 key 不报错。
	DeleteDocument(ctx context.Context, collection, key string) error
	ListKeys(ctx context.Context, collection string) ([]string, error)
}
