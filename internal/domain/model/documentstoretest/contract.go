// Package documentstoretest 提供 model.DocumentStore 实现的契约测试。
package documentstoretest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"

	"progress-map/internal/domain/model"
)

// Factory 为每个子测试创建一个全新的存储。
type Factory func(t *testing.T) model.DocumentStore

// Run 对实现执行 DocumentStore 契约。
func Run(t *testing.T, factory Factory) {
	sample := func() model.Document {
		return model.Document{
			model.FieldID:        "R1",
			model.FieldCreatedAt: "2025-03-01T10:00:00Z",
			model.FieldProgress:  map[string]int{"MX-CMX": 37, "MX-HID": 100},
			model.FieldCreatedBy: "admin",
		}
	}

	t.Run("PutAndGet", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		if err := store.PutDocument(ctx, model.ReportCollection, "R1", sample()); err != nil {
			t.Fatalf("PutDocument: %v", err)
		}
		doc, found, err := store.GetDocument(ctx, model.ReportCollection, "R1")
		if err != nil || !found {
			t.Fatalf("GetDocument: found=%v err=%v", found, err)
		}
		if doc[model.FieldID] != "R1" || doc[model.FieldCreatedBy] != "admin" {
			t.Errorf("doc = %+v", doc)
		}
		progress, ok := doc[model.FieldProgress].(map[string]any)
		if !ok {
			t.Fatalf("%s has type %T", model.FieldProgress, doc[model.FieldProgress])
		}
		if fmt.Sprint(progress["MX-CMX"]) != "37" || fmt.Sprint(progress["MX-HID"]) != "100" {
			t.Errorf("progress = %+v", progress)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := factory(t)
		doc, found, err := store.GetDocument(context.Background(), model.ReportCollection, "nope")
		if err != nil {
			t.Fatalf("GetDocument: %v", err)
		}
		if found || doc != nil {
			t.Fatalf("expected not found, got %+v", doc)
		}
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		_ = store.PutDocument(ctx, model.ReportCollection, "R1", sample())
		second := sample()
		second[model.FieldCreatedBy] = "otro"
		if err := store.PutDocument(ctx, model.ReportCollection, "R1", second); err != nil {
			t.Fatalf("PutDocument: %v", err)
		}
		doc, _, _ := store.GetDocument(ctx, model.ReportCollection, "R1")
		if doc[model.FieldCreatedBy] != "otro" {
			t.Errorf("%s = %v, want otro", model.FieldCreatedBy, doc[model.FieldCreatedBy])
		}
		keys, _ := store.ListKeys(ctx, model.ReportCollection)
		if len(keys) != 1 {
			t.Errorf("keys = %v, want one key", keys)
		}
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		_ = store.PutDocument(ctx, model.ReportCollection, "R1", sample())
		for i := 0; i < 2; i++ {
			if err := store.DeleteDocument(ctx, model.ReportCollection, "R1"); err != nil {
				t.Fatalf("DeleteDocument #%d: %v", i+1, err)
			}
		}
		if _, found, _ := store.GetDocument(ctx, model.ReportCollection, "R1"); found {
			t.Fatalf("document still present after delete")
		}
		if err := store.DeleteDocument(ctx, "otra", "never"); err != nil {
			t.Fatalf("delete in unknown collection: %v", err)
		}
	})

	t.Run("ListKeysPerCollection", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		for _, k := range []string{"b", "a", "c"} {
			_ = store.PutDocument(ctx, model.ReportCollection, k, sample())
		}
		_ = store.PutDocument(ctx, "otra", "z", sample())

		keys, err := store.ListKeys(ctx, model.ReportCollection)
		if err != nil {
			t.Fatalf("ListKeys: %v", err)
		}
		sort.Strings(keys)
		if fmt.Sprint(keys) != "[a b c]" {
			t.Errorf("keys = %v", keys)
		}

		empty, err := store.ListKeys(ctx, "vacia")
		if err != nil {
			t.Fatalf("ListKeys empty: %v", err)
		}
		if len(empty) != 0 {
			t.Errorf("empty collection keys = %v", empty)
		}
	})

	t.Run("ConcurrentPutsLastWriteWins", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				doc := sample()
				doc[model.FieldCreatedBy] = fmt.Sprintf("user%d", i)
				if err := store.PutDocument(ctx, model.ReportCollection, "R1", doc); err != nil {
					t.Errorf("PutDocument: %v", err)
				}
			}(i)
		}
		wg.Wait()

		doc, found, err := store.GetDocument(ctx, model.ReportCollection, "R1")
		if err != nil || !found {
			t.Fatalf("GetDocument: found=%v err=%v", found, err)
		}
		// 任何一个完整写入都可接受，但文档必须是某一次写入的整体。
		raw, _ := json.Marshal(doc[model.FieldProgress])
		if string(raw) != `{"MX-CMX":37,"MX-HID":100}` {
			t.Errorf("torn document: %s", raw)
		}
	})
}
