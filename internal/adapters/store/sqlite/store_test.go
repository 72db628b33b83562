package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"progress-map/internal/domain/model"
	"progress-map/internal/domain/model/documentstoretest"
	"progress-map/internal/platform/hash"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "progress.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := NewMigrator(db).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db)
}

func TestStoreContract(t *testing.T) {
	documentstoretest.Run(t, func(t *testing.T) model.DocumentStore {
		return openTestStore(t)
	})
}

func TestMigrator_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "nested", "progress.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	first, err := NewMigrator(db).Up(ctx)
	if err != nil {
		t.Fatalf("first Up: %v", err)
	}
	if len(first) == 0 {
		t.Fatalf("expected migrations to run on empty db")
	}
	second, err := NewMigrator(db).Up(ctx)
	if err != nil {
		t.Fatalf("second Up: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second Up ran %v", second)
	}

	v, err := NewStore(db).GetSchemaMetaValue(ctx, "schema_version")
	if err != nil || v != "1" {
		t.Fatalf("schema_version=%q err=%v", v, err)
	}
	missing, err := NewStore(db).GetSchemaMetaValue(ctx, "nope")
	if err != nil || missing != "" {
		t.Fatalf("missing key=%q err=%v", missing, err)
	}
}

func TestAppendAudit_Chain(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i, action := range []string{"save", "load", "delete"} {
		if err := s.AppendAudit(ctx, model.ReportCollection, "R1", "report", action, "success", "admin", "test", map[string]int{"n": i}); err != nil {
			t.Fatalf("AppendAudit %s: %v", action, err)
		}
	}
	if err := s.AppendAudit(ctx, "otra", "", "report", "save", "success", "", "", nil); err != nil {
		t.Fatalf("AppendAudit other collection: %v", err)
	}

	logs, err := s.ListAuditLogs(ctx, model.ReportCollection, 0)
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("logs=%d want=3", len(logs))
	}
	prev := ""
	for i, l := range logs {
		if l.ChainPrevHash != prev {
			t.Fatalf("log %d prev=%q want=%q", i, l.ChainPrevHash, prev)
		}
		want := hash.Text(prev, l.Collection, l.EventType, l.Action, l.Status, fmt.Sprintf("%d", l.OccurredAt), string(l.DetailJSON))
		if l.ChainHash != want {
			t.Fatalf("log %d chain hash mismatch", i)
		}
		if l.ReportID != "R1" || l.Actor != "admin" {
			t.Fatalf("log %d = %+v", i, l)
		}
		prev = l.ChainHash
	}
	if logs[0].Action != "save" || logs[2].Action != "delete" {
		t.Fatalf("unexpected order: %s, %s", logs[0].Action, logs[2].Action)
	}

	other, _ := s.ListAuditLogs(ctx, "otra", 10)
	if len(other) != 1 || other[0].ChainPrevHash != "" || string(other[0].DetailJSON) != "{}" {
		t.Fatalf("other chain=%+v", other)
	}
}

func TestListAuditLogsPage(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	actions := []string{"save", "load", "delete", "save", "load"}
	for _, action := range actions {
		if err := s.AppendAudit(ctx, model.ReportCollection, "R1", "report", action, "success", "", "", nil); err != nil {
			t.Fatalf("AppendAudit %s: %v", action, err)
		}
	}

	var got []string
	for offset := 0; ; offset += 2 {
		page, err := s.ListAuditLogsPage(ctx, model.ReportCollection, offset, 2)
		if err != nil {
			t.Fatalf("ListAuditLogsPage(%d): %v", offset, err)
		}
		for _, l := range page {
			got = append(got, l.Action)
		}
		if len(page) < 2 {
			break
		}
	}
	if strings.Join(got, ",") != strings.Join(actions, ",") {
		t.Fatalf("paged actions=%v want=%v", got, actions)
	}
}
