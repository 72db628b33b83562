package deployments

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_HeaderAndRows(t *testing.T) {
	in := "\ufeffEstado, HOSTNAME ,OP,Fecha Planeada Update,Fecha Real Update,Estatus Update,Estatus Impresión,Observaciones\n" +
		"MX-CMX,srv01,OP1,2025-01-01,,OK,OK,\"con, coma\"\n" +
		"\n" +
		",,,,,,,\n" +
		"MX-HID,srv02\n"

	table, err := Parse(strings.NewReader(in), 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if table.Columns[0] != "Estado" || table.Columns[1] != "HOSTNAME" {
		t.Fatalf("header not normalized: %q", table.Columns)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows=%d want=2: %q", len(table.Rows), table.Rows)
	}
	if table.Rows[0][7] != "con, coma" {
		t.Fatalf("quoted cell=%q", table.Rows[0][7])
	}
	if len(table.Rows[1]) != 2 {
		t.Fatalf("short row should be kept as is: %q", table.Rows[1])
	}
}

func TestParse_Semicolon(t *testing.T) {
	table, err := Parse(strings.NewReader("Estado;OP\nMX-SON;x\n"), ';')
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(table.Columns) != 2 || table.Rows[0][0] != "MX-SON" {
		t.Fatalf("table=%+v", table)
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse(strings.NewReader(""), 0); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestReader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deployments.csv")
	if err := os.WriteFile(path, []byte("Estado\nMX-CMX\nMX-CMX\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	loaded, err := NewReader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Table.Rows) != 2 || loaded.Source != path || len(loaded.SHA256) != 64 {
		t.Fatalf("loaded=%+v", loaded)
	}

	if _, err := NewReader(filepath.Join(dir, "missing.csv")).Load(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
