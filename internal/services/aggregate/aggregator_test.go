package aggregate

import (
	"errors"
	"math"
	"testing"

	"progress-map/internal/apperrors"
	"progress-map/internal/domain/model"
	"progress-map/internal/services/progress"
	"progress-map/internal/services/regions"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var fullColumns = []string{
	"Estado", "HOSTNAME", "OP",
	"Fecha Planeada Update", "Fecha Real Update", "Estatus Update", "Estatus Impresion", "Observaciones",
}

func row(region, host, op string, status ...string) []string {
	out := []string{region, host, op}
	out = append(out, status...)
	for len(out) < len(fullColumns) {
		out = append(out, "")
	}
	return out
}

func TestCount_GroupsByRegion(t *testing.T) {
	a := New(regions.Default())
	res, err := a.Count(model.DeploymentTable{
		Columns: []string{"Estado"},
		Rows:    [][]string{{"MX-CMX"}, {"MX-CMX"}, {"MX-HID"}},
	})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	want := []model.CountRow{{Region: "MX-CMX", Count: 2}, {Region: "MX-HID", Count: 1}}
	if len(res.Rows) != len(want) {
		t.Fatalf("rows=%+v", res.Rows)
	}
	for i := range want {
		if res.Rows[i] != want[i] {
			t.Fatalf("rows[%d]=%+v want=%+v", i, res.Rows[i], want[i])
		}
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
}

func TestCount_UnknownRegionDroppedWithWarning(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	a := New(regions.Default())
	a.SetLogger(zap.New(core))

	res, err := a.Count(model.DeploymentTable{
		Columns: []string{"HOSTNAME", "Estado"},
		Rows:    [][]string{{"h1", "MX-CMX"}, {"h2", "TX-AUS"}, {"h3", " MX-CMX "}},
	})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0].Count != 2 {
		t.Fatalf("rows=%+v", res.Rows)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings=%v", res.Warnings)
	}
	if logs.FilterMessage("deployment row with unknown region dropped").Len() != 1 {
		t.Fatalf("expected one warn log, got %d", logs.Len())
	}
}

func TestCount_MissingEstado(t *testing.T) {
	a := New(regions.Default())
	_, err := a.Count(model.DeploymentTable{Columns: []string{"HOSTNAME"}, Rows: [][]string{{"h"}}})
	var mi apperrors.MalformedInputError
	if !errors.As(err, &mi) {
		t.Fatalf("expected MalformedInputError, got %v", err)
	}
	if len(mi.Missing) != 1 || mi.Missing[0] != "Estado" {
		t.Fatalf("missing=%v", mi.Missing)
	}
}

func TestWeighted_ConcatenatesAndWeights(t *testing.T) {
	catalog := regions.Default()
	state := progress.New(catalog)
	if err := state.Set("MX-CMX", 37); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := state.Set("MX-SON", 90); err != nil {
		t.Fatalf("Set: %v", err)
	}

	a := New(catalog)
	res, err := a.Weighted(model.DeploymentTable{
		Columns: fullColumns,
		Rows: [][]string{
			row("MX-CMX", "srv01", "OP1", "2025-01-01", "2025-01-03", "OK", "PEND", "first"),
			row("MX-HID", "srv09", "OP2", "2025-02-01", "", "OK", "OK", ""),
			row("MX-CMX", "srv01", "OP1", "2025-01-05", "2025-01-06", "FAIL", "OK", "second"),
			row("MX-CMX", "srv02", "OP1", "a", "b", "c", "d", "e"),
		},
	}, state)
	if err != nil {
		t.Fatalf("Weighted: %v", err)
	}
	if len(res.Groups) != 3 {
		t.Fatalf("groups=%d want=3: %+v", len(res.Groups), res.Groups)
	}

	g := res.Groups[0]
	if g.Region != "MX-CMX" || g.Hostname != "srv01" || g.Op != "OP1" || g.Rows != 2 {
		t.Fatalf("unexpected first group: %+v", g)
	}
	wantStatus := [model.StatusColumnCount]string{
		"2025-01-01 2025-01-05",
		"2025-01-03 2025-01-06",
		"OK FAIL",
		"PEND OK",
		"first second",
	}
	if g.Status != wantStatus {
		t.Fatalf("status=%q want=%q", g.Status, wantStatus)
	}
	if math.Abs(g.Metric-0.37) > 1e-9 {
		t.Fatalf("metric=%v want=0.37", g.Metric)
	}
	if res.Groups[1].Region != "MX-HID" || math.Abs(res.Groups[1].Metric-0.5) > 1e-9 {
		t.Fatalf("unset region should use default 50: %+v", res.Groups[1])
	}
	for _, grp := range res.Groups {
		if grp.Region == "MX-SON" {
			t.Fatalf("region without deployment rows must not appear")
		}
	}
}

func TestWeighted_MissingColumns(t *testing.T) {
	a := New(regions.Default())
	state := progress.New(regions.Default())

	_, err := a.Weighted(model.DeploymentTable{
		Columns: []string{"Estado", "OP", "a", "b", "c", "d", "e"},
	}, state)
	var mi apperrors.MalformedInputError
	if !errors.As(err, &mi) {
		t.Fatalf("expected MalformedInputError, got %v", err)
	}
	if len(mi.Missing) != 1 || mi.Missing[0] != "HOSTNAME" {
		t.Fatalf("missing=%v", mi.Missing)
	}

	// 只有键列，没有五个状态列。
	_, err = a.Weighted(model.DeploymentTable{Columns: []string{"Estado", "HOSTNAME", "OP"}}, state)
	if !errors.As(err, &mi) {
		t.Fatalf("expected MalformedInputError, got %v", err)
	}
	if len(mi.Missing) != model.StatusColumnCount {
		t.Fatalf("missing=%v", mi.Missing)
	}
}

func TestWeighted_ShortRowDropped(t *testing.T) {
	a := New(regions.Default())
	state := progress.New(regions.Default())
	res, err := a.Weighted(model.DeploymentTable{
		Columns: fullColumns,
		Rows: [][]string{
			{"MX-CMX", "srv01"},
			row("MX-CMX", "srv01", "OP1"),
		},
	}, state)
	if err != nil {
		t.Fatalf("Weighted: %v", err)
	}
	if len(res.Groups) != 1 || res.Groups[0].Rows != 1 {
		t.Fatalf("groups=%+v", res.Groups)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings=%v", res.Warnings)
	}
}

func TestRenderRows(t *testing.T) {
	catalog := regions.Default()
	state := progress.New(catalog)
	_ = state.Set("MX-CMX", 37)
	_ = state.Set("MX-ZAC", 100)

	table := model.DeploymentTable{
		Columns: fullColumns,
		Rows: [][]string{
			row("MX-CMX", "a", "1"),
			row("MX-CMX", "b", "1"),
			row("MX-HID", "c", "1"),
			row("??", "d", "1"),
		},
	}
	a := New(catalog)

	counted, warnings, err := a.RenderRows(model.ModeCount, table, nil)
	if err != nil {
		t.Fatalf("RenderRows count: %v", err)
	}
	if len(counted) != 2 || counted[0].Metric != 2 || counted[1].Metric != 1 {
		t.Fatalf("count rows=%+v", counted)
	}
	if counted[0].Name != "CIUDAD DE MÉXICO" {
		t.Fatalf("name=%q", counted[0].Name)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings=%v", warnings)
	}

	weighted, _, err := a.RenderRows(model.ModeWeighted, table, state)
	if err != nil {
		t.Fatalf("RenderRows weighted: %v", err)
	}
	if len(weighted) != 2 {
		t.Fatalf("weighted rows=%+v", weighted)
	}
	if math.Abs(weighted[0].Metric-0.37) > 1e-9 || math.Abs(weighted[1].Metric-0.5) > 1e-9 {
		t.Fatalf("weighted rows=%+v", weighted)
	}

	if _, _, err := a.RenderRows("bogus", table, state); err == nil {
		t.Fatalf("expected unknown mode error")
	}
	if _, _, err := a.RenderRows(model.ModeWeighted, table, nil); err == nil {
		t.Fatalf("expected error without progress state")
	}
}
