package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"progress-map/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deploymentsCSV = "Estado,HOSTNAME,OP,Plan,Real,Upd,Imp,Obs\n" +
	"MX-CMX,srv01,OP1,a,b,c,d,e\n" +
	"MX-CMX,srv02,OP1,a,b,c,d,e\n" +
	"MX-HID,srv03,OP2,a,b,c,d,e\n" +
	"ZZ-XXX,srv04,OP2,a,b,c,d,e\n"

type harness struct {
	t   *testing.T
	dir string
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deployments.csv"), []byte(deploymentsCSV), 0o644))
	return &harness{t: t, dir: dir}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	base := []string{
		"--db", filepath.Join(h.dir, "progress.db"),
		"--csv", filepath.Join(h.dir, "deployments.csv"),
	}
	root.SetArgs(append(args, base...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReportLifecycle(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied successfully")

	out, err = h.run("report", "save", "--name", "r1", "--set", "MX-CMX=37", "--set", "mx-hid=80")
	require.NoError(t, err)
	assert.Contains(t, out, "report=r1 version=1 regions=2")

	_, err = h.run("report", "save", "--name", "r2", "--from", "r1", "--set", "MX-CMX=40")
	require.NoError(t, err)

	out, err = h.run("report", "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, strings.Fields(out))

	out, err = h.run("report", "load", "r2")
	require.NoError(t, err)
	var report model.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, map[model.RegionCode]int{"MX-CMX": 40, "MX-HID": 80}, report.Progress)

	out, err = h.run("report", "load", "r2", "--full")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Len(t, report.Progress, 31)
	assert.Equal(t, model.DefaultProgress, report.Progress["MX-SON"])

	out, err = h.run("report", "export-pdf", "r1", "--out", filepath.Join(h.dir, "pdf"))
	require.NoError(t, err)
	assert.Contains(t, out, "pdf_sha256=")

	out, err = h.run("report", "export-bundle", "r1", "--out", filepath.Join(h.dir, "bundles"))
	require.NoError(t, err)
	assert.Contains(t, out, "zip_sha256=")

	_, err = h.run("report", "delete", "r1")
	require.NoError(t, err)
	_, err = h.run("report", "load", "r1")
	assert.Error(t, err)

	out, err = h.run("verify", "audit")
	require.NoError(t, err, out)
	assert.Contains(t, out, "failed=0")
}

func TestReportSave_Rejects(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("report", "save", "--name", "bad", "--set", "MX-CMX=101")
	assert.Error(t, err)
	_, err = h.run("report", "save", "--name", "bad", "--set", "NOPE=1")
	assert.Error(t, err)
	_, err = h.run("report", "save", "--name", "bad", "--set", "MX-CMX")
	assert.Error(t, err)

	out, err := h.run("report", "list")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestRender(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("render")
	require.NoError(t, err)
	var req model.MapRenderRequest
	require.NoError(t, json.Unmarshal([]byte(out), &req))
	assert.Equal(t, model.ModeCount, req.Mode)
	require.Len(t, req.Rows, 2)
	assert.Equal(t, float64(2), req.Rows[0].Metric)
	assert.Len(t, req.Warnings, 1)

	_, err = h.run("report", "save", "--name", "r1", "--set", "MX-HID=20")
	require.NoError(t, err)
	out, err = h.run("render", "--mode", "weighted", "--from", "r1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &req))
	require.Len(t, req.Rows, 2)
	assert.InDelta(t, 0.5, req.Rows[0].Metric, 1e-9)
	assert.InDelta(t, 0.2, req.Rows[1].Metric, 1e-9)

	_, err = h.run("render", "--mode", "bogus")
	assert.Error(t, err)
}

func TestCatalogValidate(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("catalog", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "regions=31")

	geo := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"id":"MX-CMX"},"geometry":null}]}`
	geoPath := filepath.Join(h.dir, "geo.json")
	require.NoError(t, os.WriteFile(geoPath, []byte(geo), 0o644))
	_, err = h.run("catalog", "validate", "--geo", "--geojson", geoPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "30 region(s)")
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "dev")
}
