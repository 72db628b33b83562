package mapview

import (
	"encoding/json"
	"errors"
	"testing"

	"progress-map/internal/apperrors"
	"progress-map/internal/domain/model"
	"progress-map/internal/services/aggregate"
	"progress-map/internal/services/progress"
	"progress-map/internal/services/regions"
)

func TestBuild_CountMode(t *testing.T) {
	geo := json.RawMessage(`{"type":"FeatureCollection","features":[]}`)
	b := NewBuilder(aggregate.New(regions.Default()), geo)

	req, err := b.Build("", model.DeploymentTable{
		Columns: []string{"Estado"},
		Rows:    [][]string{{"MX-CMX"}, {"MX-CMX"}, {"MX-HID"}},
	}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if req.Mode != model.ModeCount || req.ColorColumn != "Cantidad" {
		t.Fatalf("mode=%s color=%s", req.Mode, req.ColorColumn)
	}
	if req.FeatureIDKey != "properties.id" || req.ColorScale != "Viridis" || req.MapStyle != "carto-positron" {
		t.Fatalf("unexpected map params: %+v", req)
	}
	if req.Zoom != 5 || req.Opacity != 0.5 || req.Center.Lat != 23.6345 || req.Center.Lon != -102.5528 {
		t.Fatalf("unexpected viewport: %+v", req)
	}
	if len(req.Rows) != 2 || req.Rows[0].Metric != 2 {
		t.Fatalf("rows=%+v", req.Rows)
	}
	if string(req.GeoJSON) != string(geo) {
		t.Fatalf("geojson not passed through")
	}
}

func TestBuild_WeightedMode(t *testing.T) {
	catalog := regions.Default()
	state := progress.New(catalog)
	_ = state.Set("MX-CMX", 37)

	b := NewBuilder(aggregate.New(catalog), nil)
	req, err := b.Build(model.ModeWeighted, model.DeploymentTable{
		Columns: []string{"Estado", "HOSTNAME", "OP", "a", "b", "c", "d", "e"},
		Rows:    [][]string{{"MX-CMX", "h", "1", "", "", "", "", ""}},
	}, state)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if req.ColorColumn != "Avance" || len(req.Rows) != 1 || req.Rows[0].Metric != 0.37 {
		t.Fatalf("req=%+v", req)
	}
}

func TestBuild_MalformedInput(t *testing.T) {
	b := NewBuilder(aggregate.New(regions.Default()), nil)
	_, err := b.Build(model.ModeCount, model.DeploymentTable{Columns: []string{"x"}}, nil)
	var mi apperrors.MalformedInputError
	if !errors.As(err, &mi) {
		t.Fatalf("expected MalformedInputError, got %v", err)
	}
}
