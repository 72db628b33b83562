package webapp

import (
	"net/http"

	"progress-map/internal/app"
)

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	db := map[string]any{"path": s.opts.DBPath}
	if s.schema != nil {
		schemaVersion, _ := s.schema.GetSchemaMetaValue(r.Context(), "schema_version")
		documentFormat, _ := s.schema.GetSchemaMetaValue(r.Context(), "document_format")
		db["schema_version"] = schemaVersion
		db["document_format"] = documentFormat
	}

	bundle := s.catalogInfo.Bundle
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": s.now().Unix(),
		"app": map[string]any{
			"version":    app.Version,
			"commit":     app.Commit,
			"build_time": app.BuildTime,
		},
		"db": db,
		"catalog": map[string]any{
			"source":  s.catalogInfo.Source,
			"version": bundle.Version,
			"country": bundle.Country,
			"total":   s.catalog.Len(),
			"sha256":  s.catalogInfo.SHA256,
		},
		"deployments": s.opts.DeploymentsCSV,
		"geojson":     s.builder.HasGeometry(),
		"sessions":    s.sessions.Len(),
	})
}
