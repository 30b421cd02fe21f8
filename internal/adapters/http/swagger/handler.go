// Package swagger serves the OpenAPI document and a Swagger UI for it.
package swagger

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	swgui "github.com/swaggest/swgui/v5cdn"
)

const (
	// Title is shown in the browser tab of the docs UI.
	Title = "TAPP Draft Matching API"

	specPath = "/openapi.yaml"
	docsPath = "/api-docs/"
)

// Register attaches the docs routes to r.
//
//	GET /openapi.yaml  -> embedded OpenAPI spec
//	GET /api-docs/     -> Swagger UI loading /openapi.yaml
func Register(_ context.Context, r chi.Router) {
	if r == nil {
		panic("router is nil")
	}

	r.Get(specPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})

	r.Get("/api-docs", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, docsPath, http.StatusMovedPermanently)
	})
	r.Mount(docsPath, swgui.New(Title, specPath, docsPath))
}
