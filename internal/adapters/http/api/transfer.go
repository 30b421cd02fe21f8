package api

import (
	"bytes"
	"context"
	"io"
	"net/http"

	service "github.com/okian/tapp/internal/app"
	"github.com/okian/tapp/internal/domain/match"
)

// exportFilename is suggested to browsers downloading an export.
const exportFilename = "matches.json"

// TransferDependencies is the part of the service the import and export
// routes use.
type TransferDependencies interface {
	Import(ctx context.Context, r io.Reader) (service.ImportReport, error)
	Export(ctx context.Context, w io.Writer, keys []string) error
}

// TransferHandler serves match file import and export.
type TransferHandler struct {
	deps TransferDependencies
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(deps TransferDependencies) *TransferHandler {
	return &TransferHandler{deps: deps}
}

// HandleImport handles POST /matches/import. The body is the raw file.
func (h *TransferHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Import(r.Context(), r.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if report.Skipped == nil {
		report.Skipped = []match.Skipped{}
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleExport handles GET /matches/export. Repeating key narrows the
// export to those matches.
func (h *TransferHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.deps.Export(r.Context(), &buf, r.URL.Query()["key"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
