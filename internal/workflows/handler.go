package workflows

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sampoursoltan11/paddock-sub000/internal/pipeline"
	"github.com/sampoursoltan11/paddock-sub000/pkg/handlers"
	"github.com/sampoursoltan11/paddock-sub000/pkg/routes"
)

// ErrInvalidID indicates a path parameter that is not a valid document id.
var ErrInvalidID = errors.New("invalid document id")

// Handler provides HTTP endpoints for workflow operations.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "workflows"),
	}
}

// Routes returns the route group definition for workflow endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/workflows",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/{id}/start", Handler: h.Start},
			{Method: "POST", Pattern: "/{id}/resume", Handler: h.Resume},
			{Method: "GET", Pattern: "/{id}", Handler: h.State},
			{Method: "GET", Pattern: "/{id}/report", Handler: h.Report},
			{Method: "GET", Pattern: "/{id}/report/html", Handler: h.ReportHTML},
		},
	}
}

// Start registers a workflow for a document and schedules execution.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	state, err := h.sys.StartWorkflow(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, pipeline.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, state)
}

// Resume schedules another execution pass for an interrupted workflow.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	if err := h.sys.Resume(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, pipeline.MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// State returns the current workflow state for a document.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	state, err := h.sys.State(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, pipeline.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, state)
}

// Report returns the finished compliance report for a document.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	report, err := h.sys.Report(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, pipeline.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report)
}

// ReportHTML streams the rendered HTML report artifact for a document.
func (h *Handler) ReportHTML(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	result, err := h.sys.ReportArtifact(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, pipeline.MapHTTPStatus(err), err)
		return
	}
	defer result.Body.Close()

	w.Header().Set("Content-Type", result.ContentType)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, result.Body); err != nil {
		h.logger.Error("report artifact stream failed", "document_id", id, "error", err)
	}
}
