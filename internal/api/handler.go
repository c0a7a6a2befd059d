// Package api exposes the import pipeline to the review UI over HTTP.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/importer"
)

// Importer is the slice of the orchestrator the handlers drive.
type Importer interface {
	StartBatch(ctx context.Context, docs []importer.Document) (string, error)
	GetBatchStatus(batchID string) (importer.BatchStatus, error)
	EditItem(ctx context.Context, batchID, itemID string, overrides map[string]string) (importer.Item, error)
	CommitBatch(ctx context.Context, batchID string) ([]importer.ItemResult, error)
	CancelBatch(batchID string) error
}

// Handler implements the batch endpoints.
type Handler struct {
	imp       Importer
	maxUpload int64
}

// NewHandler creates a Handler. maxUploadMB bounds the request body of a
// batch upload; zero uses 32 MB.
func NewHandler(imp Importer, maxUploadMB int) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 32
	}
	return &Handler{imp: imp, maxUpload: int64(maxUploadMB) << 20}
}

type documentRequest struct {
	Name          string `json:"name"`
	ContentBase64 string `json:"content_base64"`
}

// StartBatch accepts a JSON list of base64 documents and starts processing.
func (h *Handler) StartBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	var req []documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	docs := make([]importer.Document, 0, len(req))
	for i, d := range req {
		content, err := base64.StdEncoding.DecodeString(d.ContentBase64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("document %d: content_base64 is not valid base64", i+1))
			return
		}
		docs = append(docs, importer.Document{Name: d.Name, Content: content})
	}

	id, err := h.imp.StartBatch(r.Context(), docs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"batch_id":  id,
		"documents": len(docs),
	})
}

// GetBatch returns the batch state and every item.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	st, err := h.imp.GetBatchStatus(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// EditItem applies reviewer overrides sent as a flat field-to-value object.
func (h *Handler) EditItem(w http.ResponseWriter, r *http.Request) {
	var overrides map[string]string
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(overrides) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	it, err := h.imp.EditItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), overrides)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// CommitBatch persists the batch and returns one result per item. A client
// that disconnects does not abort the commit; DELETE does.
func (h *Handler) CommitBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	results, err := h.imp.CommitBatch(context.WithoutCancel(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	committed := 0
	for _, res := range results {
		if res.Status == importer.StatusCommitted {
			committed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"batch_id":  id,
		"committed": committed,
		"failed":    len(results) - committed,
		"results":   results,
	})
}

// CancelBatch cancels a running batch or discards a finished one.
func (h *Handler) CancelBatch(w http.ResponseWriter, r *http.Request) {
	if err := h.imp.CancelBatch(chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Report streams the batch as an XLSX workbook.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.imp.GetBatchStatus(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "batch-"+id+".xlsx"))
	if err := importer.WriteReport(w, st); err != nil {
		zap.L().Error("api: write report", zap.String("batch_id", id), zap.Error(err))
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail maps pipeline errors to HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, importer.ErrBatchNotFound), errors.Is(err, importer.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, importer.ErrEmptyBatch), errors.Is(err, importer.ErrEmptyDocument):
		return http.StatusBadRequest
	case errors.Is(err, importer.ErrInvalidOverride):
		return http.StatusUnprocessableEntity
	case errors.Is(err, importer.ErrBatchNotReady),
		errors.Is(err, importer.ErrBatchClosed),
		errors.Is(err, importer.ErrItemFinal):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
