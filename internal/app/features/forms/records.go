// internal/app/features/forms/records.go
package forms

import (
	"context"
	"fmt"
	"net/http"

	uierrors "github.com/dalemusser/formhub/internal/app/features/errors"
	"github.com/dalemusser/formhub/internal/app/system/auth"
	"github.com/dalemusser/formhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
)

// ServeRecords lists every record of the version. Owner only.
// GET /forms/{id}/records?version=N
func (h *Handler) ServeRecords(w http.ResponseWriter, r *http.Request) {
	id, version, ok := h.target(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	recs, err := h.Svc.ListRecords(ctx, auth.CallerFromContext(ctx), id, version)
	if err != nil {
		h.ErrLog.Render(w, r, "list records", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, recs)
}

// HandleCreateRecord stores a submission.
// POST /forms/{id}/records?version=N
func (h *Handler) HandleCreateRecord(w http.ResponseWriter, r *http.Request) {
	id, version, ok := h.target(w, r)
	if !ok {
		return
	}
	var values map[string]any
	if err := decode(r, &values); err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid JSON body", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, err := h.Svc.CreateRecord(ctx, auth.CallerFromContext(ctx), id, version, values)
	if err != nil {
		h.ErrLog.Render(w, r, "create record", err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/forms/%s/records/%s?version=%d", id.Hex(), rec.ID.Hex(), rec.Version))
	uierrors.WriteJSON(w, http.StatusCreated, rec)
}

// ServeRecord returns one record.
// GET /forms/{id}/records/{recordID}?version=N
func (h *Handler) ServeRecord(w http.ResponseWriter, r *http.Request) {
	id, version, ok := h.target(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, err := h.Svc.GetRecord(ctx, auth.CallerFromContext(ctx), id, version, chi.URLParam(r, "recordID"))
	if err != nil {
		h.ErrLog.Render(w, r, "get record", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, rec)
}

// HandleUpdateRecord patches the mutable fields of a record.
// PUT /forms/{id}/records/{recordID}?version=N
func (h *Handler) HandleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, version, ok := h.target(w, r)
	if !ok {
		return
	}
	var patch map[string]any
	if err := decode(r, &patch); err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid JSON body", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, err := h.Svc.UpdateRecord(ctx, auth.CallerFromContext(ctx), id, version, chi.URLParam(r, "recordID"), patch)
	if err != nil {
		h.ErrLog.Render(w, r, "update record", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, rec)
}

// HandleDeleteRecord removes a record and returns it.
// DELETE /forms/{id}/records/{recordID}?version=N
func (h *Handler) HandleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, version, ok := h.target(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, err := h.Svc.DeleteRecord(ctx, auth.CallerFromContext(ctx), id, version, chi.URLParam(r, "recordID"))
	if err != nil {
		h.ErrLog.Render(w, r, "delete record", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, rec)
}

// ServeExport streams the version's records as a download.
// GET /forms/{id}/export?format=csv&version=N
func (h *Handler) ServeExport(w http.ResponseWriter, r *http.Request) {
	id, version, ok := h.target(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "export records")
	defer cancel()

	out, err := h.Svc.ExportRecords(ctx, auth.CallerFromContext(ctx), id, version, format)
	if err != nil {
		h.ErrLog.Render(w, r, "export records", err)
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.FileName))
	w.Header().Set("Content-Length", fmt.Sprint(len(out.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}
