// internal/app/features/forms/forms.go
package forms

import (
	"context"
	"net/http"
	"strconv"

	uierrors "github.com/dalemusser/formhub/internal/app/features/errors"
	"github.com/dalemusser/formhub/internal/app/system/auth"
	"github.com/dalemusser/formhub/internal/app/system/formsvc"
	"github.com/dalemusser/formhub/internal/app/system/timeouts"
	"github.com/dalemusser/formhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

type compileRequest struct {
	Fields []models.Field `json:"fields"`
}

type versionResponse struct {
	Form    string `json:"form"`
	Version int    `json:"version"`
	Store   string `json:"store"`
}

// HandleCompile compiles a field list without storing anything.
// POST /forms/compile
func (h *Handler) HandleCompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid JSON body", err)
		return
	}
	desc, _, err := formsvc.Compile(req.Fields)
	if err != nil {
		h.ErrLog.Render(w, r, "compile fields", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, desc)
}

// ServeForm returns one form.
// GET /forms/{id}
func (h *Handler) ServeForm(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid form id", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	f, err := h.Svc.GetForm(ctx, auth.CallerFromContext(ctx), id)
	if err != nil {
		h.ErrLog.Render(w, r, "get form", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, f)
}

// HandleUpdateForm applies a FormPatch. A changed field list answers with
// the new version.
// PUT /forms/{id}
func (h *Handler) HandleUpdateForm(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid form id", err)
		return
	}
	var patch formsvc.FormPatch
	if err := decode(r, &patch); err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid JSON body", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	f, err := h.Svc.UpdateForm(ctx, auth.CallerFromContext(ctx), id, patch)
	if err != nil {
		h.ErrLog.Render(w, r, "update form", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, f)
}

// HandleDeleteForm deletes the form and drops every version's records.
// DELETE /forms/{id}
func (h *Handler) HandleDeleteForm(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid form id", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	f, err := h.Svc.DeleteForm(ctx, auth.CallerFromContext(ctx), id)
	if err != nil {
		h.ErrLog.Render(w, r, "delete form", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, f)
}

// ServeVersions lists the stored field snapshots.
// GET /forms/{id}/versions
func (h *Handler) ServeVersions(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid form id", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	versions, err := h.Svc.FormVersions(ctx, auth.CallerFromContext(ctx), id)
	if err != nil {
		h.ErrLog.Render(w, r, "list form versions", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, versions)
}

// HandleCreateVersion records a new field list as the next version.
// POST /forms/{id}/versions
func (h *Handler) HandleCreateVersion(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid form id", err)
		return
	}
	var req compileRequest
	if err := decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid JSON body", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	b, err := h.Svc.CreateFormVersion(ctx, auth.CallerFromContext(ctx), id, req.Fields)
	if err != nil {
		h.ErrLog.Render(w, r, "create form version", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, versionResponse{
		Form:    b.FormID.Hex(),
		Version: b.Version,
		Store:   b.PhysicalStoreID,
	})
}

// HandleReleaseVersion drops one version's record store.
// DELETE /forms/{id}/versions/{version}
func (h *Handler) HandleReleaseVersion(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid form id", err)
		return
	}
	v, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || v < 1 {
		h.ErrLog.LogBadRequest(w, r, "invalid version", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Svc.ReleaseVersion(ctx, auth.CallerFromContext(ctx), id, v); err != nil {
		h.ErrLog.Render(w, r, "release form version", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRelease drops the record stores of every version.
// POST /forms/{id}/release
func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid form id", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Svc.ReleaseForm(ctx, auth.CallerFromContext(ctx), id); err != nil {
		h.ErrLog.Render(w, r, "release form", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
