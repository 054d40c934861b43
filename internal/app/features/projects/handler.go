// internal/app/features/projects/handler.go
package projects

import (
	"context"
	"encoding/json"
	"net/http"

	uierrors "github.com/dalemusser/formhub/internal/app/features/errors"
	"github.com/dalemusser/formhub/internal/app/system/auth"
	"github.com/dalemusser/formhub/internal/app/system/formsvc"
	"github.com/dalemusser/formhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves projects and the forms inside them.
type Handler struct {
	Svc    *formsvc.Service
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(svc *formsvc.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Svc:    svc,
		ErrLog: errLog,
		Log:    logger,
	}
}

type activeRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) projectID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid project id", err)
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid JSON body", err)
		return false
	}
	return true
}

// HandleCreate creates a project owned by the caller.
// POST /projects
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in formsvc.ProjectInput
	if !h.decode(w, r, &in) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Svc.CreateProject(ctx, auth.CallerFromContext(ctx), in)
	if err != nil {
		h.ErrLog.Render(w, r, "create project", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, p)
}

// ServeList lists the caller's projects.
// GET /projects
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Svc.ListProjects(ctx, auth.CallerFromContext(ctx))
	if err != nil {
		h.ErrLog.Render(w, r, "list projects", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, list)
}

// ServeStats counts the caller's projects and forms.
// GET /projects/stats
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	st, err := h.Svc.Stats(ctx, auth.CallerFromContext(ctx))
	if err != nil {
		h.ErrLog.Render(w, r, "project stats", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, st)
}

// ServeProject returns a project the caller may see.
// GET /projects/{id}
func (h *Handler) ServeProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Svc.GetProject(ctx, auth.CallerFromContext(ctx), id)
	if err != nil {
		h.ErrLog.Render(w, r, "get project", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, p)
}

// HandleUpdate applies a ProjectPatch.
// PUT /projects/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	var patch formsvc.ProjectPatch
	if !h.decode(w, r, &patch) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Svc.UpdateProject(ctx, auth.CallerFromContext(ctx), id, patch)
	if err != nil {
		h.ErrLog.Render(w, r, "update project", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, p)
}

// HandleSetActive activates or deactivates the project and its forms.
// POST /projects/{id}/active
func (h *Handler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	var req activeRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, err := h.Svc.SetProjectActive(ctx, auth.CallerFromContext(ctx), id, req.Active)
	if err != nil {
		h.ErrLog.Render(w, r, "set project active", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, p)
}

// HandleClone copies the project's active forms into a new project.
// POST /projects/{id}/clone
func (h *Handler) HandleClone(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	var in formsvc.ProjectInput
	if !h.decode(w, r, &in) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	p, err := h.Svc.CloneProject(ctx, auth.CallerFromContext(ctx), id, in)
	if err != nil {
		h.ErrLog.Render(w, r, "clone project", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, p)
}

// HandleDelete removes the project with its forms and records.
// DELETE /projects/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete project")
	defer cancel()

	p, err := h.Svc.DeleteProject(ctx, auth.CallerFromContext(ctx), id)
	if err != nil {
		h.ErrLog.Render(w, r, "delete project", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, p)
}

// ServeForms lists the project's forms visible to the caller.
// GET /projects/{id}/forms
func (h *Handler) ServeForms(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Svc.ListForms(ctx, auth.CallerFromContext(ctx), id)
	if err != nil {
		h.ErrLog.Render(w, r, "list forms", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, list)
}

// HandleCreateForm creates a form at version 1.
// POST /projects/{id}/forms
func (h *Handler) HandleCreateForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	var in formsvc.FormInput
	if !h.decode(w, r, &in) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	f, err := h.Svc.CreateForm(ctx, auth.CallerFromContext(ctx), id, in)
	if err != nil {
		h.ErrLog.Render(w, r, "create form", err)
		return
	}
	w.Header().Set("Location", "/forms/"+f.ID.Hex())
	uierrors.WriteJSON(w, http.StatusCreated, f)
}
