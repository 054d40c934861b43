// internal/app/features/forms/handler.go
package forms

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	uierrors "github.com/dalemusser/formhub/internal/app/features/errors"
	"github.com/dalemusser/formhub/internal/app/system/formsvc"
	"github.com/dalemusser/formhub/internal/app/system/ratelimit"
	"github.com/dalemusser/formhub/internal/app/system/reqid"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves forms, their versions and their records as JSON. All
// authorization happens in formsvc; handlers only decode, call and render.
type Handler struct {
	Svc    *formsvc.Service
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger

	// Submit limits record creation per client IP. Nil disables it.
	Submit *ratelimit.Limiter
	// Proxies whose forwarding headers name the client IP. Empty means
	// the peer address is the client.
	Proxies ratelimit.Proxies
}

func NewHandler(svc *formsvc.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Svc:    svc,
		ErrLog: errLog,
		Log:    logger,
	}
}

// formID parses the {id} URL parameter.
func formID(r *http.Request) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
}

// versionParam reads the optional ?version=N. Absent means current.
func versionParam(r *http.Request) (*int, error) {
	raw := r.URL.Query().Get("version")
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return nil, fmt.Errorf("version must be a positive integer")
	}
	return &v, nil
}

// decode reads a JSON request body into v. Numbers stay json.Number so
// record values keep their literal digits until the field kind decides.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// target parses the form id and optional version, rendering a 400 and
// returning ok=false when either is malformed.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, *int, bool) {
	id, err := formID(r)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid form id", err)
		return primitive.NilObjectID, nil, false
	}
	version, err := versionParam(r)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid version", err)
		return primitive.NilObjectID, nil, false
	}
	return id, version, true
}

// limitSubmissions rejects record creation from a client that has used up
// its window with 429 and a Retry-After header.
func (h *Handler) limitSubmissions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := h.Proxies.ClientIP(r)
		if !h.Submit.Allow(ip) {
			secs := int(h.Submit.RetryAfter(ip).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			h.Log.Info("record submission rate limited", zap.String("ip", ip))
			uierrors.WriteJSON(w, http.StatusTooManyRequests, uierrors.Body{
				Error:     "too many submissions, retry later",
				RequestID: reqid.FromContext(r.Context()),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
