package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/formhub/internal/app/system/registry"
	"github.com/dalemusser/formhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger checks a record backend that lives outside MongoDB (sqlite).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client   *mongo.Client
	Backend  string
	Records  Pinger
	Registry *registry.Registry
	Log      *zap.Logger
}

// NewHandler constructs a health Handler. records may be nil when the record
// backend is MongoDB itself or in memory.
func NewHandler(client *mongo.Client, backend string, records Pinger, reg *registry.Registry, logger *zap.Logger) *Handler {
	return &Handler{
		Client:   client,
		Backend:  backend,
		Records:  records,
		Registry: reg,
		Log:      logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Backend  string `json:"record_backend"`
	Bindings int    `json:"bindings"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "record_backend":"mongo", "bindings":12 }
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
		Backend:  h.Backend,
	}
	if h.Registry != nil {
		resp.Bindings = h.Registry.Len()
	}

	err := h.Client.Ping(ctx, readpref.Primary())
	if err == nil && h.Records != nil {
		err = h.Records.Ping(ctx)
	}
	if err != nil {
		h.Log.Error("health-check: ping failed", zap.String("record_backend", h.Backend), zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	_ = json.NewEncoder(w).Encode(resp)
}
