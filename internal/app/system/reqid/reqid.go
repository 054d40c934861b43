// Package reqid tags every request with an id that handlers and logs share.
package reqid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Header carries the request id in both directions. An incoming value is
// kept so ids survive a proxy hop.
const Header = "X-Request-ID"

type ctxKey struct{}

// Middleware assigns the request id and echoes it in the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// FromContext returns the request id, or "" outside a request.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
