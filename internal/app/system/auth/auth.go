package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Caller identity                                                             |
|                                                                             |
| Login, passwords and user records live in an external service. It signs a  |
| session cookie with the shared session key and stores the caller's user id |
| under "user_id". Deployments behind an authenticating proxy can instead    |
| name a trusted header carrying the id. Requests without either are         |
| anonymous (primitive.NilObjectID).                                          |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	DefaultSessionName = "formhub-session"

	isAuthKey = "is_authenticated"
	userIDKey = "user_id"
)

type ctxKey string

const callerKey ctxKey = "caller"

// Identity resolves the caller of each request.
type Identity struct {
	store        *sessions.CookieStore
	sessionName  string
	callerHeader string
	log          *zap.Logger
}

// NewIdentity builds the session store used to read caller cookies.
//
// An empty sessionKey generates a random key; cookies issued under it do not
// survive a restart, which is only acceptable in development. callerHeader
// may be empty to disable header identity.
func NewIdentity(sessionKey, sessionName, domain, callerHeader string, secure bool, logger *zap.Logger) (*Identity, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := []byte(sessionKey)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
		if key == nil {
			return nil, fmt.Errorf("generate session key: random source unavailable")
		}
		logger.Warn("session key is empty; using a random key (sessions will not survive restart)")
	} else if len(key) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(key)))
	}
	if sessionName == "" {
		sessionName = DefaultSessionName
	}

	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}

	logger.Info("caller identity initialized",
		zap.String("session_name", sessionName),
		zap.String("caller_header", callerHeader),
		zap.Bool("secure", secure))

	return &Identity{
		store:        store,
		sessionName:  sessionName,
		callerHeader: strings.TrimSpace(callerHeader),
		log:          logger,
	}, nil
}

// CallerFromContext returns the caller id placed by LoadCaller, or
// primitive.NilObjectID for anonymous requests.
func CallerFromContext(ctx context.Context) primitive.ObjectID {
	if id, ok := ctx.Value(callerKey).(primitive.ObjectID); ok {
		return id
	}
	return primitive.NilObjectID
}

// WithCaller returns a copy of ctx carrying id.
func WithCaller(ctx context.Context, id primitive.ObjectID) context.Context {
	return context.WithValue(ctx, callerKey, id)
}

// LoadCaller injects the caller id into the request context. The trusted
// header wins over the session cookie. Malformed ids are treated as
// anonymous.
func (i *Identity) LoadCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := i.resolve(r); ok {
			r = r.WithContext(WithCaller(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (i *Identity) resolve(r *http.Request) (primitive.ObjectID, bool) {
	if i.callerHeader != "" {
		if v := strings.TrimSpace(r.Header.Get(i.callerHeader)); v != "" {
			id, err := primitive.ObjectIDFromHex(v)
			if err != nil {
				i.log.Debug("ignoring malformed caller header", zap.String("header", i.callerHeader))
				return primitive.NilObjectID, false
			}
			return id, true
		}
	}

	sess, err := i.store.Get(r, i.sessionName)
	if err != nil {
		// Tampered or stale cookie: anonymous.
		return primitive.NilObjectID, false
	}
	if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
		return primitive.NilObjectID, false
	}
	raw, _ := sess.Values[userIDKey].(string)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// RequireCaller rejects anonymous requests with a JSON 401.
func (i *Identity) RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CallerFromContext(r.Context()).IsZero() {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
