package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/formhub/internal/app/system/auth"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testSessionKey = "test-session-key-must-be-32-chars-long"

func newTestIdentity(t *testing.T, header string) *auth.Identity {
	t.Helper()
	id, err := auth.NewIdentity(
		testSessionKey,
		"test-session",
		"",
		header,
		false,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("failed to create identity: %v", err)
	}
	return id
}

// issueSession signs a session cookie for userID the way the login service
// does: a gorilla cookie store under key, carrying the authenticated flag and
// the user id.
func issueSession(t *testing.T, key string, userID primitive.ObjectID) []*http.Cookie {
	t.Helper()
	store := sessions.NewCookieStore([]byte(key))
	req := httptest.NewRequest("GET", "/", nil)
	sess, err := store.New(req, "test-session")
	if err != nil && sess == nil {
		t.Fatalf("new session: %v", err)
	}
	sess.Values["is_authenticated"] = true
	sess.Values["user_id"] = userID.Hex()
	rec := httptest.NewRecorder()
	if err := sess.Save(req, rec); err != nil {
		t.Fatalf("save session: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}
	return cookies
}

// captureCaller returns a handler that records the caller it sees.
func captureCaller(got *primitive.ObjectID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = auth.CallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestLoadCaller_Anonymous(t *testing.T) {
	id := newTestIdentity(t, "")

	var got primitive.ObjectID
	id.LoadCaller(captureCaller(&got)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if !got.IsZero() {
		t.Errorf("expected anonymous caller, got %s", got.Hex())
	}
}

func TestLoadCaller_FromSession(t *testing.T) {
	id := newTestIdentity(t, "")
	user := primitive.NewObjectID()

	// Issue a cookie, then replay it on a fresh request.
	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range issueSession(t, testSessionKey, user) {
		req.AddCookie(c)
	}
	var got primitive.ObjectID
	id.LoadCaller(captureCaller(&got)).ServeHTTP(httptest.NewRecorder(), req)

	if got != user {
		t.Errorf("caller: got %s, want %s", got.Hex(), user.Hex())
	}
}

func TestLoadCaller_ForeignKeyCookieIsAnonymous(t *testing.T) {
	other := newTestIdentity(t, "")

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range issueSession(t, "another-session-key-that-is-32-chars!!", primitive.NewObjectID()) {
		req.AddCookie(c)
	}

	var got primitive.ObjectID
	other.LoadCaller(captureCaller(&got)).ServeHTTP(httptest.NewRecorder(), req)
	if !got.IsZero() {
		t.Error("cookie signed with another key must not authenticate")
	}
}

func TestLoadCaller_HeaderWins(t *testing.T) {
	id := newTestIdentity(t, "X-Caller-ID")
	user := primitive.NewObjectID()

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Caller-ID", user.Hex())
	var got primitive.ObjectID
	id.LoadCaller(captureCaller(&got)).ServeHTTP(httptest.NewRecorder(), req)
	if got != user {
		t.Errorf("caller: got %s, want %s", got.Hex(), user.Hex())
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Caller-ID", "not-hex")
	got = primitive.NewObjectID()
	id.LoadCaller(captureCaller(&got)).ServeHTTP(httptest.NewRecorder(), req)
	if !got.IsZero() {
		t.Error("malformed header must be anonymous")
	}
}

func TestRequireCaller(t *testing.T) {
	id := newTestIdentity(t, "X-Caller-ID")
	h := id.LoadCaller(id.RequireCaller(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/projects", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: got %d, want 401", rec.Code)
	}

	req := httptest.NewRequest("POST", "/projects", nil)
	req.Header.Set("X-Caller-ID", primitive.NewObjectID().Hex())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("signed in: got %d, want 204", rec.Code)
	}
}

func TestNewIdentity_EmptyKeyGeneratesOne(t *testing.T) {
	if _, err := auth.NewIdentity("", "", "", "", false, nil); err != nil {
		t.Fatalf("NewIdentity with empty key failed: %v", err)
	}
}
