package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJWTRoundTrip(t *testing.T) {
	auth := NewJWTAuth("test-secret", time.Hour)
	userID := uuid.New()

	token, err := auth.GenerateToken(userID, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var gotID uuid.UUID
	var gotName string
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetUserID(r.Context())
		gotName, _ = r.Context().Value(UsernameKey).(string)
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotID != userID {
		t.Fatalf("expected user id in context")
	}
	if gotName != "alice" {
		t.Fatalf("expected username in context, got %q", gotName)
	}
}

func TestJWTMiddlewareRejectsBadTokens(t *testing.T) {
	auth := NewJWTAuth("test-secret", time.Hour)
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage", "Bearer not-a-jwt"},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if c.header != "" {
			r.Header.Set("Authorization", c.header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", c.name, w.Code)
		}
	}
}

func TestJWTMiddlewareRejectsExpiredToken(t *testing.T) {
	auth := NewJWTAuth("test-secret", -time.Hour)
	token, err := auth.GenerateToken(uuid.New(), "bob")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

type staticChecker struct {
	allowed bool
	err     error
}

func (s staticChecker) HasPermission(ctx context.Context, userID uuid.UUID, authKey string) (bool, error) {
	return s.allowed, s.err
}

func TestRequirePermission(t *testing.T) {
	ok := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { ok = true })

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(context.WithValue(r.Context(), UserIDKey, uuid.New()))

	w := httptest.NewRecorder()
	RequirePermission(staticChecker{allowed: true}, "history.view")(next).ServeHTTP(w, r)
	if !ok || w.Code != http.StatusOK {
		t.Fatalf("expected request through, got %d", w.Code)
	}

	ok = false
	w = httptest.NewRecorder()
	RequirePermission(staticChecker{allowed: false}, "history.view")(next).ServeHTTP(w, r)
	if ok || w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}
