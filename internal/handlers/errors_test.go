package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"odo-backend/internal/models"
	"odo-backend/internal/services"
)

func TestHandleServiceErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"track_id": "required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unauthorized", &services.UnauthorizedError{Message: "Invalid username or password"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", &services.ForbiddenError{Message: "nope"}, http.StatusForbidden, "FORBIDDEN"},
		{"not found", &services.NotFoundError{Message: "Group not found"}, http.StatusNotFound, "NOT_FOUND"},
		{"session rejected", &services.SessionRejectedError{Reason: services.ReasonSuperseded}, http.StatusUnauthorized, "SESSION_REJECTED"},
		{"internal", http.ErrBodyNotAllowed, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, c := range cases {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set("X-Request-ID", "req-123")

		handleServiceError(w, r, c.err)

		if w.Code != c.status {
			t.Fatalf("%s: expected status %d, got %d", c.name, c.status, w.Code)
		}
		var resp models.ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("%s: bad body: %v", c.name, err)
		}
		if resp.Error.Code != c.code {
			t.Fatalf("%s: expected code %q, got %q", c.name, c.code, resp.Error.Code)
		}
		if resp.Error.RequestID != "req-123" {
			t.Fatalf("%s: request id must ride along", c.name)
		}
	}
}

func TestSessionRejectionCarriesConflictFlag(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	handleServiceError(w, r, &services.SessionRejectedError{Reason: services.ReasonSameIP, ConflictingIP: true})

	var resp models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Error.ConflictingIP == nil || !*resp.Error.ConflictingIP {
		t.Fatalf("expected conflicting_ip true, got %+v", resp.Error)
	}
	if resp.Error.Message != services.ReasonSameIP {
		t.Fatalf("the classified reason is the client-facing message")
	}

	// The flag is present, and false, for the other rejection classes.
	w = httptest.NewRecorder()
	handleServiceError(w, r, &services.SessionRejectedError{Reason: services.ReasonSuperseded})
	resp = models.ErrorResponse{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Error.ConflictingIP == nil || *resp.Error.ConflictingIP {
		t.Fatalf("superseded rejections must report conflicting_ip false")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:54321"
	if got := clientIP(r); got != "10.1.2.3" {
		t.Fatalf("expected the port stripped, got %q", got)
	}

	r.RemoteAddr = "10.1.2.3"
	if got := clientIP(r); got != "10.1.2.3" {
		t.Fatalf("bare addresses pass through, got %q", got)
	}
}
