package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// newTestChain はルーターと同じ順序でミドルウェアを組み立てる。
func newTestChain(buf *bytes.Buffer) http.Handler {
	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware())
	r.Use(NewLoggingMiddleware(newBufferLogger(buf), nil))
	r.Use(NewSecurityHeadersMiddleware(true))

	r.Group(func(r chi.Router) {
		r.Use(NewSessionMiddleware(tokenAuthenticator()))
		r.Get("/api/panic", func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
		r.Get("/api/ok", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	return r
}

func TestMiddlewareChain_PanicBecomes500JSON(t *testing.T) {
	var buf bytes.Buffer
	w := httptest.NewRecorder()

	newTestChain(&buf).ServeHTTP(w, requestWithSession(http.MethodGet, "/api/panic", "valid-token"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
}

func TestMiddlewareChain_SecurityHeaders(t *testing.T) {
	var buf bytes.Buffer
	w := httptest.NewRecorder()

	newTestChain(&buf).ServeHTTP(w, requestWithSession(http.MethodGet, "/api/ok", "valid-token"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Strict-Transport-Security"} {
		if w.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestMiddlewareChain_NoSession_Returns401(t *testing.T) {
	var buf bytes.Buffer
	w := httptest.NewRecorder()

	newTestChain(&buf).ServeHTTP(w, requestWithSession(http.MethodGet, "/api/ok", ""))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
