package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/kanban/internal/model"
)

func newTestRateLimiter(t *testing.T, r rate.Limit, burst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{Rate: r, Burst: burst, CleanupInterval: time.Minute})
	t.Cleanup(rl.Stop)
	return rl
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serveAs(handler http.Handler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	if userID != "" {
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_AllowsRequestsWithinBurst(t *testing.T) {
	handler := newTestRateLimiter(t, 1, 5).Middleware()(okHandler())

	for i := range 5 {
		if w := serveAs(handler, "user-1"); w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_Returns429JSONWithRetryAfter(t *testing.T) {
	handler := newTestRateLimiter(t, 1, 1).Middleware()(okHandler())

	serveAs(handler, "user-1")
	w := serveAs(handler, "user-1")

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want %q", got, "1")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeRateLimitExceeded {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimitExceeded)
	}
}

// 他ユーザーの上限は影響しない
func TestRateLimitMiddleware_IsolatesUsers(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 1)
	handler := rl.Middleware()(okHandler())

	serveAs(handler, "user-a")
	if w := serveAs(handler, "user-a"); w.Code != http.StatusTooManyRequests {
		t.Errorf("user-a second request: status = %d, want 429", w.Code)
	}
	if w := serveAs(handler, "user-b"); w.Code != http.StatusOK {
		t.Errorf("user-b first request: status = %d, want 200", w.Code)
	}
	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount() = %d, want 2", rl.LimiterCount())
	}
}

func TestRateLimitMiddleware_NoUserID_Returns401(t *testing.T) {
	handler := newTestRateLimiter(t, 1, 1).Middleware()(okHandler())

	if w := serveAs(handler, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 1)
	rl.limiterFor("stale-user")

	rl.mu.Lock()
	rl.limiters["stale-user"].lastAccess = time.Now().Add(-time.Hour)
	rl.mu.Unlock()
	rl.limiterFor("fresh-user")

	rl.cleanup()

	if rl.LimiterCount() != 1 {
		t.Errorf("LimiterCount() = %d, want 1", rl.LimiterCount())
	}
}

func TestRateLimiterConfigPerMinute(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(120)
	if cfg.Rate != rate.Limit(2) {
		t.Errorf("Rate = %v, want 2", cfg.Rate)
	}
	if cfg.Burst != 120 {
		t.Errorf("Burst = %d, want 120", cfg.Burst)
	}

	if got := RateLimiterConfigPerMinute(0); got.Burst != 120 {
		t.Errorf("non-positive limit should fall back to 120, got %d", got.Burst)
	}
	if got := DefaultRateLimiterConfig(); got.Burst != 120 {
		t.Errorf("DefaultRateLimiterConfig().Burst = %d, want 120", got.Burst)
	}
}
