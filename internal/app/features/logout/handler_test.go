package logout_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/insighthub/internal/app/features/logout"
	"github.com/dalemusser/insighthub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func newHandler(t *testing.T) (*logout.Handler, *auth.SessionManager) {
	t.Helper()
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return logout.NewHandler(sm, nil, zap.NewNop()), sm
}

func newRouter(h *logout.Handler, sm *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sm.LoadSessionUser)
	r.Mount("/logout", logout.Routes(h))
	return r
}

func TestServeLogout_ClearsCookie(t *testing.T) {
	h, sm := newHandler(t)
	router := newRouter(h, sm)

	issue := httptest.NewRecorder()
	if err := sm.Issue(issue, "u1"); err != nil {
		t.Fatal(err)
	}

	for _, method := range []string{"GET", "POST"} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/logout", nil)
			req.AddCookie(issue.Result().Cookies()[0])
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status: got %d", rec.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body["success"] != true || body["redirectPath"] != "/login" {
				t.Errorf("body: %v", body)
			}

			// the sliding refresh must not leave a live token beside the deletion
			var sessions []*http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == "test-session" {
					sessions = append(sessions, c)
				}
			}
			if len(sessions) != 1 {
				t.Fatalf("session cookies: got %d, want 1", len(sessions))
			}
			if sessions[0].MaxAge >= 0 || sessions[0].Value != "" {
				t.Errorf("expected deletion cookie, got %+v", sessions[0])
			}
		})
	}
}

func TestServeLogout_WithoutSession(t *testing.T) {
	h, _ := newHandler(t)

	rec := httptest.NewRecorder()
	h.ServeLogout(rec, httptest.NewRequest("POST", "/logout", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d", rec.Code)
	}
}
