package login_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	uierrors "github.com/dalemusser/insighthub/internal/app/features/errors"
	"github.com/dalemusser/insighthub/internal/app/features/login"
	"github.com/dalemusser/insighthub/internal/app/store/audit"
	userstore "github.com/dalemusser/insighthub/internal/app/store/users"
	"github.com/dalemusser/insighthub/internal/app/system/auditlog"
	"github.com/dalemusser/insighthub/internal/app/system/auth"
	"github.com/dalemusser/insighthub/internal/app/system/ratelimit"
	"github.com/dalemusser/insighthub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeUsers struct {
	byEmail map[string]models.User
	err     error
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, userstore.ErrNotFound
	}
	return &u, nil
}

type memAudit struct{ events []audit.Event }

func (m *memAudit) Log(_ context.Context, e audit.Event) error {
	m.events = append(m.events, e)
	return nil
}

func hash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(h)
}

type env struct {
	handler *login.Handler
	sm      *auth.SessionManager
	audit   *memAudit
	users   *fakeUsers
}

func newEnv(t *testing.T, limiter *ratelimit.LoginLimiter) *env {
	t.Helper()
	logger := zap.NewNop()
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	users := &fakeUsers{byEmail: map[string]models.User{
		"ann@example.com": {ID: "u-ann", Email: "ann@example.com", PasswordHash: hash(t, "correct-horse")},
	}}
	mem := &memAudit{}
	al := auditlog.New(mem, logger, auditlog.Config{Auth: auditlog.DestDB})
	h := login.NewHandler(users, sm, uierrors.NewErrorLogger(logger), al, limiter, "", logger)
	return &env{handler: h, sm: sm, audit: mem, users: users}
}

func post(h *login.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "192.0.2.1:4000"
	rec := httptest.NewRecorder()
	h.HandleLoginPost(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" {
			return c
		}
	}
	return nil
}

func TestHandleLoginPost_Success(t *testing.T) {
	e := newEnv(t, nil)

	rec := post(e.handler, url.Values{"email": {"  Ann@Example.com "}, "password": {"correct-horse"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["success"] != true || body["redirectPath"] != "/dashboard" {
		t.Errorf("body: %v", body)
	}

	c := sessionCookie(rec)
	if c == nil {
		t.Fatal("expected session cookie")
	}
	claims, ok := e.sm.Codec().Verify(c.Value)
	if !ok || claims.Subject != "u-ann" {
		t.Errorf("cookie should carry user id, got %+v ok=%v", claims, ok)
	}

	if len(e.audit.events) != 1 || e.audit.events[0].EventType != audit.EventLoginSuccess {
		t.Errorf("audit: %+v", e.audit.events)
	}
}

func TestHandleLoginPost_MissingFields(t *testing.T) {
	e := newEnv(t, nil)

	for _, form := range []url.Values{
		{"email": {"ann@example.com"}},
		{"password": {"x"}},
		{},
	} {
		rec := post(e.handler, form)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("form %v: status %d", form, rec.Code)
		}
		if got := decode(t, rec)["error"]; got != "Email and password are required." {
			t.Errorf("form %v: error %q", form, got)
		}
	}
}

func TestHandleLoginPost_InvalidCredentialsShareOneMessage(t *testing.T) {
	e := newEnv(t, nil)

	unknown := post(e.handler, url.Values{"email": {"ghost@example.com"}, "password": {"whatever"}})
	wrong := post(e.handler, url.Values{"email": {"ann@example.com"}, "password": {"wrong-password"}})

	for name, rec := range map[string]*httptest.ResponseRecorder{"unknown": unknown, "wrong": wrong} {
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status %d", name, rec.Code)
		}
		if got := decode(t, rec)["error"]; got != "Invalid credentials." {
			t.Errorf("%s: error %q", name, got)
		}
		if sessionCookie(rec) != nil {
			t.Errorf("%s: no cookie expected", name)
		}
	}

	if len(e.audit.events) != 2 ||
		e.audit.events[0].EventType != audit.EventLoginFailedUserNotFound ||
		e.audit.events[1].EventType != audit.EventLoginFailedWrongPassword {
		t.Errorf("audit: %+v", e.audit.events)
	}
}

func TestHandleLoginPost_StoreError(t *testing.T) {
	e := newEnv(t, nil)
	e.users.err = errors.New("pool closed")

	rec := post(e.handler, url.Values{"email": {"ann@example.com"}, "password": {"correct-horse"}})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "pool closed") {
		t.Error("internal error detail must not leak")
	}
}

func TestHandleLoginPost_RateLimited(t *testing.T) {
	limiter := ratelimit.NewLoginLimiter(2, time.Minute)
	t.Cleanup(limiter.Close)
	e := newEnv(t, limiter)

	form := url.Values{"email": {"bob@example.com"}, "password": {"nope"}}
	post(e.handler, form)
	post(e.handler, form)
	rec := post(e.handler, form)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status: got %d", rec.Code)
	}
	if decode(t, rec)["error"] == "" {
		t.Error("expected error message")
	}
	last := e.audit.events[len(e.audit.events)-1]
	if last.EventType != audit.EventLoginFailedRateLimit {
		t.Errorf("last audit event: %s", last.EventType)
	}
}
