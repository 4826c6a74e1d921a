package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/insighthub/internal/app/store/audit"
	reportstore "github.com/dalemusser/insighthub/internal/app/store/reports"
	userstore "github.com/dalemusser/insighthub/internal/app/store/users"
	"github.com/dalemusser/insighthub/internal/app/system/auth"
	"github.com/dalemusser/insighthub/internal/app/system/powerbi"
	"github.com/dalemusser/insighthub/internal/app/system/ratelimit"
	"github.com/dalemusser/insighthub/internal/domain/models"
	"github.com/dalemusser/insighthub/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type memUsers struct {
	byID map[string]*models.User
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, userstore.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == strings.ToLower(strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return nil, userstore.ErrNotFound
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	u, ok := m.byID[id]
	if !ok {
		return userstore.ErrNotFound
	}
	u.PasswordHash = hash
	u.IsPasswordChanged = true
	return nil
}

type memCatalog struct {
	reports []models.Report
	grants  map[string]bool // userID + "/" + reportID
}

func (m *memCatalog) GetByExternalID(_ context.Context, id string) (*models.Report, error) {
	for i := range m.reports {
		if m.reports[i].PowerBIReportID == id {
			r := m.reports[i]
			return &r, nil
		}
	}
	return nil, reportstore.ErrNotFound
}

func (m *memCatalog) HasAccess(_ context.Context, userID, reportID string) (bool, error) {
	return m.grants[userID+"/"+reportID], nil
}

func (m *memCatalog) ListForUser(_ context.Context, userID string) ([]models.Report, error) {
	var out []models.Report
	for _, r := range m.reports {
		if m.grants[userID+"/"+r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

type noEvents struct{}

func (noEvents) Recent(context.Context, string, int) ([]audit.Event, error) { return nil, nil }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testApp struct {
	handler  http.Handler
	provider *testutil.FakeProvider
}

func newApp(t *testing.T) *testApp {
	t.Helper()
	return newAppWithProxy(t, false)
}

func newAppWithProxy(t *testing.T, trustProxy bool) *testApp {
	t.Helper()
	logger := zap.NewNop()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	users := &memUsers{byID: map[string]*models.User{
		"u-1": {ID: "u-1", Name: "Dana", Email: "dana@example.com", PasswordHash: string(hash), Role: "analyst"},
	}}
	catalog := &memCatalog{
		reports: []models.Report{{ID: "r-1", Title: "Ledger", PowerBIReportID: "pbi-1", Type: models.ReportTypeAccounting}},
		grants:  map[string]bool{"u-1/r-1": true},
	}

	fp := testutil.NewFakeProvider(t)
	broker, err := powerbi.New(powerbi.Config{
		TenantID:     testutil.FakeTenant,
		ClientID:     "client",
		ClientSecret: "secret",
		WorkspaceID:  testutil.FakeWorkspace,
		AuthorityURL: fp.AuthorityURL(),
		APIURL:       fp.APIURL(),
	}, powerbi.NewHTTPClient(5*time.Second), logger)
	if err != nil {
		t.Fatal(err)
	}

	sm, err := auth.NewSessionManager(strings.Repeat("s", 32), "session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatal(err)
	}
	limiter := ratelimit.NewLoginLimiter(10, time.Minute)
	t.Cleanup(limiter.Close)

	r := buildRouter(routerDeps{
		Sessions:      sm,
		Users:         users,
		Catalog:       catalog,
		Broker:        broker,
		Limiter:       limiter,
		DB:            pinger{},
		Events:        noEvents{},
		DashboardPath: "/dashboard",
		TrustProxy:    trustProxy,
	}, logger)

	return &testApp{handler: r, provider: fp}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" && c.Value != "" {
			return c
		}
	}
	return nil
}

func TestRouter_LoginThenEmbed(t *testing.T) {
	a := newApp(t)

	form := url.Values{"email": {"Dana@Example.com"}, "password": {"correct-horse"}}
	req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := a.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", rec.Code, rec.Body.String())
	}
	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatal("login should set the session cookie")
	}

	req = httptest.NewRequest("GET", "/reports/pbi-1", nil)
	req.AddCookie(cookie)
	rec = a.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("embed: status %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["title"] != "Ledger" || body["embedToken"] == "" {
		t.Errorf("embed body: %v", body)
	}

	req = httptest.NewRequest("GET", "/api/user", nil)
	req.AddCookie(cookie)
	rec = a.do(req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"email":"dana@example.com"`) {
		t.Errorf("user info: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_ProtectedRoutesRequireSession(t *testing.T) {
	a := newApp(t)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/reports"},
		{"GET", "/reports/pbi-1"},
		{"GET", "/api/user"},
		{"POST", "/change-password"},
		{"GET", "/api/activity"},
	} {
		rec := a.do(httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status %d", tc.method, tc.path, rec.Code)
		}
	}
	if n := a.provider.TotalCalls(); n != 0 {
		t.Errorf("provider calls: got %d, want 0", n)
	}
}

func TestRouter_PublicRoutes(t *testing.T) {
	a := newApp(t)

	rec := a.do(httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health: status %d", rec.Code)
	}

	rec = a.do(httptest.NewRequest("POST", "/logout", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"redirectPath":"/login"`) {
		t.Errorf("logout: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_HealthReportsDatabaseDown(t *testing.T) {
	logger := zap.NewNop()
	sm, err := auth.NewSessionManager(strings.Repeat("s", 32), "", "", 0, false, logger)
	if err != nil {
		t.Fatal(err)
	}
	r := buildRouter(routerDeps{
		Sessions: sm,
		Users:    &memUsers{},
		Catalog:  &memCatalog{},
		DB:       pinger{err: errors.New("connection refused")},
	}, logger)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rec.Code)
	}
}

func TestRouter_LoginLimitIgnoresForwardedFor(t *testing.T) {
	for _, tc := range []struct {
		name       string
		trustProxy bool
		want429    bool
	}{
		{"direct", false, true},
		{"behind proxy", true, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := newAppWithProxy(t, tc.trustProxy)

			// the per-IP allowance is 10; each attempt uses a fresh email
			// and a fresh forwarded address
			limited := false
			for i := 0; i < 11; i++ {
				form := url.Values{"email": {fmt.Sprintf("ghost%d@example.com", i)}, "password": {"x"}}
				req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
				if rec := a.do(req); rec.Code == http.StatusTooManyRequests {
					limited = true
				}
			}
			if limited != tc.want429 {
				t.Errorf("rate limited: got %v, want %v", limited, tc.want429)
			}
		})
	}
}
