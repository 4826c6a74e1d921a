package reports_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	uierrors "github.com/dalemusser/insighthub/internal/app/features/errors"
	"github.com/dalemusser/insighthub/internal/app/features/reports"
	"github.com/dalemusser/insighthub/internal/app/policy/reportpolicy"
	"github.com/dalemusser/insighthub/internal/app/system/powerbi"
	"github.com/dalemusser/insighthub/internal/domain/models"
	"github.com/dalemusser/insighthub/internal/testutil"
	"go.uber.org/zap"
)

type fakeGate struct {
	report *models.Report
	err    error
}

func (g fakeGate) Authorize(context.Context, string, string) (*models.Report, error) {
	return g.report, g.err
}

type fakeBroker struct {
	embed *powerbi.Embed
	err   error
	calls int
}

func (b *fakeBroker) Embed(context.Context, string) (*powerbi.Embed, error) {
	b.calls++
	return b.embed, b.err
}

type fakeLister struct {
	reports []models.Report
	err     error
}

func (l fakeLister) ListForUser(context.Context, string) ([]models.Report, error) {
	return l.reports, l.err
}

var ledger = &models.Report{
	ID: "r1", Title: "General Ledger", PowerBIReportID: "pbi-1",
	Type: models.ReportTypeAccounting, Description: "<b>Monthly</b> close",
}

func newHandler(gate reports.Authorizer, broker reports.EmbedBroker, lister reports.Lister) *reports.Handler {
	logger := zap.NewNop()
	return reports.NewHandler(gate, broker, lister, uierrors.NewErrorLogger(logger), nil, logger)
}

func embedRequest(id string) *http.Request {
	req := testutil.NewAuthenticatedRequest("GET", "/reports/"+id, testutil.TestUser{ID: "u1"})
	return testutil.WithChiURLParam(req, "externalReportId", id)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestServeEmbed_Success(t *testing.T) {
	broker := &fakeBroker{embed: &powerbi.Embed{
		EmbedToken: "tok", EmbedURL: "https://embed/1", ReportID: "pbi-1", Name: "GL",
		Expiration: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	h := newHandler(fakeGate{report: ledger}, broker, nil)

	rec := httptest.NewRecorder()
	h.ServeEmbed(rec, embedRequest("pbi-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	want := map[string]any{
		"embedToken": "tok", "embedUrl": "https://embed/1", "reportId": "pbi-1", "name": "GL",
		"title": "General Ledger", "description": "Monthly close", "type": "Accounting",
		"expiration": "2030-01-01T00:00:00Z",
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s: got %v, want %v", k, body[k], v)
		}
	}
}

func TestServeEmbed_MissingID(t *testing.T) {
	broker := &fakeBroker{}
	h := newHandler(fakeGate{report: ledger}, broker, nil)

	req := testutil.NewAuthenticatedRequest("GET", "/reports/", testutil.TestUser{ID: "u1"})
	rec := httptest.NewRecorder()
	h.ServeEmbed(rec, testutil.WithChiURLParam(req, "externalReportId", " "))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", rec.Code)
	}
	if decode(t, rec)["error"] != "Missing report ID in URL" {
		t.Errorf("body: %s", rec.Body.String())
	}
}

func TestServeEmbed_DenialsShareOneMessage(t *testing.T) {
	for _, denial := range []error{reportpolicy.ErrReportNotFound, reportpolicy.ErrNoGrant} {
		broker := &fakeBroker{}
		h := newHandler(fakeGate{err: denial}, broker, nil)

		rec := httptest.NewRecorder()
		h.ServeEmbed(rec, embedRequest("pbi-1"))

		if rec.Code != http.StatusForbidden {
			t.Errorf("%v: status %d", denial, rec.Code)
		}
		if got := decode(t, rec)["error"]; got != "Access denied or report not found." {
			t.Errorf("%v: error %q", denial, got)
		}
		if broker.calls != 0 {
			t.Errorf("%v: broker must not be called", denial)
		}
	}
}

func TestServeEmbed_GateDatabaseError(t *testing.T) {
	broker := &fakeBroker{}
	h := newHandler(fakeGate{err: errors.New("timeout acquiring connection")}, broker, nil)

	rec := httptest.NewRecorder()
	h.ServeEmbed(rec, embedRequest("pbi-1"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d", rec.Code)
	}
	if broker.calls != 0 {
		t.Error("broker must not be called")
	}
}

func TestServeEmbed_ProviderErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "status passed through",
			err:        &powerbi.ProviderError{Step: powerbi.StepAccessToken, StatusCode: 401, Message: "invalid client secret"},
			wantStatus: 401,
			wantMsg:    "Failed to get embed details: invalid client secret",
		},
		{
			name:       "transport failure",
			err:        &powerbi.ProviderError{Step: powerbi.StepEmbedToken, Message: "connection reset"},
			wantStatus: 500,
			wantMsg:    "Failed to get embed details: connection reset",
		},
		{
			name:       "bad body on 200",
			err:        &powerbi.ProviderError{Step: powerbi.StepReport, StatusCode: 200, Message: "decode response: EOF"},
			wantStatus: 500,
			wantMsg:    "Failed to get embed details: decode response: EOF",
		},
		{
			name:       "other error",
			err:        context.DeadlineExceeded,
			wantStatus: 500,
			wantMsg:    "Failed to get embed details: context deadline exceeded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(fakeGate{report: ledger}, &fakeBroker{err: tt.err}, nil)

			rec := httptest.NewRecorder()
			h.ServeEmbed(rec, embedRequest("pbi-1"))

			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decode(t, rec)["error"]; got != tt.wantMsg {
				t.Errorf("error: got %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestServeList_SplitsByType(t *testing.T) {
	lister := fakeLister{reports: []models.Report{
		*ledger,
		{ID: "r2", Title: "Scrap", PowerBIReportID: "pbi-2", Type: models.ReportTypeManufacturing},
		{ID: "r3", Title: "Payables", PowerBIReportID: "pbi-3", Type: models.ReportTypeAccounting},
	}}
	h := newHandler(nil, nil, lister)

	rec := httptest.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/reports", testutil.TestUser{ID: "u1"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body struct {
		Accounting    []map[string]any `json:"accounting"`
		Manufacturing []map[string]any `json:"manufacturing"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Accounting) != 2 || len(body.Manufacturing) != 1 {
		t.Fatalf("split: %d accounting, %d manufacturing", len(body.Accounting), len(body.Manufacturing))
	}
	if body.Accounting[0]["powerBiReportId"] != "pbi-1" || body.Accounting[0]["description"] != "Monthly close" {
		t.Errorf("first accounting item: %v", body.Accounting[0])
	}
}

func TestServeList_EmptyListsAreArrays(t *testing.T) {
	h := newHandler(nil, nil, fakeLister{})

	rec := testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/reports", testutil.TestUser{ID: "u1"}))

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"accounting":[]`)
	rec.AssertContains(t, `"manufacturing":[]`)
}

func TestServeList_StoreError(t *testing.T) {
	h := newHandler(nil, nil, fakeLister{err: errors.New("boom")})

	rec := testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/reports", testutil.TestUser{ID: "u1"}))

	rec.AssertStatus(t, http.StatusInternalServerError)
	rec.AssertNotContains(t, "boom")
}
