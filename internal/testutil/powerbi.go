package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// FakeProvider stands in for both the identity token endpoint and the
// Power BI REST API. Counters record how many times each endpoint was hit.
type FakeProvider struct {
	Identity *httptest.Server
	API      *httptest.Server

	TokenCalls    atomic.Int64
	GenerateCalls atomic.Int64
	ReportCalls   atomic.Int64

	mu sync.Mutex
	// status/body pairs override a response when the status is non-zero
	tokenStatus    int
	tokenBody      string
	generateStatus int
	generateBody   string
	reportStatus   int
	reportBody     string

	lastTokenForm        map[string]string
	lastTokenContentType string
	lastGenerateBody     map[string]any
	lastAuthorization    string
}

// LastTokenForm is the last form posted to the identity endpoint.
func (f *FakeProvider) LastTokenForm() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastTokenForm
}

// LastTokenContentType is the Content-Type of the last token request.
func (f *FakeProvider) LastTokenContentType() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastTokenContentType
}

// LastGenerateBody is the last JSON body posted to GenerateToken.
func (f *FakeProvider) LastGenerateBody() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastGenerateBody
}

// LastAuthorization is the Authorization header last seen by the API.
func (f *FakeProvider) LastAuthorization() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuthorization
}

// Tenant and Workspace are the ids the fake expects in its paths.
const (
	FakeTenant    = "tenant-1"
	FakeWorkspace = "ws-1"
)

// NewFakeProvider starts both fake servers; they are closed with the test.
func NewFakeProvider(t *testing.T) *FakeProvider {
	t.Helper()
	f := &FakeProvider{}

	f.Identity = httptest.NewServer(http.HandlerFunc(f.serveToken))
	f.API = httptest.NewServer(http.HandlerFunc(f.serveAPI))
	t.Cleanup(func() {
		f.Identity.Close()
		f.API.Close()
	})
	return f
}

// AuthorityURL is the identity base URL with a trailing slash.
func (f *FakeProvider) AuthorityURL() string { return f.Identity.URL + "/" }

// APIURL is the Power BI API base URL with a trailing slash.
func (f *FakeProvider) APIURL() string { return f.API.URL + "/" }

// FailToken makes the identity endpoint answer with status and body.
func (f *FakeProvider) FailToken(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenStatus, f.tokenBody = status, body
}

// FailGenerate makes GenerateToken answer with status and body.
func (f *FakeProvider) FailGenerate(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateStatus, f.generateBody = status, body
}

// FailReport makes the report metadata endpoint answer with status and body.
func (f *FakeProvider) FailReport(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reportStatus, f.reportBody = status, body
}

// TotalCalls is the number of requests across all endpoints.
func (f *FakeProvider) TotalCalls() int64 {
	return f.TokenCalls.Load() + f.GenerateCalls.Load() + f.ReportCalls.Load()
}

func (f *FakeProvider) serveToken(w http.ResponseWriter, r *http.Request) {
	n := f.TokenCalls.Add(1)

	if r.Method != http.MethodPost || r.URL.Path != "/"+FakeTenant+"/oauth2/v2.0/token" {
		http.NotFound(w, r)
		return
	}
	_ = r.ParseForm()

	f.mu.Lock()
	f.lastTokenContentType = r.Header.Get("Content-Type")
	f.lastTokenForm = map[string]string{}
	for k := range r.PostForm {
		f.lastTokenForm[k] = r.PostForm.Get(k)
	}
	status, body := f.tokenStatus, f.tokenBody
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"token_type":   "Bearer",
		"expires_in":   3599,
		"access_token": fmt.Sprintf("access-token-%d", n),
	})
}

func (f *FakeProvider) serveAPI(w http.ResponseWriter, r *http.Request) {
	prefix := "/v1.0/myorg/groups/" + FakeWorkspace + "/reports/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	f.mu.Lock()
	f.lastAuthorization = r.Header.Get("Authorization")
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(rest, "/GenerateToken"):
		n := f.GenerateCalls.Add(1)
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)

		f.mu.Lock()
		f.lastGenerateBody = in
		status, body := f.generateStatus, f.generateBody
		f.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":      fmt.Sprintf("embed-token-%d", n),
			"tokenId":    fmt.Sprintf("token-id-%d", n),
			"expiration": "2030-01-01T00:00:00Z",
		})

	case r.Method == http.MethodGet && !strings.Contains(rest, "/"):
		f.ReportCalls.Add(1)

		f.mu.Lock()
		status, body := f.reportStatus, f.reportBody
		f.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       rest,
			"name":     "PBI " + rest,
			"embedUrl": "https://app.powerbi.com/reportEmbed?reportId=" + rest,
		})

	default:
		http.NotFound(w, r)
	}
}
