// Package powerbi brokers embed credentials for Power BI reports.
//
// Embed runs three provider calls in order: an app-only access token from the
// identity endpoint (client-credentials grant), a view-only embed token for
// the report, and the report metadata that carries the embed URL. Any failing
// step aborts the exchange and surfaces as a *ProviderError.
package powerbi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Defaults applied by New when the corresponding Config field is empty.
const (
	DefaultAuthorityURL  = "https://login.microsoftonline.com/"
	DefaultAPIURL        = "https://api.powerbi.com/"
	DefaultScope         = "https://analysis.windows.net/powerbi/api/.default"
	DefaultTimeout       = 30 * time.Second
	DefaultTokenRetries  = 3
	DefaultRetryInterval = 200 * time.Millisecond
)

// Config describes the service principal and workspace used for embedding.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	WorkspaceID  string

	AuthorityURL string // identity base URL, trailing slash optional
	APIURL       string // REST API base URL, trailing slash optional
	Scope        string

	// TokenRetries is the total number of attempts for the access token step.
	TokenRetries int
	// RetryInterval is the first backoff delay between token attempts.
	RetryInterval time.Duration
	// CacheToken reuses the access token until it expires.
	CacheToken bool
}

// Validate reports the first missing required field.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.TenantID) == "":
		return errors.New("powerbi: tenant id is required")
	case strings.TrimSpace(c.ClientID) == "":
		return errors.New("powerbi: client id is required")
	case c.ClientSecret == "":
		return errors.New("powerbi: client secret is required")
	case strings.TrimSpace(c.WorkspaceID) == "":
		return errors.New("powerbi: workspace id is required")
	}
	return nil
}

// TokenURL is the client-credentials endpoint for the configured tenant.
func (c Config) TokenURL() string {
	return withSlash(c.AuthorityURL) + c.TenantID + "/oauth2/v2.0/token"
}

// Embed is everything a browser needs to render one report.
type Embed struct {
	EmbedToken string
	EmbedURL   string
	ReportID   string
	Name       string
	Expiration time.Time
}

// Broker performs the embed-token exchange. It is safe for concurrent use.
type Broker struct {
	cfg   Config
	http  *http.Client
	creds *clientcredentials.Config
	log   *zap.Logger

	mu     sync.Mutex
	cached *oauth2.Token
}

// NewHTTPClient returns the outbound client used for provider calls,
// traced with otelhttp and bounded by timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// New builds a Broker. A nil client gets NewHTTPClient(DefaultTimeout).
func New(cfg Config, client *http.Client, logger *zap.Logger) (*Broker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.AuthorityURL == "" {
		cfg.AuthorityURL = DefaultAuthorityURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.AuthorityURL = withSlash(cfg.AuthorityURL)
	cfg.APIURL = withSlash(cfg.APIURL)
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}
	if cfg.TokenRetries <= 0 {
		cfg.TokenRetries = DefaultTokenRetries
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if client == nil {
		client = NewHTTPClient(DefaultTimeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Broker{
		cfg:  cfg,
		http: client,
		creds: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL(),
			Scopes:       []string{cfg.Scope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		log: logger,
	}, nil
}

// Embed returns embed credentials for the Power BI report externalID.
func (b *Broker) Embed(ctx context.Context, externalID string) (*Embed, error) {
	start := time.Now()

	access, err := b.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	et, err := b.generateEmbedToken(ctx, access, externalID)
	if err != nil {
		return nil, err
	}

	rep, err := b.getReport(ctx, access, externalID)
	if err != nil {
		return nil, err
	}

	b.log.Debug("embed token issued",
		zap.String("report_id", externalID),
		zap.Duration("elapsed", time.Since(start)))

	return &Embed{
		EmbedToken: et.Token,
		EmbedURL:   rep.EmbedURL,
		ReportID:   externalID,
		Name:       rep.Name,
		Expiration: et.Expiration,
	}, nil
}

func withSlash(s string) string {
	if s == "" || strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

/*─────────────────────────────────────────────────────────────────────────────*
| Errors                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// Exchange steps reported in ProviderError.Step.
const (
	StepAccessToken = "access token"
	StepEmbedToken  = "embed token"
	StepReport      = "report metadata"
)

// ProviderError is a failed provider call.
type ProviderError struct {
	Step       string
	StatusCode int // upstream HTTP status; 0 for transport failures
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("powerbi %s: status %d: %s", e.Step, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("powerbi %s: %s", e.Step, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// retryable reports whether another attempt could succeed.
func (e *ProviderError) retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// AsProviderError extracts a *ProviderError from err.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

