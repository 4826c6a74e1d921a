// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//
// AppConfig carries everything specific to InsightHub: the Postgres
// connection, session cookie settings, Power BI service-principal
// credentials, login throttling and audit destinations.
type AppConfig struct {
	// Postgres connection configuration
	PostgresHost             string
	PostgresPort             int
	PostgresUser             string
	PostgresPassword         string
	PostgresDatabase         string
	PostgresSSLMode          string        // disable, require, verify-full, ...
	PostgresMaxConns         int32         // pool upper bound
	PostgresMinConns         int32         // connections kept open when idle
	PostgresMaxConnIdle      time.Duration // idle connections are closed after this
	PostgresConnectTimeout   time.Duration
	PostgresStatementTimeout time.Duration // sent as the statement_timeout runtime param
	PostgresSearchPath       string        // sent as the search_path runtime param

	// Session management configuration
	SessionKey     string        // HMAC secret for session tokens (32+ chars)
	SessionName    string        // Cookie name (default: session)
	SessionDomain  string        // Cookie domain (blank means current host)
	SessionTTL     time.Duration // Lifetime of an issued session
	SessionSliding bool          // Reissue the cookie with a fresh expiry on each request

	// Power BI service principal
	PowerBITenantID      string
	PowerBIClientID      string
	PowerBIClientSecret  string
	PowerBIWorkspaceID   string
	PowerBIAuthorityURL  string
	PowerBIAPIURL        string
	PowerBIScope         string
	PowerBITokenRetries  int
	PowerBITokenCache    bool
	PowerBITimeout       time.Duration
	PowerBIRetryInterval time.Duration

	// Login throttling
	LoginRateLimit  int           // attempts per window per client IP
	LoginRateWindow time.Duration // window for LoginRateLimit

	// Honor X-Forwarded-For / X-Real-IP. Enable only behind a proxy that
	// overwrites them; otherwise clients can pick their own IP.
	TrustProxy bool

	// Audit logging destinations: all, db, log or off
	AuditLogAuth    string
	AuditLogReports string

	// Audit retention: events older than AuditRetention are deleted every
	// AuditRetentionInterval. Zero retention keeps everything.
	AuditRetention         time.Duration
	AuditRetentionInterval time.Duration

	// Where the browser goes after a successful login
	DashboardPath string
}
