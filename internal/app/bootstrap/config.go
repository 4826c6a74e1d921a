// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/insighthub/internal/app/system/auditlog"
	"github.com/dalemusser/insighthub/internal/app/system/powerbi"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for InsightHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: postgres_host, session_key, etc.
//   - Environment variables: INSIGHTHUB_POSTGRES_HOST, INSIGHTHUB_SESSION_KEY, etc.
//   - Command-line flags: --postgres_host, --session_key, etc.
var appConfigKeys = []config.AppKey{
	// Postgres
	{Name: "postgres_host", Default: "", Desc: "Postgres host"},
	{Name: "postgres_port", Default: 5432, Desc: "Postgres port"},
	{Name: "postgres_user", Default: "", Desc: "Postgres user"},
	{Name: "postgres_password", Default: "", Desc: "Postgres password"},
	{Name: "postgres_database", Default: "", Desc: "Postgres database name"},
	{Name: "postgres_sslmode", Default: "require", Desc: "Postgres sslmode (disable, require, verify-full, ...)"},
	{Name: "postgres_max_conns", Default: 20, Desc: "Max pooled connections (default: 20)"},
	{Name: "postgres_min_conns", Default: 0, Desc: "Min pooled connections (default: 0)"},
	{Name: "postgres_max_conn_idle", Default: "30s", Desc: "Close idle connections after this long"},
	{Name: "postgres_connect_timeout", Default: "5s", Desc: "Timeout for establishing a connection"},
	{Name: "postgres_statement_timeout", Default: "30s", Desc: "Server-side statement_timeout"},
	{Name: "postgres_search_path", Default: "ssot, web_application, public", Desc: "Schema search_path"},

	// Sessions
	{Name: "session_key", Default: "", Desc: "Session signing secret (32+ random chars)"},
	{Name: "session_name", Default: "session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_ttl", Default: "168h", Desc: "Session lifetime"},
	{Name: "session_sliding", Default: true, Desc: "Refresh session expiry on each request"},

	// Power BI
	{Name: "powerbi_tenant_id", Default: "", Desc: "Azure AD tenant id"},
	{Name: "powerbi_client_id", Default: "", Desc: "Service principal client id"},
	{Name: "powerbi_client_secret", Default: "", Desc: "Service principal client secret"},
	{Name: "powerbi_workspace_id", Default: "", Desc: "Power BI workspace (group) id"},
	{Name: "powerbi_authority_url", Default: powerbi.DefaultAuthorityURL, Desc: "Identity authority base URL"},
	{Name: "powerbi_api_url", Default: powerbi.DefaultAPIURL, Desc: "Power BI REST API base URL"},
	{Name: "powerbi_scope", Default: powerbi.DefaultScope, Desc: "OAuth scope for the access token"},
	{Name: "powerbi_token_retries", Default: powerbi.DefaultTokenRetries, Desc: "Attempts for the access-token request"},
	{Name: "powerbi_token_cache", Default: false, Desc: "Reuse the access token until it expires"},
	{Name: "powerbi_timeout", Default: "30s", Desc: "Timeout for each outbound Power BI request"},
	{Name: "powerbi_retry_interval", Default: "500ms", Desc: "Initial backoff between token attempts"},

	// Login throttling
	{Name: "login_rate_limit", Default: 5, Desc: "Login attempts allowed per client IP per window"},
	{Name: "login_rate_window", Default: "1m", Desc: "Window for login_rate_limit"},
	{Name: "trust_proxy", Default: false, Desc: "Take the client IP from forwarding headers (only behind a trusted proxy)"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_reports", Default: "all", Desc: "Report event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_retention", Default: "0s", Desc: "Delete audit events older than this (0 keeps everything)"},
	{Name: "audit_retention_interval", Default: "1h", Desc: "How often audit retention runs"},

	{Name: "dashboard_path", Default: "/dashboard", Desc: "Redirect path returned after login"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, INSIGHTHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "INSIGHTHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		PostgresHost:             appValues.String("postgres_host"),
		PostgresPort:             appValues.Int("postgres_port"),
		PostgresUser:             appValues.String("postgres_user"),
		PostgresPassword:         appValues.String("postgres_password"),
		PostgresDatabase:         appValues.String("postgres_database"),
		PostgresSSLMode:          appValues.String("postgres_sslmode"),
		PostgresMaxConns:         int32(appValues.Int("postgres_max_conns")),
		PostgresMinConns:         int32(appValues.Int("postgres_min_conns")),
		PostgresMaxConnIdle:      appValues.Duration("postgres_max_conn_idle", 30*time.Second),
		PostgresConnectTimeout:   appValues.Duration("postgres_connect_timeout", 5*time.Second),
		PostgresStatementTimeout: appValues.Duration("postgres_statement_timeout", 30*time.Second),
		PostgresSearchPath:       appValues.String("postgres_search_path"),

		SessionKey:     appValues.String("session_key"),
		SessionName:    appValues.String("session_name"),
		SessionDomain:  appValues.String("session_domain"),
		SessionTTL:     appValues.Duration("session_ttl", 7*24*time.Hour),
		SessionSliding: appValues.Bool("session_sliding"),

		PowerBITenantID:      appValues.String("powerbi_tenant_id"),
		PowerBIClientID:      appValues.String("powerbi_client_id"),
		PowerBIClientSecret:  appValues.String("powerbi_client_secret"),
		PowerBIWorkspaceID:   appValues.String("powerbi_workspace_id"),
		PowerBIAuthorityURL:  appValues.String("powerbi_authority_url"),
		PowerBIAPIURL:        appValues.String("powerbi_api_url"),
		PowerBIScope:         appValues.String("powerbi_scope"),
		PowerBITokenRetries:  appValues.Int("powerbi_token_retries"),
		PowerBITokenCache:    appValues.Bool("powerbi_token_cache"),
		PowerBITimeout:       appValues.Duration("powerbi_timeout", 30*time.Second),
		PowerBIRetryInterval: appValues.Duration("powerbi_retry_interval", 500*time.Millisecond),

		LoginRateLimit:  appValues.Int("login_rate_limit"),
		LoginRateWindow: appValues.Duration("login_rate_window", time.Minute),
		TrustProxy:      appValues.Bool("trust_proxy"),

		AuditLogAuth:    appValues.String("audit_log_auth"),
		AuditLogReports: appValues.String("audit_log_reports"),

		AuditRetention:         appValues.Duration("audit_retention", 0),
		AuditRetentionInterval: appValues.Duration("audit_retention_interval", time.Hour),

		DashboardPath: appValues.String("dashboard_path"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Every missing required value is reported at once so an operator can fix
// the environment in a single pass. Any error aborts startup before a
// connection is attempted.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	var errs []error
	require := func(key, v string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	require("postgres_host", appCfg.PostgresHost)
	require("postgres_user", appCfg.PostgresUser)
	require("postgres_password", appCfg.PostgresPassword)
	require("postgres_database", appCfg.PostgresDatabase)
	if appCfg.PostgresPort <= 0 || appCfg.PostgresPort > 65535 {
		errs = append(errs, fmt.Errorf("postgres_port %d is out of range", appCfg.PostgresPort))
	}
	if appCfg.PostgresMaxConns < 1 {
		errs = append(errs, errors.New("postgres_max_conns must be at least 1"))
	}
	if appCfg.PostgresMinConns < 0 || appCfg.PostgresMinConns > appCfg.PostgresMaxConns {
		errs = append(errs, errors.New("postgres_min_conns must be between 0 and postgres_max_conns"))
	}

	require("session_key", appCfg.SessionKey)
	if n := len(appCfg.SessionKey); n > 0 && n < 32 {
		logger.Warn("session_key is shorter than 32 characters", zap.Int("length", n))
	}

	require("powerbi_tenant_id", appCfg.PowerBITenantID)
	require("powerbi_client_id", appCfg.PowerBIClientID)
	require("powerbi_client_secret", appCfg.PowerBIClientSecret)
	require("powerbi_workspace_id", appCfg.PowerBIWorkspaceID)

	if appCfg.LoginRateLimit < 1 {
		errs = append(errs, errors.New("login_rate_limit must be at least 1"))
	}

	for key, dest := range map[string]string{
		"audit_log_auth":    appCfg.AuditLogAuth,
		"audit_log_reports": appCfg.AuditLogReports,
	} {
		switch dest {
		case auditlog.DestAll, auditlog.DestDB, auditlog.DestLog, auditlog.DestOff:
		default:
			errs = append(errs, fmt.Errorf("%s must be one of all, db, log, off (got %q)", key, dest))
		}
	}

	if appCfg.AuditRetention < 0 {
		errs = append(errs, errors.New("audit_retention must not be negative"))
	}
	if appCfg.AuditRetention > 0 && appCfg.AuditRetentionInterval <= 0 {
		errs = append(errs, errors.New("audit_retention_interval must be positive when audit_retention is set"))
	}

	if err := errors.Join(errs...); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// powerBIConfig maps app config onto the broker's config.
func powerBIConfig(appCfg AppConfig) powerbi.Config {
	return powerbi.Config{
		TenantID:      appCfg.PowerBITenantID,
		ClientID:      appCfg.PowerBIClientID,
		ClientSecret:  appCfg.PowerBIClientSecret,
		WorkspaceID:   appCfg.PowerBIWorkspaceID,
		AuthorityURL:  appCfg.PowerBIAuthorityURL,
		APIURL:        appCfg.PowerBIAPIURL,
		Scope:         appCfg.PowerBIScope,
		TokenRetries:  appCfg.PowerBITokenRetries,
		RetryInterval: appCfg.PowerBIRetryInterval,
		CacheToken:    appCfg.PowerBITokenCache,
	}
}
