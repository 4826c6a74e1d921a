// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"net/http"

	auditlogfeature "github.com/dalemusser/insighthub/internal/app/features/auditlog"
	changepasswordfeature "github.com/dalemusser/insighthub/internal/app/features/changepassword"
	errorsfeature "github.com/dalemusser/insighthub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/insighthub/internal/app/features/health"
	loginfeature "github.com/dalemusser/insighthub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/insighthub/internal/app/features/logout"
	reportsfeature "github.com/dalemusser/insighthub/internal/app/features/reports"
	userinfofeature "github.com/dalemusser/insighthub/internal/app/features/userinfo"
	"github.com/dalemusser/insighthub/internal/app/policy/reportpolicy"
	auditstore "github.com/dalemusser/insighthub/internal/app/store/audit"
	reportstore "github.com/dalemusser/insighthub/internal/app/store/reports"
	userstore "github.com/dalemusser/insighthub/internal/app/store/users"
	"github.com/dalemusser/insighthub/internal/app/system/auditlog"
	"github.com/dalemusser/insighthub/internal/app/system/auth"
	"github.com/dalemusser/insighthub/internal/app/system/powerbi"
	"github.com/dalemusser/insighthub/internal/app/system/ratelimit"
	"github.com/dalemusser/insighthub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// loginLimiter is stopped in Shutdown.
var loginLimiter *ratelimit.LoginLimiter

// userStore is the union of what the auth features need from users.
type userStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

// reportCatalog is what the gate and the list endpoint need from reports.
type reportCatalog interface {
	reportpolicy.Catalog
	reportsfeature.Lister
}

// routerDeps is everything the router needs, as interfaces so the wiring can
// be exercised without Postgres or Power BI.
type routerDeps struct {
	Sessions *auth.SessionManager
	Users    userStore
	Catalog  reportCatalog
	Broker   reportsfeature.EmbedBroker
	Audit    *auditlog.Logger
	Limiter  *ratelimit.LoginLimiter
	DB       healthfeature.Pinger
	Events   auditlogfeature.EventLister

	DashboardPath string
	TrustProxy    bool
}

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema checks and
// Startup have completed. InsightHub builds the session manager, the
// Postgres-backed stores, the Power BI broker and the login limiter, then
// mounts the JSON feature routers.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionTTL, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	sessionMgr.SetSliding(appCfg.SessionSliding)

	broker, err := powerbi.New(powerBIConfig(appCfg), powerbi.NewHTTPClient(appCfg.PowerBITimeout), logger)
	if err != nil {
		logger.Error("power bi broker init failed", zap.Error(err))
		return nil, err
	}

	auditStore := auditstore.New(deps.Pool)
	audit := auditlog.New(auditStore, logger, auditlog.Config{
		Auth:    appCfg.AuditLogAuth,
		Reports: appCfg.AuditLogReports,
	})

	loginLimiter = ratelimit.NewLoginLimiter(appCfg.LoginRateLimit, appCfg.LoginRateWindow)

	r := buildRouter(routerDeps{
		Sessions:      sessionMgr,
		Users:         userstore.New(deps.Pool),
		Catalog:       reportstore.New(deps.Pool),
		Broker:        broker,
		Audit:         audit,
		Limiter:       loginLimiter,
		DB:            deps.Pool,
		Events:        auditStore,
		DashboardPath: appCfg.DashboardPath,
		TrustProxy:    appCfg.TrustProxy,
	}, logger)

	return otelhttp.NewHandler(r, serviceName), nil
}

func buildRouter(d routerDeps, logger *zap.Logger) chi.Router {
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if d.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)

	// Global auth middleware: loads SessionUser into context if the cookie verifies.
	r.Use(d.Sessions.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(d.DB, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	loginHandler := loginfeature.NewHandler(d.Users, d.Sessions, errLog, d.Audit, d.Limiter, d.DashboardPath, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(d.Sessions, d.Audit, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	changePwHandler := changepasswordfeature.NewHandler(d.Users, errLog, d.Audit, logger)
	r.Mount("/change-password", changepasswordfeature.Routes(changePwHandler, d.Sessions))

	userInfoHandler := userinfofeature.NewHandler(d.Users, errLog, logger)
	r.Mount("/api/user", userinfofeature.Routes(userInfoHandler, d.Sessions))

	activityHandler := auditlogfeature.NewHandler(d.Events, errLog, logger)
	r.Mount("/api/activity", auditlogfeature.Routes(activityHandler, d.Sessions))

	// Reports
	gate := reportpolicy.New(d.Catalog)
	reportsHandler := reportsfeature.NewHandler(gate, d.Broker, d.Catalog, errLog, d.Audit, logger)
	r.Mount("/reports", reportsfeature.Routes(reportsHandler, d.Sessions))

	return r
}
