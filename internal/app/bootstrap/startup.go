// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	auditstore "github.com/dalemusser/insighthub/internal/app/store/audit"
	"github.com/dalemusser/insighthub/internal/app/system/timeouts"
	"github.com/dalemusser/insighthub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// auditRetention is stopped in Shutdown; nil when retention is disabled.
var auditRetention *workers.AuditRetention

// Startup runs one-time application initialization after DB connections and
// schema checks are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		cur := timeouts.Current()
		logger.Info("timeouts overridden from environment",
			zap.Int("count", n),
			zap.Duration("ping", cur.Ping),
			zap.Duration("short", cur.Short),
			zap.Duration("medium", cur.Medium),
			zap.Duration("upstream", cur.Upstream))
	}

	if appCfg.AuditRetention > 0 {
		auditRetention = workers.NewAuditRetention(auditstore.New(deps.Pool), logger,
			appCfg.AuditRetentionInterval, appCfg.AuditRetention)
		auditRetention.Start()
	}
	return nil
}
