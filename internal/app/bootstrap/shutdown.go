// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown cleanly tears down DB connections and other resources.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if auditRetention != nil {
		auditRetention.Stop()
		auditRetention = nil
	}
	if loginLimiter != nil {
		loginLimiter.Close()
	}
	if deps.Pool != nil {
		logger.Info("closing postgres pool")
		deps.Pool.Close()
	}
	if deps.TraceShutdown != nil {
		if err := deps.TraceShutdown(ctx); err != nil {
			logger.Error("tracer shutdown failed", zap.Error(err))
			return err
		}
	}
	return nil
}
