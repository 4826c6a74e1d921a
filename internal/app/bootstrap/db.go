// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/dalemusser/insighthub/internal/app/system/telemetry"
	"github.com/dalemusser/waffle/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// serviceName identifies this process in traces.
const serviceName = "insighthub"

// requiredTables must already exist; the schema is owned outside this service.
var requiredTables = []string{"users", "reports", "user_report_access", "audit_events"}

// ConnectDB opens the Postgres pool and verifies it with a ping.
//
// Tracing is installed here as well because DBDeps is the only value that
// lives from startup to Shutdown.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	traceShutdown := telemetry.Setup(ctx, serviceName, logger)

	poolCfg, err := poolConfig(appCfg)
	if err != nil {
		_ = traceShutdown(ctx)
		return DBDeps{}, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, appCfg.PostgresConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		_ = traceShutdown(ctx)
		return DBDeps{}, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		_ = traceShutdown(ctx)
		logger.Error("postgres ping failed",
			zap.String("host", appCfg.PostgresHost),
			zap.String("database", appCfg.PostgresDatabase),
			zap.Error(err))
		return DBDeps{}, fmt.Errorf("connect to postgres: %w", err)
	}

	logger.Info("connected to postgres",
		zap.String("host", appCfg.PostgresHost),
		zap.String("database", appCfg.PostgresDatabase),
		zap.Int32("max_conns", poolCfg.MaxConns),
		zap.Duration("max_conn_idle", poolCfg.MaxConnIdleTime))

	return DBDeps{Pool: pool, TraceShutdown: traceShutdown}, nil
}

// EnsureSchema checks that the tables the service reads and writes exist.
// Migrations are not run from here.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	return checkTables(ctx, deps.Pool, logger)
}

func checkTables(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	var missing []string
	for _, table := range requiredTables {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists); err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		logger.Error("required tables are missing", zap.Strings("tables", missing))
		return fmt.Errorf("missing tables on search_path: %v", missing)
	}
	return nil
}

// poolConfig builds the pgxpool configuration from app config.
func poolConfig(appCfg AppConfig) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(postgresDSN(appCfg))
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	cfg.MaxConns = appCfg.PostgresMaxConns
	cfg.MinConns = appCfg.PostgresMinConns
	cfg.MaxConnIdleTime = appCfg.PostgresMaxConnIdle
	cfg.ConnConfig.ConnectTimeout = appCfg.PostgresConnectTimeout

	if appCfg.PostgresStatementTimeout > 0 {
		cfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(appCfg.PostgresStatementTimeout.Milliseconds(), 10)
	}
	if appCfg.PostgresSearchPath != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = appCfg.PostgresSearchPath
	}
	return cfg, nil
}

// postgresDSN renders the connection settings as a postgres:// URL so that
// credentials containing reserved characters survive parsing.
func postgresDSN(appCfg AppConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(appCfg.PostgresUser, appCfg.PostgresPassword),
		Host:   net.JoinHostPort(appCfg.PostgresHost, strconv.Itoa(appCfg.PostgresPort)),
		Path:   "/" + appCfg.PostgresDatabase,
	}
	if appCfg.PostgresSSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {appCfg.PostgresSSLMode}}.Encode()
	}
	return u.String()
}
