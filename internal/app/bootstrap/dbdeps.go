// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/insighthub/internal/app/system/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBDeps holds database/back-end dependencies for the app.
// The pool is created once in ConnectDB and closed in Shutdown.
type DBDeps struct {
	Pool *pgxpool.Pool

	// TraceShutdown flushes the tracer provider installed in ConnectDB.
	TraceShutdown telemetry.ShutdownFunc
}
