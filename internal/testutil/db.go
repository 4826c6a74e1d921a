package testutil

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDatabaseEnv names the DSN used by database-backed tests.
const TestDatabaseEnv = "INSIGHTHUB_TEST_DATABASE_URL"

// schemaDDL mirrors the tables the service expects to already exist.
// Production schema is managed outside this repository.
const schemaDDL = `
CREATE TABLE users (
	id                  uuid PRIMARY KEY,
	name                text NOT NULL DEFAULT '',
	email               text NOT NULL UNIQUE,
	password            text NOT NULL DEFAULT '',
	role                text NOT NULL DEFAULT '',
	designation         text NOT NULL DEFAULT '',
	is_password_changed boolean NOT NULL DEFAULT false,
	created_at          timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE reports (
	id                 uuid PRIMARY KEY,
	title              text NOT NULL,
	power_bi_report_id text NOT NULL UNIQUE,
	type               text NOT NULL CHECK (type IN ('Accounting', 'Manufacturing')),
	description        text NOT NULL DEFAULT '',
	created_at         timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE user_report_access (
	id         bigserial PRIMARY KEY,
	user_id    uuid NOT NULL REFERENCES users (id),
	report_id  uuid NOT NULL REFERENCES reports (id),
	granted_at timestamptz NOT NULL DEFAULT now(),
	UNIQUE (user_id, report_id)
);

CREATE TABLE audit_events (
	id             uuid PRIMARY KEY,
	occurred_at    timestamptz NOT NULL,
	category       text NOT NULL,
	event_type     text NOT NULL,
	user_id        uuid,
	ip             text NOT NULL DEFAULT '',
	user_agent     text NOT NULL DEFAULT '',
	success        boolean NOT NULL,
	failure_reason text NOT NULL DEFAULT '',
	details        jsonb NOT NULL DEFAULT '{}'
);
`

// SetupTestDB returns a pool bound to a fresh, empty schema. The schema is
// dropped when the test ends. Tests are skipped when INSIGHTHUB_TEST_DATABASE_URL
// is not set.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(TestDatabaseEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping database test", TestDatabaseEnv)
	}

	ctx, cancel := TestContext()
	defer cancel()

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect to test database: %v", err)
	}
	defer admin.Close(ctx)

	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse test dsn: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("open test pool: %v", err)
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		t.Fatalf("create test tables: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		ctx, cancel := TestContext()
		defer cancel()
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			t.Logf("cleanup connect: %v", err)
			return
		}
		defer conn.Close(ctx)
		if _, err := conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
	})

	return pool
}

// TestContext returns a context with a timeout suitable for database tests.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
