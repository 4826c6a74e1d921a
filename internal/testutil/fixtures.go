package testutil

import (
	"context"
	"net/http"
	"testing"

	"github.com/dalemusser/insighthub/internal/app/system/passwords"
	"github.com/dalemusser/insighthub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	pool *pgxpool.Pool
	t    *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test pool.
func NewFixtures(t *testing.T, pool *pgxpool.Pool) *Fixtures {
	t.Helper()
	return &Fixtures{pool: pool, t: t}
}

// CreateUser inserts a user whose password is the bcrypt hash of password.
func (f *Fixtures) CreateUser(ctx context.Context, email, password string) models.User {
	f.t.Helper()

	hash, err := passwords.Hash(password)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}
	u := models.User{
		ID:           uuid.NewString(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
		Role:         "employee",
		Designation:  "Analyst",
	}
	_, err = f.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password, role, designation)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Designation)
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateReport inserts a catalog report.
func (f *Fixtures) CreateReport(ctx context.Context, externalID, title string, typ models.ReportType) models.Report {
	f.t.Helper()

	r := models.Report{
		ID:              uuid.NewString(),
		Title:           title,
		PowerBIReportID: externalID,
		Type:            typ,
		Description:     title + " description",
	}
	_, err := f.pool.Exec(ctx, `
		INSERT INTO reports (id, title, power_bi_report_id, type, description)
		VALUES ($1, $2, $3, $4, $5)
	`, r.ID, r.Title, r.PowerBIReportID, string(r.Type), r.Description)
	if err != nil {
		f.t.Fatalf("failed to create test report: %v", err)
	}
	return r
}

// Grant gives userID access to reportID.
func (f *Fixtures) Grant(ctx context.Context, userID, reportID string) {
	f.t.Helper()
	_, err := f.pool.Exec(ctx, `
		INSERT INTO user_report_access (user_id, report_id) VALUES ($1, $2)
	`, userID, reportID)
	if err != nil {
		f.t.Fatalf("failed to grant report: %v", err)
	}
}
