package reportstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/insighthub/internal/domain/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no report matches the lookup.
	ErrNotFound = errors.New("report not found")
	// ErrDuplicateReport is returned when the Power BI report id is already cataloged.
	ErrDuplicateReport = errors.New("a report with this Power BI id already exists")
	// ErrUnknownReference is returned when a grant names a user or report that does not exist.
	ErrUnknownReference = errors.New("user or report does not exist")
)

const reportColumns = `r.id::text, r.title, r.power_bi_report_id, r.type, r.description, r.created_at`

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// GetByExternalID loads a catalog report by its Power BI report id.
func (s *Store) GetByExternalID(ctx context.Context, powerBIReportID string) (*models.Report, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM reports r
		WHERE r.power_bi_report_id = $1
	`, powerBIReportID)

	r, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// HasAccess reports whether a grant exists for (userID, reportID).
// reportID is the internal catalog id, not the Power BI id.
func (s *Store) HasAccess(ctx context.Context, userID, reportID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_report_access
			WHERE user_id = $1 AND report_id = $2
		)
	`, userID, reportID).Scan(&ok)
	return ok, err
}

// ListForUser returns every report granted to userID, ordered by type then title.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]models.Report, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports r
		JOIN user_report_access ura ON ura.report_id = r.id
		WHERE ura.user_id = $1
		ORDER BY r.type, r.title
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Create adds a report to the catalog.
func (s *Store) Create(ctx context.Context, r models.Report) (models.Report, error) {
	if _, err := models.ParseReportType(string(r.Type)); err != nil {
		return models.Report{}, err
	}
	r.PowerBIReportID = strings.TrimSpace(r.PowerBIReportID)
	if r.PowerBIReportID == "" {
		return models.Report{}, errors.New("power bi report id is required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO reports (id, title, power_bi_report_id, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.Title, r.PowerBIReportID, string(r.Type), r.Description, r.CreatedAt)
	if err != nil {
		if pgCode(err) == "23505" {
			return models.Report{}, ErrDuplicateReport
		}
		return models.Report{}, fmt.Errorf("insert report: %w", err)
	}
	return r, nil
}

// Grant gives userID access to reportID. Granting an existing pair is a
// no-op; created reports whether a new row was written.
func (s *Store) Grant(ctx context.Context, userID, reportID string) (created bool, err error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO user_report_access (user_id, report_id, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, report_id) DO NOTHING
	`, userID, reportID, time.Now().UTC())
	if err != nil {
		if pgCode(err) == "23503" {
			return false, ErrUnknownReference
		}
		return false, fmt.Errorf("grant report: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Revoke removes the grant for (userID, reportID). removed is false when
// no grant existed.
func (s *Store) Revoke(ctx context.Context, userID, reportID string) (removed bool, err error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM user_report_access
		WHERE user_id = $1 AND report_id = $2
	`, userID, reportID)
	if err != nil {
		return false, fmt.Errorf("revoke report: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListGrants returns the raw grant rows for userID, newest first.
func (s *Store) ListGrants(ctx context.Context, userID string) ([]models.UserReportAccess, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id::text, report_id::text, granted_at
		FROM user_report_access
		WHERE user_id = $1
		ORDER BY granted_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.UserReportAccess, error) {
		var g models.UserReportAccess
		err := row.Scan(&g.ID, &g.UserID, &g.ReportID, &g.GrantedAt)
		return g, err
	})
}

func scanReport(row pgx.Row) (models.Report, error) {
	var r models.Report
	var typ string
	if err := row.Scan(&r.ID, &r.Title, &r.PowerBIReportID, &typ, &r.Description, &r.CreatedAt); err != nil {
		return models.Report{}, err
	}
	// catalog rows may carry any letter case
	if t, err := models.ParseReportType(typ); err == nil {
		r.Type = t
	} else {
		r.Type = models.ReportType(typ)
	}
	return r, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
