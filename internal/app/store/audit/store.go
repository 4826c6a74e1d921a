// internal/app/store/audit/store.go
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event categories
const (
	CategoryAuth    = "auth"
	CategoryReports = "reports"
)

// Auth event types
const (
	EventLoginSuccess             = "login_success"
	EventLoginFailedUserNotFound  = "login_failed_user_not_found"
	EventLoginFailedWrongPassword = "login_failed_wrong_password"
	EventLoginFailedRateLimit     = "login_failed_rate_limit"
	EventLogout                   = "logout"
	EventPasswordChanged          = "password_changed"
	EventPasswordChangeFailed     = "password_change_failed"
)

// Report event types
const (
	EventReportEmbedIssued  = "report_embed_issued"
	EventReportAccessDenied = "report_access_denied"
)

// Event represents an audit event.
type Event struct {
	ID        string
	Timestamp time.Time

	Category  string
	EventType string

	UserID    string // affected user; empty when unknown
	IP        string
	UserAgent string

	Success       bool
	FailureReason string
	Details       map[string]string
}

// Store persists audit events in the audit_events table.
type Store struct {
	pool *pgxpool.Pool
}

// New creates an audit Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Log inserts an event, filling in ID and Timestamp when unset.
func (s *Store) Log(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Details == nil {
		e.Details = map[string]string{}
	}

	var userID *string
	if e.UserID != "" {
		userID = &e.UserID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events
			(id, occurred_at, category, event_type, user_id, ip, user_agent, success, failure_reason, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.Timestamp, e.Category, e.EventType, userID, e.IP, e.UserAgent, e.Success, e.FailureReason, e.Details)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Recent returns the newest events for userID, up to limit.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, occurred_at, category, event_type, COALESCE(user_id::text, ''),
		       ip, user_agent, success, failure_reason, details
		FROM audit_events
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Category, &e.EventType, &e.UserID,
			&e.IP, &e.UserAgent, &e.Success, &e.FailureReason, &e.Details); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteBefore removes events that occurred before cutoff and returns how
// many were deleted.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}
	return tag.RowsAffected(), nil
}
