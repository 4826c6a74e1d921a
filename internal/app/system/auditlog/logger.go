// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/insighthub/internal/app/store/audit"
	"github.com/dalemusser/insighthub/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// Destinations accepted by Config fields.
const (
	DestAll = "all" // audit_events table + zap
	DestDB  = "db"  // audit_events table only
	DestLog = "log" // zap only
	DestOff = "off"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls login, logout and password events.
	Auth string
	// Reports controls report embed and access-denied events.
	Reports string
}

// Recorder persists events; *audit.Store satisfies it.
type Recorder interface {
	Log(ctx context.Context, e audit.Event) error
}

// Logger provides convenience methods for logging audit events.
// It writes to the audit_events table (via Recorder) and/or zap.
type Logger struct {
	store  Recorder
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. store may be nil when no destination
// includes the database.
func New(store Recorder, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op so handlers can run without auditing.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryReports:
		setting = l.config.Reports
	}
	if setting == "" {
		setting = DestAll
	}
	if setting == DestOff {
		return
	}

	if setting == DestAll || setting == DestLog {
		l.logToZap(event)
	}

	if (setting == DestAll || setting == DestDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func authEvent(r *http.Request, eventType string, success bool) audit.Event {
	return audit.Event{
		Category:  audit.CategoryAuth,
		EventType: eventType,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   success,
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, email string) {
	e := authEvent(r, audit.EventLoginSuccess, true)
	e.UserID = userID
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// LoginFailedUserNotFound logs a login for an unknown email.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	e := authEvent(r, audit.EventLoginFailedUserNotFound, false)
	e.FailureReason = "user not found"
	e.Details = map[string]string{"attempted_email": attemptedEmail}
	l.Log(ctx, e)
}

// LoginFailedWrongPassword logs a login with a bad password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID, email string) {
	e := authEvent(r, audit.EventLoginFailedWrongPassword, false)
	e.UserID = userID
	e.FailureReason = "wrong password"
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// LoginFailedRateLimit logs a login rejected by the rate limiter.
func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request, attemptedEmail, reason string) {
	e := authEvent(r, audit.EventLoginFailedRateLimit, false)
	e.FailureReason = "rate limit exceeded"
	e.Details = map[string]string{"attempted_email": attemptedEmail, "limit": reason}
	l.Log(ctx, e)
}

// Logout logs a logout; userID is empty when no session was present.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	e := authEvent(r, audit.EventLogout, true)
	e.UserID = userID
	l.Log(ctx, e)
}

// PasswordChanged logs a successful password change.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID string) {
	e := authEvent(r, audit.EventPasswordChanged, true)
	e.UserID = userID
	l.Log(ctx, e)
}

// PasswordChangeFailed logs a rejected password change.
func (l *Logger) PasswordChangeFailed(ctx context.Context, r *http.Request, userID, reason string) {
	e := authEvent(r, audit.EventPasswordChangeFailed, false)
	e.UserID = userID
	e.FailureReason = reason
	l.Log(ctx, e)
}

// --- Report Events ---

// ReportEmbedIssued logs embed credentials handed to a user.
func (l *Logger) ReportEmbedIssued(ctx context.Context, r *http.Request, userID, powerBIReportID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryReports,
		EventType: audit.EventReportEmbedIssued,
		UserID:    userID,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"report_id": powerBIReportID},
	})
}

// ReportAccessDenied logs a report view refused by the gate.
func (l *Logger) ReportAccessDenied(ctx context.Context, r *http.Request, userID, powerBIReportID, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryReports,
		EventType:     audit.EventReportAccessDenied,
		UserID:        userID,
		IP:            ratelimit.ClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: reason,
		Details:       map[string]string{"report_id": powerBIReportID},
	})
}
