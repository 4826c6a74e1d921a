// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"

	uierrors "github.com/dalemusser/insighthub/internal/app/features/errors"
	"github.com/dalemusser/insighthub/internal/app/store/audit"
	"go.uber.org/zap"
)

// EventLister returns a user's newest audit events; *audit.Store satisfies it.
type EventLister interface {
	Recent(ctx context.Context, userID string, limit int) ([]audit.Event, error)
}

type Handler struct {
	Events EventLister
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler constructs an activity handler bound to the audit store.
func NewHandler(events EventLister, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Events: events,
		Log:    logger,
		ErrLog: errLog,
	}
}
