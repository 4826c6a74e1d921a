// internal/app/features/reports/handler.go
package reports

import (
	"context"

	uierrors "github.com/dalemusser/insighthub/internal/app/features/errors"
	"github.com/dalemusser/insighthub/internal/app/system/auditlog"
	"github.com/dalemusser/insighthub/internal/app/system/powerbi"
	"github.com/dalemusser/insighthub/internal/domain/models"
	"go.uber.org/zap"
)

// Authorizer decides whether a user may view a report (reportpolicy.Gate).
type Authorizer interface {
	Authorize(ctx context.Context, userID, externalID string) (*models.Report, error)
}

// EmbedBroker exchanges service credentials for embed credentials (powerbi.Broker).
type EmbedBroker interface {
	Embed(ctx context.Context, externalID string) (*powerbi.Embed, error)
}

// Lister lists the reports granted to a user (reportstore.Store).
type Lister interface {
	ListForUser(ctx context.Context, userID string) ([]models.Report, error)
}

// Handler serves the report catalog and embed credentials.
//
// Every embed request is authorized against the catalog before the
// provider is contacted.
type Handler struct {
	Gate     Authorizer
	Broker   EmbedBroker
	Reports  Lister
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

// NewHandler constructs a reports Handler.
func NewHandler(gate Authorizer, broker EmbedBroker, reports Lister, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Gate:     gate,
		Broker:   broker,
		Reports:  reports,
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: audit,
	}
}
