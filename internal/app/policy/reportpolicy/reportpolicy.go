// Package reportpolicy decides whether a signed-in user may view a report.
//
// Authorization rules, checked in order:
//   - the request must carry a verified session (a non-empty user id)
//   - the Power BI report id must exist in the catalog
//   - the user must hold a grant for that catalog report
//
// A missing report and a missing grant both wrap ErrForbidden so callers
// answer them identically; the specific reason is kept for logging.
package reportpolicy

import (
	"context"
	"errors"
	"fmt"

	reportstore "github.com/dalemusser/insighthub/internal/app/store/reports"
	"github.com/dalemusser/insighthub/internal/domain/models"
)

var (
	// ErrUnauthenticated means no verified session was presented.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is the common parent of every denial.
	ErrForbidden = errors.New("access denied or report not found")
	// ErrReportNotFound means the report id is not in the catalog.
	ErrReportNotFound = fmt.Errorf("%w: report not in catalog", ErrForbidden)
	// ErrNoGrant means the report exists but the user holds no grant.
	ErrNoGrant = fmt.Errorf("%w: no grant for user", ErrForbidden)
)

// Catalog is the subset of the report store the gate needs.
type Catalog interface {
	GetByExternalID(ctx context.Context, powerBIReportID string) (*models.Report, error)
	HasAccess(ctx context.Context, userID, reportID string) (bool, error)
}

// Gate authorizes report views against the catalog and grant table.
type Gate struct {
	catalog Catalog
}

// New creates a Gate over catalog.
func New(catalog Catalog) *Gate {
	return &Gate{catalog: catalog}
}

// Authorize returns the catalog report when userID may view externalID.
// Database failures are returned wrapped and are neither ErrForbidden nor
// ErrUnauthenticated.
func (g *Gate) Authorize(ctx context.Context, userID, externalID string) (*models.Report, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	rep, err := g.catalog.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, reportstore.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("load report %q: %w", externalID, err)
	}

	ok, err := g.catalog.HasAccess(ctx, userID, rep.ID)
	if err != nil {
		return nil, fmt.Errorf("check grant for report %q: %w", externalID, err)
	}
	if !ok {
		return nil, ErrNoGrant
	}
	return rep, nil
}

// Reason is a short label for a denial, for logs and audit records.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrReportNotFound):
		return "report not found"
	case errors.Is(err, ErrNoGrant):
		return "no grant"
	case err == nil:
		return ""
	default:
		return "error"
	}
}
