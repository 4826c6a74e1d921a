// internal/app/features/reports/list.go
package reports

import (
	"net/http"
	"time"

	uierrors "github.com/dalemusser/insighthub/internal/app/features/errors"
	"github.com/dalemusser/insighthub/internal/app/system/auth"
	"github.com/dalemusser/insighthub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/insighthub/internal/app/system/timeouts"
	"github.com/dalemusser/insighthub/internal/domain/models"
)

type reportItem struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	PowerBIReportID string    `json:"powerBiReportId"`
	Type            string    `json:"type"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"createdAt"`
}

type listResponse struct {
	Accounting    []reportItem `json:"accounting"`
	Manufacturing []reportItem `json:"manufacturing"`
}

// ServeList handles GET /reports: the user's granted reports, split by type.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		auth.WriteUnauthorized(w)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list user reports")
	defer cancel()

	reps, err := h.Reports.ListForUser(ctx, su.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list user reports failed", err, "A database error occurred.")
		return
	}

	uierrors.WriteJSON(w, http.StatusOK, split(reps))
}

func split(reps []models.Report) listResponse {
	out := listResponse{
		Accounting:    []reportItem{},
		Manufacturing: []reportItem{},
	}
	for _, rep := range reps {
		item := reportItem{
			ID:              rep.ID,
			Title:           rep.Title,
			PowerBIReportID: rep.PowerBIReportID,
			Type:            string(rep.Type),
			Description:     htmlsanitize.PlainText(rep.Description),
			CreatedAt:       rep.CreatedAt,
		}
		switch rep.Type {
		case models.ReportTypeAccounting:
			out.Accounting = append(out.Accounting, item)
		case models.ReportTypeManufacturing:
			out.Manufacturing = append(out.Manufacturing, item)
		}
	}
	return out
}
