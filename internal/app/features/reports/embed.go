// internal/app/features/reports/embed.go
package reports

import (
	"errors"
	"net/http"
	"strings"
	"time"

	uierrors "github.com/dalemusser/insighthub/internal/app/features/errors"
	"github.com/dalemusser/insighthub/internal/app/policy/reportpolicy"
	"github.com/dalemusser/insighthub/internal/app/system/auth"
	"github.com/dalemusser/insighthub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/insighthub/internal/app/system/powerbi"
	"github.com/dalemusser/insighthub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	msgMissingID    = "Missing report ID in URL"
	msgAccessDenied = "Access denied or report not found."
	msgEmbedPrefix  = "Failed to get embed details: "
)

type embedResponse struct {
	EmbedToken  string     `json:"embedToken"`
	EmbedURL    string     `json:"embedUrl"`
	ReportID    string     `json:"reportId"`
	Name        string     `json:"name"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Expiration  *time.Time `json:"expiration,omitempty"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /reports/{externalReportId}                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeEmbed authorizes the signed-in user for the report and returns the
// embed credentials merged with the catalog entry.
func (h *Handler) ServeEmbed(w http.ResponseWriter, r *http.Request) {
	externalID := strings.TrimSpace(chi.URLParam(r, "externalReportId"))
	if externalID == "" {
		uierrors.WriteError(w, http.StatusBadRequest, msgMissingID)
		return
	}

	su, ok := auth.CurrentUser(r)
	if !ok {
		auth.WriteUnauthorized(w)
		return
	}

	/*── gate: catalog + grant ─────────────────────────────────────────────*/

	gctx, gcancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "report authorization")
	rep, err := h.Gate.Authorize(gctx, su.ID, externalID)
	gcancel()

	switch {
	case errors.Is(err, reportpolicy.ErrUnauthenticated):
		auth.WriteUnauthorized(w)
		return
	case errors.Is(err, reportpolicy.ErrForbidden):
		h.AuditLog.ReportAccessDenied(r.Context(), r, su.ID, externalID, reportpolicy.Reason(err))
		h.ErrLog.LogForbidden(w, r, "report access denied", err, msgAccessDenied)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "report authorization failed", err, "A database error occurred.")
		return
	}

	/*── provider exchange ─────────────────────────────────────────────────*/

	ectx, ecancel := timeouts.WithTimeout(r.Context(), timeouts.Upstream(), h.Log, "embed token exchange")
	emb, err := h.Broker.Embed(ectx, externalID)
	ecancel()

	if err != nil {
		status, msg := http.StatusInternalServerError, err.Error()
		if pe, ok := powerbi.AsProviderError(err); ok {
			msg = pe.Message
			if pe.StatusCode >= 400 {
				status = pe.StatusCode
			}
		}
		h.ErrLog.LogStatus(w, r, status, "embed token exchange failed", err, msgEmbedPrefix+msg)
		return
	}

	h.AuditLog.ReportEmbedIssued(r.Context(), r, su.ID, externalID)
	h.Log.Debug("report embed issued",
		zap.String("user_id", su.ID),
		zap.String("report_id", externalID))

	resp := embedResponse{
		EmbedToken:  emb.EmbedToken,
		EmbedURL:    emb.EmbedURL,
		ReportID:    emb.ReportID,
		Name:        emb.Name,
		Title:       rep.Title,
		Description: htmlsanitize.PlainText(rep.Description),
		Type:        string(rep.Type),
	}
	if !emb.Expiration.IsZero() {
		exp := emb.Expiration
		resp.Expiration = &exp
	}
	uierrors.WriteJSON(w, http.StatusOK, resp)
}
