// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strconv"
	"time"

	uierrors "github.com/dalemusser/insighthub/internal/app/features/errors"
	"github.com/dalemusser/insighthub/internal/app/system/auth"
	"github.com/dalemusser/insighthub/internal/app/system/timeouts"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type eventItem struct {
	Timestamp     time.Time         `json:"timestamp"`
	Category      string            `json:"category"`
	EventType     string            `json:"eventType"`
	IP            string            `json:"ip,omitempty"`
	Success       bool              `json:"success"`
	FailureReason string            `json:"failureReason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

type listResponse struct {
	Events []eventItem `json:"events"`
}

// ServeList handles GET /api/activity: the signed-in user's own audit
// trail, newest first. ?limit= caps the result (default 20, max 100).
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.WriteUnauthorized(w)
		return
	}

	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			uierrors.WriteError(w, http.StatusBadRequest, "limit must be a positive integer.")
			return
		}
		limit = min(n, maxLimit)
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "activity list")
	defer cancel()

	events, err := h.Events.Recent(ctx, u.ID, limit)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "activity: list audit events", err, "A database error occurred.")
		return
	}

	items := make([]eventItem, 0, len(events))
	for _, e := range events {
		items = append(items, eventItem{
			Timestamp:     e.Timestamp,
			Category:      e.Category,
			EventType:     e.EventType,
			IP:            e.IP,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		})
	}
	uierrors.WriteJSON(w, http.StatusOK, listResponse{Events: items})
}
