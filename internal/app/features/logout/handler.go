// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	uierrors "github.com/dalemusser/insighthub/internal/app/features/errors"
	"github.com/dalemusser/insighthub/internal/app/system/auditlog"
	"github.com/dalemusser/insighthub/internal/app/system/auth"
	"go.uber.org/zap"
)

// RedirectPath is where the client goes after signing out.
const RedirectPath = "/login"

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
	}
}

// ServeLogout handles GET and POST /logout. It always succeeds: the cookie
// is cleared whether or not a valid session was presented.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if u, ok := auth.CurrentUser(r); ok {
		userID = u.ID
	} else if claims, ok := h.SessionMgr.Verify(r); ok {
		userID = claims.Subject
	}

	h.SessionMgr.Clear(w)
	h.AuditLog.Logout(r.Context(), r, userID)

	uierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"redirectPath": RedirectPath,
	})
}
