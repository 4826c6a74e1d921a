// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/insighthub/internal/app/features/errors"
	userstore "github.com/dalemusser/insighthub/internal/app/store/users"
	"github.com/dalemusser/insighthub/internal/app/system/auditlog"
	"github.com/dalemusser/insighthub/internal/app/system/auth"
	"github.com/dalemusser/insighthub/internal/app/system/normalize"
	"github.com/dalemusser/insighthub/internal/app/system/passwords"
	"github.com/dalemusser/insighthub/internal/app/system/ratelimit"
	"github.com/dalemusser/insighthub/internal/app/system/timeouts"
	"github.com/dalemusser/insighthub/internal/domain/models"
	"go.uber.org/zap"
)

// DefaultRedirectPath is where the client goes after signing in.
const DefaultRedirectPath = "/dashboard"

const (
	msgMissingFields      = "Email and password are required."
	msgInvalidCredentials = "Invalid credentials."
	msgServerError        = "A server error occurred."
)

// UserLookup finds an account by email.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type Handler struct {
	Users        UserLookup
	Log          *zap.Logger
	SessionMgr   *auth.SessionManager
	ErrLog       *uierrors.ErrorLogger
	AuditLog     *auditlog.Logger
	Limiter      *ratelimit.LoginLimiter // nil disables rate limiting
	RedirectPath string
}

func NewHandler(
	users UserLookup,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	limiter *ratelimit.LoginLimiter,
	redirectPath string,
	logger *zap.Logger,
) *Handler {
	if redirectPath == "" {
		redirectPath = DefaultRedirectPath
	}
	return &Handler{
		Users:        users,
		Log:          logger,
		SessionMgr:   sessionMgr,
		ErrLog:       errLog,
		AuditLog:     audit,
		Limiter:      limiter,
		RedirectPath: redirectPath,
	}
}

type successResponse struct {
	Success      bool   `json:"success"`
	RedirectPath string `json:"redirectPath"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleLoginPost verifies email + password and issues the session cookie.
// Unknown email and wrong password share one response.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.")
		return
	}

	email := normalize.Email(r.FormValue("email"))
	password := r.FormValue("password")

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, email); !ok {
			h.AuditLog.LoginFailedRateLimit(r.Context(), r, email, reason)
			uierrors.WriteError(w, http.StatusTooManyRequests, reason)
			return
		}
	}

	if email == "" || password == "" {
		uierrors.WriteError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	/*── look up the account ────────────────────────────────────────────────*/

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "login user lookup")
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		passwords.Burn(password)
		h.AuditLog.LoginFailedUserNotFound(ctx, r, email)
		uierrors.WriteError(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "login: find user", err, msgServerError)
		return
	}

	if err := passwords.Check(u.PasswordHash, password); err != nil {
		h.AuditLog.LoginFailedWrongPassword(ctx, r, u.ID, email)
		uierrors.WriteError(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	/*── issue session ─────────────────────────────────────────────────────*/

	if err := h.SessionMgr.Issue(w, u.ID); err != nil {
		h.ErrLog.LogServerError(w, r, "login: issue session", err, msgServerError)
		return
	}

	if h.Limiter != nil {
		h.Limiter.ResetEmail(email)
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, email)
	h.Log.Info("user signed in", zap.String("user_id", u.ID))

	uierrors.WriteJSON(w, http.StatusOK, successResponse{Success: true, RedirectPath: h.RedirectPath})
}
