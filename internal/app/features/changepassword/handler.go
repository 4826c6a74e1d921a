// internal/app/features/changepassword/handler.go
package changepassword

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/insighthub/internal/app/features/errors"
	userstore "github.com/dalemusser/insighthub/internal/app/store/users"
	"github.com/dalemusser/insighthub/internal/app/system/auditlog"
	"github.com/dalemusser/insighthub/internal/app/system/auth"
	"github.com/dalemusser/insighthub/internal/app/system/passwords"
	"github.com/dalemusser/insighthub/internal/app/system/timeouts"
	"github.com/dalemusser/insighthub/internal/domain/models"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	msgAllFieldsRequired = "All fields are required."
	msgMismatch          = "New password and confirm password do not match."
	msgInvalidOld        = "Invalid old password."
	msgTooShort          = "New password must be at least 8 characters."
	msgTooLong           = "New password must be at most 72 bytes."
	msgDBTimeout         = "Database connection timed out. Please try again later or check server logs."
	msgServerError       = "A server error occurred."
	msgChanged           = "Password changed successfully."
)

// UserStore is what the handler needs from the user store.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

type Handler struct {
	Users    UserStore
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

func NewHandler(users UserStore, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    users,
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: audit,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /change-password                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleChangePassword replaces the signed-in user's password after
// verifying the old one, and marks the password as changed.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		auth.WriteUnauthorized(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.")
		return
	}

	oldPassword := r.FormValue("oldPassword")
	newPassword := r.FormValue("newPassword")
	confirmPassword := r.FormValue("confirmPassword")

	if oldPassword == "" || newPassword == "" || confirmPassword == "" {
		uierrors.WriteError(w, http.StatusBadRequest, msgAllFieldsRequired)
		return
	}
	if newPassword != confirmPassword {
		uierrors.WriteError(w, http.StatusBadRequest, msgMismatch)
		return
	}
	switch err := passwords.Validate(newPassword); {
	case errors.Is(err, passwords.ErrTooShort):
		uierrors.WriteError(w, http.StatusBadRequest, msgTooShort)
		return
	case errors.Is(err, passwords.ErrTooLong):
		uierrors.WriteError(w, http.StatusBadRequest, msgTooLong)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "change password")
	defer cancel()

	u, err := h.Users.GetByID(ctx, su.ID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			// session outlived the account
			auth.WriteUnauthorized(w)
			return
		}
		h.storeFailure(w, r, "change password: load user", err)
		return
	}

	if err := passwords.Check(u.PasswordHash, oldPassword); err != nil {
		h.AuditLog.PasswordChangeFailed(ctx, r, u.ID, "invalid old password")
		uierrors.WriteError(w, http.StatusBadRequest, msgInvalidOld)
		return
	}

	hash, err := passwords.Hash(newPassword)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "change password: hash", err, msgServerError)
		return
	}

	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		h.storeFailure(w, r, "change password: update", err)
		return
	}

	h.AuditLog.PasswordChanged(ctx, r, u.ID)
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": msgChanged})
}

func (h *Handler) storeFailure(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if isTimeout(err) {
		h.ErrLog.LogServerError(w, r, msg, err, msgDBTimeout)
		return
	}
	h.ErrLog.LogServerError(w, r, msg, err, msgServerError)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err)
}
