// internal/app/features/userinfo/handler.go
package userinfo

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/insighthub/internal/app/features/errors"
	userstore "github.com/dalemusser/insighthub/internal/app/store/users"
	"github.com/dalemusser/insighthub/internal/app/system/auth"
	"github.com/dalemusser/insighthub/internal/app/system/timeouts"
	"github.com/dalemusser/insighthub/internal/domain/models"
	"go.uber.org/zap"
)

// UserLookup loads an account by id.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Handler serves user information for authenticated sessions.
type Handler struct {
	Users  UserLookup
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler creates a new userinfo handler.
func NewHandler(users UserLookup, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Log: logger, ErrLog: errLog}
}

type userResponse struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	Role              string `json:"role"`
	Designation       string `json:"designation"`
	IsPasswordChanged bool   `json:"isPasswordChanged"`
}

// ServeUserInfo returns the signed-in user's profile.
//
// Response format:
//
//	{ "id": "...", "email": "...", "name": "...", "role": "...",
//	  "designation": "...", "isPasswordChanged": bool }
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		auth.WriteUnauthorized(w)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "load user info")
	defer cancel()

	u, err := h.Users.GetByID(ctx, su.ID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			auth.WriteUnauthorized(w)
			return
		}
		h.ErrLog.LogServerError(w, r, "load user info failed", err, "A database error occurred.")
		return
	}

	uierrors.WriteJSON(w, http.StatusOK, userResponse{
		ID:                u.ID,
		Email:             u.Email,
		Name:              u.Name,
		Role:              u.Role,
		Designation:       u.Designation,
		IsPasswordChanged: u.IsPasswordChanged,
	})
}
