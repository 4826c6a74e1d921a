// internal/app/features/changepassword/routes.go
package changepassword

import (
	"github.com/dalemusser/insighthub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/", h.HandleChangePassword)
	})
	return r
}
