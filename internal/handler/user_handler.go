package handler

import (
	"context"
	"net/http"

	"mytune-auth/internal/middleware"
	"mytune-auth/internal/model"
)

type accountService interface {
	Profile(ctx context.Context, userID int64) (model.PublicUser, error)
	ListSessions(ctx context.Context, userID int64) ([]model.Session, error)
	ChangePassword(ctx context.Context, userID int64, current string, next string) error
}

// UserHandler serves the caller's own account.
type UserHandler struct {
	service accountService
}

func NewUserHandler(service accountService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrInvalidToken)
		return
	}

	user, err := h.service.Profile(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", map[string]model.PublicUser{"user": user})
}

func (h *UserHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrInvalidToken)
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []model.Session{}
	}

	writeSuccess(w, http.StatusOK, "", model.SessionList{Sessions: sessions})
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrInvalidToken)
		return
	}

	var payload model.ChangePasswordRequest
	if !decodeJSON(w, r, &payload) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), claims.UserID, payload.CurrentPassword, payload.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Password changed; all sessions have been revoked", nil)
}
