package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/services"
	"github.com/cboydstun/bounce-v3-sub014/pkg/middleware"
)

// AuthHandler issues socket tokens for contractors the account system has
// already verified. Credential checks live upstream; this only gates on the
// active/verified flags.
type AuthHandler struct {
	contractors *services.ContractorService
	tokenSvc    *services.TokenService
}

func NewAuthHandler(c *services.ContractorService, t *services.TokenService) *AuthHandler {
	return &AuthHandler{contractors: c, tokenSvc: t}
}

func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	log, _ := r.Context().Value(middleware.LoggerKey).(*slog.Logger)
	if log == nil {
		log = slog.Default()
	}
	var req struct {
		ContractorID string `json:"contractor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.ErrorContext(r.Context(), "auth handler - bad request")
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	profile, err := h.contractors.GetProfile(r.Context(), req.ContractorID)
	if err != nil {
		log.ErrorContext(r.Context(), "auth handler - contractor rejected", "contractor_id", req.ContractorID, "err", err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	token, err := h.tokenSvc.GenerateToken(profile.ID)
	if err != nil {
		log.ErrorContext(r.Context(), "auth handler - generate token failed", "contractor_id", profile.ID)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token":         token,
		"contractor_id": profile.ID,
		"verified":      profile.IsVerified,
	})
	log.InfoContext(r.Context(), "auth handler - token issued", "contractor_id", profile.ID)
}
