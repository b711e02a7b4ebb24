package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
	"github.com/cboydstun/bounce-v3-sub014/pkg/middleware"

	"github.com/google/uuid"
)

// NotificationHandler is the contractor-facing read surface over the durable
// notification records. Identity comes from the auth middleware.
type NotificationHandler struct {
	store domain.NotificationRepository
	tx    domain.TxManager
}

func NewNotificationHandler(store domain.NotificationRepository, tx domain.TxManager) *NotificationHandler {
	return &NotificationHandler{store: store, tx: tx}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	contractorID, ok := r.Context().Value(middleware.ContractorIDKey).(string)
	if !ok || contractorID == "" {
		http.Error(w, "Unauthorized: contractor id missing", http.StatusUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	notifications, err := h.store.ListForContractor(r.Context(), contractorID, limit)
	if err != nil {
		if log, _ := r.Context().Value(middleware.LoggerKey).(*slog.Logger); log != nil {
			log.ErrorContext(r.Context(), "notification handler - list failed", "contractor_id", contractorID, "err", err)
		}
		http.Error(w, "notifications unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"notifications": notifications})
}

// MarkRead acknowledges a batch of notifications in one transaction, so a
// client retry after a partial failure never sees a half-acked batch.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	contractorID, ok := r.Context().Value(middleware.ContractorIDKey).(string)
	if !ok || contractorID == "" {
		http.Error(w, "Unauthorized: contractor id missing", http.StatusUnauthorized)
		return
	}
	var req struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		http.Error(w, "notification ids required", http.StatusBadRequest)
		return
	}
	err := h.tx.WithTx(r.Context(), func(ctx context.Context) error {
		for _, id := range req.IDs {
			if err := h.store.MarkRead(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			http.Error(w, "notification not found or already read", http.StatusNotFound)
			return
		}
		http.Error(w, "mark read failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"read": len(req.IDs)})
}
