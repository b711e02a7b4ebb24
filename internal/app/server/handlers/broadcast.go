package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/services"
	"github.com/cboydstun/bounce-v3-sub014/pkg/middleware"
)

// BroadcastHandler exposes the dispatcher to the task/order layer and to ops
// tooling. Whatever the delivery outcome, the response is 200 with a
// DeliveryResult body: broadcast failure must never fail the caller's own
// domain operation.
type BroadcastHandler struct {
	dispatcher services.IBroadcastDispatcher
}

func NewBroadcastHandler(dispatcher services.IBroadcastDispatcher) *BroadcastHandler {
	return &BroadcastHandler{dispatcher: dispatcher}
}

func (h *BroadcastHandler) BroadcastTask(w http.ResponseWriter, r *http.Request) {
	log, _ := r.Context().Value(middleware.LoggerKey).(*slog.Logger)
	var req struct {
		Event         string      `json:"event"`
		Task          domain.Task `json:"task"`
		ContractorIDs []string    `json:"contractor_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Event == "" {
		req.Event = domain.EventTaskNew
	}
	var result domain.DeliveryResult
	switch req.Event {
	case domain.EventTaskNew:
		result = h.dispatcher.BroadcastNewTask(r.Context(), req.Task, req.ContractorIDs)
	case domain.EventTaskAssigned:
		if len(req.ContractorIDs) != 1 {
			http.Error(w, "task:assigned requires exactly one contractor id", http.StatusBadRequest)
			return
		}
		result = h.dispatcher.BroadcastTaskAssigned(r.Context(), req.Task, req.ContractorIDs[0])
	default:
		result = h.dispatcher.BroadcastTaskUpdate(r.Context(), req.Event, req.Task, req.ContractorIDs)
	}
	if log != nil {
		log.InfoContext(r.Context(), "broadcast handler - task broadcast requested",
			"event", req.Event, "task_id", req.Task.ID, "success", result.Success)
	}
	writeJSON(w, result)
}

func (h *BroadcastHandler) BroadcastSystem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		domain.SystemNotification
		TargetContractor string   `json:"target_contractor,omitempty"`
		ContractorIDs    []string `json:"contractor_ids,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	result := h.dispatcher.BroadcastSystemNotification(r.Context(), req.SystemNotification, req.TargetContractor, req.ContractorIDs)
	writeJSON(w, result)
}
