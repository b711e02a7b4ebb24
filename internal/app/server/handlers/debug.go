package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/contracts"
	"github.com/cboydstun/bounce-v3-sub014/internal/geo"
	"github.com/cboydstun/bounce-v3-sub014/pkg/middleware"
)

// DebugHandler is the read-only operational surface over room state. Access
// control is assumed to be handled upstream of this service.
type DebugHandler struct {
	rooms    contracts.Registry
	presence contracts.PresenceStore
}

func NewDebugHandler(rooms contracts.Registry, presence contracts.PresenceStore) *DebugHandler {
	return &DebugHandler{rooms: rooms, presence: presence}
}

func (h *DebugHandler) RoomStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"rooms": h.rooms.StatsByRoom(),
	})
}

func (h *DebugHandler) ContractorRooms(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "contractor id required", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{
		"contractor_id": id,
		"rooms":         h.rooms.RoomsFor(id),
		"live":          h.rooms.IsLive(id),
	})
}

func (h *DebugHandler) RoomInfo(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	desc := geo.ParseRoomKey(name)
	if desc == nil {
		http.Error(w, "unrecognized room name", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"name":       name,
		"descriptor": desc,
		"members":    h.rooms.MembersOf(name),
	})
}

func (h *DebugHandler) OnlineContractors(w http.ResponseWriter, r *http.Request) {
	log, _ := r.Context().Value(middleware.LoggerKey).(*slog.Logger)
	ids, err := h.presence.OnlineContractors(r.Context())
	if err != nil {
		if log != nil {
			log.ErrorContext(r.Context(), "debug handler - presence read failed", "err", err)
		}
		http.Error(w, "presence unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{"online": ids})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
