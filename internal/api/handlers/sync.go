package handlers

import (
	"log/slog"
	"net/http"

	"github.com/narvanalabs/lnsync/internal/api/middleware"
	"github.com/narvanalabs/lnsync/internal/synchronizer"
)

// SyncTrigger queues manual sync cycles.
type SyncTrigger interface {
	Trigger() bool
	State() synchronizer.State
}

// SyncHandler handles the manual sync endpoint.
type SyncHandler struct {
	sync   SyncTrigger
	logger *slog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(sync SyncTrigger, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		sync:   sync,
		logger: logger,
	}
}

// TriggerResponse is returned by POST /admin/sync.
type TriggerResponse struct {
	Queued bool   `json:"queued"`
	State  string `json:"state"`
}

// Trigger handles POST /admin/sync.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	queued := h.sync.Trigger()

	h.logger.Info("manual sync requested",
		"subject", middleware.GetSubject(r.Context()),
		"queued", queued,
	)

	WriteJSON(w, http.StatusAccepted, TriggerResponse{
		Queued: queued,
		State:  string(h.sync.State()),
	})
}
