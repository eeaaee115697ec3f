package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/narvanalabs/lnsync/internal/models"
	"github.com/narvanalabs/lnsync/internal/store"
	"github.com/narvanalabs/lnsync/pkg/logger"
)

// NodeHandler handles node read endpoints.
type NodeHandler struct {
	store  store.Store
	logger *slog.Logger
}

// NewNodeHandler creates a new node handler.
func NewNodeHandler(st store.Store, logger *slog.Logger) *NodeHandler {
	return &NodeHandler{
		store:  st,
		logger: logger,
	}
}

// List handles GET /nodes. An empty store yields an empty JSON array.
func (h *NodeHandler) List(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.store.Nodes().List(r.Context())
	if err != nil {
		h.logger.Error("failed to list nodes",
			"request_id", logger.RequestIDFromContext(r.Context()),
			"error", err,
		)
		WriteInternalError(w, "Failed to list nodes")
		return
	}

	if nodes == nil {
		nodes = []*models.Node{}
	}

	WriteJSON(w, http.StatusOK, nodes)
}

// Get handles GET /nodes/{publicKey}.
func (h *NodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	publicKey := chi.URLParam(r, "publicKey")
	if publicKey == "" {
		WriteBadRequest(w, "public key is required")
		return
	}

	node, err := h.store.Nodes().Get(r.Context(), publicKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Node not found")
			return
		}
		h.logger.Error("failed to get node",
			"request_id", logger.RequestIDFromContext(r.Context()),
			"public_key", publicKey,
			"error", err,
		)
		WriteInternalError(w, "Failed to get node")
		return
	}

	WriteJSON(w, http.StatusOK, node)
}
