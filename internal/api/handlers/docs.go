// Package handlers provides HTTP request handlers for the read API.
package handlers

import (
	"log/slog"
	"net/http"

	apidocs "github.com/narvanalabs/lnsync/api"
)

// DocsHandler serves the API documentation.
type DocsHandler struct {
	spec   []byte
	logger *slog.Logger
}

// NewDocsHandler creates a new docs handler serving the embedded document.
func NewDocsHandler(logger *slog.Logger) *DocsHandler {
	return &DocsHandler{
		spec:   apidocs.OpenAPISpec,
		logger: logger,
	}
}

// ServeOpenAPISpec serves the OpenAPI document at /api/docs/openapi.yaml.
func (h *DocsHandler) ServeOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.spec) == 0 {
		h.logger.Error("OpenAPI document is empty")
		http.Error(w, "OpenAPI specification not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.Write(h.spec)
}
