package mcphttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/i2y/misperer/internal/usecase"
	"github.com/i2y/misperer/pkg/shared/mcpjsonrpc"
)

// HealthChecker probes the platform behind the server.
type HealthChecker interface {
	Version(ctx context.Context) (string, error)
}

// Handlers struct holds dependencies for the HTTP handlers.
type Handlers struct {
	serveToolsUseCase  *usecase.ServeToolsUseCase
	invokeToolUseCase  *usecase.InvokeToolUseCase
	health             HealthChecker
	logger             *slog.Logger
	maxRequestBodySize int64
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(
	serveUC *usecase.ServeToolsUseCase,
	invokeUC *usecase.InvokeToolUseCase,
	health HealthChecker,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		serveToolsUseCase:  serveUC,
		invokeToolUseCase:  invokeUC,
		health:             health,
		logger:             logger.With("component", "mcphttp_handler"),
		maxRequestBodySize: 1 << 20,
	}
}

// RegisterAdminRoutes sets up the HTTP routes for health and admin endpoints.
func (h *Handlers) RegisterAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /admin/tools", h.handleListTools)
	mux.HandleFunc("POST /admin/invoke", h.handleInvoke)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("Failed to write response", slog.Any("error", err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status, code int, message string) {
	h.writeJSON(w, status, mcpjsonrpc.ErrorResponse{Error: &mcpjsonrpc.Error{Code: code, Message: message}})
}

// handleHealth implements GET /healthz
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	version, err := h.health.Version(r.Context())
	if err != nil {
		h.logger.Warn("Health probe failed", slog.Any("error", err))
		h.writeJSON(w, http.StatusServiceUnavailable, mcpjsonrpc.HealthStatus{Status: "unavailable", Error: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, mcpjsonrpc.HealthStatus{Status: "ok", MISPVersion: version})
}

// handleListTools implements GET /admin/tools
func (h *Handlers) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools := h.serveToolsUseCase.Execute(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

// handleInvoke implements POST /admin/invoke
func (h *Handlers) handleInvoke(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req mcpjsonrpc.InvokeToolParams
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxRequestBodySize)).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode invoke request body", slog.Any("error", err))
		h.writeError(w, http.StatusBadRequest, mcpjsonrpc.CodeParseError, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.ToolName == "" {
		h.logger.Warn("Invoke request missing toolName field")
		h.writeError(w, http.StatusBadRequest, mcpjsonrpc.CodeInvalidRequest, "Missing 'toolName' field in request body")
		return
	}

	h.logger.Info("Received invoke request", slog.String("tool_name", req.ToolName))
	result, err := h.invokeToolUseCase.Execute(r.Context(), req.ToolName, req.Arguments)
	switch {
	case errors.Is(err, usecase.ErrToolNotFound):
		h.writeError(w, http.StatusNotFound, mcpjsonrpc.CodeServerErrorToolNotFound, err.Error())
		return
	case errors.Is(err, usecase.ErrInvalidArguments):
		h.writeError(w, http.StatusBadRequest, mcpjsonrpc.CodeInvalidParams, err.Error())
		return
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, mcpjsonrpc.CodeInternalError, err.Error())
		return
	}

	out := mcpjsonrpc.InvokeToolResult{
		Content: make([]mcpjsonrpc.ContentBlock, 0, len(result.Content)),
		IsError: result.IsError,
	}
	for _, c := range result.Content {
		out.Content = append(out.Content, mcpjsonrpc.ContentBlock{Type: c.Type, Text: c.Text})
	}
	h.writeJSON(w, http.StatusOK, out)
}
