package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/i2y/misperer/internal/domain"
	// Import mcp types needed for the adapter interface
	"github.com/mark3labs/mcp-go/mcp"
	// Import server type for the handler function
	mcpGoServer "github.com/mark3labs/mcp-go/server"
)

// Standard errors returned by use cases and adapters.
var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrInvalidArguments = errors.New("invalid arguments")
)

// --- Collaborator ---

// MISPClient is the pre-authenticated platform client every handler works through.
// Raw results are returned untouched so handlers can pass them through as text.
type MISPClient interface {
	// Search runs one restSearch call against query.Controller.
	Search(ctx context.Context, query domain.SearchQuery) (json.RawMessage, error)
	// BuildComplexQuery combines values into the platform's boolean filter form.
	BuildComplexQuery(or, and, not []string) domain.ComplexQuery

	// GetEvent fetches one event by numeric id or uuid.
	GetEvent(ctx context.Context, ref string, metadataOnly bool) (json.RawMessage, error)
	AddEvent(ctx context.Context, event domain.Event) (json.RawMessage, error)
	UpdateEvent(ctx context.Context, event domain.Event) (json.RawMessage, error)
	PublishEvent(ctx context.Context, eventID string) (json.RawMessage, error)
	DeleteEvent(ctx context.Context, eventID string) (json.RawMessage, error)

	// DeleteAttribute soft-deletes unless hard is set.
	DeleteAttribute(ctx context.Context, attributeID string, hard bool) (json.RawMessage, error)
	DeleteObject(ctx context.Context, objectID string) (json.RawMessage, error)
	DeleteTag(ctx context.Context, tagID string) (json.RawMessage, error)

	Organisations(ctx context.Context) (json.RawMessage, error)
	Logs(ctx context.Context, query domain.LogQuery) (json.RawMessage, error)

	Users(ctx context.Context) (json.RawMessage, error)
	AddUser(ctx context.Context, user domain.User) (json.RawMessage, error)
	EditUser(ctx context.Context, userID string, changes domain.User) (json.RawMessage, error)
	DeleteUser(ctx context.Context, userID string) (json.RawMessage, error)

	// Version probes connectivity and credentials.
	Version(ctx context.Context) (string, error)
}

// --- MCP Server Abstraction ---

// MCPServerAdapter defines the interface required by the RegisterToolsUseCase
// to interact with the underlying MCP server (like mcp-go).
// This avoids direct dependency on a specific server implementation in the use case.
type MCPServerAdapter interface {
	// AddTool registers a tool and its handler with the server.
	AddTool(tool mcp.Tool, handlerFunc mcpGoServer.ToolHandlerFunc)
}
