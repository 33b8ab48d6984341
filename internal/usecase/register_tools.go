package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/i2y/misperer/internal/domain"
)

// RegisterToolsUseCase publishes the catalog on an MCP server and routes every
// tools/call through the dispatcher.
type RegisterToolsUseCase struct {
	serve  *ServeToolsUseCase
	invoke *InvokeToolUseCase
	server MCPServerAdapter
	logger *slog.Logger
}

// NewRegisterToolsUseCase creates a new RegisterToolsUseCase.
func NewRegisterToolsUseCase(
	serve *ServeToolsUseCase,
	invoke *InvokeToolUseCase,
	server MCPServerAdapter,
	logger *slog.Logger,
) *RegisterToolsUseCase {
	return &RegisterToolsUseCase{
		serve:  serve,
		invoke: invoke,
		server: server,
		logger: logger.With("usecase", "RegisterTools"),
	}
}

// Execute registers every catalog tool with the MCP server.
func (uc *RegisterToolsUseCase) Execute(ctx context.Context) error {
	tools := uc.serve.Execute(ctx)
	for _, tool := range tools {
		mcpTool, err := ToMCPTool(tool)
		if err != nil {
			uc.logger.Error("Failed to convert tool", slog.String("tool_name", tool.Name), slog.Any("error", err))
			return fmt.Errorf("convert tool %s: %w", tool.Name, err)
		}
		uc.server.AddTool(mcpTool, uc.handle)
	}
	uc.logger.Info("Registered tools with MCP server", slog.Int("tool_count", len(tools)))
	return nil
}

// handle is the mcp-go handler shared by every tool. Request-level failures
// (unknown tool, invalid arguments) become error results so the session
// keeps running.
func (uc *RegisterToolsUseCase) handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := uc.invoke.Execute(ctx, request.Params.Name, request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return ToCallToolResult(result), nil
}

// ToMCPTool converts a catalog tool into its mcp-go form.
func ToMCPTool(tool domain.Tool) (mcp.Tool, error) {
	props := make(map[string]any, len(tool.InputSchema.Properties))
	for name, prop := range tool.InputSchema.Properties {
		m, err := schemaMap(prop)
		if err != nil {
			return mcp.Tool{}, fmt.Errorf("property %s: %w", name, err)
		}
		props[name] = m
	}
	return mcp.Tool{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   tool.InputSchema.Required,
		},
		Annotations: mcp.ToolAnnotation{
			ReadOnlyHint:    boolPtr(tool.Hints.ReadOnly),
			DestructiveHint: boolPtr(tool.Hints.Destructive),
			IdempotentHint:  boolPtr(tool.Hints.Idempotent),
			OpenWorldHint:   boolPtr(true),
		},
	}, nil
}

func schemaMap(schema domain.JSONSchemaProps) (map[string]any, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ToCallToolResult converts a dispatcher result into its mcp-go form.
func ToCallToolResult(result domain.Result) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(result.Content))
	for _, block := range result.Content {
		content = append(content, mcp.TextContent{Type: "text", Text: block.Text})
	}
	return &mcp.CallToolResult{Content: content, IsError: result.IsError}
}
