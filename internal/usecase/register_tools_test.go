package usecase_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpGoServer "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/i2y/misperer/internal/domain"
	"github.com/i2y/misperer/internal/usecase"
)

// MockMCPServer is a mock implementation of the MCPServerAdapter interface.
type MockMCPServer struct {
	mock.Mock
	handlers map[string]mcpGoServer.ToolHandlerFunc
}

func (m *MockMCPServer) AddTool(tool mcp.Tool, handlerFunc mcpGoServer.ToolHandlerFunc) {
	m.Called(tool.Name)
	if m.handlers == nil {
		m.handlers = make(map[string]mcpGoServer.ToolHandlerFunc)
	}
	m.handlers[tool.Name] = handlerFunc
}

func newRegisterUseCase(t *testing.T, client usecase.MISPClient, server usecase.MCPServerAdapter, opts usecase.CatalogOptions) *usecase.RegisterToolsUseCase {
	t.Helper()
	catalog, err := usecase.NewCatalog(opts)
	require.NoError(t, err)
	logger := testLogger()
	return usecase.NewRegisterToolsUseCase(
		usecase.NewServeToolsUseCase(catalog, logger),
		usecase.NewInvokeToolUseCase(catalog, client, logger),
		server,
		logger,
	)
}

func TestRegisterToolsUseCase_Execute(t *testing.T) {
	tests := []struct {
		name      string
		opts      usecase.CatalogOptions
		wantCount int
	}{
		{name: "Full catalog", opts: usecase.CatalogOptions{}, wantCount: len(readToolNames) + len(writeToolNames)},
		{name: "Read-only catalog", opts: usecase.CatalogOptions{ReadOnly: true}, wantCount: len(readToolNames)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := new(MockMCPServer)
			server.On("AddTool", mock.Anything).Return()

			uc := newRegisterUseCase(t, new(MockMISPClient), server, tt.opts)
			require.NoError(t, uc.Execute(context.Background()))

			server.AssertNumberOfCalls(t, "AddTool", tt.wantCount)
			assert.Len(t, server.handlers, tt.wantCount)
		})
	}
}

func TestRegisterToolsUseCase_HandlerReportsRequestErrors(t *testing.T) {
	server := new(MockMCPServer)
	server.On("AddTool", mock.Anything).Return()
	client := new(MockMISPClient)
	uc := newRegisterUseCase(t, client, server, usecase.CatalogOptions{})
	require.NoError(t, uc.Execute(context.Background()))

	handler := server.handlers["search_by_tags"]
	require.NotNil(t, handler)

	var req mcp.CallToolRequest
	req.Params.Name = "search_by_tags"
	req.Params.Arguments = map[string]any{"tags": 12}

	result, err := handler(context.Background(), req)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, usecase.ErrInvalidArguments.Error())
	assert.Empty(t, client.Calls)
}

func TestToMCPTool(t *testing.T) {
	catalog, err := usecase.NewCatalog(usecase.CatalogOptions{})
	require.NoError(t, err)
	tool, ok := findTool(t, catalog, "search_by_tags")
	require.True(t, ok)

	mcpTool, err := usecase.ToMCPTool(tool)
	require.NoError(t, err)

	assert.Equal(t, "search_by_tags", mcpTool.Name)
	assert.Equal(t, "object", mcpTool.InputSchema.Type)
	assert.Equal(t, []string{"tags"}, mcpTool.InputSchema.Required)
	prop, ok := mcpTool.InputSchema.Properties["tags"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "array", prop["type"])
	assert.Equal(t, map[string]any{"type": "string", "minLength": float64(1)}, prop["items"])
	assert.Equal(t, float64(1), prop["minItems"])
	require.NotNil(t, mcpTool.Annotations.ReadOnlyHint)
	assert.True(t, *mcpTool.Annotations.ReadOnlyHint)
	require.NotNil(t, mcpTool.Annotations.DestructiveHint)
	assert.False(t, *mcpTool.Annotations.DestructiveHint)
}

func TestToCallToolResult(t *testing.T) {
	result := usecase.ToCallToolResult(domain.ErrorResult("Error calling x: boom"))

	assert.True(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, mcp.TextContent{Type: "text", Text: "Error calling x: boom"}, result.Content[0])
}

// --- end-to-end over the mcp-go message handler ---

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type listResult struct {
	Tools []struct {
		Name        string         `json:"name"`
		InputSchema map[string]any `json:"inputSchema"`
	} `json:"tools"`
}

type callResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func roundTrip(t *testing.T, s *mcpGoServer.MCPServer, message string) rpcResponse {
	t.Helper()
	reply := s.HandleMessage(context.Background(), json.RawMessage(message))
	require.NotNil(t, reply)
	data, err := json.Marshal(reply)
	require.NoError(t, err)
	var resp rpcResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestRegisterToolsUseCase_ServesOverMCP(t *testing.T) {
	client := new(MockMISPClient)
	client.On("Search", mock.Anything, domain.SearchQuery{
		Controller: domain.ControllerEvents,
		Tags:       []string{"apt29", "malware"},
		Metadata:   true,
	}).Return(searchFixture, nil).Once()

	s := mcpGoServer.NewMCPServer("misperer", "test", mcpGoServer.WithToolCapabilities(false))
	uc := newRegisterUseCase(t, client, s, usecase.CatalogOptions{})
	require.NoError(t, uc.Execute(context.Background()))

	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`)
	require.Nil(t, resp.Error)

	resp = roundTrip(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`)
	require.Nil(t, resp.Error)
	var list listResult
	require.NoError(t, json.Unmarshal(resp.Result, &list))
	names := make([]string, 0, len(list.Tools))
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
		assert.Equal(t, "object", tool.InputSchema["type"], tool.Name)
	}
	assert.ElementsMatch(t, append(append([]string{}, readToolNames...), writeToolNames...), names)

	resp = roundTrip(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"no_such_tool","arguments":{}}}`)
	assert.NotNil(t, resp.Error, "unknown tools are rejected at the protocol level")

	resp = roundTrip(t, s, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"search_by_tags","arguments":{}}}`)
	require.Nil(t, resp.Error)
	var invalid callResult
	require.NoError(t, json.Unmarshal(resp.Result, &invalid))
	assert.True(t, invalid.IsError)

	resp = roundTrip(t, s, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"search_by_tags","arguments":{"tags":["apt29","malware"]}}}`)
	require.Nil(t, resp.Error)
	var ok callResult
	require.NoError(t, json.Unmarshal(resp.Result, &ok))
	assert.False(t, ok.IsError)
	require.Len(t, ok.Content, 1)
	assert.Equal(t, "text", ok.Content[0].Type)
	assert.Equal(t, searchFixture, ok.Content[0].Text)

	client.AssertExpectations(t)
}
