package mcpjsonrpc

// Wire types of the admin HTTP surface. Errors reuse the JSON-RPC 2.0 error
// object and codes: https://www.jsonrpc.org/specification

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int         `json:"code"`           // Error code
	Message string      `json:"message"`        // Error message
	Data    interface{} `json:"data,omitempty"` // Additional data about the error
}

// ErrorResponse wraps an Error for plain HTTP replies.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// Error codes (subset, based on JSON-RPC spec and application errors)
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	// -32000 to -32099: Server error (implementation-defined)
	CodeServerErrorToolNotFound = -32000
)

// InvokeToolParams is the body of POST /admin/invoke.
type InvokeToolParams struct {
	ToolName  string                 `json:"toolName"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ContentBlock is one block of a tool result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// InvokeToolResult is the reply of POST /admin/invoke.
type InvokeToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// HealthStatus is the reply of GET /healthz.
type HealthStatus struct {
	Status      string `json:"status"`
	MISPVersion string `json:"mispVersion,omitempty"`
	Error       string `json:"error,omitempty"`
}
