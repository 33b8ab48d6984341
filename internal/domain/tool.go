package domain

// Tool represents one named, schema-described procedure exposed over MCP.
// Based on MCP Spec 2025-03-26: https://modelcontextprotocol.io/specification/2025-03-26
type Tool struct {
	// Name MUST be unique within the catalog.
	Name string `json:"name"`

	// Description provides a natural language explanation of what the tool does.
	// This is crucial for the LLM to understand when to use the tool.
	Description string `json:"description"`

	// InputSchema defines the structure of the arguments the tool expects.
	// Always of type "object".
	InputSchema JSONSchemaProps `json:"inputSchema"`

	// Hints describe side effects so clients can decide whether to ask for confirmation.
	Hints ToolHints `json:"annotations"`
}

// ToolHints mirrors the MCP tool annotations.
type ToolHints struct {
	ReadOnly    bool `json:"readOnlyHint"`
	Destructive bool `json:"destructiveHint"`
	Idempotent  bool `json:"idempotentHint"`
}

// JSONSchemaProps represents the properties of a JSON schema,
// commonly used for input definitions in MCP tools.
// This is a simplified version covering the argument shapes the catalog uses.
type JSONSchemaProps struct {
	Type        string                     `json:"type"`                  // "object", "string", "integer", "boolean", "array"
	Description string                     `json:"description,omitempty"` // Shown to the client next to the argument
	Properties  map[string]JSONSchemaProps `json:"properties,omitempty"`  // For type "object"
	Required    []string                   `json:"required,omitempty"`    // For type "object"
	Items       *JSONSchemaProps           `json:"items,omitempty"`       // For type "array"
	Format      string                     `json:"format,omitempty"`      // e.g., "date", "uuid"
	MinLength   int                        `json:"minLength,omitempty"`   // For type "string"
	MinItems    int                        `json:"minItems,omitempty"`    // For type "array"
	Enum        []interface{}              `json:"enum,omitempty"`        // Possible values
}

// Content is a single block of an invocation result. Only text blocks are produced.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the ordered content produced by one tool invocation.
// IsError marks a call that reached its handler but failed there.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// TextResult wraps text into a single-block successful result.
func TextResult(text string) Result {
	return Result{Content: []Content{{Type: "text", Text: text}}}
}

// ErrorResult wraps a diagnostic into a single-block failed result.
func ErrorResult(text string) Result {
	return Result{Content: []Content{{Type: "text", Text: text}}, IsError: true}
}
