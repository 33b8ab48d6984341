package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/i2y/misperer/internal/domain"
)

const instrumentationName = "github.com/i2y/misperer/internal/usecase"

// Call outcomes recorded on the invocation counter.
const (
	outcomeOK              = "ok"
	outcomeToolError       = "tool_error"
	outcomeUnknownTool     = "unknown_tool"
	outcomeInvalidArgument = "invalid_arguments"
)

// InvokeToolUseCase is the dispatcher: it resolves a tool by name, validates
// the arguments against the tool's schema and runs the bound handler against
// the shared collaborator.
type InvokeToolUseCase struct {
	catalog  *Catalog
	handlers *toolHandlers
	logger   *slog.Logger
	tracer   trace.Tracer
	calls    metric.Int64Counter
}

// NewInvokeToolUseCase creates a new InvokeToolUseCase. The dispatch table is
// the catalog itself, so a tool is callable exactly when it is listed.
func NewInvokeToolUseCase(catalog *Catalog, client MISPClient, logger *slog.Logger) *InvokeToolUseCase {
	logger = logger.With("usecase", "InvokeTool")
	calls, err := otel.Meter(instrumentationName).Int64Counter(
		"misperer.tool.calls",
		metric.WithDescription("Tool invocations by tool and outcome."),
	)
	if err != nil {
		logger.Warn("Failed to create tool call counter", slog.Any("error", err))
	}
	return &InvokeToolUseCase{
		catalog: catalog,
		handlers: &toolHandlers{
			client: client,
			events: newKeyedMutex(),
			logger: logger.With("component", "handlers"),
		},
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		calls:  calls,
	}
}

// Execute runs one tool invocation.
//
// Unknown tools and arguments that fail validation are returned as errors
// wrapping ErrToolNotFound and ErrInvalidArguments; the collaborator is never
// called for them. A failing handler is not an error: it yields a result with
// IsError set and a single text block describing the failure.
func (uc *InvokeToolUseCase) Execute(ctx context.Context, toolName string, arguments map[string]any) (domain.Result, error) {
	log := uc.logger.With(slog.String("tool_name", toolName))
	ctx, span := uc.tracer.Start(ctx, "tools/call "+toolName,
		trace.WithAttributes(attribute.String("mcp.tool.name", toolName)))
	defer span.End()

	log.Info("Executing tool invocation")

	// 1. Find the tool
	entry, ok := uc.catalog.entry(toolName)
	if !ok {
		log.Warn("Tool not found")
		err := fmt.Errorf("tool '%s': %w", toolName, ErrToolNotFound)
		uc.record(ctx, span, toolName, outcomeUnknownTool, err)
		return domain.Result{}, err
	}

	// 2. Validate the arguments before anything reaches the collaborator
	if err := validateArguments(entry.schema, arguments); err != nil {
		log.Warn("Invalid input parameters", slog.Any("error", err))
		uc.record(ctx, span, toolName, outcomeInvalidArgument, err)
		return domain.Result{}, fmt.Errorf("tool '%s': %w", toolName, err)
	}

	// 3. Run the handler
	result, err := entry.run(uc.handlers, ctx, arguments)
	if errors.Is(err, ErrInvalidArguments) {
		log.Warn("Arguments could not be decoded", slog.Any("error", err))
		uc.record(ctx, span, toolName, outcomeInvalidArgument, err)
		return domain.Result{}, fmt.Errorf("tool '%s': %w", toolName, err)
	}
	if err != nil {
		log.Error("Tool handler failed", slog.Any("error", err))
		uc.record(ctx, span, toolName, outcomeToolError, err)
		return domain.ErrorResult(fmt.Sprintf("Error calling %s: %v", toolName, err)), nil
	}

	if len(result.Content) == 0 {
		result = domain.TextResult(fmt.Sprintf("%s completed with no output", toolName))
	}
	uc.record(ctx, span, toolName, outcomeOK, nil)
	log.Info("Tool invocation successful", slog.Int("content_blocks", len(result.Content)))
	return result, nil
}

func (uc *InvokeToolUseCase) record(ctx context.Context, span trace.Span, toolName, outcome string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.String("mcp.tool.outcome", outcome))
	if uc.calls != nil {
		uc.calls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", toolName),
			attribute.String("outcome", outcome),
		))
	}
}
