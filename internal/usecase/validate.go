package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/i2y/misperer/internal/domain"
)

func compileSchema(schema domain.JSONSchemaProps) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
}

// validateArguments checks arguments against the compiled input schema of a
// tool. A nil mapping is treated as an empty object.
func validateArguments(schema *gojsonschema.Schema, arguments map[string]any) error {
	if arguments == nil {
		arguments = map[string]any{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(arguments))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		problems = append(problems, re.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidArguments, strings.Join(problems, "; "))
}

// decodeArguments copies a validated argument mapping into a typed struct.
func decodeArguments(arguments map[string]any, target any) error {
	if len(arguments) == 0 {
		return nil
	}
	data, err := json.Marshal(arguments)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

// bind adapts a handler taking a typed argument struct into a toolFunc.
func bind[A any](fn func(*toolHandlers, context.Context, A) (domain.Result, error)) toolFunc {
	return func(h *toolHandlers, ctx context.Context, arguments map[string]any) (domain.Result, error) {
		var args A
		if err := decodeArguments(arguments, &args); err != nil {
			return domain.Result{}, err
		}
		return fn(h, ctx, args)
	}
}
