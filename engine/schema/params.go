package schema

import (
	"context"
	"errors"
	"fmt"
)

// ParamsValidator checks a step's resolved `with` parameters against its
// declared input schema, satisfying the Validator interface so it can be
// composed alongside struct-level validators.
type ParamsValidator struct {
	id     string
	params map[string]any
	schema Schema
}

func NewParamsValidator(with map[string]any, schema Schema, id string) *ParamsValidator {
	return &ParamsValidator{
		id:     id,
		params: with,
		schema: schema,
	}
}

func (v *ParamsValidator) Validate(ctx context.Context) error {
	if v.schema == nil {
		return nil
	}

	if v.params == nil {
		return fmt.Errorf(
			"%w for %s: %s",
			errors.New("validation error"),
			v.id,
			"parameters are nil but a schema is defined",
		)
	}

	if _, err := v.schema.Validate(ctx, v.params); err != nil {
		return fmt.Errorf("%w for %s: %w", errors.New("with parameters invalid"), v.id, err)
	}

	return nil
}
