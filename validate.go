package talon

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateArgs runs `validate` struct tags over the call's record-shaped
// arguments. Only body, form, query and multipart values are candidates;
// scalars and untagged structs pass through untouched.
func (p *Plan) validateArgs(args []any) error {
	for i, b := range p.bindings {
		switch b.role {
		case RoleBody, RoleForm, RoleQuery, RoleMultipart:
		default:
			continue
		}
		if i >= len(args) {
			break
		}
		v, ok := derefValue(args[i])
		if !ok {
			continue
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Struct || isScalarType(rv.Type()) {
			continue
		}
		if err := validate.Struct(v); err != nil {
			var valErrs validator.ValidationErrors
			if errors.As(err, &valErrs) {
				msgs := make([]string, 0, len(valErrs))
				for _, ve := range valErrs {
					msgs = append(msgs, ve.Field()+": "+formatValidationError(ve))
				}
				return encodeErrorf(p.op, b.param.Name, "%s", strings.Join(msgs, "; "))
			}
			return encodeErrorf(p.op, b.param.Name, "validate: %v", err)
		}
	}
	return nil
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", ve.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", ve.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", ve.Param())
	case "eq":
		return fmt.Sprintf("must equal %s", ve.Param())
	case "ne":
		return fmt.Sprintf("must not equal %s", ve.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", ve.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", ve.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}
