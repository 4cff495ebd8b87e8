package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/relaygate/relaygate/internal/proxy"
)

// RegisterCustomValidators registers relaygate-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("cel_expr", validateCELExpr); err != nil {
		return fmt.Errorf("failed to register cel_expr validator: %w", err)
	}
	return nil
}

// validateCELExpr validates that a non-empty field compiles as a CEL
// guard predicate, catching a malformed `when` expression at config-load
// time rather than at first request.
func validateCELExpr(fl validator.FieldLevel) bool {
	expr := fl.Field().String()
	if expr == "" {
		return true
	}
	_, err := proxy.CompilePredicate(expr)
	return err == nil
}

// Validate validates the Config using struct tags and custom cross-field
// rules. Returns an error if validation fails, with actionable error
// messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateHasUpstream(); err != nil {
		return err
	}
	if err := c.validateTargetGuards(); err != nil {
		return err
	}

	return nil
}

// validateHasUpstream ensures at least one upstream is reachable: either
// a single Proxy.Target, or at least one routed TargetConfig.
func (c *Config) validateHasUpstream() error {
	if c.Proxy.Target == "" && len(c.Targets) == 0 {
		return errors.New("config: either proxy.target or at least one entry in targets is required")
	}
	return nil
}

// validateTargetGuards compiles every TargetConfig's When expression,
// duplicating the cel_expr struct-tag check (which validator/v10's "dive"
// does not reach reliably for a dive-and-field combination) as a
// belt-and-suspenders cross-field pass.
func (c *Config) validateTargetGuards() error {
	for i, t := range c.Targets {
		if t.When == "" {
			continue
		}
		if _, err := proxy.CompilePredicate(t.When); err != nil {
			return fmt.Errorf("targets[%d] (%s): invalid when expression: %w", i, t.Name, err)
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a
// single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", field, e.Param())
	case "required_if":
		return fmt.Sprintf("%s is required given %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s items", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "cel_expr":
		return fmt.Sprintf("%s must be a valid CEL boolean expression", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
