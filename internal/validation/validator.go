// Package validation adapts go-playground/validator to Echo's Validator
// interface and translates tag failures into readable messages.
package validation

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator implements echo.Validator.  Register it once on the
// Echo instance; handlers then call c.Validate(&dto) after binding.
type RequestValidator struct {
	validate *validator.Validate
}

// New returns a ready RequestValidator.
func New() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Validate checks the struct tags and wraps failures in an HTTPError so
// Echo renders a 400 with per-field messages.
func (v *RequestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = message(fe)
	}
	return echo.NewHTTPError(http.StatusBadRequest, echo.Map{
		"error":  "validation failed",
		"fields": fields,
	})
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "invalid email format"
	case "min":
		return fmt.Sprintf("minimum is %s", fe.Param())
	case "max":
		return fmt.Sprintf("maximum is %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "dive":
		return "invalid element"
	default:
		return fmt.Sprintf("invalid %s", strings.ToLower(fe.Field()))
	}
}
