package validate

import (
	"github.com/go-playground/validator/v10"
)

// RequestValidator adapts go-playground/validator to Echo's Validator
// interface so handlers can call c.Validate(&req).
type RequestValidator struct {
	validator *validator.Validate
}

// New creates a request validator.
func New() *RequestValidator {
	return &RequestValidator{validator: validator.New()}
}

// Validate implements echo.Validator.
func (v *RequestValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}
