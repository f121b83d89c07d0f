package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator. Field names in errors follow the
// struct's json tags.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate = v
	})
	return validate
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidateStruct runs struct validation and converts failures into a 400 AppError.
func ValidateStruct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return BadRequest("invalid payload", err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	appErr := NewAppError("VALIDATION_FAILED", "validation failed", http.StatusBadRequest, err)
	appErr.Details = fields
	return appErr
}

// Decode reads a single JSON document from the request body into dst,
// rejecting unknown fields.
func Decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return BadRequest("request body required", nil)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return BadRequest("request body required", err)
		}
		appErr := BadRequest("invalid payload", err)
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			appErr.Details = map[string]any{"offset": syntaxErr.Offset}
		}
		return appErr
	}
	return nil
}

// DecodeJSON decodes the request body into dst and validates it.
func DecodeJSON(r *http.Request, dst any) error {
	if err := Decode(r, dst); err != nil {
		return err
	}
	return ValidateStruct(dst)
}
