package common

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Type  string `json:"type" validate:"required,oneof=PERCENTAGE FIXED"`
	Value int64  `json:"value" validate:"gt=0"`
}

func TestDecodeJSONValid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"FIXED","value":500}`))
	var p samplePayload
	require.NoError(t, DecodeJSON(req, &p))
	require.Equal(t, int64(500), p.Value)
}

func TestDecodeJSONValidationDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"BOGO","value":0}`))
	var p samplePayload
	err := DecodeJSON(req, &p)

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	require.Equal(t, "VALIDATION_FAILED", appErr.Code)
	fields, ok := appErr.Details.([]FieldError)
	require.True(t, ok)
	require.ElementsMatch(t, []string{"type", "value"}, []string{fields[0].Field, fields[1].Field})
}

func TestDecodeJSONRejectsUnknownFieldsAndSyntax(t *testing.T) {
	var p samplePayload
	err := DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"FIXED","value":1,"x":1}`)), &p)
	require.Error(t, err)
	require.True(t, IsAppError(err))

	err = DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":`)), &p)
	require.Error(t, err)

	err = DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``)), &p)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "request body required", appErr.Message)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, NotFound("product not found", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"product not found"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteError(rec, errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "INTERNAL")
}
