package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_SuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, map[string]string{"hello": "world"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "world", body["data"].(map[string]any)["hello"])
	assert.NotContains(t, body, "error")
}

func TestHandleError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, NewValidationError("scale must be 2 or 4"))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "validation_error", errObj["type"])
	assert.Equal(t, "scale must be 2 or 4", errObj["message"])
}

func TestHandleError_UnknownErrorBecomesServerError(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, errors.New("boom"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "server_error", errObj["type"])
	// Internal detail must not leak.
	assert.NotContains(t, errObj["message"], "boom")
}

func TestNewQuotaExceededError_CarriesScopeAndCounters(t *testing.T) {
	appErr := NewQuotaExceededError("daily", 20, 20)
	assert.Equal(t, http.StatusTooManyRequests, appErr.Code)
	assert.Equal(t, TypeQuotaExceeded, appErr.Type)

	details := appErr.Details.(map[string]any)
	assert.Equal(t, "daily", details["scope"])
	assert.Equal(t, 20, details["used"])
	assert.Equal(t, 20, details["limit"])
}
