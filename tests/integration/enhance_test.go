//go:build integration

package integration

import (
	"io"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnhanceAsGuest(t *testing.T) {
	env := SetupTestEnv(t)
	guestID := uuid.New().String()

	resp := DoUpload(t, env, "/api/v1/enhance", PNGImage, map[string]string{"model": "real-esrgan"}, "", guestID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, guestID, resp.Header.Get("X-Guest-ID"))

	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	assert.Equal(t, "real-esrgan", data["model"])
	assert.NotEmpty(t, data["input_url"])
	assert.NotEmpty(t, data["output_url"])
	// Echo provider: output is the stored input.
	assert.Equal(t, data["input_url"], data["output_url"])

	usage := data["usage"].(map[string]any)
	daily := usage["daily"].(map[string]any)
	assert.Equal(t, float64(1), daily["used"])
	assert.Equal(t, float64(3), daily["limit"])

	// The stored blob is served back with its sniffed content type.
	fileResp, err := http.Get(env.Server.URL + data["output_url"].(string))
	require.NoError(t, err)
	defer fileResp.Body.Close()
	require.Equal(t, http.StatusOK, fileResp.StatusCode)
	assert.Equal(t, "image/png", fileResp.Header.Get("Content-Type"))
	served, _ := io.ReadAll(fileResp.Body)
	assert.Equal(t, PNGImage, served)
}

func TestEnhanceMintsGuestID(t *testing.T) {
	env := SetupTestEnv(t)

	resp := DoUpload(t, env, "/api/v1/enhance", PNGImage, map[string]string{"model": "real-esrgan"}, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ParseResponse(t, resp)

	minted := resp.Header.Get("X-Guest-ID")
	_, err := uuid.Parse(minted)
	assert.NoError(t, err)
}

func TestEnhanceGuestDailyQuota(t *testing.T) {
	env := SetupTestEnv(t)
	guestID := uuid.New().String()

	for i := 0; i < 3; i++ {
		resp := DoUpload(t, env, "/api/v1/enhance", PNGImage, map[string]string{"model": "real-esrgan"}, "", guestID)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		ParseResponse(t, resp)
	}

	resp := DoUpload(t, env, "/api/v1/enhance", PNGImage, map[string]string{"model": "real-esrgan"}, "", guestID)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	result := ParseResponse(t, resp)
	assert.Equal(t, false, result["success"])
	errObj := result["error"].(map[string]any)
	assert.Equal(t, "quota_exceeded", errObj["type"])
	details := errObj["details"].(map[string]any)
	assert.Equal(t, "daily", details["scope"])
	assert.Equal(t, float64(3), details["limit"])
}

func TestEnhanceValidation(t *testing.T) {
	env := SetupTestEnv(t)
	guestID := uuid.New().String()

	t.Run("unknown model", func(t *testing.T) {
		resp := DoUpload(t, env, "/api/v1/enhance", PNGImage, map[string]string{"model": "unknown"}, "", guestID)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		result := ParseResponse(t, resp)
		errObj := result["error"].(map[string]any)
		assert.Equal(t, "validation_error", errObj["type"])
	})

	t.Run("non-image payload", func(t *testing.T) {
		resp := DoUpload(t, env, "/api/v1/enhance", []byte("plain text"), map[string]string{"model": "real-esrgan"}, "", guestID)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		ParseResponse(t, resp)
	})

	t.Run("scale beyond plan", func(t *testing.T) {
		resp := DoUpload(t, env, "/api/v1/enhance", PNGImage,
			map[string]string{"model": "real-esrgan", "scale": "4"}, "", guestID)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		ParseResponse(t, resp)
	})

	t.Run("face enhance gated for guests", func(t *testing.T) {
		resp := DoUpload(t, env, "/api/v1/enhance", PNGImage,
			map[string]string{"model": "real-esrgan", "face_enhance": "true"}, "", guestID)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		ParseResponse(t, resp)
	})
}

func TestUsageEndpoint(t *testing.T) {
	env := SetupTestEnv(t)
	guestID := uuid.New().String()

	resp := DoUpload(t, env, "/api/v1/enhance", PNGImage, map[string]string{"model": "real-esrgan"}, "", guestID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ParseResponse(t, resp)

	req, _ := http.NewRequest("GET", env.Server.URL+"/api/v1/usage", nil)
	req.Header.Set("X-Guest-ID", guestID)
	usageResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, usageResp.StatusCode)

	result := ParseResponse(t, usageResp)
	data := result["data"].(map[string]any)
	assert.Equal(t, "guest", data["plan"])
	daily := data["daily"].(map[string]any)
	assert.Equal(t, float64(1), daily["used"])
	monthly := data["monthly"].(map[string]any)
	assert.Equal(t, float64(30), monthly["limit"])
}

func TestEnhanceAsRegisteredUser(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "enhance-user@example.com", "password123")
	token := LoginUser(t, env, "enhance-user@example.com", "password123")

	resp := DoUpload(t, env, "/api/v1/enhance", PNGImage, map[string]string{"model": "gfpgan"}, token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	usage := data["usage"].(map[string]any)
	assert.Equal(t, "free", usage["plan"])
	daily := usage["daily"].(map[string]any)
	assert.Equal(t, float64(10), daily["limit"])
}
