//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	env := SetupTestEnv(t)

	resp := DoRequest(t, env, "GET", "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	assert.Equal(t, "healthy", data["status"])
}

func TestRegister(t *testing.T) {
	env := SetupTestEnv(t)

	t.Run("successful registration", func(t *testing.T) {
		result := RegisterUser(t, env, "test-reg@example.com", "password123")
		data := result["data"].(map[string]any)

		assert.NotEmpty(t, data["access_token"])
		assert.NotEmpty(t, data["refresh_token"])
	})

	t.Run("duplicate email", func(t *testing.T) {
		RegisterUser(t, env, "dupe@example.com", "password123")

		body := map[string]string{"email": "dupe@example.com", "password": "password123"}
		resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("invalid email", func(t *testing.T) {
		body := map[string]string{"email": "not-an-email", "password": "password123"}
		resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("short password", func(t *testing.T) {
		body := map[string]string{"email": "short@example.com", "password": "short"}
		resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLogin(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "login@example.com", "password123")

	t.Run("successful login", func(t *testing.T) {
		body := map[string]string{"email": "login@example.com", "password": "password123"}
		resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		data := result["data"].(map[string]any)
		assert.NotEmpty(t, data["access_token"])
		assert.NotEmpty(t, data["refresh_token"])
	})

	t.Run("wrong password", func(t *testing.T) {
		body := map[string]string{"email": "login@example.com", "password": "wrongpass"}
		resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestRefreshAndLogout(t *testing.T) {
	env := SetupTestEnv(t)

	result := RegisterUser(t, env, "refresh@example.com", "password123")
	data := result["data"].(map[string]any)
	refreshToken := data["refresh_token"].(string)
	accessToken := data["access_token"].(string)

	t.Run("refresh rotates tokens", func(t *testing.T) {
		body := map[string]string{"refresh_token": refreshToken}
		resp := DoRequest(t, env, "POST", "/api/v1/auth/refresh", body, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		parsed := ParseResponse(t, resp)
		refreshed := parsed["data"].(map[string]any)
		assert.NotEmpty(t, refreshed["access_token"])
		assert.NotEqual(t, refreshToken, refreshed["refresh_token"])
	})

	t.Run("logout requires auth", func(t *testing.T) {
		resp := DoRequest(t, env, "POST", "/api/v1/auth/logout", nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("logout succeeds with token", func(t *testing.T) {
		resp := DoRequest(t, env, "POST", "/api/v1/auth/logout", nil, accessToken)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestUpdatePlan(t *testing.T) {
	env := SetupTestEnv(t)

	result := RegisterUser(t, env, "plan@example.com", "password123")
	data := result["data"].(map[string]any)
	accessToken := data["access_token"].(string)
	refreshToken := data["refresh_token"].(string)

	t.Run("requires auth", func(t *testing.T) {
		body := map[string]string{"plan": "pro"}
		resp := DoRequest(t, env, "PUT", "/api/v1/account/plan", body, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown plan rejected", func(t *testing.T) {
		body := map[string]string{"plan": "enterprise"}
		resp := DoRequest(t, env, "PUT", "/api/v1/account/plan", body, accessToken)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("upgrade persists and flows into refreshed tokens", func(t *testing.T) {
		body := map[string]string{"plan": "pro"}
		resp := DoRequest(t, env, "PUT", "/api/v1/account/plan", body, accessToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		parsed := ParseResponse(t, resp)
		updated := parsed["data"].(map[string]any)
		assert.Equal(t, "pro", updated["plan"])

		// The refresh rereads the users row, so the rotated access token
		// carries the new plan claim.
		refreshBody := map[string]string{"refresh_token": refreshToken}
		resp = DoRequest(t, env, "POST", "/api/v1/auth/refresh", refreshBody, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
