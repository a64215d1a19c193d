package provider

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/api"
)

func TestBuildError_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   api.ErrorType
	}{
		{401, api.TypeForbidden},
		{403, api.TypeForbidden},
		{400, api.TypeValidationError},
		{404, api.TypeValidationError},
		{422, api.TypeValidationError},
		{500, api.TypeServerError},
		{502, api.TypeServerError},
		{503, api.TypeServerError},
	}

	for _, tt := range tests {
		err := BuildError(tt.status, "x")
		assert.Equal(t, tt.want, err.Type, "status %d", tt.status)
		assert.Equal(t, tt.status, err.Status)
	}
}

func TestBuildError_TruncatesBody(t *testing.T) {
	long := strings.Repeat("a", 10_000)
	err := BuildError(500, long)
	assert.Len(t, err.Snippet, snippetLimit)
}

func TestBuildError_MessageDoesNotLeakBody(t *testing.T) {
	err := BuildError(500, "secret provider payload")
	assert.NotContains(t, err.Error(), "secret")
}

func TestAsError(t *testing.T) {
	pe, ok := AsError(BuildError(404, ""))
	assert.True(t, ok)
	assert.Equal(t, 404, pe.Status)

	_, ok = AsError(ErrMissingCredentials)
	assert.False(t, ok)
}
