package owner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/auth"
)

func resolveOwner(t *testing.T, req *http.Request) (Owner, *httptest.ResponseRecorder) {
	t.Helper()
	var got Owner
	var ok bool
	rec := httptest.NewRecorder()
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)
	require.True(t, ok, "owner must be resolved")
	return got, rec
}

func TestMiddleware_AuthenticatedUser(t *testing.T) {
	userID := uuid.New()
	req := httptest.NewRequest("POST", "/api/v1/enhance", nil)
	claims := &auth.AccessClaims{UserID: userID.String(), Plan: "pro"}
	req = req.WithContext(context.WithValue(req.Context(), auth.UserClaimsKey, claims))

	o, _ := resolveOwner(t, req)
	assert.Equal(t, TypeUser, o.Type)
	assert.Equal(t, userID.String(), o.ID)
	assert.Equal(t, "pro", o.Plan)
	assert.True(t, o.IsUser())

	id, ok := o.UserID()
	require.True(t, ok)
	assert.Equal(t, userID, id)
}

func TestMiddleware_GuestWithHeader(t *testing.T) {
	guestID := uuid.New().String()
	req := httptest.NewRequest("POST", "/api/v1/enhance", nil)
	req.Header.Set("X-Guest-ID", guestID)

	o, rec := resolveOwner(t, req)
	assert.Equal(t, TypeGuest, o.Type)
	assert.Equal(t, guestID, o.ID)
	assert.Equal(t, guestID, rec.Header().Get("X-Guest-ID"))
	assert.False(t, o.IsUser())
}

func TestMiddleware_GuestWithoutHeaderGetsMintedID(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/enhance", nil)

	o, rec := resolveOwner(t, req)
	assert.Equal(t, TypeGuest, o.Type)
	_, err := uuid.Parse(o.ID)
	assert.NoError(t, err, "minted guest id must be a uuid")
	assert.Equal(t, o.ID, rec.Header().Get("X-Guest-ID"))
}

func TestMiddleware_InvalidGuestHeaderReplaced(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/enhance", nil)
	req.Header.Set("X-Guest-ID", "../../etc/passwd")

	o, _ := resolveOwner(t, req)
	assert.NotEqual(t, "../../etc/passwd", o.ID)
	_, err := uuid.Parse(o.ID)
	assert.NoError(t, err)
}

func TestOwner_GuestHasNoUserID(t *testing.T) {
	o := Guest(uuid.New().String())
	_, ok := o.UserID()
	assert.False(t, ok)
}
