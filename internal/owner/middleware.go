package owner

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/auth"
)

type contextKey string

const ownerKey contextKey = "owner"

const guestHeader = "X-Guest-ID"

// Middleware resolves the request owner. Authenticated requests (claims set
// by auth.OptionalMiddleware) become user owners; everything else becomes a
// guest, reusing the caller's X-Guest-ID or minting one. The resolved guest
// id is echoed back so browsers can persist it.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var o Owner

		if claims := auth.GetUserClaims(r.Context()); claims != nil {
			if id, err := uuid.Parse(claims.UserID); err == nil {
				o = User(id, claims.Plan)
			}
		}

		if o.Type == "" {
			guestID := r.Header.Get(guestHeader)
			if _, err := uuid.Parse(guestID); err != nil {
				guestID = uuid.New().String()
			}
			o = Guest(guestID)
			w.Header().Set(guestHeader, guestID)
		}

		ctx := context.WithValue(r.Context(), ownerKey, o)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the resolved owner, or false when the middleware did
// not run.
func FromContext(ctx context.Context) (Owner, bool) {
	o, ok := ctx.Value(ownerKey).(Owner)
	return o, ok
}
