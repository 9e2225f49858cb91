package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/isdelr/msgboard-be/internal/models"
	"github.com/rs/zerolog/log"
)

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID   int64
	Username string
}

type contextKey string

const identityKey = contextKey("identity")

// FromContext extracts the authenticated identity set by BasicAuth.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Verifier resolves Basic credentials to a user.
type Verifier interface {
	Authenticate(ctx context.Context, username, password string) (models.User, error)
}

// BasicAuth creates a middleware enforcing HTTP Basic authentication.
// Unknown usernames and wrong passwords produce identical responses so
// the endpoint can't be used to probe for accounts.
func BasicAuth(users Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				unauthorized(w)
				return
			}

			user, err := users.Authenticate(r.Context(), username, password)
			if err != nil {
				log.Warn().Err(err).Str("username", username).Msg("Failed authentication attempt")
				unauthorized(w)
				return
			}

			identity := Identity{UserID: user.ID, Username: user.Username}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="msgboard"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"message": "Unauthorized"})
}
