package httpmw

import (
	"context"
	"net/http"
	"strings"

	"github.com/eventora/chat-service/internal/security"
)

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

// Auth verifies the bearer credential and stores the caller's identity in the
// request context. Requests without a valid token never reach a handler.
func Auth(verifier security.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= 7 {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}

			id, err := verifier.Verify(strings.TrimSpace(auth[7:]))
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromCtx returns the authenticated identity, if any.
func IdentityFromCtx(ctx context.Context) (security.Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(security.Identity)
	return id, ok
}
