package auth

import (
	"context"
	"net/http"

	"campus-events/internal/actor"
	"campus-events/internal/logger"
	"campus-events/internal/utils"
)

type contextKey string

const claimsKey contextKey = "claims"

// Middleware rejects requests without a valid bearer token and stores the
// caller's actor in the request context.
func Middleware(v Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := ExtractTokenFromRequest(r)
			if err != nil {
				unauthorized(w, err.Error())
				return
			}
			claims, err := v.Verify(r.Context(), raw)
			if err != nil {
				log.LogSecurity("TOKEN_REJECTED", "token rejected for "+r.URL.Path+": "+err.Error())
				unauthorized(w, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalMiddleware lets anonymous requests through but still rejects a
// token that is present and invalid.
func OptionalMiddleware(v Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	required := Middleware(v, log)
	return func(next http.Handler) http.Handler {
		withAuth := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			withAuth.ServeHTTP(w, r)
		})
	}
}

func withClaims(ctx context.Context, c *Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, c)
	return actor.WithActor(ctx, c.Actor())
}

// ClaimsFromContext returns the verified claims, or nil for anonymous requests.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

func unauthorized(w http.ResponseWriter, msg string) {
	utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", msg))
}
