package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"

	"judge_zone/internal/app/access"
	"judge_zone/internal/common"
	"judge_zone/internal/common/security"
)

type contextKey string

const (
	PrincipalCtxKey contextKey = "principal"
	authErrCtxKey   contextKey = "authError"
)

// Identify reads the token jwtauth.Verify left in the context. A valid
// access token puts its principal in the context; anything else is
// remembered so Authenticator can explain the rejection. Requests without a
// token pass through as anonymous.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if errors.Is(err, jwtauth.ErrNoTokenFound) || (err == nil && token == nil) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		switch {
		case err != nil:
			ctx = context.WithValue(ctx, authErrCtxKey, "invalid token: "+err.Error())
		case security.IsRefreshClaims(jwt.MapClaims(claims)):
			ctx = context.WithValue(ctx, authErrCtxKey, "refresh token cannot be used for API access")
		default:
			p, perr := security.PrincipalFromClaims(jwt.MapClaims(claims))
			if perr != nil {
				ctx = context.WithValue(ctx, authErrCtxKey, "invalid token claims: "+perr.Error())
			} else {
				ctx = context.WithValue(ctx, PrincipalCtxKey, p)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticator rejects requests that carry no valid access token.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetPrincipalFromContext(r.Context()); !ok {
			msg, _ := r.Context().Value(authErrCtxKey).(string)
			if msg == "" {
				msg = "Authorization token required"
			}
			common.RespondWithError(w, http.StatusUnauthorized, msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ActorFromContext(r.Context()).IsAdmin() {
			common.RespondWithError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// JudgeOnly admits the judge worker principal and admins.
func JudgeOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ActorFromContext(r.Context()).IsJudge() {
			common.RespondWithError(w, http.StatusForbidden, "Judge access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetPrincipalFromContext(ctx context.Context) (security.Principal, bool) {
	p, ok := ctx.Value(PrincipalCtxKey).(security.Principal)
	return p, ok
}

// ActorFromContext returns nil for anonymous requests.
func ActorFromContext(ctx context.Context) *access.Actor {
	p, ok := GetPrincipalFromContext(ctx)
	if !ok {
		return nil
	}
	return &access.Actor{UserID: p.UserID, Permissions: p.Permissions}
}
