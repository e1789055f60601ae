package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/FACorreiaa/onelink-market/internal/api"
)

// tokenFromRequest prefers the Authorization header and falls back to the
// session cookie.
func tokenFromRequest(r *http.Request, cookieName string) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
			return "", errors.New("authorization header format must be Bearer {token}")
		}
		return headerParts[1], nil
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", errors.New("no session token")
}

// Authenticate rejects requests without a valid session with 401 and puts
// the identity on the context otherwise.
func Authenticate(logger *slog.Logger, tokens *TokenManager, cookieName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			tokenString, err := tokenFromRequest(r, cookieName)
			if err != nil {
				l.DebugContext(ctx, "No usable session token", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}

			claims, err := tokens.ParseSession(tokenString)
			if err != nil {
				l.WarnContext(ctx, "Token validation failed", slog.Any("error", err))
				errMsg := "Invalid or expired token"
				if errors.Is(err, ErrTokenExpired) {
					errMsg = "Token has expired"
				}
				api.ErrorResponse(w, r, http.StatusUnauthorized, errMsg)
				return
			}

			ctx = WithIdentity(ctx, claims.UserID, claims.Email)
			l.DebugContext(ctx, "Authentication successful", slog.String("userID", claims.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Identify attaches the identity when a valid session is present and lets
// every request through. Page guards decide what to do with anonymous users.
func Identify(logger *slog.Logger, tokens *TokenManager, cookieName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := tokenFromRequest(r, cookieName)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := tokens.ParseSession(tokenString)
			if err != nil {
				logger.DebugContext(r.Context(), "Ignoring invalid session on page request", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.UserID, claims.Email)))
		})
	}
}
