package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/api/auth"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

// ProfileReader loads the authoritative profile for a user.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
}

type profileKey struct{}

// ProfileFrom returns the profile loaded by a role guard, if any.
func ProfileFrom(ctx context.Context) (*types.Profile, bool) {
	p, ok := ctx.Value(profileKey{}).(*types.Profile)
	return p, ok
}

func withProfile(ctx context.Context, p *types.Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, p)
}

// RedirectPathForRole maps a role to its landing page. Unknown roles go to /.
func RedirectPathForRole(role string) string {
	return types.DashboardPathFor(role)
}

// Guard decides access from the profile store on every request. Token
// claims are never consulted for the role.
type Guard struct {
	profiles ProfileReader
	logger   *slog.Logger
}

func NewGuard(profiles ProfileReader, logger *slog.Logger) *Guard {
	return &Guard{profiles: profiles, logger: logger}
}

func allowed(role types.Role, roles []types.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// resolve returns the caller's profile, ErrUnauthenticated when there is no
// session and ErrForbidden when the profile is missing or has the wrong role.
func (g *Guard) resolve(ctx context.Context, roles []types.Role) (*types.Profile, error) {
	userID, err := auth.UserIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	p, err := g.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrForbidden
		}
		return nil, err
	}
	if !allowed(p.Role, roles) {
		return nil, types.ErrForbidden
	}
	return p, nil
}

// RequireAuth answers 401 when no identity is on the context.
func (g *Guard) RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := auth.UserIDFrom(r.Context()); err != nil {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole answers 401 without a session and 403 when the profile is
// missing or its role is not one of roles.
func (g *Guard) RequireRole(roles ...types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := otel.Tracer("AuthorizationGuard").Start(r.Context(), "RequireRole", trace.WithAttributes(
				attribute.String("http.route", r.URL.Path),
			))
			defer span.End()

			p, err := g.resolve(ctx, roles)
			switch {
			case err == nil:
			case errors.Is(err, types.ErrUnauthenticated):
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			case errors.Is(err, types.ErrForbidden):
				g.logger.WarnContext(ctx, "Role check failed", slog.String("path", r.URL.Path))
				api.ErrorResponse(w, r, http.StatusForbidden, "Forbidden")
				return
			default:
				g.logger.ErrorContext(ctx, "Failed to load profile for role check", slog.Any("error", err))
				span.RecordError(err)
				api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to check permissions")
				return
			}
			span.SetAttributes(attribute.String("user.role", string(p.Role)))
			next.ServeHTTP(w, r.WithContext(withProfile(ctx, p)))
		})
	}
}

func signInURL(r *http.Request, unauthorized bool) string {
	q := url.Values{}
	if unauthorized {
		q.Set("error", "unauthorized")
	}
	q.Set("redirectTo", r.URL.RequestURI())
	return "/sign-in?" + q.Encode()
}

// RequirePage redirects instead of answering with an error: anonymous users
// go to sign-in, users with the wrong role go to sign-in flagged unauthorized.
func (g *Guard) RequirePage(roles ...types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := g.resolve(r.Context(), roles)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(withProfile(r.Context(), p)))
			case errors.Is(err, types.ErrUnauthenticated):
				http.Redirect(w, r, signInURL(r, false), http.StatusSeeOther)
			case errors.Is(err, types.ErrForbidden):
				http.Redirect(w, r, signInURL(r, true), http.StatusSeeOther)
			default:
				g.logger.ErrorContext(r.Context(), "Failed to load profile for page", slog.Any("error", err))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		})
	}
}

// Continue sends a signed-in user to the landing page of their current role.
//
// @Summary      Continue to dashboard
// @Description  Redirects to the landing page for the caller's role, or to sign-in
// @Tags         Auth
// @Success      303
// @Router       /auth/continue [get]
func (g *Guard) Continue(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFrom(r.Context())
	if err != nil {
		http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
		return
	}
	role := ""
	if p, err := g.profiles.GetProfile(r.Context(), userID); err == nil {
		role = string(p.Role)
	} else if !errors.Is(err, types.ErrNotFound) {
		g.logger.ErrorContext(r.Context(), "Failed to load profile for redirect", slog.Any("error", err))
	}
	http.Redirect(w, r, RedirectPathForRole(role), http.StatusSeeOther)
}
