package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/onelink-market/config"
	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

type AuthHandler struct {
	service AuthService
	cookie  config.JWTConfig
	ttl     time.Duration
	logger  *slog.Logger
}

func NewAuthHandler(service AuthService, cookie config.JWTConfig, ttl time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookie:  cookie,
		ttl:     ttl,
		logger:  logger,
	}
}

// SetupProviders registers the OAuth providers that have credentials and
// the cookie store gothic keeps its state in.
func SetupProviders(cfg config.Config, logger *slog.Logger) {
	store := sessions.NewCookieStore([]byte(cfg.JWT.SessionStoreKey))
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.JWT.CookieSecure
	store.Options.SameSite = http.SameSiteLaxMode
	gothic.Store = store

	g := cfg.OAuth.Google
	if g.ClientID == "" {
		logger.Info("Google OAuth not configured, provider sign-in disabled")
		return
	}
	goth.UseProviders(google.New(g.ClientID, g.ClientSecret, g.CallbackURL, "email", "profile"))
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func authResponse(res *types.SessionResult, message string) types.AuthResponse {
	return types.AuthResponse{
		OK:           true,
		Message:      message,
		User:         res.Profile,
		RedirectPath: types.DashboardPathFor(string(res.Profile.Role)),
		AccessToken:  res.AccessToken,
	}
}

// SignUp godoc
// @Summary      Sign up
// @Description  Creates an identity and its profile, then opens a session
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.SignUpRequest true "Sign-up details"
// @Success      201 {object} types.AuthResponse
// @Failure      400 {object} types.Response "Validation failed"
// @Failure      409 {object} types.Response "Email already registered"
// @Failure      500 {object} types.Response "Internal Server Error"
// @Router       /auth/sign-up [post]
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "SignUp", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/auth/sign-up"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "SignUp"))

	var req types.SignUpRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.Validate(&req); err != nil {
		span.SetStatus(codes.Error, "Validation failed")
		api.ValidationErrorResponse(w, r, err)
		return
	}

	res, err := h.service.SignUp(ctx, req)
	if err != nil {
		l.WarnContext(ctx, "Sign-up failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Sign-up failed")
		api.ServiceErrorResponse(w, r, err, "Could not create account")
		return
	}

	h.setSessionCookie(w, res.AccessToken)
	span.SetStatus(codes.Ok, "Signed up")
	api.WriteJSONResponse(w, r, http.StatusCreated, authResponse(res, "Account created"))
}

// SignIn godoc
// @Summary      Sign in
// @Description  Checks credentials, sets the session cookie and returns the role landing page
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.SignInRequest true "Credentials"
// @Success      200 {object} types.AuthResponse
// @Failure      400 {object} types.Response "Validation failed"
// @Failure      401 {object} types.Response "Invalid credentials"
// @Failure      404 {object} types.Response "Profile not found"
// @Failure      500 {object} types.Response "Internal Server Error"
// @Router       /auth/sign-in [post]
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "SignIn", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/auth/sign-in"),
	))
	defer span.End()

	var req types.SignInRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.Validate(&req); err != nil {
		api.ValidationErrorResponse(w, r, err)
		return
	}

	res, err := h.service.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Sign-in failed")
		api.ServiceErrorResponse(w, r, err, "Could not sign in")
		return
	}

	h.setSessionCookie(w, res.AccessToken)
	span.SetStatus(codes.Ok, "Signed in")
	api.WriteJSONResponse(w, r, http.StatusOK, authResponse(res, ""))
}

// SignOut godoc
// @Summary      Sign out
// @Tags         Auth
// @Produce      json
// @Success      200 {object} types.Response
// @Router       /auth/sign-out [post]
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	if err := gothic.Logout(w, r); err != nil {
		h.logger.DebugContext(r.Context(), "No provider session to clear", slog.Any("error", err))
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "Signed out"})
}

// RequestReset godoc
// @Summary      Request a password reset
// @Description  Always answers with the same message whether or not the account exists
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.ResetPasswordRequest true "Email"
// @Success      200 {object} types.Response
// @Failure      400 {object} types.Response "Validation failed"
// @Router       /auth/reset [post]
func (h *AuthHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "RequestReset", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/auth/reset"),
	))
	defer span.End()

	var req types.ResetPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.Validate(&req); err != nil {
		api.ValidationErrorResponse(w, r, err)
		return
	}

	h.service.RequestPasswordReset(ctx, req.Email)
	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "If an account exists for that email, a reset link has been sent.",
	})
}

// ConfirmReset godoc
// @Summary      Complete a password reset
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.ConfirmResetRequest true "Reset token and new password"
// @Success      200 {object} types.Response
// @Failure      400 {object} types.Response "Validation failed"
// @Failure      401 {object} types.Response "Invalid token"
// @Failure      410 {object} types.Response "Token expired"
// @Router       /auth/reset/confirm [post]
func (h *AuthHandler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "ConfirmReset", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/auth/reset/confirm"),
	))
	defer span.End()

	var req types.ConfirmResetRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.Validate(&req); err != nil {
		api.ValidationErrorResponse(w, r, err)
		return
	}
	if err := h.service.ConfirmPasswordReset(ctx, req.Token, req.Password); err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Could not reset password")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "Password updated"})
}

// withProvider copies the chi URL param where gothic looks for it.
func withProvider(r *http.Request) *http.Request {
	q := r.URL.Query()
	q.Set("provider", chi.URLParam(r, "provider"))
	r.URL.RawQuery = q.Encode()
	return r
}

// BeginOAuth godoc
// @Summary      Start provider sign-in
// @Tags         Auth
// @Param        provider path string true "Provider name" Enums(google)
// @Success      307
// @Router       /auth/{provider} [get]
func (h *AuthHandler) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	r = withProvider(r)
	if _, err := goth.GetProvider(chi.URLParam(r, "provider")); err != nil {
		api.ErrorResponse(w, r, http.StatusNotFound, "Unknown sign-in provider")
		return
	}
	gothic.BeginAuthHandler(w, r)
}

// OAuthCallback godoc
// @Summary      Provider sign-in callback
// @Tags         Auth
// @Param        provider path string true "Provider name"
// @Success      303
// @Failure      401 {object} types.Response "Provider rejected the sign-in"
// @Router       /auth/{provider}/callback [get]
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "OAuthCallback", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/auth/{provider}/callback"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "OAuthCallback"))

	gu, err := gothic.CompleteUserAuth(w, withProvider(r))
	if err != nil {
		l.WarnContext(ctx, "Provider sign-in failed", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Sign-in with provider failed")
		return
	}

	res, err := h.service.SignInWithProvider(ctx, gu)
	if err != nil {
		span.RecordError(err)
		api.ServiceErrorResponse(w, r, err, "Could not sign in")
		return
	}

	h.setSessionCookie(w, res.AccessToken)
	span.SetStatus(codes.Ok, "Provider sign-in")
	http.Redirect(w, r, types.DashboardPathFor(string(res.Profile.Role)), http.StatusSeeOther)
}
