package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/markbates/goth"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/onelink-market/app/mailer"
	"github.com/FACorreiaa/onelink-market/app/observability/metrics"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// ProfileReader is the slice of the profile store the gateway needs. The
// profile, not the token, decides the role.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
}

type AuthService interface {
	SignUp(ctx context.Context, req types.SignUpRequest) (*types.SessionResult, error)
	SignIn(ctx context.Context, email, password string) (*types.SessionResult, error)
	SignInWithProvider(ctx context.Context, user goth.User) (*types.SessionResult, error)
	RequestPasswordReset(ctx context.Context, email string)
	ConfirmPasswordReset(ctx context.Context, token, password string) error
}

type AuthServiceImpl struct {
	logger   *slog.Logger
	repo     AuthRepo
	profiles ProfileReader
	tokens   *TokenManager
	mailer   mailer.Mailer
}

func NewAuthService(repo AuthRepo, profiles ProfileReader, tokens *TokenManager, m mailer.Mailer, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger:   logger,
		repo:     repo,
		profiles: profiles,
		tokens:   tokens,
		mailer:   m,
	}
}

func (s *AuthServiceImpl) SignUp(ctx context.Context, req types.SignUpRequest) (*types.SessionResult, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "SignUp")
	defer span.End()

	l := s.logger.With(slog.String("method", "SignUp"))

	role := types.RoleCustomer
	if req.Role != "" {
		parsed, err := types.ParseRole(req.Role)
		if err != nil || parsed == types.RoleAdmin {
			return nil, types.NewValidationError("Invalid role", types.FieldErrors{"role": "must be one of: customer supplier brand influencer"})
		}
		role = parsed
	}
	span.SetAttributes(attribute.String("user.role", string(role)))

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	name := strings.TrimSpace(req.FirstName + " " + req.LastName)
	user, err := s.repo.CreateUserWithProfile(ctx, req.Email, string(hash), name, role)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Sign-up failed")
		return nil, err
	}

	profile := types.Profile{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      name,
		Role:      role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.CreatedAt,
	}
	token, err := s.tokens.IssueSession(user.ID, user.Email, role)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	l.InfoContext(ctx, "User signed up", slog.String("userID", user.ID.String()), slog.String("role", string(role)))
	span.SetStatus(codes.Ok, "User signed up")
	return &types.SessionResult{Profile: profile, AccessToken: token}, nil
}

func (s *AuthServiceImpl) SignIn(ctx context.Context, email, password string) (*types.SessionResult, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "SignIn")
	defer span.End()

	l := s.logger.With(slog.String("method", "SignIn"))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		s.recordSignIn(ctx, "rejected")
		if errors.Is(err, types.ErrNotFound) {
			span.SetStatus(codes.Error, "Unknown email")
			return nil, types.ErrInvalidCredentials
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		l.WarnContext(ctx, "Password mismatch", slog.String("userID", user.ID.String()))
		s.recordSignIn(ctx, "rejected")
		span.SetStatus(codes.Error, "Invalid credentials")
		return nil, types.ErrInvalidCredentials
	}

	res, err := s.openSession(ctx, user)
	if err != nil {
		span.RecordError(err)
		s.recordSignIn(ctx, "error")
		return nil, err
	}
	s.recordSignIn(ctx, "ok")
	l.InfoContext(ctx, "User signed in", slog.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "User signed in")
	return res, nil
}

func (s *AuthServiceImpl) SignInWithProvider(ctx context.Context, gu goth.User) (*types.SessionResult, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "SignInWithProvider", trace.WithAttributes(
		attribute.String("auth.provider", gu.Provider),
	))
	defer span.End()

	if gu.Email == "" || gu.UserID == "" {
		span.SetStatus(codes.Error, "Provider returned no email")
		return nil, fmt.Errorf("provider %s returned no email: %w", gu.Provider, types.ErrValidation)
	}
	name := gu.Name
	if name == "" {
		name = strings.TrimSpace(gu.FirstName + " " + gu.LastName)
	}

	user, err := s.repo.GetOrCreateProviderUser(ctx, gu.Provider, gu.UserID, gu.Email, name)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res, err := s.openSession(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.recordSignIn(ctx, "ok")
	span.SetStatus(codes.Ok, "Provider sign-in")
	return res, nil
}

// openSession reads the profile and issues a token carrying its role.
func (s *AuthServiceImpl) openSession(ctx context.Context, user *types.Identity) (*types.SessionResult, error) {
	profile, err := s.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("profile not found: %w", types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	token, err := s.tokens.IssueSession(user.ID, user.Email, profile.Role)
	if err != nil {
		return nil, err
	}
	return &types.SessionResult{Profile: *profile, AccessToken: token}, nil
}

// RequestPasswordReset never reports whether the account exists. Failures
// are logged only.
func (s *AuthServiceImpl) RequestPasswordReset(ctx context.Context, email string) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "RequestPasswordReset")
	defer span.End()

	l := s.logger.With(slog.String("method", "RequestPasswordReset"))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			l.ErrorContext(ctx, "Failed to look up user for reset", slog.Any("error", err))
			span.RecordError(err)
		}
		return
	}
	token, err := s.tokens.IssueReset(user.ID, user.Email, user.PasswordHash)
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue reset token", slog.Any("error", err))
		span.RecordError(err)
		return
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		l.ErrorContext(ctx, "Failed to send reset email", slog.Any("error", err))
		span.RecordError(err)
		return
	}
	l.InfoContext(ctx, "Password reset email sent", slog.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "Reset requested")
}

func (s *AuthServiceImpl) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ConfirmPasswordReset")
	defer span.End()

	claims, err := s.tokens.ParseReset(token)
	if err != nil {
		span.SetStatus(codes.Error, "Bad reset token")
		if errors.Is(err, ErrTokenExpired) {
			return fmt.Errorf("reset link has expired: %w", types.ErrExpired)
		}
		return fmt.Errorf("reset link is invalid: %w", types.ErrUnauthenticated)
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return fmt.Errorf("reset link is invalid: %w", types.ErrUnauthenticated)
	}
	user, err := s.repo.GetUserByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("reset link is invalid: %w", types.ErrUnauthenticated)
		}
		span.RecordError(err)
		return err
	}
	// A used link no longer matches once the password hash has changed.
	if user.ID != userID || !s.tokens.MatchesPassword(claims, user.PasswordHash) {
		span.SetStatus(codes.Error, "Stale reset token")
		return fmt.Errorf("reset link is invalid: %w", types.ErrUnauthenticated)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.InfoContext(ctx, "Password reset completed", slog.String("userID", userID.String()))
	span.SetStatus(codes.Ok, "Password reset")
	return nil
}

func (s *AuthServiceImpl) recordSignIn(ctx context.Context, result string) {
	metrics.Get().SignInsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
