package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/onelink-market/app/mailer"
	"github.com/FACorreiaa/onelink-market/app/observability/metrics"
	"github.com/FACorreiaa/onelink-market/internal/api/freeze"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

const (
	CodeTTL        = 5 * time.Minute
	ResendInterval = 60 * time.Second
	MaxAttempts    = 5
	statusCacheTTL = 10 * time.Minute
)

var _ VerificationService = (*VerificationServiceImpl)(nil)

type VerificationService interface {
	SendCode(ctx context.Context, userID uuid.UUID, email string) (*types.SendCodeResponse, error)
	VerifyCode(ctx context.Context, userID uuid.UUID, email, code string) (*types.VerifyCodeResponse, error)
	Status(ctx context.Context, userID uuid.UUID) (*types.VerificationStatus, error)
}

type VerificationServiceImpl struct {
	logger  *slog.Logger
	repo    VerificationRepo
	mailer  mailer.Mailer
	flags   freeze.Source
	cache   *cache.Cache
	now     func() time.Time
	newCode func() (string, error)
}

func NewVerificationService(repo VerificationRepo, m mailer.Mailer, flags freeze.Source, logger *slog.Logger) *VerificationServiceImpl {
	return &VerificationServiceImpl{
		logger:  logger,
		repo:    repo,
		mailer:  m,
		flags:   flags,
		cache:   cache.New(statusCacheTTL, 2*statusCacheTTL),
		now:     time.Now,
		newCode: GenerateCode,
	}
}

// GenerateCode returns a uniformly distributed six digit code in
// 100000-999999.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func statusKey(userID uuid.UUID) string {
	return "verification-status:" + userID.String()
}

func (s *VerificationServiceImpl) SendCode(ctx context.Context, userID uuid.UUID, email string) (*types.SendCodeResponse, error) {
	ctx, span := otel.Tracer("VerificationService").Start(ctx, "SendCode", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "SendCode"), slog.String("user_id", userID.String()))
	email = normalizeEmail(email)

	if s.flags.Flags().CoreFreeze {
		s.countSend(ctx, "frozen")
		span.SetStatus(codes.Error, "Core freeze active")
		return nil, fmt.Errorf("email verification unavailable during maintenance: %w", types.ErrPersistenceDisabled)
	}

	now := s.now()
	existing, err := s.repo.GetCode(ctx, userID, email)
	switch {
	case err == nil:
		if now.Sub(existing.CreatedAt) < ResendInterval {
			s.countSend(ctx, "throttled")
			span.SetStatus(codes.Error, "Resend too soon")
			return nil, fmt.Errorf("please wait before requesting a new code: %w", types.ErrRateLimited)
		}
	case errors.Is(err, types.ErrNotFound):
	default:
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check existing code: %w", err)
	}

	code, err := s.newCode()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	record := types.VerificationCode{
		UserID:    userID,
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(CodeTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.UpsertCode(ctx, record); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to store verification code: %w", err)
	}
	s.cache.Delete(statusKey(userID))

	if err := s.mailer.SendVerificationCode(ctx, email, code, record.ExpiresAt); err != nil {
		l.ErrorContext(ctx, "Failed to send verification email", slog.Any("error", err))
		span.RecordError(err)
		if delErr := s.repo.DeleteCode(ctx, userID, email); delErr != nil {
			l.ErrorContext(ctx, "Failed to remove undelivered code", slog.Any("error", delErr))
		}
		s.countSend(ctx, "mail_failed")
		span.SetStatus(codes.Error, "Mail delivery failed")
		return nil, fmt.Errorf("failed to send verification email: %w", types.ErrUpstream)
	}

	s.countSend(ctx, "sent")
	l.InfoContext(ctx, "Verification code sent")
	span.SetStatus(codes.Ok, "Code sent")
	return &types.SendCodeResponse{
		Message:   "Verification code sent",
		ExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *VerificationServiceImpl) VerifyCode(ctx context.Context, userID uuid.UUID, email, code string) (*types.VerifyCodeResponse, error) {
	ctx, span := otel.Tracer("VerificationService").Start(ctx, "VerifyCode", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "VerifyCode"), slog.String("user_id", userID.String()))
	email = normalizeEmail(email)

	if s.flags.Flags().CoreFreeze {
		s.countAttempt(ctx, "frozen")
		return nil, fmt.Errorf("email verification unavailable during maintenance: %w", types.ErrPersistenceDisabled)
	}

	record, err := s.repo.GetCode(ctx, userID, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			s.countAttempt(ctx, "missing")
			return nil, fmt.Errorf("no verification code found: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load verification code: %w", err)
	}

	if record.Verified {
		s.countAttempt(ctx, "already_verified")
		return &types.VerifyCodeResponse{Message: "Email already verified", Verified: true}, nil
	}
	if record.Attempts >= MaxAttempts {
		s.countAttempt(ctx, "exhausted")
		return nil, fmt.Errorf("too many attempts, request a new code: %w", types.ErrRateLimited)
	}

	now := s.now()
	if now.After(record.ExpiresAt) {
		s.countAttempt(ctx, "expired")
		return nil, fmt.Errorf("verification code expired: %w", types.ErrExpired)
	}

	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(record.Code)) != 1 {
		attempts, err := s.repo.IncrementAttempts(ctx, userID, email, MaxAttempts, now)
		if err != nil {
			if errors.Is(err, types.ErrRateLimited) {
				s.countAttempt(ctx, "exhausted")
				return nil, err
			}
			span.RecordError(err)
			return nil, fmt.Errorf("failed to record attempt: %w", err)
		}
		s.countAttempt(ctx, "mismatch")
		l.InfoContext(ctx, "Wrong verification code", slog.Int("attempts", attempts))
		return nil, &types.AttemptsError{AttemptsLeft: max(0, MaxAttempts-attempts)}
	}

	if err := s.repo.MarkVerified(ctx, userID, email, now); err != nil {
		l.ErrorContext(ctx, "Failed to mark email verified", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Verification write failed")
		return nil, fmt.Errorf("failed to complete verification: %w", err)
	}
	s.cache.Delete(statusKey(userID))

	s.countAttempt(ctx, "verified")
	l.InfoContext(ctx, "Email verified")
	span.SetStatus(codes.Ok, "Email verified")
	return &types.VerifyCodeResponse{Message: "Email verified successfully", Verified: true}, nil
}

// Status is served from a short-lived cache. The profile store stays the
// source of truth for any gating decision.
func (s *VerificationServiceImpl) Status(ctx context.Context, userID uuid.UUID) (*types.VerificationStatus, error) {
	ctx, span := otel.Tracer("VerificationService").Start(ctx, "Status")
	defer span.End()

	key := statusKey(userID)
	if v, ok := s.cache.Get(key); ok {
		if st, ok := v.(*types.VerificationStatus); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return st, nil
		}
	}

	st, err := s.repo.GetStatus(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load verification status: %w", err)
	}
	s.cache.Set(key, st, cache.DefaultExpiration)
	return st, nil
}

func (s *VerificationServiceImpl) countSend(ctx context.Context, outcome string) {
	metrics.Get().VerificationCodesSentTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (s *VerificationServiceImpl) countAttempt(ctx context.Context, result string) {
	metrics.Get().VerificationAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
