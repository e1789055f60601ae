package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/onelink-market/app/encryption"
	"github.com/FACorreiaa/onelink-market/app/observability/metrics"
	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/api/freeze"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

// Handles nobody may claim regardless of what is stored.
var reservedHandles = []string{"admin", "support", "onelink", "test", "demo", "api", "www", "mail", "ftp", "blog"}

var _ OnboardingService = (*OnboardingServiceImpl)(nil)

// ProfileStore is the part of the profile store onboarding reads and writes.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	SetRole(ctx context.Context, userID uuid.UUID, role types.Role) (*types.Profile, error)
	DisplayNameTaken(ctx context.Context, displayName string, exceptUserID uuid.UUID) (bool, error)
}

// DocumentTracker reports on the caller's open verification request.
type DocumentTracker interface {
	// UploadedDocTypes returns ErrNotFound when the user has no draft or
	// submitted request.
	UploadedDocTypes(ctx context.Context, userID uuid.UUID) ([]string, error)
	MarkSubmitted(ctx context.Context, userID uuid.UUID, role types.Role, at time.Time) error
}

type OnboardingService interface {
	SubmitStep(ctx context.Context, userID uuid.UUID, req types.SubmitStepRequest) (*types.WriteResult, error)
	GetProgress(ctx context.Context, userID uuid.UUID) (*types.Progress, error)
	SaveBrandDetails(ctx context.Context, userID uuid.UUID, details types.BrandDetails) (*types.WriteResult, error)
	SavePayoutDetails(ctx context.Context, userID uuid.UUID, req types.PayoutDetailsRequest) (*types.WriteResult, error)
	Submit(ctx context.Context, userID uuid.UUID, role string) (*types.SubmitOnboardingResponse, error)
	CheckHandle(ctx context.Context, userID uuid.UUID, displayName string) (*types.CheckHandleResponse, error)
}

type OnboardingServiceImpl struct {
	logger       *slog.Logger
	repo         OnboardingRepo
	profiles     ProfileStore
	documents    DocumentTracker
	encryptor    encryption.Encryptor
	flags        freeze.Source
	brandPersist bool
	now          func() time.Time
}

func NewOnboardingService(repo OnboardingRepo, profiles ProfileStore, documents DocumentTracker,
	encryptor encryption.Encryptor, flags freeze.Source, brandPersist bool, logger *slog.Logger) *OnboardingServiceImpl {
	return &OnboardingServiceImpl{
		logger:       logger,
		repo:         repo,
		profiles:     profiles,
		documents:    documents,
		encryptor:    encryptor,
		flags:        flags,
		brandPersist: brandPersist,
		now:          time.Now,
	}
}

func dryRunResult(message string) *types.WriteResult {
	return &types.WriteResult{OK: true, DryRun: true, Persisted: false, Message: message}
}

func (s *OnboardingServiceImpl) countDryRun(ctx context.Context, kind string) {
	metrics.Get().OnboardingDryRunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (s *OnboardingServiceImpl) SubmitStep(ctx context.Context, userID uuid.UUID, req types.SubmitStepRequest) (*types.WriteResult, error) {
	ctx, span := otel.Tracer("OnboardingService").Start(ctx, "SubmitStep", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("onboarding.step", req.Step),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "SubmitStep"), slog.Int("step", req.Step))

	if req.UserID != nil && *req.UserID != userID {
		span.SetStatus(codes.Error, "User mismatch")
		return nil, fmt.Errorf("progress belongs to another user: %w", types.ErrUnauthenticated)
	}

	var role *types.Role
	if req.Role != "" {
		parsed, err := types.ParseRole(req.Role)
		if err != nil {
			return nil, types.NewValidationError("Invalid role", types.FieldErrors{"role": "must be brand or influencer"})
		}
		role = &parsed
	}
	schemaRole := types.RoleCustomer
	if role != nil {
		schemaRole = *role
	} else if req.Step == 2 {
		p, err := s.profiles.GetProfile(ctx, userID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to resolve role: %w", err)
		}
		schemaRole = p.Role
	}

	strict := slices.Contains(req.CompletedSteps, req.Step)
	if err := ValidateStepData(schemaRole, req.Step, req.Data, strict); err != nil {
		span.SetStatus(codes.Error, "Invalid step data")
		return nil, err
	}

	if s.flags.Flags().OnboardingDryRun() {
		s.countDryRun(ctx, "step")
		l.InfoContext(ctx, "Onboarding step validated in dry run")
		return dryRunResult("Step validated (dry run, not persisted)"), nil
	}

	current := req.CurrentStep
	if current == 0 {
		current = req.Step
	}
	completed := slices.Clone(req.CompletedSteps)
	slices.Sort(completed)
	completed = slices.Compact(completed)

	rec := types.ProgressRecord{
		UserID:         userID,
		Step:           req.Step,
		CurrentStep:    current,
		CompletedSteps: completed,
		Data:           req.Data,
		Role:           role,
		UpdatedAt:      s.now(),
	}
	if err := s.repo.UpsertStep(ctx, rec); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to save onboarding step: %w", err)
	}

	metrics.Get().OnboardingStepsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", string(schemaRole)),
		attribute.String("step", strconv.Itoa(req.Step)),
	))
	span.SetStatus(codes.Ok, "Step saved")
	return &types.WriteResult{OK: true, Persisted: true, Message: "Progress saved"}, nil
}

func (s *OnboardingServiceImpl) GetProgress(ctx context.Context, userID uuid.UUID) (*types.Progress, error) {
	ctx, span := otel.Tracer("OnboardingService").Start(ctx, "GetProgress", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	rows, err := s.repo.ListSteps(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load onboarding progress: %w", err)
	}

	var profileRole types.Role
	p, err := s.profiles.GetProfile(ctx, userID)
	switch {
	case err == nil:
		profileRole = p.Role
	case errors.Is(err, types.ErrNotFound):
	default:
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	progress := MergeProgress(rows, profileRole)
	return &progress, nil
}

func (s *OnboardingServiceImpl) SaveBrandDetails(ctx context.Context, userID uuid.UUID, details types.BrandDetails) (*types.WriteResult, error) {
	ctx, span := otel.Tracer("OnboardingService").Start(ctx, "SaveBrandDetails")
	defer span.End()

	if err := api.ValidateWith(&details, "Invalid brand data", nil); err != nil {
		return nil, err
	}
	if s.flags.Flags().OnboardingDryRun() {
		s.countDryRun(ctx, "brand")
		return dryRunResult("Brand details validated (dry run, not persisted)"), nil
	}
	// TODO: drop the experimentalBrandPersist switch once brand_details is migrated everywhere.
	if !s.brandPersist {
		return nil, fmt.Errorf("brand details storage is disabled: %w", types.ErrPersistenceDisabled)
	}

	var taxID *string
	if details.TaxID != "" {
		sealed, err := s.encryptor.Encrypt(ctx, details.TaxID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to seal tax id: %w", err)
		}
		taxID = &sealed
	}
	if err := s.repo.SaveBrandDetails(ctx, userID, details, taxID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to save brand details: %w", err)
	}
	span.SetStatus(codes.Ok, "Brand details saved")
	return &types.WriteResult{OK: true, Persisted: true, Message: "Brand information submitted successfully"}, nil
}

func (s *OnboardingServiceImpl) sealOptional(ctx context.Context, v string) (*string, error) {
	if v == "" {
		return nil, nil
	}
	sealed, err := s.encryptor.Encrypt(ctx, v)
	if err != nil {
		return nil, err
	}
	return &sealed, nil
}

func (s *OnboardingServiceImpl) SavePayoutDetails(ctx context.Context, userID uuid.UUID, req types.PayoutDetailsRequest) (*types.WriteResult, error) {
	ctx, span := otel.Tracer("OnboardingService").Start(ctx, "SavePayoutDetails")
	defer span.End()

	l := s.logger.With(slog.String("method", "SavePayoutDetails"), slog.String("user_id", userID.String()))

	if err := api.ValidateWith(&req, "Invalid payout details", nil); err != nil {
		return nil, err
	}
	if s.flags.Flags().OnboardingDryRun() {
		s.countDryRun(ctx, "payout")
		return dryRunResult("Payout details validated (dry run, not persisted)"), nil
	}

	accountNumber, err := s.encryptor.Encrypt(ctx, req.AccountNumber)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to seal payout details: %w", err)
	}
	payout := types.EncryptedPayout{
		UserID:            userID,
		BankName:          req.BankName,
		AccountHolderName: req.AccountHolderName,
		AccountNumberEnc:  accountNumber,
		Address:           req.Address,
	}
	fields := []string{"account_number"}
	optional := []struct {
		name  string
		value string
		dst   **string
	}{
		{"routing_number", req.RoutingNumber, &payout.RoutingNumberEnc},
		{"swift_code", req.SwiftCode, &payout.SwiftCodeEnc},
		{"tax_id", req.TaxID, &payout.TaxIDEnc},
	}
	for _, f := range optional {
		sealed, err := s.sealOptional(ctx, f.value)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to seal payout details: %w", err)
		}
		if sealed != nil {
			*f.dst = sealed
			fields = append(fields, f.name)
		}
	}

	if err := s.repo.SavePayout(ctx, payout, fields); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to save payout details: %w", err)
	}
	l.InfoContext(ctx, "Payout details stored", slog.Any("fields", fields))
	span.SetStatus(codes.Ok, "Payout details saved")
	return &types.WriteResult{OK: true, Persisted: true, Message: "Influencer payout details submitted successfully"}, nil
}

// Submit finalises onboarding. Admins are confirmed without document checks.
func (s *OnboardingServiceImpl) Submit(ctx context.Context, userID uuid.UUID, requested string) (*types.SubmitOnboardingResponse, error) {
	ctx, span := otel.Tracer("OnboardingService").Start(ctx, "Submit", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Submit"), slog.String("user_id", userID.String()))
	dryRun := s.flags.Flags().OnboardingDryRun()

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if profile.Role == types.RoleAdmin {
		resp := &types.SubmitOnboardingResponse{OK: true, Role: types.RoleAdmin, RedirectPath: types.DashboardPathFor(string(types.RoleAdmin))}
		if dryRun {
			resp.DryRun = true
			return resp, nil
		}
		if err := s.repo.CompleteOnboarding(ctx, userID, s.now()); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to finalise admin onboarding: %w", err)
		}
		resp.Persisted = true
		return resp, nil
	}

	role, err := types.ParseRole(requested)
	if err != nil || (role != types.RoleSupplier && role != types.RoleInfluencer) {
		return nil, types.NewValidationError("Invalid role specified", types.FieldErrors{"role": "must be brand or influencer"})
	}

	uploaded, err := s.documents.UploadedDocTypes(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.NewValidationError("Please upload verification documents before submitting",
				types.FieldErrors{"documents": "are required"})
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check documents: %w", err)
	}
	missing := types.FieldErrors{}
	for _, doc := range types.RequiredDocuments(role) {
		if !slices.Contains(uploaded, doc) {
			missing["documents."+doc] = "is required"
		}
	}
	if len(missing) > 0 {
		return nil, types.NewValidationError("Please upload all required verification documents before submitting", missing)
	}

	resp := &types.SubmitOnboardingResponse{OK: true, Role: role, RedirectPath: types.DashboardPathFor(string(role))}
	if dryRun {
		s.countDryRun(ctx, "submit")
		resp.DryRun = true
		return resp, nil
	}

	if _, err := s.profiles.SetRole(ctx, userID, role); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update profile role: %w", err)
	}
	now := s.now()
	if err := s.documents.MarkSubmitted(ctx, userID, role, now); err != nil {
		l.WarnContext(ctx, "Could not mark verification request submitted", slog.Any("error", err))
	}
	if err := s.repo.CompleteOnboarding(ctx, userID, now); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to mark onboarding completed: %w", err)
	}

	l.InfoContext(ctx, "Onboarding submitted", slog.String("role", string(role)))
	span.SetStatus(codes.Ok, "Onboarding submitted")
	resp.Persisted = true
	return resp, nil
}

func (s *OnboardingServiceImpl) CheckHandle(ctx context.Context, userID uuid.UUID, displayName string) (*types.CheckHandleResponse, error) {
	ctx, span := otel.Tracer("OnboardingService").Start(ctx, "CheckHandle")
	defer span.End()

	name := strings.TrimSpace(displayName)
	if len(name) < 2 {
		return nil, types.NewValidationError("Display name must be at least 2 characters",
			types.FieldErrors{"displayName": "must be at least 2 characters"})
	}
	resp := &types.CheckHandleResponse{DisplayName: name}
	if slices.Contains(reservedHandles, strings.ToLower(name)) {
		return resp, nil
	}
	taken, err := s.profiles.DisplayNameTaken(ctx, name, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check display name: %w", err)
	}
	resp.Available = !taken
	return resp, nil
}
