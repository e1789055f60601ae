package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	OnboardingStepsTotal       metric.Int64Counter
	OnboardingDryRunsTotal     metric.Int64Counter
	VerificationCodesSentTotal metric.Int64Counter
	VerificationAttemptsTotal  metric.Int64Counter
	FreezeBlockedTotal         metric.Int64Counter
	SignInsTotal               metric.Int64Counter
	DbQueryDurationSeconds     metric.Float64Histogram
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments once from the global MeterProvider.
// Call it after the provider is configured so the Prometheus reader sees them.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("onelink-market")
		m := &AppMetrics{}
		var err error

		m.OnboardingStepsTotal, err = meter.Int64Counter(
			"onboarding_steps_total",
			metric.WithDescription("Onboarding step submissions, by role and step"),
			metric.WithUnit("{submission}"),
		)
		must("onboarding_steps_total", err)

		m.OnboardingDryRunsTotal, err = meter.Int64Counter(
			"onboarding_dry_runs_total",
			metric.WithDescription("Onboarding writes validated but not persisted"),
			metric.WithUnit("{submission}"),
		)
		must("onboarding_dry_runs_total", err)

		m.VerificationCodesSentTotal, err = meter.Int64Counter(
			"verification_codes_sent_total",
			metric.WithDescription("Email verification codes sent, by outcome"),
			metric.WithUnit("{code}"),
		)
		must("verification_codes_sent_total", err)

		m.VerificationAttemptsTotal, err = meter.Int64Counter(
			"verification_attempts_total",
			metric.WithDescription("Email verification attempts, by result"),
			metric.WithUnit("{attempt}"),
		)
		must("verification_attempts_total", err)

		m.FreezeBlockedTotal, err = meter.Int64Counter(
			"freeze_blocked_total",
			metric.WithDescription("Write requests rejected by an operational freeze"),
			metric.WithUnit("{request}"),
		)
		must("freeze_blocked_total", err)

		m.SignInsTotal, err = meter.Int64Counter(
			"sign_ins_total",
			metric.WithDescription("Sign-in attempts, by result"),
			metric.WithUnit("{request}"),
		)
		must("sign_ins_total", err)

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		must("db_query_duration_seconds", err)

		appMetrics = m
	})
}

func must(name string, err error) {
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
}

// Get returns the instruments, creating them against the current global
// provider if InitAppMetrics has not run yet (tests use the no-op provider).
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
