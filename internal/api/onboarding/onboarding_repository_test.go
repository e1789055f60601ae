package onboarding

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/onelink-market/internal/types"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresOnboardingRepo) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool, NewPostgresOnboardingRepo(pool, slog.Default())
}

func TestUpsertStep(t *testing.T) {
	pool, repo := newMockRepo(t)
	id := uuid.New()
	now := time.Now().UTC()
	role := types.RoleInfluencer
	influencer := "influencer"

	pool.ExpectExec(`INSERT INTO onboarding_progress (.+) ON CONFLICT \(user_id, step\) DO UPDATE\s+` +
		`SET current_step = GREATEST\(onboarding_progress.current_step, EXCLUDED.current_step\),\s+` +
		`completed_steps = ARRAY\(\s+SELECT DISTINCT s\s+FROM unnest\(onboarding_progress.completed_steps \|\| EXCLUDED.completed_steps\)`).
		WithArgs(id, 3, 4, []int{1, 2, 3}, `{"a":1}`, &influencer, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.UpsertStep(context.Background(), types.ProgressRecord{
		UserID: id, Step: 3, CurrentStep: 4, CompletedSteps: []int{1, 2, 3},
		Data: json.RawMessage(`{"a":1}`), Role: &role, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestListSteps(t *testing.T) {
	pool, repo := newMockRepo(t)
	id := uuid.New()
	now := time.Now().UTC()
	brand := "brand"

	pool.ExpectQuery("SELECT step, current_step, completed_steps, data, role, status, updated_at FROM onboarding_progress").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"step", "current_step", "completed_steps", "data", "role", "status", "updated_at"}).
			AddRow(3, 4, []int{1, 2, 3}, []byte(`{}`), &brand, "draft", now).
			AddRow(1, 2, []int{}, []byte(`{"phone":"+351912345678"}`), nil, "completed", now.Add(-time.Hour)))

	rows, err := repo.ListSteps(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].Role)
	assert.Equal(t, types.RoleSupplier, *rows[0].Role)
	assert.Equal(t, []int{1, 2, 3}, rows[0].CompletedSteps)
	assert.Nil(t, rows[1].Role)
	assert.Equal(t, types.ProgressCompleted, rows[1].Status)
	assert.JSONEq(t, `{"phone":"+351912345678"}`, string(rows[1].Data))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestCompleteOnboardingInsertsWhenNoRows(t *testing.T) {
	pool, repo := newMockRepo(t)
	id := uuid.New()
	now := time.Now().UTC()

	pool.ExpectBegin()
	pool.ExpectExec("UPDATE onboarding_progress SET status = 'completed'").
		WithArgs(id, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	pool.ExpectExec("INSERT INTO onboarding_progress").
		WithArgs(id, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	require.NoError(t, repo.CompleteOnboarding(context.Background(), id, now))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestSavePayoutWritesAuditEntry(t *testing.T) {
	pool, repo := newMockRepo(t)
	id := uuid.New()
	swift := "sealed:swift"

	pool.ExpectBegin()
	pool.ExpectExec("INSERT INTO influencer_payouts").
		WithArgs(id, "Millennium", "Jane Doe", "sealed:acct", (*string)(nil), &swift, (*string)(nil), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("INSERT INTO payout_audit_log").
		WithArgs(id, []string{"account_number", "swift_code"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	err := repo.SavePayout(context.Background(), types.EncryptedPayout{
		UserID: id, BankName: "Millennium", AccountHolderName: "Jane Doe",
		AccountNumberEnc: "sealed:acct", SwiftCodeEnc: &swift,
	}, []string{"account_number", "swift_code"})
	require.NoError(t, err)
	assert.NoError(t, pool.ExpectationsWereMet())
}
