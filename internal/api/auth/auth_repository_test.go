package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/onelink-market/internal/types"
)

func newMockRepo(t *testing.T) (*PostgresAuthRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewPostgresAuthRepo(pool, slog.Default()), pool
}

func TestCreateUserWithProfile(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()

	t.Run("creates user and profile in one transaction", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectBegin()
		pool.ExpectQuery("INSERT INTO users").
			WithArgs("jane@example.com", "hash").
			WillReturnRows(pgxmock.NewRows([]string{"id", "email", "provider", "created_at"}).
				AddRow(id, "jane@example.com", "password", now))
		pool.ExpectExec("INSERT INTO profiles").
			WithArgs(id, "jane@example.com", "Jane Doe", types.RoleInfluencer).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		pool.ExpectCommit()

		u, err := repo.CreateUserWithProfile(ctx, "jane@example.com", "hash", "Jane Doe", types.RoleInfluencer)
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("unique violation is a conflict", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectBegin()
		pool.ExpectQuery("INSERT INTO users").
			WithArgs("jane@example.com", "hash").
			WillReturnError(&pgconn.PgError{Code: "23505"})
		pool.ExpectRollback()

		_, err := repo.CreateUserWithProfile(ctx, "jane@example.com", "hash", "Jane Doe", types.RoleCustomer)
		assert.ErrorIs(t, err, types.ErrConflict)
		assert.NoError(t, pool.ExpectationsWereMet())
	})
}

func TestGetUserByEmail(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	hash := "bcrypt-hash"

	repo, pool := newMockRepo(t)
	pool.ExpectQuery("SELECT id, email, password_hash").
		WithArgs("jane@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "provider", "created_at"}).
			AddRow(id, "jane@example.com", &hash, "password", time.Now()))

	u, err := repo.GetUserByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bcrypt-hash", u.PasswordHash)

	pool.ExpectQuery("SELECT id, email, password_hash").
		WithArgs("ghost@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "provider", "created_at"}))

	_, err = repo.GetUserByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestGetOrCreateProviderUserCreatesCustomer(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	repo, pool := newMockRepo(t)
	pool.ExpectBegin()
	pool.ExpectQuery("SELECT id, email, provider, created_at FROM users").
		WithArgs("google", "g-1", "jane@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "provider", "created_at"}))
	pool.ExpectQuery("INSERT INTO users").
		WithArgs("jane@example.com", "google", "g-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "provider", "created_at"}).
			AddRow(id, "jane@example.com", "google", time.Now()))
	pool.ExpectExec("INSERT INTO profiles").
		WithArgs(id, "jane@example.com", "Jane", types.RoleCustomer).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	u, err := repo.GetOrCreateProviderUser(ctx, "google", "g-1", "jane@example.com", "Jane")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestUpdatePasswordUnknownUser(t *testing.T) {
	repo, pool := newMockRepo(t)
	id := uuid.New()
	pool.ExpectExec("UPDATE users SET password_hash").
		WithArgs(id, "hash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdatePassword(context.Background(), id, "hash")
	assert.ErrorIs(t, err, types.ErrNotFound)
}
