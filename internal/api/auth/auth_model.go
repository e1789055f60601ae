package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/FACorreiaa/onelink-market/internal/types"
)

type contextKey string

const UserIDKey contextKey = "userID"
const UserEmailKey contextKey = "userEmail"

// WithIdentity stores the authenticated identity on the context.
func WithIdentity(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserEmailKey, email)
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailKey).(string)
	return email, ok
}

// UserIDFrom returns the session user's id or ErrUnauthenticated.
func UserIDFrom(ctx context.Context) (uuid.UUID, error) {
	raw, ok := GetUserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, types.ErrUnauthenticated
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed user id in session: %w", types.ErrUnauthenticated)
	}
	return id, nil
}
