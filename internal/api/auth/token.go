package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/onelink-market/config"
	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

const (
	scopeSession = "session"
	scopeReset   = "password_reset"
	resetTTL     = 30 * time.Minute
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

type tokenClaims struct {
	types.Claims
	Scope       string `json:"scope"`
	Fingerprint string `json:"pwf,omitempty"`
}

// ResetClaims carries the fingerprint of the password hash the reset link
// was issued against. Once the password changes the link stops matching.
type ResetClaims struct {
	types.Claims
	Fingerprint string
}

// TokenManager issues and validates HMAC-signed session and reset tokens.
type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewTokenManager(cfg config.JWTConfig) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("JWT secret key cannot be empty")
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{
		secret:   []byte(cfg.SecretKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

func (m *TokenManager) TTL() time.Duration { return m.ttl }

func (m *TokenManager) sign(userID uuid.UUID, email, role, scope, fingerprint string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := tokenClaims{
		Claims: types.Claims{
			UserID: userID.String(),
			Email:  email,
			Role:   role,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   userID.String(),
				Issuer:    m.issuer,
				IssuedAt:  jwt.NewNumericDate(now),
				NotBefore: jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
				ID:        uuid.NewString(),
			},
		},
		Scope:       scope,
		Fingerprint: fingerprint,
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// IssueSession returns a session token. The role claim is informational.
func (m *TokenManager) IssueSession(userID uuid.UUID, email string, role types.Role) (string, error) {
	return m.sign(userID, email, string(role), scopeSession, "", m.ttl)
}

// IssueReset binds the token to passwordHash. Accounts without a password
// (OAuth only) fingerprint the empty string.
func (m *TokenManager) IssueReset(userID uuid.UUID, email, passwordHash string) (string, error) {
	return m.sign(userID, email, "", scopeReset, m.PasswordFingerprint(passwordHash), resetTTL)
}

func (m *TokenManager) ParseSession(token string) (*types.Claims, error) {
	claims, err := m.parse(token, scopeSession)
	if err != nil {
		return nil, err
	}
	return &claims.Claims, nil
}

func (m *TokenManager) ParseReset(token string) (*ResetClaims, error) {
	claims, err := m.parse(token, scopeReset)
	if err != nil {
		return nil, err
	}
	if claims.Fingerprint == "" {
		return nil, fmt.Errorf("%w: missing fingerprint", ErrTokenInvalid)
	}
	return &ResetClaims{Claims: claims.Claims, Fingerprint: claims.Fingerprint}, nil
}

// PasswordFingerprint is a keyed digest of a password hash, safe to embed in
// a token.
func (m *TokenManager) PasswordFingerprint(passwordHash string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte("pwf:" + passwordHash))
	return hex.EncodeToString(mac.Sum(nil)[:16])
}

// MatchesPassword reports whether claims were issued against passwordHash.
func (m *TokenManager) MatchesPassword(claims *ResetClaims, passwordHash string) bool {
	return hmac.Equal([]byte(claims.Fingerprint), []byte(m.PasswordFingerprint(passwordHash)))
}

func (m *TokenManager) parse(tokenString, scope string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Scope != scope {
		return nil, ErrTokenInvalid
	}
	if !api.VerifyAudience(claims.Audience, m.audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrTokenInvalid)
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}
	return claims, nil
}
