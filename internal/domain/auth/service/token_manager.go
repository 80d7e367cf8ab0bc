package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/storelink-api/internal/types"
)

var ErrInvalidToken = errors.New("invalid or expired access token")

// Claims are the access token claims issued by the identity provider.
// The subject carries the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the caller identity.
func (c *Claims) Identity() (types.Identity, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return types.Identity{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return types.Identity{UserID: userID, Email: c.Email}, nil
}

type TokenManager interface {
	ValidateAccessToken(tokenString string) (*Claims, error)
}

var _ TokenManager = (*JWTTokenManager)(nil)

// JWTTokenManager verifies HS256 tokens signed with the provider's shared secret.
type JWTTokenManager struct {
	secret   []byte
	issuer   string
	audience string
}

// NewTokenManager returns a verifier. Empty issuer or audience skip those checks.
func NewTokenManager(secret []byte, issuer, audience string) *JWTTokenManager {
	return &JWTTokenManager{secret: secret, issuer: issuer, audience: audience}
}

func (m *JWTTokenManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueAccessToken signs a token the way the identity provider does. Used for local
// development and tests.
func (m *JWTTokenManager) IssueAccessToken(userID uuid.UUID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}
