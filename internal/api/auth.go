package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenIssuer is the iss claim of every hub token.
const tokenIssuer = "graylogic-hub"

// defaultTokenTTL applies when IssueToken is called with a zero TTL.
const defaultTokenTTL = 15 * time.Minute

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("api: invalid token")

// IssueToken mints an HS256 bearer token for the mutation routes.
//
// There is no user database: anyone holding the shared secret (the CLI on
// the hub host) can mint tokens.
//
// Parameters:
//   - secret: The security.jwt.secret value
//   - subject: Who the token is for, recorded in request logs
//   - ttl: Token lifetime; zero means 15 minutes
//
// Returns:
//   - string: The signed token
//   - error: If the secret is empty or signing fails
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty signing secret", ErrInvalidToken)
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    tokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a token minted by IssueToken and returns its claims.
func ParseToken(secret, raw string) (*jwt.RegisteredClaims, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty signing secret", ErrInvalidToken)
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}
