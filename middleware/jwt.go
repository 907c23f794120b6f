package middleware

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer is stamped into every token and required on parse.
const TokenIssuer = "mathmon"

// Claims identifies a player. ID is unique per token, so logging out one
// token never revokes another minted in the same second.
type Claims struct {
	PlayerID string `json:"pid"`
	Guest    bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken mints an HS256 token valid for ttl.
func GenerateToken(playerID string, guest bool, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		PlayerID: playerID,
		Guest:    guest,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    TokenIssuer,
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies signature, expiry and issuer. Failures wrap
// ErrInvalidToken.
func ParseToken(tokenStr, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.PlayerID == "" {
		return nil, fmt.Errorf("%w: no player", ErrInvalidToken)
	}
	return claims, nil
}
