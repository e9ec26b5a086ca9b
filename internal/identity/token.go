package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the claims embedded in an access token.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// IssueAccessToken creates a signed HS256 access token bound to a session.
func IssueAccessToken(secret []byte, issuer string, user User, sessionID string, issuedAt time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := issuedAt.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		Email:     user.Email,
		Role:      "authenticated",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("identity: sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseAccessToken validates an HS256 access token from the given issuer.
// Algorithm and expiry are always enforced.
func ParseAccessToken(tokenStr string, secret []byte, issuer string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing session", ErrInvalidToken)
	}
	return claims, nil
}
