package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the expected "iss" of staff tokens accepted by the ledger API.
const Issuer = "credit-ledger"

// Claims identifies the staff member acting on a ledger; the subject is the
// user id recorded as created_by on every entry they write.
type Claims struct {
	UserID     uuid.UUID
	BusinessID *uuid.UUID
}

type tokenClaims struct {
	jwt.RegisteredClaims
	BusinessID string `json:"business_id,omitempty"`
}

func GenerateToken(c Claims, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID.String(),
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if c.BusinessID != nil {
		claims.BusinessID = c.BusinessID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateToken: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{},
		func(t *jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: %w", err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("ValidateToken: invalid token claims")
	}

	userID, err := uuid.Parse(tc.Subject)
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: invalid subject: %w", err)
	}

	claims := &Claims{UserID: userID}
	if tc.BusinessID != "" {
		businessID, err := uuid.Parse(tc.BusinessID)
		if err != nil {
			return nil, fmt.Errorf("ValidateToken: invalid business_id: %w", err)
		}
		claims.BusinessID = &businessID
	}
	return claims, nil
}
