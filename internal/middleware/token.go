package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lorry-backend/internal/models"
)

type UserClaims struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email"`
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
}

type tokenClaims struct {
	UserClaims
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for user valid for ttl from now
func IssueToken(secret string, user *models.User, ttl time.Duration, now time.Time) (string, error) {
	claims := tokenClaims{
		UserClaims: UserClaims{
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.Name,
			Role:   user.Role,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature and expiry and returns the claims.
// Tokens carrying an unknown role are rejected.
func ParseToken(secret, tokenString string) (UserClaims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return UserClaims{}, err
	}
	if !token.Valid {
		return UserClaims{}, errors.New("token is not valid")
	}
	if claims.UserID == "" {
		return UserClaims{}, errors.New("token has no user_id")
	}

	role, err := models.ParseRole(string(claims.Role))
	if err != nil {
		return UserClaims{}, err
	}
	claims.UserClaims.Role = role
	return claims.UserClaims, nil
}
