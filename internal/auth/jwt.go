package auth

import (
	"errors"
	"fmt"
	"time"

	"bmr/config"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are issued by the account service. IsStaff and Groups drive the
// management capability.
type Claims struct {
	UserID  uint     `json:"user_id"`
	Email   string   `json:"email"`
	IsStaff bool     `json:"is_staff"`
	Groups  []string `json:"groups,omitempty"`
	jwt.RegisteredClaims
}

// GenerateAccessToken is used by tooling and tests; production tokens come
// from the account service sharing the same secret.
func GenerateAccessToken(cfg *config.JWTConfig, userID uint, email string, isStaff bool, groups ...string) (string, error) {
	claims := Claims{
		UserID:  userID,
		Email:   email,
		IsStaff: isStaff,
		Groups:  groups,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    cfg.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.AccessSecret))
}

var ErrInvalidToken = errors.New("invalid token")

func ParseAccessToken(cfg *config.JWTConfig, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.AccessSecret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
