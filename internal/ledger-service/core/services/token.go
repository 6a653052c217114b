package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt"
)

type Claims struct {
	UserId string
	Name   string
	Role   string
}

var (
	ErrEmptyToken   = errors.New("empty JWT-Token")
	ErrInvalidToken = errors.New("invalid JWT-Token")
)

// ParseToken verifies an HS256 token (with or without the Bearer prefix) and
// returns its claims. Expiry is checked by the claims validation.
func ParseToken(secret, tokenString string) (Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return Claims{}, ErrEmptyToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}
	userId, ok := claims["user_id"].(string)
	if !ok || userId == "" {
		return Claims{}, fmt.Errorf("%w: user_id not found in token", ErrInvalidToken)
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return Claims{}, fmt.Errorf("%w: role not found in token", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	return Claims{UserId: userId, Name: name, Role: role}, nil
}
