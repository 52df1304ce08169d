// Package auth verifies the bearer tokens issued to frontend sessions.
package auth

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"sigedoc/internal/domain"
	"sigedoc/internal/domain/models"
)

// Claims are the token claims carried by session tokens.
type Claims struct {
	UserID int64  `json:"user_id"`
	Rol    string `json:"rol"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens and extracts the caller identity.
type Verifier interface {
	VerifyToken(tokenString string) (*models.Identity, error)
}

// HMACVerifier validates HS256 tokens against a shared secret.
type HMACVerifier struct {
	secret []byte
	logger *slog.Logger
}

// NewVerifier creates an HS256 token verifier.
func NewVerifier(secret string, logger *slog.Logger) (Verifier, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	return &HMACVerifier{secret: []byte(secret), logger: logger}, nil
}

// VerifyToken validates a token and returns the caller identity.
// Returns domain.ErrUnauthorized for anything invalid, expired or signed
// with an unexpected algorithm.
func (v *HMACVerifier) VerifyToken(tokenString string) (*models.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Prevent algorithm confusion attacks - only HS256 is issued
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		v.logger.Debug("token parse failed", "error", err)
		return nil, domain.ErrUnauthorized
	}

	if !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if claims.UserID <= 0 {
		v.logger.Debug("token missing user_id claim")
		return nil, domain.ErrUnauthorized
	}

	return &models.Identity{UserID: claims.UserID, Rol: claims.Rol}, nil
}
