package middleware

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	id "caretrail/pkg/domain"
)

// HMACValidator validates HS256 tokens issued by the platform's auth
// service. Claim names follow the platform-wide token contract.
type HMACValidator struct {
	signingKey []byte
}

func NewHMACValidator(signingKey string) *HMACValidator {
	return &HMACValidator{signingKey: []byte(signingKey)}
}

type tokenClaims struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (v *HMACValidator) ValidateToken(tokenString string) (*Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}

	tenantID, err := id.ParseTenantID(claims.TenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant claim: %w", err)
	}
	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("subject claim: %w", err)
	}

	return &Claims{
		TenantID: tenantID,
		UserID:   userID,
		Email:    claims.Email,
		Role:     claims.Role,
	}, nil
}
