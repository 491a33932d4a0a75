package services

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/prudhvinik1/smsledger/internal/models"
)

// TokenVerifier turns a bearer token issued by the account service into a
// caller identity. Issuing tokens is not this service's concern.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify accepts HS256 tokens carrying the owner in "sub" (or "userId" for
// older tokens) and an optional "role", which defaults to normal.
func (v *TokenVerifier) Verify(tokenString string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, ErrUnauthorized
	}

	ownerID, _ := claims["sub"].(string)
	if ownerID == "" {
		ownerID, _ = claims["userId"].(string)
	}
	if ownerID == "" {
		return models.Identity{}, ErrUnauthorized
	}

	role := models.RoleNormal
	if r, ok := claims["role"].(string); ok && strings.TrimSpace(r) != "" {
		role = models.Role(strings.ToLower(strings.TrimSpace(r)))
	}
	if !role.Valid() {
		return models.Identity{}, ErrUnauthorized
	}

	return models.Identity{OwnerID: ownerID, Role: role}, nil
}
