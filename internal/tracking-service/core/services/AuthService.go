package services

import (
	"fmt"
	"strings"
	"time"

	"bus-tracker/internal/tracking-service/core/domain/model"

	"github.com/golang-jwt/jwt"
)

type AuthService struct {
	secretKey string
}

func NewAuthService(secretKey string) *AuthService {
	return &AuthService{
		secretKey: secretKey,
	}
}

// Authenticate validates an HS256 token and returns who it was issued to.
func (a *AuthService) Authenticate(tokenString string) (model.Principal, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return model.Principal{}, fmt.Errorf("empty token: %w", model.ErrAuthorization)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.secretKey), nil
	})
	if err != nil {
		return model.Principal{}, fmt.Errorf("failed to parse token: %v: %w", err, model.ErrAuthorization)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return model.Principal{}, fmt.Errorf("invalid token: %w", model.ErrAuthorization)
	}

	if exp, ok := claims["exp"].(float64); ok {
		if time.Unix(int64(exp), 0).Before(time.Now()) {
			return model.Principal{}, fmt.Errorf("token expired: %w", model.ErrAuthorization)
		}
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return model.Principal{}, fmt.Errorf("user_id is required: %w", model.ErrAuthorization)
	}

	roleClaim, _ := claims["role"].(string)
	role, ok := model.ParseRole(roleClaim)
	if !ok {
		return model.Principal{}, fmt.Errorf("invalid role %q: %w", roleClaim, model.ErrAuthorization)
	}

	return model.Principal{UserID: userID, Role: role}, nil
}

// IssueToken signs a token for userID. Used by tooling and tests; real tokens
// come from the account service.
func (a *AuthService) IssueToken(userID string, role model.Role, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     time.Now().Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(a.secretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
