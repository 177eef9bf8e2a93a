package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// Tokens signs and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret []byte, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Tokens{secret: secret, ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(user models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
		"role":     string(user.Role),
		"exp":      t.now().Add(t.ttl).Unix(),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns the identity it carries. Any failure is
// ErrUnauthenticated.
func (t *Tokens) Parse(raw string) (*Identity, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid token claims", domainerrors.ErrUnauthenticated)
	}
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrUnauthenticated, errors.New("missing user_id claim"))
	}

	username, _ := claims["username"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return &Identity{
		UserID:   int(userID),
		Username: username,
		Email:    email,
		Role:     models.ParseRole(role),
	}, nil
}
