package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/eringen/inkpost/model"
)

// Claims represents JWT claims carrying the session identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// JWT implements model.TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

var _ model.TokenManager = (*JWT)(nil)

// DefaultTTL matches the lifetime of the auth cookie.
const DefaultTTL = 7 * 24 * time.Hour

// NewJWT creates a new JWT token manager with the provided secret key.
// A non-positive ttl falls back to DefaultTTL.
func NewJWT(secretKey string, ttl time.Duration) *JWT {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JWT{secretKey: []byte(secretKey), ttl: ttl, now: time.Now}
}

// Issue signs a session token for the given identity.
func (j *JWT) Issue(c model.Claims) (string, error) {
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
		UserID: c.ID,
		Name:   c.Name,
		Email:  c.Email,
	})

	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Verify validates the signature and expiry of a session token and extracts its identity.
func (j *JWT) Verify(tokenString string) (model.Claims, error) {
	if tokenString == "" {
		return model.Claims{}, errors.New("session token is empty")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(j.now))
	if err != nil {
		return model.Claims{}, fmt.Errorf("failed to parse session token: %w", err)
	}
	if !token.Valid {
		return model.Claims{}, errors.New("session token is invalid")
	}
	if claims.UserID <= 0 {
		return model.Claims{}, fmt.Errorf("session token has no user id")
	}
	return model.Claims{ID: claims.UserID, Name: claims.Name, Email: claims.Email}, nil
}
