package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/argon2"
)

// Author is the authenticated writer identity: a stable pseudonym plus an
// optional claimed handle.
type Author struct {
	ID     string `json:"id"`
	Handle string `json:"handle,omitempty"`
}

// ExtractToken extracts the JWT token from an Authorization header value.
// Supports "Bearer <token>" format.
func ExtractToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("empty authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty token")
	}

	return token, nil
}

// LocalJWTAuth verifies and issues local HS256 tokens carrying the author
// pseudonym.
type LocalJWTAuth struct {
	SecretKey   []byte
	TokenExpiry time.Duration
}

// NewLocalJWTAuth creates a new local JWT auth instance
func NewLocalJWTAuth(secretKey string, tokenExpiry time.Duration) (*LocalJWTAuth, error) {
	if secretKey == "" {
		return nil, errors.New("JWT secret key cannot be empty")
	}
	if tokenExpiry == 0 {
		tokenExpiry = 24 * time.Hour
	}
	return &LocalJWTAuth{
		SecretKey:   []byte(secretKey),
		TokenExpiry: tokenExpiry,
	}, nil
}

// AuthorClaims are the token claims for a writer.
type AuthorClaims struct {
	AuthorID string `json:"sub"`
	Handle   string `json:"handle,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken issues a signed token for an author.
func (a *LocalJWTAuth) GenerateToken(authorID, handle string) (string, error) {
	claims := AuthorClaims{
		AuthorID: authorID,
		Handle:   handle,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "nightpress-local",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.SecretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a token and returns the author identity.
func (a *LocalJWTAuth) VerifyToken(tokenString string) (*Author, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthorClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.SecretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*AuthorClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.AuthorID == "" {
		return nil, errors.New("token missing author id")
	}

	return &Author{ID: claims.AuthorID, Handle: claims.Handle}, nil
}

// DerivePseudonym derives a stable pseudonym id from a writer's secret
// phrase and a server salt. The same phrase always yields the same
// pseudonym, so no account registry is required.
func DerivePseudonym(phrase, salt string) string {
	key := argon2.IDKey([]byte(phrase), []byte(salt), 1, 64*1024, 4, 18)
	return base64.RawURLEncoding.EncodeToString(key)
}
