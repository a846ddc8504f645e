package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims represents the platform's access-token claims. Tokens are issued
// by the account service; this package only verifies them.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"` // "viewer" or "broadcaster"
	Type     string `json:"type"` // "access" or "refresh"
}

// Verifier validates RS256 access tokens against the issuer's public key.
type Verifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// NewVerifier creates a verifier from a PEM-encoded RSA public key.
// issuer is optional; when set, tokens from other issuers are rejected.
func NewVerifier(publicKeyPEM []byte, issuer string) (*Verifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &Verifier{publicKey: key, issuer: issuer}, nil
}

// NewVerifierFromFile reads the public key from disk.
func NewVerifierFromFile(path, issuer string) (*Verifier, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	return NewVerifier(pem, issuer)
}

// ValidateToken validates a token and returns its claims. Refresh tokens
// are rejected; only access tokens may open a connection.
func (v *Verifier) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return v.publicKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, ErrInvalidToken
	}
	if claims.Type != "" && claims.Type != "access" {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
