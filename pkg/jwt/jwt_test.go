package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeyPair(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return key, pemBytes
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims *Claims) string {
	t.Helper()

	token, err := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestValidateToken(t *testing.T) {
	key, pub := newTestKeyPair(t)
	verifier, err := NewVerifier(pub, "directfanz")
	require.NoError(t, err)

	now := time.Now()

	tests := []struct {
		name    string
		claims  *Claims
		wantErr error
	}{
		{
			name: "valid access token",
			claims: &Claims{
				RegisteredClaims: gojwt.RegisteredClaims{
					Issuer:    "directfanz",
					Subject:   "user-1",
					IssuedAt:  gojwt.NewNumericDate(now),
					ExpiresAt: gojwt.NewNumericDate(now.Add(time.Hour)),
				},
				UserID:   "user-1",
				Username: "alice",
				Role:     "viewer",
				Type:     "access",
			},
		},
		{
			name: "expired token",
			claims: &Claims{
				RegisteredClaims: gojwt.RegisteredClaims{
					Issuer:    "directfanz",
					IssuedAt:  gojwt.NewNumericDate(now.Add(-2 * time.Hour)),
					ExpiresAt: gojwt.NewNumericDate(now.Add(-time.Hour)),
				},
				UserID: "user-1",
				Type:   "access",
			},
			wantErr: ErrExpiredToken,
		},
		{
			name: "wrong issuer",
			claims: &Claims{
				RegisteredClaims: gojwt.RegisteredClaims{
					Issuer:    "someone-else",
					ExpiresAt: gojwt.NewNumericDate(now.Add(time.Hour)),
				},
				UserID: "user-1",
				Type:   "access",
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "refresh token rejected",
			claims: &Claims{
				RegisteredClaims: gojwt.RegisteredClaims{
					Issuer:    "directfanz",
					ExpiresAt: gojwt.NewNumericDate(now.Add(time.Hour)),
				},
				UserID: "user-1",
				Type:   "refresh",
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "missing user id",
			claims: &Claims{
				RegisteredClaims: gojwt.RegisteredClaims{
					Issuer:    "directfanz",
					ExpiresAt: gojwt.NewNumericDate(now.Add(time.Hour)),
				},
				Type: "access",
			},
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := signToken(t, key, tt.claims)

			claims, err := verifier.ValidateToken(token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.claims.UserID, claims.UserID)
			assert.Equal(t, tt.claims.Username, claims.Username)
			assert.Equal(t, tt.claims.Role, claims.Role)
		})
	}
}

func TestValidateTokenRejectsHMAC(t *testing.T) {
	_, pub := newTestKeyPair(t)
	verifier, err := NewVerifier(pub, "")
	require.NoError(t, err)

	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "user-1",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenGarbage(t *testing.T) {
	_, pub := newTestKeyPair(t)
	verifier, err := NewVerifier(pub, "")
	require.NoError(t, err)

	_, err = verifier.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
