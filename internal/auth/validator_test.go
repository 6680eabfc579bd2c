package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestKeys(t *testing.T) *rsa.PrivateKey {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey
}

func startMockJWKSServer(t *testing.T, rsaKey *rsa.PrivateKey) *httptest.Server {
	publicKey, err := jwk.FromRaw(&rsaKey.PublicKey)
	require.NoError(t, err)
	require.NoError(t, publicKey.Set(jwk.KeyIDKey, "test-kid"))
	require.NoError(t, publicKey.Set(jwk.AlgorithmKey, "RS256"))

	keySet := jwk.NewSet()
	require.NoError(t, keySet.AddKey(publicKey))

	return httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(keySet))
	}))
}

func createTestJWT(t *testing.T, privateKey *rsa.PrivateKey, claims jwt.Claims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-kid"
	tokenString, err := token.SignedString(privateKey)
	require.NoError(t, err)
	return tokenString
}

func TestNewValidator(t *testing.T) {
	privateKey := setupTestKeys(t)
	mockServer := startMockJWKSServer(t, privateKey)
	defer mockServer.Close()
	mockDomain := strings.TrimPrefix(mockServer.URL, "https://")

	t.Run("creates a validator against a reachable jwks endpoint", func(t *testing.T) {
		regOpt := jwk.WithHTTPClient(mockServer.Client())
		validator, err := NewValidator(context.Background(), mockDomain, "room-join", regOpt)
		require.NoError(t, err)
		require.NotNil(t, validator)
		assert.Equal(t, "https://"+mockDomain+"/", validator.issuer)
		assert.Equal(t, "room-join", validator.audience)
	})

	t.Run("fails with an invalid domain", func(t *testing.T) {
		_, err := NewValidator(context.Background(), " a bad domain", "room-join")
		assert.Error(t, err)
	})

	t.Run("fails if the jwks endpoint is unreachable", func(t *testing.T) {
		unreachable := startMockJWKSServer(t, privateKey)
		unreachableDomain := strings.TrimPrefix(unreachable.URL, "https://")
		unreachable.Close()

		_, err := NewValidator(context.Background(), unreachableDomain, "room-join")
		assert.Error(t, err)
	})
}

func TestValidateToken(t *testing.T) {
	privateKey := setupTestKeys(t)
	mockServer := startMockJWKSServer(t, privateKey)
	defer mockServer.Close()
	mockDomain := strings.TrimPrefix(mockServer.URL, "https://")

	regOpt := jwk.WithHTTPClient(mockServer.Client())
	validator, err := NewValidator(context.Background(), mockDomain, "room-join", regOpt)
	require.NoError(t, err)

	t.Run("validates a well-formed token and returns its subject", func(t *testing.T) {
		claims := &CustomClaims{
			Scope: "host",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "https://" + mockDomain + "/",
				Subject:   "user-123",
				Audience:  jwt.ClaimStrings{"room-join"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
			},
		}
		subject, err := validator.ValidateToken(createTestJWT(t, privateKey, claims))
		require.NoError(t, err)
		assert.Equal(t, "user-123", subject)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		claims := &CustomClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "https://" + mockDomain + "/",
				Audience:  jwt.ClaimStrings{"room-join"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}
		_, err := validator.ValidateToken(createTestJWT(t, privateKey, claims))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "token is expired")
	})

	t.Run("rejects a token with the wrong issuer", func(t *testing.T) {
		claims := &CustomClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "https://wrong-issuer.example/",
				Audience:  jwt.ClaimStrings{"room-join"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		_, err := validator.ValidateToken(createTestJWT(t, privateKey, claims))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "token has invalid issuer")
	})

	t.Run("rejects a token signed by the wrong key", func(t *testing.T) {
		wrongKey := setupTestKeys(t)
		claims := &CustomClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "https://" + mockDomain + "/",
				Audience:  jwt.ClaimStrings{"room-join"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		_, err := validator.ValidateToken(createTestJWT(t, wrongKey, claims))
		assert.Error(t, err)
	})
}
