// Package auth validates the bearer token a Host or Guest presents when
// opening the signalling WebSocket, so the broker can authorize room
// creation and join requests against an external identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// CustomClaims carries the subject plus whatever scope a room-join token
// is issued with.
type CustomClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Validator verifies a JWT's signature against a JWKS fetched from an
// OIDC-style issuer and checks its issuer/audience, satisfying
// broker.TokenValidator.
type Validator struct {
	keyFunc  jwt.Keyfunc
	issuer   string
	audience string
}

// NewValidator fetches and caches the issuer's JWKS, refreshing hourly.
// regOpts lets tests inject a custom http.Client via jwk.WithHTTPClient.
func NewValidator(ctx context.Context, domain, audience string, regOpts ...jwk.RegisterOption) (*Validator, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, fmt.Errorf("auth: parse issuer url: %w", err)
	}
	jwksURL := issuerURL.JoinPath(".well-known/jwks.json").String()

	cache := jwk.NewCache(ctx)
	opts := append([]jwk.RegisterOption{jwk.WithRefreshInterval(time.Hour)}, regOpts...)
	if err := cache.Register(jwksURL, opts...); err != nil {
		return nil, fmt.Errorf("auth: register jwks cache: %w", err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("auth: initial jwks fetch: %w", err)
	}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("auth: kid header not found")
		}
		keys, err := cache.Get(ctx, jwksURL)
		if err != nil {
			return nil, fmt.Errorf("auth: fetch jwks: %w", err)
		}
		key, found := keys.LookupKeyID(kid)
		if !found {
			return nil, fmt.Errorf("auth: key %s not found", kid)
		}
		var pubKey interface{}
		if err := key.Raw(&pubKey); err != nil {
			return nil, fmt.Errorf("auth: decode public key: %w", err)
		}
		return pubKey, nil
	}

	return &Validator{keyFunc: keyFunc, issuer: issuerURL.String(), audience: audience}, nil
}

// ValidateToken parses and verifies tokenString, returning the subject
// claim. It implements broker.TokenValidator.
func (v *Validator) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, v.keyFunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return "", fmt.Errorf("auth: parse token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("auth: token is invalid")
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok {
		return "", errors.New("auth: unexpected claims type")
	}
	return claims.Subject, nil
}
