// Package jwks validates VidHub session tokens. Tokens are either EdDSA
// signed by the auth service (keys discovered from its JWKS endpoint) or,
// for single-process deployments, HS256 signed with a shared secret.
package jwks

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
)

// cacheTTL bounds how long a fetched key set is trusted.
const cacheTTL = 5 * time.Minute

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kty string `json:"kty"` // Key type
	Kid string `json:"kid"` // Key ID
	Use string `json:"use"` // Public key use
	Alg string `json:"alg"` // Algorithm
	Crv string `json:"crv"` // Curve
	X   string `json:"x"`   // X coordinate
}

// Claims is the validated content of a session token.
type Claims struct {
	Subject   string
	Email     string
	Role      string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Client validates tokens against an issuer and audience.
type Client struct {
	issuer   string
	audience string

	// JWKS mode
	jwksURL    string
	httpClient *http.Client
	cache      *jwksCache

	// HS256 mode
	secret []byte
}

// jwksCache stores cached JWKS with expiration
type jwksCache struct {
	jwks      *JWKS
	expiresAt time.Time
	mutex     sync.RWMutex
}

// NewClient creates a validator that resolves EdDSA keys from jwksURL.
func NewClient(jwksURL, issuer, audience string) *Client {
	return &Client{
		issuer:   issuer,
		audience: audience,
		jwksURL:  jwksURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache: &jwksCache{},
	}
}

// NewHMACClient creates a validator for HS256 tokens signed with secret.
func NewHMACClient(secret []byte, issuer, audience string) *Client {
	return &Client{issuer: issuer, audience: audience, secret: secret}
}

// fetchJWKS fetches the JWKS from the auth service
func (c *Client) fetchJWKS(ctx context.Context) (*JWKS, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS fetch failed with status %d", resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}
	return &jwks, nil
}

// getJWKS retrieves JWKS from cache or fetches fresh if needed
func (c *Client) getJWKS(ctx context.Context, refresh bool) (*JWKS, error) {
	if !refresh {
		c.cache.mutex.RLock()
		if c.cache.jwks != nil && time.Now().Before(c.cache.expiresAt) {
			jwks := c.cache.jwks
			c.cache.mutex.RUnlock()
			return jwks, nil
		}
		c.cache.mutex.RUnlock()
	}

	c.cache.mutex.Lock()
	defer c.cache.mutex.Unlock()

	// Double-check after acquiring write lock
	if !refresh && c.cache.jwks != nil && time.Now().Before(c.cache.expiresAt) {
		return c.cache.jwks, nil
	}

	jwks, err := c.fetchJWKS(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.jwks = jwks
	c.cache.expiresAt = time.Now().Add(cacheTTL)
	return jwks, nil
}

// getKey retrieves a specific key from the JWKS by kid. An unknown kid forces
// one refetch so rotated keys are picked up before the cache expires.
func (c *Client) getKey(ctx context.Context, kid string) (*JWK, error) {
	for _, refresh := range []bool{false, true} {
		jwks, err := c.getJWKS(ctx, refresh)
		if err != nil {
			return nil, err
		}
		for _, key := range jwks.Keys {
			if key.Kid == kid {
				return &key, nil
			}
		}
	}
	return nil, fmt.Errorf("key with kid %s not found", kid)
}

func (c *Client) keyFunc(ctx context.Context) jwt.Keyfunc {
	if c.secret != nil {
		return func(*jwt.Token) (interface{}, error) { return c.secret, nil }
	}
	return func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("missing or invalid kid in JWT header")
		}
		jwk, err := c.getKey(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("failed to get key: %w", err)
		}
		if jwk.Kty != "OKP" || jwk.Crv != "Ed25519" || jwk.Alg != "EdDSA" {
			return nil, errors.New("unsupported key type or algorithm")
		}
		x, err := base64.RawURLEncoding.DecodeString(jwk.X)
		if err != nil {
			return nil, fmt.Errorf("failed to decode public key: %w", err)
		}
		if len(x) != ed25519.PublicKeySize {
			return nil, errors.New("invalid Ed25519 public key length")
		}
		return ed25519.PublicKey(x), nil
	}
}

// ValidateJWT verifies signature, issuer, audience and expiry, returning the
// token's claims or a VH_JWT_* error.
func (c *Client) ValidateJWT(ctx context.Context, tokenString string) (*Claims, error) {
	methods := []string{jwt.SigningMethodEdDSA.Alg()}
	if c.secret != nil {
		methods = []string{jwt.SigningMethodHS256.Alg()}
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods(methods),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
	)

	var tc tokenClaims
	token, err := parser.ParseWithClaims(tokenString, &tc, c.keyFunc(ctx))
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid || tc.Subject == "" {
		return nil, errordefs.New(errordefs.VH_JWT_INVALID, "token has no subject", "")
	}

	claims := &Claims{Subject: tc.Subject, Email: tc.Email, Role: tc.Role}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return errordefs.New(errordefs.VH_JWT_EXPIRED, "token expired", "")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return errordefs.New(errordefs.VH_JWT_MALFORMED, "malformed token", "")
	default:
		return errordefs.New(errordefs.VH_JWT_INVALID, err.Error(), "")
	}
}
