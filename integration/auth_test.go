// Package integration exercises VidHub against live-shaped auth backends: a
// JWKS endpoint serving EdDSA keys and a remote auth service.
package integration

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/RegistryAccord/vidhub-go/internal/config"
	"github.com/RegistryAccord/vidhub-go/internal/event"
	"github.com/RegistryAccord/vidhub-go/internal/gateway"
	"github.com/RegistryAccord/vidhub-go/internal/identity"
	"github.com/RegistryAccord/vidhub-go/internal/jwks"
	"github.com/RegistryAccord/vidhub-go/internal/media"
	"github.com/RegistryAccord/vidhub-go/internal/schema"
	"github.com/RegistryAccord/vidhub-go/internal/server"
	"github.com/RegistryAccord/vidhub-go/internal/session"
	"github.com/RegistryAccord/vidhub-go/internal/storage"
	"github.com/RegistryAccord/vidhub-go/internal/views"
)

func newApp(t *testing.T, auth session.Authenticator) *server.Server {
	t.Helper()
	v, err := schema.NewValidator(nil)
	if err != nil {
		t.Fatal(err)
	}
	gw := gateway.New(gateway.Options{
		Store:     storage.NewMemory(),
		Objects:   media.NewMemory("http://objects.test"),
		Events:    event.NewRecorder(),
		Validator: v,
		Buckets:   config.Buckets{Videos: "videos", Thumbnails: "thumbnails", Avatars: "avatars", Banners: "banners"},
	})
	app := server.New(server.Options{Gateway: gw, Auth: auth, Processor: views.SimulatedProcessor{}})
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

func get(t *testing.T, h http.Handler, path, token string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var env struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &env)
	if env.Error != nil {
		return rr, env.Error.Code
	}
	return rr, ""
}

// jwksServer serves one Ed25519 key under kid and counts fetches.
func jwksServer(t *testing.T, kid string, pub ed25519.PublicKey, fetches *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(fetches, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks.JWKS{Keys: []jwks.JWK{{
			Kty: "OKP", Kid: kid, Use: "sig", Alg: "EdDSA", Crv: "Ed25519",
			X: base64.RawURLEncoding.EncodeToString(pub),
		}}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signEdDSA(t *testing.T, key ed25519.PrivateKey, kid, issuer, audience, subject string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"iss":   issuer,
		"aud":   audience,
		"sub":   subject,
		"email": subject + "@example.com",
		"iat":   time.Now().Unix(),
		"exp":   exp.Unix(),
	})
	token.Header["kid"] = kid
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign JWT: %v", err)
	}
	return s
}

// TestJWTValidation signs tokens with a key published over JWKS and checks
// how the gated routes treat each variant.
func TestJWTValidation(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	var fetches int32
	keys := jwksServer(t, "key-1", pub, &fetches)
	auth := session.TokenAuth{Validator: jwks.NewClient(keys.URL, "test-issuer", "test-audience")}
	app := newApp(t, auth)
	hour := time.Now().Add(time.Hour)

	t.Run("ValidJWT", func(t *testing.T) {
		token := signEdDSA(t, priv, "key-1", "test-issuer", "test-audience", "dana", hour)
		rr, code := get(t, app, "/app/settings", token)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rr.Code, code)
		}
	})

	t.Run("KeysAreCached", func(t *testing.T) {
		before := atomic.LoadInt32(&fetches)
		token := signEdDSA(t, priv, "key-1", "test-issuer", "test-audience", "dana", hour)
		for i := 0; i < 3; i++ {
			get(t, app, "/app/wallet", token)
		}
		if got := atomic.LoadInt32(&fetches); got != before {
			t.Errorf("expected cached key set, saw %d extra fetches", got-before)
		}
	})

	cases := []struct {
		name   string
		token  string
		status int
		code   string
	}{
		{"Expired", signEdDSA(t, priv, "key-1", "test-issuer", "test-audience", "dana", time.Now().Add(-time.Minute)), http.StatusUnauthorized, "VH_JWT_EXPIRED"},
		{"WrongAudience", signEdDSA(t, priv, "key-1", "test-issuer", "other", "dana", hour), http.StatusUnauthorized, "VH_JWT_INVALID"},
		{"WrongIssuer", signEdDSA(t, priv, "key-1", "someone-else", "test-audience", "dana", hour), http.StatusUnauthorized, "VH_JWT_INVALID"},
		{"UnknownKid", signEdDSA(t, priv, "key-2", "test-issuer", "test-audience", "dana", hour), http.StatusUnauthorized, "VH_JWT_INVALID"},
		{"Malformed", "not-a-jwt", http.StatusUnauthorized, "VH_JWT_MALFORMED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr, code := get(t, app, "/app/settings", tc.token)
			if rr.Code != tc.status || code != tc.code {
				t.Errorf("got %d %s, want %d %s", rr.Code, code, tc.status, tc.code)
			}
		})
	}

	t.Run("InvalidTokenStillBrowses", func(t *testing.T) {
		rr, _ := get(t, app, "/app/", "not-a-jwt")
		if rr.Code != http.StatusOK {
			t.Errorf("public page with bad token: got %d", rr.Code)
		}
	})
}

// TestAuthServiceSession drives sign-in and sign-out through the remote auth
// service.
func TestAuthServiceSession(t *testing.T) {
	var logouts int32
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "project-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.Header.Get("Authorization") != "Bearer session-abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/user":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "remote-1", "email": "erin@example.com"})
		case "/logout":
			atomic.AddInt32(&logouts, 1)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer authSrv.Close()

	app := newApp(t, identity.New(authSrv.URL, "project-key"))

	rr, code := get(t, app, "/app/notifications", "session-abc")
	if rr.Code != http.StatusOK {
		t.Fatalf("signed-in request: got %d (%s)", rr.Code, code)
	}

	rr, code = get(t, app, "/app/notifications", "session-other")
	if rr.Code != http.StatusUnauthorized || code != "VH_AUTHN" {
		t.Fatalf("rejected session: got %d %s", rr.Code, code)
	}

	req := httptest.NewRequest(http.MethodPost, "/app/settings/signout", nil)
	req.Header.Set("Authorization", "Bearer session-abc")
	out := httptest.NewRecorder()
	app.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("sign out: got %d (%s)", out.Code, out.Body.String())
	}
	if atomic.LoadInt32(&logouts) != 1 {
		t.Fatalf("expected one remote logout, got %d", logouts)
	}
}
