// Package conformance provides a black-box harness that checks a running
// VidHub HTTP surface against its routing, envelope and auth contract.
package conformance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/RegistryAccord/vidhub-go/internal/config"
	"github.com/RegistryAccord/vidhub-go/internal/event"
	"github.com/RegistryAccord/vidhub-go/internal/gateway"
	"github.com/RegistryAccord/vidhub-go/internal/jwks"
	"github.com/RegistryAccord/vidhub-go/internal/media"
	"github.com/RegistryAccord/vidhub-go/internal/schema"
	"github.com/RegistryAccord/vidhub-go/internal/server"
	"github.com/RegistryAccord/vidhub-go/internal/session"
	"github.com/RegistryAccord/vidhub-go/internal/storage"
	"github.com/RegistryAccord/vidhub-go/internal/upload"
	"github.com/RegistryAccord/vidhub-go/internal/views"
)

// Config holds configuration for the conformance test harness.
type Config struct {
	// JWTSecret signs the harness's HS256 session tokens
	JWTSecret string

	// JWTIssuer is the expected JWT issuer
	JWTIssuer string

	// JWTAudience is the expected JWT audience
	JWTAudience string
}

// Harness runs a VidHub server over in-memory backends.
type Harness struct {
	cfg    Config
	server *httptest.Server
	app    *server.Server
}

// NewHarness creates a new conformance test harness.
func NewHarness(cfg Config) (*Harness, error) {
	validator, err := schema.NewValidator(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize schema validator: %w", err)
	}
	gw := gateway.New(gateway.Options{
		Store:     storage.NewMemory(),
		Objects:   media.NewMemory("http://objects.test"),
		Events:    event.NewRecorder(),
		Validator: validator,
		Buckets:   config.Buckets{Videos: "videos", Thumbnails: "thumbnails", Avatars: "avatars", Banners: "banners"},
	})
	app := server.New(server.Options{
		Gateway:   gw,
		Auth:      session.TokenAuth{Validator: jwks.NewHMACClient([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience)},
		Upload:    upload.Deps{Backend: gw},
		Processor: views.SimulatedProcessor{},
	})
	return &Harness{cfg: cfg, server: httptest.NewServer(app), app: app}, nil
}

// URL returns the base URL of the test server.
func (h *Harness) URL() string {
	return h.server.URL
}

// Close shuts down the test server and cleans up resources.
func (h *Harness) Close() {
	h.server.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.app.Shutdown(ctx)
}

// Token mints a session token for subject.
func (h *Harness) Token(subject, email string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"iss":   h.cfg.JWTIssuer,
		"aud":   h.cfg.JWTAudience,
		"sub":   subject,
		"email": email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.JWTSecret))
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code          string `json:"code"`
		Message       string `json:"message"`
		CorrelationID string `json:"correlationId"`
	} `json:"error"`
}

func (h *Harness) call(t *testing.T, method, path, token, body string) (*http.Response, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.URL()+path, r)
	if err != nil {
		t.Fatalf("build %s %s: %v", method, path, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("%s %s: invalid JSON %q", method, path, raw)
		}
	}
	return resp, env
}

// RunConformanceTests runs all conformance tests against the server.
func (h *Harness) RunConformanceTests(t *testing.T) {
	t.Run("HealthEndpoints", h.testHealthEndpoints)
	t.Run("PublicRoutes", h.testPublicRoutes)
	t.Run("GatedRoutes", h.testGatedRoutes)
	t.Run("ErrorEnvelope", h.testErrorEnvelope)
	t.Run("SessionLifecycle", h.testSessionLifecycle)
}

// testHealthEndpoints tests the health check endpoints.
func (h *Harness) testHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(h.URL() + path)
		if err != nil {
			t.Fatalf("failed to GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}

// testPublicRoutes checks that browsing works without a session.
func (h *Harness) testPublicRoutes(t *testing.T) {
	for _, path := range []string{"/", "/auth", "/app/", "/app/video/none", "/app/channel/none", "/app/playlist/none"} {
		resp, env := h.call(t, http.MethodGet, path, "", "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, resp.StatusCode)
			continue
		}
		if env.Data == nil {
			t.Errorf("GET %s: missing data envelope", path)
		}
	}
}

// testGatedRoutes checks that every gated route refuses anonymous callers.
func (h *Harness) testGatedRoutes(t *testing.T) {
	routes := [][2]string{
		{http.MethodGet, "/app/subscriptions"},
		{http.MethodGet, "/app/upload"},
		{http.MethodPost, "/app/upload"},
		{http.MethodPost, "/app/upload/presign"},
		{http.MethodPost, "/app/upload/batches"},
		{http.MethodGet, "/app/chat"},
		{http.MethodPost, "/app/chat/any/messages"},
		{http.MethodGet, "/app/wallet"},
		{http.MethodPost, "/app/wallet/deposit"},
		{http.MethodPost, "/app/wallet/withdraw"},
		{http.MethodGet, "/app/settings"},
		{http.MethodPost, "/app/settings/signout"},
		{http.MethodGet, "/app/notifications"},
		{http.MethodPost, "/app/video/any/like"},
		{http.MethodPost, "/app/video/any/comments"},
		{http.MethodPost, "/app/channel/any/subscribe"},
	}
	for _, rt := range routes {
		resp, env := h.call(t, rt[0], rt[1], "", "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", rt[0], rt[1], resp.StatusCode)
			continue
		}
		if env.Error == nil || env.Error.Code != "VH_AUTHN" {
			t.Errorf("%s %s: expected VH_AUTHN, got %+v", rt[0], rt[1], env.Error)
		}
	}
}

// testErrorEnvelope checks the error body shape.
func (h *Harness) testErrorEnvelope(t *testing.T) {
	resp, env := h.call(t, http.MethodGet, "/does-not-exist", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "VH_NOT_FOUND" || env.Error.Message == "" {
		t.Fatalf("unexpected error envelope: %+v", env.Error)
	}
	if env.Error.CorrelationID == "" || env.Error.CorrelationID != resp.Header.Get("X-Correlation-Id") {
		t.Errorf("correlation id mismatch: body %q header %q", env.Error.CorrelationID, resp.Header.Get("X-Correlation-Id"))
	}
}

// testSessionLifecycle signs in with a minted token, uses gated routes and
// checks that expired tokens are rejected.
func (h *Harness) testSessionLifecycle(t *testing.T) {
	token, err := h.Token("user-1", "carol@example.com", time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	resp, env := h.call(t, http.MethodGet, "/app/settings", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settings: expected 200, got %d (%+v)", resp.StatusCode, env.Error)
	}
	var page struct {
		Session struct {
			Profile *struct {
				Username string `json:"username"`
			} `json:"profile"`
		} `json:"session"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if page.Session.Profile == nil || page.Session.Profile.Username != "carol" {
		t.Errorf("expected auto-created profile for carol, got %+v", page.Session.Profile)
	}

	resp, _ = h.call(t, http.MethodPost, "/app/wallet/deposit", token, `{"amount":"250","method":"card"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("deposit: expected 201, got %d", resp.StatusCode)
	}

	expired, err := h.Token("user-1", "carol@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	resp, env = h.call(t, http.MethodGet, "/app/settings", expired, "")
	if resp.StatusCode != http.StatusUnauthorized || env.Error == nil || env.Error.Code != "VH_JWT_EXPIRED" {
		t.Errorf("expired token: got %d %+v", resp.StatusCode, env.Error)
	}
}
