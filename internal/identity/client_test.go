package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("apikey") != "anon" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"u1","email":"a@b.c","role":"authenticated","created_at":"2024-01-02T03:04:05Z"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/auth/v1/", "anon")
	u, err := c.Authenticate(context.Background(), "good")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.ID != "u1" || u.Email != "a@b.c" || u.CreatedAt.Year() != 2024 {
		t.Fatalf("unexpected user %+v", u)
	}

	if _, err := c.Authenticate(context.Background(), "bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSignOut(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/logout" && r.Method == http.MethodPost {
			called = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := New(srv.URL, "").SignOut(context.Background(), "tok"); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if !called {
		t.Fatal("logout endpoint not called")
	}
}
