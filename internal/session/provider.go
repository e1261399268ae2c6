// Package session holds the signed-in user and profile for one application
// scope. A Provider is created explicitly, initialised from a token, and
// disposed with Close; there is no process-wide session state.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/identity"
	"github.com/RegistryAccord/vidhub-go/internal/jwks"
	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// Authenticator resolves a token to the user it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
	SignOut(ctx context.Context, token string) error
}

// Profiles is the subset of the gateway the provider reads and writes.
type Profiles interface {
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	CreateProfile(ctx context.Context, p model.Profile) (*model.Profile, error)
	UpdateProfile(ctx context.Context, id string, u model.ProfileUpdate) (*model.Profile, error)
}

// TokenAuth authenticates stateless JWTs.
type TokenAuth struct {
	Validator *jwks.Client
}

// Authenticate validates token and maps its claims onto a user.
func (a TokenAuth) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := a.Validator.ValidateJWT(ctx, token)
	if err != nil {
		return nil, err
	}
	return &model.User{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// SignOut is a no-op: stateless tokens simply expire.
func (TokenAuth) SignOut(context.Context, string) error { return nil }

// State is a snapshot of the session.
type State struct {
	User    *model.User    `json:"user"`
	Profile *model.Profile `json:"profile"`
	Loading bool           `json:"loading"`
}

// SignedIn reports whether a user is present.
func (s State) SignedIn() bool { return s.User != nil }

// Provider owns the session state for its scope.
type Provider struct {
	auth     Authenticator
	profiles Profiles
	logger   *slog.Logger

	mu      sync.RWMutex
	token   string
	user    *model.User
	profile *model.Profile
	loading bool
	closed  bool
	subs    map[int]func(State)
	nextSub int
}

// NewProvider creates a signed-out provider.
func NewProvider(auth Authenticator, profiles Profiles, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{auth: auth, profiles: profiles, logger: logger, subs: make(map[int]func(State))}
}

// Init resolves token to a user and loads that user's profile. A profile row is
// created for users signing in for the first time. An empty token leaves the
// provider signed out.
func (p *Provider) Init(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		p.set(func() { p.token, p.user, p.profile, p.loading = "", nil, nil, false })
		return nil
	}
	p.set(func() { p.loading = true })

	user, err := p.auth.Authenticate(ctx, token)
	if err != nil {
		p.set(func() { p.token, p.user, p.profile, p.loading = "", nil, nil, false })
		return err
	}
	profile, err := p.loadProfile(ctx, user)
	if err != nil {
		// A missing profile does not invalidate the session.
		p.logger.WarnContext(ctx, "profile load failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()))
	}
	p.set(func() { p.token, p.user, p.profile, p.loading = token, user, profile, false })
	return nil
}

func (p *Provider) loadProfile(ctx context.Context, user *model.User) (*model.Profile, error) {
	profile, err := p.profiles.GetProfile(ctx, user.ID)
	if err == nil || !errordefs.Is(err, errordefs.VH_NOT_FOUND) {
		return profile, err
	}
	base := usernameFor(user)
	profile, err = p.profiles.CreateProfile(ctx, model.Profile{ID: user.ID, Username: base})
	if errordefs.Is(err, errordefs.VH_CONFLICT) {
		suffix := user.ID
		if len(suffix) > 6 {
			suffix = suffix[:6]
		}
		profile, err = p.profiles.CreateProfile(ctx, model.Profile{ID: user.ID, Username: base + "_" + suffix})
	}
	return profile, err
}

// usernameFor derives an initial username from the user's email.
func usernameFor(u *model.User) string {
	local, _, _ := strings.Cut(u.Email, "@")
	local, _, _ = strings.Cut(local, "+")
	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if len(name) < 3 {
		id := strings.ReplaceAll(u.ID, "-", "")
		if len(id) > 8 {
			id = id[:8]
		}
		name = "user_" + id
	}
	if len(name) > 23 {
		name = name[:23]
	}
	return name
}

// Refresh reloads the session from the stored token.
func (p *Provider) Refresh(ctx context.Context) error {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()
	if token == "" {
		return nil
	}
	return p.Init(ctx, token)
}

// SignOut clears local state before revoking the remote session, so
// subscribers observe the signed-out state even when revocation fails.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()

	p.set(func() { p.token, p.user, p.profile, p.loading = "", nil, nil, false })
	if token == "" {
		return nil
	}
	if err := p.auth.SignOut(ctx, token); err != nil {
		return errordefs.New(errordefs.VH_BACKEND, fmt.Sprintf("sign out: %v", err), "")
	}
	return nil
}

// UpdateUserProfile writes u through to the backend and replaces the local
// profile with the row the backend returns.
func (p *Provider) UpdateUserProfile(ctx context.Context, u model.ProfileUpdate) (*model.Profile, error) {
	user, err := p.Require()
	if err != nil {
		return nil, err
	}
	updated, err := p.profiles.UpdateProfile(ctx, user.ID, u)
	if err != nil {
		return nil, err
	}
	p.set(func() {
		if p.user != nil && p.user.ID == user.ID {
			p.profile = updated
		}
	})
	return updated, nil
}

// Current returns a snapshot of the session.
func (p *Provider) Current() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot()
}

// Require returns the signed-in user or a VH_AUTHN error.
func (p *Provider) Require() (*model.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil {
		return nil, errordefs.New(errordefs.VH_AUTHN, "sign in required", "")
	}
	u := *p.user
	return &u, nil
}

// Loading reports whether Init is in progress.
func (p *Provider) Loading() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loading
}

// Subscribe registers fn for state changes and returns the function that
// removes it. fn is called without the provider lock held.
func (p *Provider) Subscribe(fn func(State)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return func() {}
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Close drops every subscriber. The provider keeps answering queries.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.subs = make(map[int]func(State))
}

func (p *Provider) snapshot() State {
	s := State{Loading: p.loading}
	if p.user != nil {
		u := *p.user
		s.User = &u
	}
	if p.profile != nil {
		pr := *p.profile
		s.Profile = &pr
	}
	return s
}

// set applies mutate under the lock and notifies subscribers afterwards.
func (p *Provider) set(mutate func()) {
	p.mu.Lock()
	mutate()
	state := p.snapshot()
	subs := make([]func(State), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// IsAuthError reports whether err means the caller presented no valid session.
func IsAuthError(err error) bool {
	switch errordefs.CodeOf(err) {
	case errordefs.VH_AUTHN, errordefs.VH_JWT_INVALID, errordefs.VH_JWT_EXPIRED, errordefs.VH_JWT_MALFORMED:
		return true
	}
	return stderrors.Is(err, identity.ErrUnauthorized)
}
