package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/model"
)

type stubAuth struct {
	users      map[string]*model.User
	signedOut  []string
	signOutErr error
}

func (a *stubAuth) Authenticate(_ context.Context, token string) (*model.User, error) {
	if u, ok := a.users[token]; ok {
		return u, nil
	}
	return nil, errordefs.New(errordefs.VH_JWT_INVALID, "bad token", "")
}

func (a *stubAuth) SignOut(_ context.Context, token string) error {
	a.signedOut = append(a.signedOut, token)
	return a.signOutErr
}

type stubProfiles struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
	taken    map[string]bool
}

func newStubProfiles() *stubProfiles {
	return &stubProfiles{profiles: map[string]*model.Profile{}, taken: map[string]bool{}}
}

func (s *stubProfiles) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, errordefs.New(errordefs.VH_NOT_FOUND, "not found", "")
}

func (s *stubProfiles) CreateProfile(_ context.Context, p model.Profile) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken[p.Username] {
		return nil, errordefs.New(errordefs.VH_CONFLICT, "conflict", "")
	}
	s.taken[p.Username] = true
	s.profiles[p.ID] = &p
	cp := p
	return &cp, nil
}

func (s *stubProfiles) UpdateProfile(_ context.Context, id string, u model.ProfileUpdate) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, errordefs.New(errordefs.VH_NOT_FOUND, "not found", "")
	}
	u.Apply(p)
	p.TotalSubscribers = 42 // authoritative server-side value
	cp := *p
	return &cp, nil
}

func newProvider() (*Provider, *stubAuth, *stubProfiles) {
	auth := &stubAuth{users: map[string]*model.User{
		"tok-alice": {ID: "alice-id", Email: "alice@vidhub.test"},
	}}
	profiles := newStubProfiles()
	return NewProvider(auth, profiles, nil), auth, profiles
}

func TestInitCreatesMissingProfile(t *testing.T) {
	p, _, profiles := newProvider()
	require.NoError(t, p.Init(context.Background(), "tok-alice"))

	st := p.Current()
	require.True(t, st.SignedIn())
	require.NotNil(t, st.Profile)
	assert.Equal(t, "alice", st.Profile.Username)
	assert.False(t, st.Loading)
	assert.Contains(t, profiles.profiles, "alice-id")
}

func TestInitUsernameCollision(t *testing.T) {
	p, _, profiles := newProvider()
	profiles.taken["alice"] = true
	require.NoError(t, p.Init(context.Background(), "tok-alice"))
	assert.Equal(t, "alice_alice-", p.Current().Profile.Username)
}

func TestInitRejectedToken(t *testing.T) {
	p, _, _ := newProvider()
	err := p.Init(context.Background(), "nope")
	assert.True(t, IsAuthError(err))
	assert.False(t, p.Current().SignedIn())

	_, err = p.Require()
	assert.True(t, errordefs.Is(err, errordefs.VH_AUTHN))
}

func TestSignOutClearsAndNotifies(t *testing.T) {
	p, auth, _ := newProvider()
	require.NoError(t, p.Init(context.Background(), "tok-alice"))

	var seen []State
	unsubscribe := p.Subscribe(func(s State) { seen = append(seen, s) })

	auth.signOutErr = errors.New("network down")
	err := p.SignOut(context.Background())
	assert.True(t, errordefs.Is(err, errordefs.VH_BACKEND))
	assert.False(t, p.Current().SignedIn(), "state is cleared even when revocation fails")
	require.Len(t, seen, 1)
	assert.False(t, seen[0].SignedIn())
	assert.Equal(t, []string{"tok-alice"}, auth.signedOut)

	unsubscribe()
	require.NoError(t, p.Init(context.Background(), "tok-alice"))
	assert.Len(t, seen, 1)
}

func TestUpdateUserProfileWritesThrough(t *testing.T) {
	p, _, _ := newProvider()
	ctx := context.Background()

	_, err := p.UpdateUserProfile(ctx, model.ProfileUpdate{})
	assert.True(t, errordefs.Is(err, errordefs.VH_AUTHN))

	require.NoError(t, p.Init(ctx, "tok-alice"))
	bio := "hello"
	updated, err := p.UpdateUserProfile(ctx, model.ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.Bio)
	assert.Equal(t, int64(42), p.Current().Profile.TotalSubscribers)
}

func TestRefreshAndClose(t *testing.T) {
	p, _, _ := newProvider()
	ctx := context.Background()
	require.NoError(t, p.Refresh(ctx), "refresh while signed out is a no-op")

	require.NoError(t, p.Init(ctx, "tok-alice"))
	calls := 0
	p.Subscribe(func(State) { calls++ })
	require.NoError(t, p.Refresh(ctx))
	assert.Equal(t, 2, calls, "loading then ready")

	p.Close()
	require.NoError(t, p.Refresh(ctx))
	assert.Equal(t, 2, calls)
	assert.True(t, p.Current().SignedIn())
}

func TestUsernameFor(t *testing.T) {
	assert.Equal(t, "john.doe", usernameFor(&model.User{ID: "x", Email: "John.Doe+tag@x.io"}))
	assert.Equal(t, "user_abcdef12", usernameFor(&model.User{ID: "abcdef12-3456", Email: ""}))
}
