package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/vidhub-go/internal/config"
	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/event"
	"github.com/RegistryAccord/vidhub-go/internal/media"
	"github.com/RegistryAccord/vidhub-go/internal/model"
	"github.com/RegistryAccord/vidhub-go/internal/schema"
	"github.com/RegistryAccord/vidhub-go/internal/storage"
)

type fixture struct {
	gw      *Gateway
	store   storage.Store
	objects *media.Memory
	events  *event.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	v, err := schema.NewValidator(nil)
	require.NoError(t, err)
	f := &fixture{store: storage.NewMemory(), objects: media.NewMemory("http://cdn.test"), events: event.NewRecorder()}
	f.gw = New(Options{
		Store:     f.store,
		Objects:   f.objects,
		Events:    f.events,
		Validator: v,
		Buckets:   config.Buckets{Videos: "videos", Thumbnails: "thumbnails", Avatars: "avatars", Banners: "banners"},
	})
	return f
}

func (f *fixture) profile(t *testing.T, username string) *model.Profile {
	t.Helper()
	p, err := f.store.CreateProfile(context.Background(), model.Profile{Username: username})
	require.NoError(t, err)
	return p
}

func (f *fixture) video(t *testing.T, owner, title string, mutate func(*model.NewVideo)) *model.Video {
	t.Helper()
	nv := model.NewVideo{UserID: owner, Title: title, VideoURL: "http://cdn.test/videos/" + title, IsPublished: true}
	if mutate != nil {
		mutate(&nv)
	}
	v, err := f.store.CreateVideo(context.Background(), nv)
	require.NoError(t, err)
	return v
}

func TestListVideosPublishedOrderedAndLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "alice")
	f.video(t, owner.ID, "first", func(nv *model.NewVideo) { nv.Duration = 30 })
	f.video(t, owner.ID, "draft", func(nv *model.NewVideo) { nv.IsPublished = false })
	f.video(t, owner.ID, "second", func(nv *model.NewVideo) { nv.Duration = 10 })
	f.video(t, owner.ID, "third", func(nv *model.NewVideo) { nv.Duration = 20 })

	newest, err := f.gw.ListVideos(ctx, model.VideoListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, titles(newest))

	shortest, err := f.gw.ListVideos(ctx, model.VideoListOptions{OrderBy: "duration:asc", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "third"}, titles(shortest))

	_, err = f.gw.ListVideos(ctx, model.VideoListOptions{OrderBy: "owner:desc"})
	assert.True(t, errordefs.Is(err, errordefs.VH_VALIDATION))
}

func titles(vs []model.Video) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Title
	}
	return out
}

func TestToggleLikeIsComplementary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, viewer := f.profile(t, "alice"), f.profile(t, "bob")
	v := f.video(t, owner.ID, "clip", nil)

	first, err := f.gw.ToggleLike(ctx, v.ID, viewer.ID)
	require.NoError(t, err)
	second, err := f.gw.ToggleLike(ctx, v.ID, viewer.ID)
	require.NoError(t, err)

	assert.Equal(t, model.ToggledOn, first)
	assert.Equal(t, model.ToggledOff, second)
	assert.Zero(t, first.Delta()+second.Delta())
	assert.Equal(t, []string{event.SubjectVideoLiked, event.SubjectVideoLiked}, f.events.Types())
}

type badToggleStore struct{ storage.Store }

func (badToggleStore) ToggleVideoLike(context.Context, string, string) (string, error) {
	return "LIKED", nil
}

func TestToggleLikeRejectsUnknownLiteral(t *testing.T) {
	f := newFixture(t)
	f.gw.store = badToggleStore{f.store}

	_, err := f.gw.ToggleLike(context.Background(), "v", "u")
	assert.True(t, errordefs.Is(err, errordefs.VH_BACKEND))
	assert.Empty(t, f.events.Types())
}

func TestToggleSubscriptionSelf(t *testing.T) {
	f := newFixture(t)
	p := f.profile(t, "alice")
	_, err := f.gw.ToggleSubscription(context.Background(), p.ID, p.ID)
	assert.True(t, errordefs.Is(err, errordefs.VH_VALIDATION))
}

func TestErrorNormalisation(t *testing.T) {
	f := newFixture(t)
	ctx := event.WithCorrelationID(context.Background(), "corr-9")

	_, err := f.gw.GetVideo(ctx, "missing")
	e, ok := errordefs.As(err)
	require.True(t, ok)
	assert.Equal(t, errordefs.VH_NOT_FOUND, e.Code)
	assert.Equal(t, "corr-9", e.CorrelationID)
	assert.Equal(t, storage.ErrNotFound.Error(), e.Message)

	f.profile(t, "alice")
	_, err = f.gw.CreateProfile(ctx, model.Profile{Username: "Alice"})
	assert.True(t, errordefs.Is(err, errordefs.VH_CONFLICT))
}

func TestCreateVideoValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "alice")

	_, err := f.gw.CreateVideo(ctx, model.NewVideo{UserID: owner.ID, Title: "  ", VideoURL: "u"})
	assert.True(t, errordefs.Is(err, errordefs.VH_SCHEMA))

	_, err = f.gw.CreateVideo(ctx, model.NewVideo{UserID: owner.ID, Title: "ok", VideoURL: "u", Category: "Knitting"})
	assert.True(t, errordefs.Is(err, errordefs.VH_VALIDATION))

	v, err := f.gw.CreateVideo(ctx, model.NewVideo{UserID: owner.ID, Title: " Launch ", VideoURL: "u", Category: "Music", IsPublished: true})
	require.NoError(t, err)
	assert.Equal(t, "Launch", v.Title)
	assert.Equal(t, []string{event.SubjectVideoUploaded}, f.events.Types())
}

func TestAddCommentRejectsWhitespace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "alice")
	v := f.video(t, owner.ID, "clip", nil)

	_, err := f.gw.AddComment(ctx, model.NewComment{VideoID: v.ID, UserID: owner.ID, Content: " \n\t "})
	assert.True(t, errordefs.Is(err, errordefs.VH_VALIDATION))

	c, err := f.gw.AddComment(ctx, model.NewComment{VideoID: v.ID, UserID: owner.ID, Content: " nice "})
	require.NoError(t, err)
	assert.Equal(t, "nice", c.Content)
}

func TestCreateOrGetDirectConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.profile(t, "alice"), f.profile(t, "bob")

	first, err := f.gw.CreateOrGetDirectConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)
	again, err := f.gw.CreateOrGetDirectConversation(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = f.gw.CreateOrGetDirectConversation(ctx, a.ID, a.ID)
	assert.True(t, errordefs.Is(err, errordefs.VH_VALIDATION))
}

func TestWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "alice")

	w, err := f.gw.GetWallet(ctx, owner.ID)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
	again, err := f.gw.GetWallet(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, again.ID)

	w2, txn, err := f.gw.RecordWalletTransaction(ctx, model.NewTransaction{
		WalletID: w.ID, Amount: decimal.NewFromInt(500), Type: model.TransactionDeposit, Status: model.StatusCompleted,
	})
	require.NoError(t, err)
	assert.True(t, w2.Balance.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, model.TransactionDeposit, txn.Type)

	_, _, err = f.gw.RecordWalletTransaction(ctx, model.NewTransaction{
		WalletID: w.ID, Amount: decimal.NewFromInt(900), Type: model.TransactionWithdrawal, Status: model.StatusPending,
	})
	assert.True(t, errordefs.Is(err, errordefs.VH_INSUFFICIENT_FUNDS))

	_, _, err = f.gw.RecordWalletTransaction(ctx, model.NewTransaction{WalletID: w.ID, Amount: decimal.Zero, Type: model.TransactionDeposit})
	assert.True(t, errordefs.Is(err, errordefs.VH_VALIDATION))
}

func TestUploadObject(t *testing.T) {
	f := newFixture(t)
	var last int64
	url, err := f.gw.UploadObject(context.Background(), media.UploadInput{
		Bucket: "videos", Key: "u/1-a.mp4", Body: strings.NewReader("0123456789"), Size: 10,
		Progress: func(sent, total int64) { last = sent },
	})
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.test/videos/u/1-a.mp4", url)
	assert.Equal(t, int64(10), last)

	_, err = f.gw.UploadObject(context.Background(), media.UploadInput{Bucket: "videos", Key: "u/1-a.mp4", Body: strings.NewReader("x"), Size: 1})
	assert.True(t, errordefs.Is(err, errordefs.VH_CONFLICT))
}

func TestPublishDueVideosEmitsEvents(t *testing.T) {
	f := newFixture(t)
	owner := f.profile(t, "alice")
	past := time.Now().Add(-time.Minute)
	f.video(t, owner.ID, "scheduled", func(nv *model.NewVideo) { nv.IsPublished = false; nv.PublishedAt = &past })

	out, err := f.gw.PublishDueVideos(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{event.SubjectVideoPublished}, f.events.Types())
}
