package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RegistryAccord/vidhub-go/internal/config"
	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/event"
	"github.com/RegistryAccord/vidhub-go/internal/gateway"
	"github.com/RegistryAccord/vidhub-go/internal/media"
	"github.com/RegistryAccord/vidhub-go/internal/mediaprobe"
	"github.com/RegistryAccord/vidhub-go/internal/model"
	"github.com/RegistryAccord/vidhub-go/internal/schema"
	"github.com/RegistryAccord/vidhub-go/internal/storage"
	"github.com/RegistryAccord/vidhub-go/internal/upload"
	"github.com/RegistryAccord/vidhub-go/internal/views"
)

// fakeAuth accepts a fixed set of tokens.
type fakeAuth struct {
	users     map[string]*model.User
	signedOut []string
}

func (a *fakeAuth) Authenticate(ctx context.Context, token string) (*model.User, error) {
	u, ok := a.users[token]
	if !ok {
		return nil, errordefs.New(errordefs.VH_JWT_INVALID, "invalid token", "")
	}
	cp := *u
	return &cp, nil
}

func (a *fakeAuth) SignOut(ctx context.Context, token string) error {
	a.signedOut = append(a.signedOut, token)
	return nil
}

type testEnv struct {
	srv     *Server
	store   storage.Store
	objects *media.Memory
	auth    *fakeAuth
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	v, err := schema.NewValidator(nil)
	if err != nil {
		t.Fatal(err)
	}
	store := storage.NewMemory()
	objects := media.NewMemory("http://cdn.test")
	gw := gateway.New(gateway.Options{
		Store:     store,
		Objects:   objects,
		Events:    event.NewRecorder(),
		Validator: v,
		Buckets:   config.Buckets{Videos: "videos", Thumbnails: "thumbnails", Avatars: "avatars", Banners: "banners"},
	})
	auth := &fakeAuth{users: map[string]*model.User{
		"alice-token": {ID: "u-alice", Email: "alice@example.com"},
		"bob-token":   {ID: "u-bob", Email: "bob@example.com"},
	}}
	opts := Options{
		Gateway:   gw,
		Auth:      auth,
		Upload:    upload.Deps{Previews: upload.NewPreviews(t.TempDir())},
		Processor: views.SimulatedProcessor{},
		BaseURL:   "https://vidhub.test",
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv := New(opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store, objects: objects, auth: auth}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) profile(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.store.GetProfile(ctx, id); err != nil {
		if _, err := e.store.CreateProfile(ctx, model.Profile{ID: id, Username: strings.TrimPrefix(id, "u-")}); err != nil {
			t.Fatal(err)
		}
	}
}

func (e *testEnv) video(t *testing.T, owner, title string) *model.Video {
	t.Helper()
	ctx := context.Background()
	e.profile(t, owner)
	v, err := e.store.CreateVideo(ctx, model.NewVideo{UserID: owner, Title: title, VideoURL: "http://cdn.test/videos/" + title, IsPublished: true, AllowComments: true})
	if err != nil {
		t.Fatal(err)
	}
	return v
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code          string `json:"code"`
		Message       string `json:"message"`
		CorrelationID string `json:"correlationId"`
	} `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rr.Body.String(), err)
	}
	if data != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("invalid data payload: %v", err)
		}
	}
	return env
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code errordefs.ErrorCode) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status: got %d want %d (body %s)", rr.Code, status, rr.Body.String())
	}
	env := decode(t, rr, nil)
	if env.Error == nil || env.Error.Code != string(code) {
		t.Fatalf("error code: got %+v want %s", env.Error, code)
	}
}

func TestHealthzEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("%s: got status %d", path, rr.Code)
		}
		if rr.Body.String() != "ok" {
			t.Errorf("%s: unexpected body %q", path, rr.Body.String())
		}
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodGet, "/nope", "", nil)
	expectError(t, rr, http.StatusNotFound, errordefs.VH_NOT_FOUND)
}

func TestCorrelationIDEchoed(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/app/video/missing/comments", nil)
	req.Header.Set("X-Correlation-Id", "corr-123")
	rr := httptest.NewRecorder()
	env.srv.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Correlation-Id"); got != "corr-123" {
		t.Fatalf("correlation header: got %q", got)
	}

	rr = env.do(t, http.MethodGet, "/app/wallet", "", nil)
	e := decode(t, rr, nil)
	if e.Error == nil || e.Error.CorrelationID == "" || e.Error.CorrelationID != rr.Header().Get("X-Correlation-Id") {
		t.Fatalf("error body should carry the generated correlation id: %+v", e.Error)
	}
}

func TestGatedRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/app/wallet", "", nil)
	expectError(t, rr, http.StatusUnauthorized, errordefs.VH_AUTHN)

	rr = env.do(t, http.MethodGet, "/app/wallet", "forged", nil)
	expectError(t, rr, http.StatusUnauthorized, errordefs.VH_JWT_INVALID)

	req := httptest.NewRequest(http.MethodGet, "/app/upload", nil)
	req.Header.Set("Accept", "text/html")
	rr = httptest.NewRecorder()
	env.srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("browser request: got status %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/auth?redirect=%2Fapp%2Fupload" {
		t.Fatalf("redirect location: got %q", loc)
	}

	rr = env.do(t, http.MethodGet, "/app/wallet", "alice-token", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("signed-in wallet: got %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestPublicPageCarriesSessionAndNav(t *testing.T) {
	env := newTestEnv(t, nil)
	env.video(t, "u-bob", "hello")

	var out struct {
		Session struct {
			User    *model.User    `json:"user"`
			Profile *model.Profile `json:"profile"`
		} `json:"session"`
		Nav []struct {
			Href   string `json:"href"`
			Active bool   `json:"active"`
		} `json:"nav"`
	}
	rr := env.do(t, http.MethodGet, "/app/", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("home: got %d (%s)", rr.Code, rr.Body.String())
	}
	decode(t, rr, &out)
	if out.Session.User != nil {
		t.Fatalf("anonymous request should have no user")
	}
	if len(out.Nav) == 0 {
		t.Fatalf("expected sidebar entries")
	}

	rr = env.do(t, http.MethodGet, "/app/", "alice-token", nil)
	decode(t, rr, &out)
	if out.Session.User == nil || out.Session.User.ID != "u-alice" {
		t.Fatalf("signed-in user missing: %+v", out.Session.User)
	}
	if out.Session.Profile == nil || out.Session.Profile.Username != "alice" {
		t.Fatalf("first sign-in should create a profile: %+v", out.Session.Profile)
	}
}

func TestVideoPageNotFoundIsView(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodGet, "/app/video/missing", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	var out struct {
		Page struct {
			NotFound bool `json:"notFound"`
		} `json:"page"`
	}
	decode(t, rr, &out)
	if !out.Page.NotFound {
		t.Fatalf("expected notFound view")
	}
}

func TestLikeToggle(t *testing.T) {
	env := newTestEnv(t, nil)
	v := env.video(t, "u-bob", "clip")
	path := "/app/video/" + v.ID + "/like"

	var res struct {
		State string `json:"state"`
		Count int64  `json:"count"`
	}
	rr := env.do(t, http.MethodPost, path, "alice-token", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("like: got %d (%s)", rr.Code, rr.Body.String())
	}
	decode(t, rr, &res)
	if res.State != "on" || res.Count != 1 {
		t.Fatalf("after like: %+v", res)
	}

	rr = env.do(t, http.MethodPost, path, "alice-token", nil)
	decode(t, rr, &res)
	if res.State != "off" || res.Count != 0 {
		t.Fatalf("after unlike: %+v", res)
	}

	rr = env.do(t, http.MethodPost, path, "", nil)
	expectError(t, rr, http.StatusUnauthorized, errordefs.VH_AUTHN)
}

func TestSubscribeFromVideo(t *testing.T) {
	env := newTestEnv(t, nil)
	v := env.video(t, "u-bob", "clip")
	var res struct {
		State string `json:"state"`
		Count int64  `json:"count"`
	}
	rr := env.do(t, http.MethodPost, "/app/video/"+v.ID+"/subscribe", "alice-token", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("subscribe: got %d (%s)", rr.Code, rr.Body.String())
	}
	decode(t, rr, &res)
	if res.State != "on" || res.Count != 1 {
		t.Fatalf("after subscribe: %+v", res)
	}
}

func TestComments(t *testing.T) {
	env := newTestEnv(t, nil)
	v := env.video(t, "u-bob", "clip")
	path := "/app/video/" + v.ID + "/comments"

	rr := env.do(t, http.MethodPost, path, "alice-token", map[string]string{"content": "   "})
	expectError(t, rr, http.StatusBadRequest, errordefs.VH_VALIDATION)

	rr = env.do(t, http.MethodPost, path, "alice-token", map[string]string{"content": "great video"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("comment: got %d (%s)", rr.Code, rr.Body.String())
	}

	var out struct {
		Page struct {
			Comments []model.Comment `json:"comments"`
			Tree     []interface{}   `json:"tree"`
		} `json:"page"`
	}
	rr = env.do(t, http.MethodGet, path, "", nil)
	decode(t, rr, &out)
	if len(out.Page.Comments) != 1 || out.Page.Comments[0].Content != "great video" {
		t.Fatalf("comments: %+v", out.Page.Comments)
	}
	if len(out.Page.Tree) != 1 {
		t.Fatalf("tree: %+v", out.Page.Tree)
	}
}

func TestWalletDeposit(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/app/wallet/deposit", "alice-token", map[string]string{"amount": "abc", "method": "upi"})
	expectError(t, rr, http.StatusBadRequest, errordefs.VH_VALIDATION)

	rr = env.do(t, http.MethodPost, "/app/wallet/deposit", "alice-token", map[string]string{"amount": "500", "method": "upi"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("deposit: got %d (%s)", rr.Code, rr.Body.String())
	}
	var out struct {
		Wallet struct {
			Balance string `json:"balance"`
		} `json:"wallet"`
	}
	decode(t, rr, &out)
	if out.Wallet.Balance != "₹500.00" {
		t.Fatalf("balance: got %q", out.Wallet.Balance)
	}

	rr = env.do(t, http.MethodPost, "/app/wallet/withdraw", "alice-token", map[string]string{"amount": "100"})
	expectError(t, rr, http.StatusForbidden, errordefs.VH_KYC_REQUIRED)
}

func TestUnknownJSONFieldRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodPost, "/app/wallet/deposit", "alice-token", map[string]string{"amount": "5", "currency": "INR"})
	expectError(t, rr, http.StatusBadRequest, errordefs.VH_BAD_REQUEST)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.RateLimitRPS = 0.001
		o.RateLimitBurst = 1
	})
	if rr := env.do(t, http.MethodGet, "/app/", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("first request: got %d", rr.Code)
	}
	rr := env.do(t, http.MethodGet, "/app/", "", nil)
	expectError(t, rr, http.StatusTooManyRequests, errordefs.VH_RATE_LIMIT)

	// Signed-in users get their own bucket.
	if rr := env.do(t, http.MethodGet, "/app/", "alice-token", nil); rr.Code != http.StatusOK {
		t.Fatalf("user bucket: got %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.CORSAllowedOrigins = []string{"https://app.vidhub.test"} })

	req := httptest.NewRequest(http.MethodOptions, "/app/wallet/deposit", nil)
	req.Header.Set("Origin", "https://app.vidhub.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	env.srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight: got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.vidhub.test" {
		t.Fatalf("allow origin: got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/app/wallet/deposit", nil)
	req.Header.Set("Origin", "https://evil.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr = httptest.NewRecorder()
	env.srv.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("disallowed origin got %q", got)
	}
}

func TestCookieSessionAndSignOut(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/app/settings/signout", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "alice-token"})
	rr := httptest.NewRecorder()
	env.srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("sign out: got %d (%s)", rr.Code, rr.Body.String())
	}
	if len(env.auth.signedOut) != 1 || env.auth.signedOut[0] != "alice-token" {
		t.Fatalf("remote sign out not called: %v", env.auth.signedOut)
	}
	cleared := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("session cookie not cleared")
	}
}

func TestSettingsSaveProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodPut, "/app/settings/profile", "alice-token", views.ProfileForm{Username: "alice", Bio: "hi there"})
	if rr.Code != http.StatusOK {
		t.Fatalf("save: got %d (%s)", rr.Code, rr.Body.String())
	}
	p, err := env.store.GetProfile(context.Background(), "u-alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.Bio != "hi there" {
		t.Fatalf("bio not saved: %q", p.Bio)
	}

	rr = env.do(t, http.MethodPut, "/app/settings/profile", "alice-token", views.ProfileForm{Username: "  "})
	expectError(t, rr, http.StatusBadRequest, errordefs.VH_VALIDATION)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][2]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	// files: field -> {filename, contentType}
	for field, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+f[0]+`"`)
		h.Set("Content-Type", f[1])
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write([]byte("fake media bytes"))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestSingleUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	body, ct := multipartBody(t,
		map[string]string{"metadata": `{"title":"","description":"first","tags":"a, b","allowComments":true}`},
		map[string][2]string{"video": {"my_clip.mp4", "video/mp4"}})

	req := httptest.NewRequest(http.MethodPost, "/app/upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer alice-token")
	rr := httptest.NewRecorder()
	env.srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload: got %d (%s)", rr.Code, rr.Body.String())
	}
	var out struct {
		Stage  string       `json:"stage"`
		Result *model.Video `json:"result"`
	}
	decode(t, rr, &out)
	if out.Stage != string(upload.StageCompleted) || out.Result == nil {
		t.Fatalf("unexpected upload state: %+v", out)
	}
	if out.Result.Title != "my clip" {
		t.Fatalf("title should come from the filename, got %q", out.Result.Title)
	}
	if out.Result.UserID != "u-alice" {
		t.Fatalf("owner: got %q", out.Result.UserID)
	}
}

func postMultipart(t *testing.T, env *testEnv, path, token string, body *bytes.Buffer, ct string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	env.srv.ServeHTTP(rr, req)
	return rr
}

func TestSingleUploadGeneratedThumbnails(t *testing.T) {
	meta := mediaprobe.Metadata{Duration: 40 * time.Second, Width: 1920, Height: 1080}
	env := newTestEnv(t, func(o *Options) { o.Upload.Opener = mediaprobe.NewStatic(meta).Opener() })
	env.profile(t, "u-alice")
	video := map[string][2]string{"video": {"talk.mp4", "video/mp4"}}

	body, ct := multipartBody(t, map[string]string{"thumbnails": "auto", "thumbnailChoice": "7"}, video)
	rr := postMultipart(t, env, "/app/upload", "alice-token", body, ct)
	expectError(t, rr, http.StatusBadRequest, errordefs.VH_VALIDATION)

	body, ct = multipartBody(t, map[string]string{"thumbnails": "auto", "thumbnailChoice": "2"}, video)
	rr = postMultipart(t, env, "/app/upload", "alice-token", body, ct)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload: got %d (%s)", rr.Code, rr.Body.String())
	}
	var out struct {
		Result *model.Video `json:"result"`
	}
	decode(t, rr, &out)
	if out.Result == nil || !strings.HasPrefix(out.Result.ThumbnailURL, "http://cdn.test/thumbnails/") {
		t.Fatalf("expected a stored thumbnail, got %+v", out.Result)
	}
	if out.Result.Duration != 40 {
		t.Fatalf("duration: got %d", out.Result.Duration)
	}
}

func TestSingleUploadCaptureWithoutDecoder(t *testing.T) {
	env := newTestEnv(t, nil)
	body, ct := multipartBody(t, map[string]string{"thumbnailAt": "1.5"},
		map[string][2]string{"video": {"talk.mp4", "video/mp4"}})
	rr := postMultipart(t, env, "/app/upload", "alice-token", body, ct)
	expectError(t, rr, http.StatusServiceUnavailable, errordefs.VH_UNAVAILABLE)
	if n := env.srv.uploads.Previews.Len(); n != 0 {
		t.Fatalf("spooled files left behind: %d", n)
	}
}

func TestSingleUploadRejectsLongTitle(t *testing.T) {
	env := newTestEnv(t, nil)
	meta := fmt.Sprintf(`{"title":%q}`, strings.Repeat("t", upload.MaxTitleLength+1))
	body, ct := multipartBody(t, map[string]string{"metadata": meta},
		map[string][2]string{"video": {"talk.mp4", "video/mp4"}})
	rr := postMultipart(t, env, "/app/upload", "alice-token", body, ct)
	expectError(t, rr, http.StatusBadRequest, errordefs.VH_VALIDATION)
	videos, err := env.store.ListVideos(context.Background(), storage.VideoQuery{UserID: "u-alice"})
	if err != nil || len(videos) != 0 {
		t.Fatalf("expected no videos, got %d (%v)", len(videos), err)
	}
}

func TestSingleUploadRejectsNonVideo(t *testing.T) {
	env := newTestEnv(t, nil)
	body, ct := multipartBody(t, nil, map[string][2]string{"video": {"notes.txt", "text/plain"}})
	req := httptest.NewRequest(http.MethodPost, "/app/upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer alice-token")
	rr := httptest.NewRecorder()
	env.srv.ServeHTTP(rr, req)
	expectError(t, rr, http.StatusBadRequest, errordefs.VH_MEDIA_TYPE)
}

func TestPresign(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodPost, "/app/upload/presign", "alice-token",
		map[string]string{"kind": "video", "filename": "a.mp4", "contentType": "video/mp4"})
	if rr.Code != http.StatusOK {
		t.Fatalf("presign: got %d (%s)", rr.Code, rr.Body.String())
	}
	var out map[string]string
	decode(t, rr, &out)
	if out["bucket"] != "videos" || !strings.HasPrefix(out["uploadUrl"], "http://cdn.test/videos/") {
		t.Fatalf("unexpected presign result: %v", out)
	}

	rr = env.do(t, http.MethodPost, "/app/upload/presign", "alice-token",
		map[string]string{"kind": "video", "filename": "a.png", "contentType": "image/png"})
	expectError(t, rr, http.StatusBadRequest, errordefs.VH_MEDIA_TYPE)
}

func TestBatchOwnership(t *testing.T) {
	env := newTestEnv(t, nil)
	body, ct := multipartBody(t, nil, map[string][2]string{"files": {"one.mp4", "video/mp4"}})
	req := httptest.NewRequest(http.MethodPost, "/app/upload/batches", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer alice-token")
	rr := httptest.NewRecorder()
	env.srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("create batch: got %d (%s)", rr.Code, rr.Body.String())
	}
	var batch upload.BatchView
	decode(t, rr, &batch)
	if batch.ID == "" || len(batch.Items) != 1 {
		t.Fatalf("unexpected batch: %+v", batch)
	}

	rr = env.do(t, http.MethodGet, "/app/upload/batches/"+batch.ID, "bob-token", nil)
	expectError(t, rr, http.StatusNotFound, errordefs.VH_NOT_FOUND)

	rr = env.do(t, http.MethodGet, "/app/upload/batches/"+batch.ID, "alice-token", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("owner get: got %d", rr.Code)
	}
}

// batchBody builds a batch upload request with one "files" part per name.
func batchBody(t *testing.T, fields map[string]string, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range names {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		h.Set("Content-Type", "video/mp4")
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write([]byte(name))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

// settledBatch polls until no item of batch id is queued or in flight.
func settledBatch(t *testing.T, env *testEnv, id string) upload.BatchView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		rr := env.do(t, http.MethodGet, "/app/upload/batches/"+id, "alice-token", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("get batch: got %d (%s)", rr.Code, rr.Body.String())
		}
		var out struct {
			Page upload.BatchView `json:"page"`
		}
		decode(t, rr, &out)
		view := out.Page
		busy := view.Running
		for _, it := range view.Items {
			switch it.State {
			case upload.ItemPending, upload.ItemUploading, upload.ItemProcessing:
				busy = true
			}
		}
		if !busy {
			return view
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch %s did not settle: %+v", id, view)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBatchLifecycleReleasesFiles(t *testing.T) {
	env := newTestEnv(t, nil)
	env.profile(t, "u-alice")
	body, ct := batchBody(t, map[string]string{"titles": `["Opening night", ""]`}, "one.mp4", "two.mp4")
	rr := postMultipart(t, env, "/app/upload/batches", "alice-token", body, ct)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("create batch: got %d (%s)", rr.Code, rr.Body.String())
	}
	var created upload.BatchView
	decode(t, rr, &created)

	view := settledBatch(t, env, created.ID)
	for _, it := range view.Items {
		if it.State != upload.ItemCompleted {
			t.Fatalf("item %d: %s (%s)", it.Index, it.State, it.Error)
		}
	}
	if view.Items[0].Title != "Opening night" || view.Items[1].Title != "two" {
		t.Fatalf("titles: %q, %q", view.Items[0].Title, view.Items[1].Title)
	}
	if n := env.srv.uploads.Previews.Len(); n != 0 {
		t.Fatalf("completed batch still holds %d spooled files", n)
	}

	var listed struct {
		Page []upload.BatchView `json:"page"`
	}
	decode(t, env.do(t, http.MethodGet, "/app/upload/batches", "alice-token", nil), &listed)
	if len(listed.Page) != 1 || listed.Page[0].ID != created.ID {
		t.Fatalf("list: %+v", listed.Page)
	}
	listed.Page = nil
	decode(t, env.do(t, http.MethodGet, "/app/upload/batches", "bob-token", nil), &listed)
	if len(listed.Page) != 0 {
		t.Fatalf("bob should see no batches, got %d", len(listed.Page))
	}

	rr = env.do(t, http.MethodDelete, "/app/upload/batches/"+created.ID, "bob-token", nil)
	expectError(t, rr, http.StatusNotFound, errordefs.VH_NOT_FOUND)
	rr = env.do(t, http.MethodDelete, "/app/upload/batches/"+created.ID, "alice-token", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: got %d (%s)", rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodGet, "/app/upload/batches/"+created.ID, "alice-token", nil)
	expectError(t, rr, http.StatusNotFound, errordefs.VH_NOT_FOUND)
}

func TestBatchRejectsLongTitle(t *testing.T) {
	env := newTestEnv(t, nil)
	titles := fmt.Sprintf(`[%q]`, strings.Repeat("t", upload.MaxTitleLength+1))
	body, ct := batchBody(t, map[string]string{"titles": titles}, "one.mp4")
	rr := postMultipart(t, env, "/app/upload/batches", "alice-token", body, ct)
	expectError(t, rr, http.StatusBadRequest, errordefs.VH_VALIDATION)
	if n := env.srv.uploads.Previews.Len(); n != 0 {
		t.Fatalf("rejected batch still holds %d spooled files", n)
	}

	body, ct = batchBody(t, map[string]string{"titles": `["a", "b"]`}, "one.mp4")
	rr = postMultipart(t, env, "/app/upload/batches", "alice-token", body, ct)
	expectError(t, rr, http.StatusBadRequest, errordefs.VH_VALIDATION)
}

// switchedUploads fails uploads of keys containing "broken" while failing is set.
type switchedUploads struct {
	*gateway.Gateway
	mu      sync.Mutex
	failing bool
}

func (s *switchedUploads) UploadObject(ctx context.Context, in media.UploadInput) (string, error) {
	s.mu.Lock()
	failing := s.failing
	s.mu.Unlock()
	if failing && strings.Contains(in.Key, "broken") {
		return "", errors.New("storage rejected " + in.Key)
	}
	return s.Gateway.UploadObject(ctx, in)
}

func (s *switchedUploads) set(failing bool) {
	s.mu.Lock()
	s.failing = failing
	s.mu.Unlock()
}

func TestBatchRetryWithEditedTitle(t *testing.T) {
	var backend *switchedUploads
	env := newTestEnv(t, func(o *Options) {
		backend = &switchedUploads{Gateway: o.Gateway, failing: true}
		o.Upload.Backend = backend
	})
	env.profile(t, "u-alice")
	body, ct := batchBody(t, nil, "broken.mp4", "fine.mp4")
	rr := postMultipart(t, env, "/app/upload/batches", "alice-token", body, ct)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("create batch: got %d (%s)", rr.Code, rr.Body.String())
	}
	var created upload.BatchView
	decode(t, rr, &created)

	view := settledBatch(t, env, created.ID)
	if view.Items[0].State != upload.ItemFailed || view.Items[1].State != upload.ItemCompleted {
		t.Fatalf("unexpected states: %+v", view.Items)
	}
	if n := env.srv.uploads.Previews.Len(); n != 1 {
		t.Fatalf("only the failed item should keep its file, got %d", n)
	}

	retry := "/app/upload/batches/" + created.ID + "/items/0/retry"
	rr = env.do(t, http.MethodPost, retry, "alice-token", map[string]string{"title": strings.Repeat("t", upload.MaxTitleLength+1)})
	expectError(t, rr, http.StatusBadRequest, errordefs.VH_VALIDATION)
	rr = env.do(t, http.MethodPost, "/app/upload/batches/"+created.ID+"/items/1/retry", "alice-token", nil)
	expectError(t, rr, http.StatusBadRequest, errordefs.VH_VALIDATION)

	backend.set(false)
	rr = env.do(t, http.MethodPost, retry, "alice-token", map[string]interface{}{
		"title":  "Second take",
		"common": map[string]interface{}{"category": model.Categories[0], "allowComments": true},
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("retry: got %d (%s)", rr.Code, rr.Body.String())
	}
	view = settledBatch(t, env, created.ID)
	item := view.Items[0]
	if item.State != upload.ItemCompleted || item.Title != "Second take" {
		t.Fatalf("retried item: %+v", item)
	}
	v, err := env.store.GetVideo(context.Background(), item.VideoID)
	if err != nil {
		t.Fatal(err)
	}
	if v.Title != "Second take" || v.Category != model.Categories[0] {
		t.Fatalf("stored video: title %q category %q", v.Title, v.Category)
	}
	if n := env.srv.uploads.Previews.Len(); n != 0 {
		t.Fatalf("spooled files left behind: %d", n)
	}
}

func TestUpdateVideoOwnerOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	v := env.video(t, "u-alice", "draft")
	path := "/app/video/" + v.ID

	rr := env.do(t, http.MethodPatch, path, "", map[string]string{"title": "anon"})
	expectError(t, rr, http.StatusUnauthorized, errordefs.VH_AUTHN)
	rr = env.do(t, http.MethodPatch, path, "bob-token", map[string]string{"title": "hijacked"})
	expectError(t, rr, http.StatusForbidden, errordefs.VH_AUTHZ)
	rr = env.do(t, http.MethodPatch, path, "alice-token", map[string]string{"title": strings.Repeat("t", upload.MaxTitleLength+1)})
	expectError(t, rr, http.StatusBadRequest, errordefs.VH_VALIDATION)
	rr = env.do(t, http.MethodPatch, "/app/video/missing", "alice-token", map[string]string{"title": "x"})
	expectError(t, rr, http.StatusNotFound, errordefs.VH_NOT_FOUND)

	rr = env.do(t, http.MethodPatch, path, "alice-token", map[string]string{"title": "  Final cut ", "description": "now with sound"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update: got %d (%s)", rr.Code, rr.Body.String())
	}
	var out model.Video
	decode(t, rr, &out)
	if out.Title != "Final cut" || out.Description != "now with sound" {
		t.Fatalf("unexpected update: %+v", out)
	}
}

func TestNotificationsOpen(t *testing.T) {
	env := newTestEnv(t, nil)
	v := env.video(t, "u-alice", "mine")
	ctx := context.Background()
	if _, err := env.store.CreateProfile(ctx, model.Profile{ID: "u-bob", Username: "bob"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.store.CreateComment(ctx, model.NewComment{VideoID: v.ID, UserID: "u-bob", Content: "nice"}); err != nil {
		t.Fatal(err)
	}
	notes, err := env.store.ListNotifications(ctx, "u-alice")
	if err != nil || len(notes) != 1 {
		t.Fatalf("expected one notification, got %d (%v)", len(notes), err)
	}

	rr := env.do(t, http.MethodPost, "/app/notifications/"+notes[0].ID+"/read", "alice-token", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("open: got %d (%s)", rr.Code, rr.Body.String())
	}
	var out struct {
		Link   string `json:"link"`
		Unread int    `json:"unread"`
	}
	decode(t, rr, &out)
	if !strings.HasPrefix(out.Link, "/app/video/"+v.ID) || out.Unread != 0 {
		t.Fatalf("unexpected open result: %+v", out)
	}
}
