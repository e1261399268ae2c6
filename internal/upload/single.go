package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/media"
	"github.com/RegistryAccord/vidhub-go/internal/mediaprobe"
	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// Stage is where a single upload stands.
type Stage string

const (
	StageEmpty     Stage = "empty"     // no video selected
	StageReady     Stage = "ready"     // video selected, form editable
	StageUploading Stage = "uploading" // binaries and record in flight
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed" // form kept for retry
)

// Form holds the user-entered fields of an upload.
type Form struct {
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Category            string     `json:"category"`
	Language            string     `json:"language"`
	Tags                string     `json:"tags"` // comma-separated
	Location            string     `json:"location"`
	IsPremium           bool       `json:"isPremium"`
	AllowComments       bool       `json:"allowComments"`
	MonetizationEnabled bool       `json:"monetizationEnabled"`
	Schedule            *time.Time `json:"schedule,omitempty"`
}

// DefaultForm is the initial form state.
func DefaultForm() Form { return Form{AllowComments: true} }

func (f Form) validate() error {
	if err := CheckTitle(f.Title); err != nil {
		return err
	}
	if utf8.RuneCountInString(f.Description) > MaxDescriptionLength {
		return errordefs.Validation(fmt.Sprintf("Description must be at most %d characters", MaxDescriptionLength))
	}
	if err := checkTags(ParseTags(f.Tags)); err != nil {
		return err
	}
	if f.Category != "" && !model.ValidCategory(f.Category) {
		return errordefs.Validation("Unknown category " + f.Category)
	}
	if f.Language != "" && !model.ValidLanguage(f.Language) {
		return errordefs.Validation("Unknown language " + f.Language)
	}
	return nil
}

// ThumbnailSource says where the chosen thumbnail came from.
type ThumbnailSource string

const (
	ThumbnailNone      ThumbnailSource = ""
	ThumbnailFile      ThumbnailSource = "file"
	ThumbnailCapture   ThumbnailSource = "capture"
	ThumbnailGenerated ThumbnailSource = "generated"
)

type thumbnail struct {
	source  ThumbnailSource
	preview *Preview // file thumbnails
	frame   mediaprobe.Frame
}

// SingleView is a snapshot of the upload form.
type SingleView struct {
	Stage           Stage               `json:"stage"`
	Form            Form                `json:"form"`
	Video           *Preview            `json:"video,omitempty"`
	Metadata        mediaprobe.Metadata `json:"metadata"`
	IsShort         bool                `json:"isShort"`
	ShortOverridden bool                `json:"shortOverridden"`
	Thumbnail       ThumbnailSource     `json:"thumbnail,omitempty"`
	Candidates      []time.Duration     `json:"candidates,omitempty"`
	Progress        int                 `json:"progress"`
	Error           string              `json:"error,omitempty"`
	Result          *model.Video        `json:"result,omitempty"`
}

// Single drives the one-video upload form.
type Single struct {
	deps Deps
	sess Session

	mu         sync.Mutex
	stage      Stage
	form       Form
	video      *Preview
	meta       mediaprobe.Metadata
	short      *bool
	position   time.Duration
	thumb      thumbnail
	candidates []mediaprobe.Frame
	progress   int
	errMsg     string
	result     *model.Video
}

// NewSingle creates an empty upload form.
func NewSingle(deps Deps, sess Session) *Single {
	return &Single{deps: deps, sess: sess, stage: StageEmpty, form: DefaultForm()}
}

// SelectVideo spools the chosen file, releasing any previous selection, and
// probes its metadata. A probe failure leaves duration and dimensions unknown.
func (s *Single) SelectVideo(ctx context.Context, name, contentType string, r io.Reader) error {
	if err := s.deps.Limits.CheckVideo(contentType); err != nil {
		return err
	}
	if err := s.idle(); err != nil {
		return err
	}
	pv, err := s.deps.Previews.Acquire(name, contentType, r, s.deps.Limits.MaxVideoSize)
	if err != nil {
		return err
	}
	meta, err := s.deps.probe(ctx, pv.Path)
	if err != nil {
		s.deps.logger().WarnContext(ctx, "video probe failed", slog.String("file", name), slog.String("error", err.Error()))
		meta = mediaprobe.Metadata{}
	}

	s.mu.Lock()
	prev, prevThumb := s.video, s.thumb.preview
	s.video = pv
	s.meta = meta
	s.short = nil
	s.position = 0
	s.thumb = thumbnail{}
	s.candidates = nil
	s.stage = StageReady
	s.errMsg = ""
	s.result = nil
	s.progress = 0
	if strings.TrimSpace(s.form.Title) == "" {
		s.form.Title = TitleFromFilename(name)
	}
	s.mu.Unlock()

	s.deps.Previews.Release(prev)
	s.deps.Previews.Release(prevThumb)
	return nil
}

// idle rejects changes while an upload is in flight.
func (s *Single) idle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage == StageUploading {
		return errordefs.New(errordefs.VH_BUSY, "upload in progress", "")
	}
	return nil
}

// SetForm replaces the user-entered fields.
func (s *Single) SetForm(f Form) error {
	if err := s.idle(); err != nil {
		return err
	}
	s.mu.Lock()
	s.form = f
	s.mu.Unlock()
	return nil
}

// SetShort overrides the inferred short-format flag.
func (s *Single) SetShort(v bool) {
	s.mu.Lock()
	s.short = &v
	s.mu.Unlock()
}

// IsShort is the override when set, otherwise whether the video is portrait.
func (s *Single) IsShort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isShortLocked()
}

func (s *Single) isShortLocked() bool {
	if s.short != nil {
		return *s.short
	}
	return s.meta.Portrait()
}

// SetPosition records the preview player's current playback position.
func (s *Single) SetPosition(at time.Duration) {
	s.mu.Lock()
	s.position = at
	s.mu.Unlock()
}

// SetThumbnailFile uses an uploaded image as the thumbnail.
func (s *Single) SetThumbnailFile(name, contentType string, r io.Reader) error {
	if err := s.deps.Limits.CheckImage(contentType); err != nil {
		return err
	}
	if err := s.idle(); err != nil {
		return err
	}
	pv, err := s.deps.Previews.Acquire(name, contentType, r, s.deps.Limits.MaxImageSize)
	if err != nil {
		return err
	}
	s.setThumb(thumbnail{source: ThumbnailFile, preview: pv})
	return nil
}

func (s *Single) setThumb(t thumbnail) {
	s.mu.Lock()
	prev := s.thumb.preview
	s.thumb = t
	s.mu.Unlock()
	s.deps.Previews.Release(prev)
}

// ClearThumbnail drops the chosen thumbnail.
func (s *Single) ClearThumbnail() { s.setThumb(thumbnail{}) }

func (s *Single) videoPath() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.video == nil {
		return "", errordefs.Validation("Please select a video to upload")
	}
	return s.video.Path, nil
}

// CaptureThumbnail grabs the frame at the current playback position.
func (s *Single) CaptureThumbnail(ctx context.Context) (mediaprobe.Frame, error) {
	p, err := s.videoPath()
	if err != nil {
		return mediaprobe.Frame{}, err
	}
	s.mu.Lock()
	at := s.position
	s.mu.Unlock()
	frames, err := s.deps.capture(ctx, p, []time.Duration{at})
	if err != nil {
		return mediaprobe.Frame{}, err
	}
	s.setThumb(thumbnail{source: ThumbnailCapture, frame: frames[0]})
	return frames[0], nil
}

// GenerateThumbnails captures frames at 25%, 50% and 75% of the duration in
// turn and selects the first.
func (s *Single) GenerateThumbnails(ctx context.Context) ([]mediaprobe.Frame, error) {
	p, err := s.videoPath()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	d := s.meta.Duration
	s.mu.Unlock()
	if d <= 0 {
		return nil, errordefs.Validation("Video duration is unknown")
	}
	frames, err := s.deps.capture(ctx, p, mediaprobe.ThumbnailTargets(d))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.candidates = frames
	s.mu.Unlock()
	s.setThumb(thumbnail{source: ThumbnailGenerated, frame: frames[0]})
	return frames, nil
}

// ChooseThumbnail selects generated candidate i.
func (s *Single) ChooseThumbnail(i int) error {
	s.mu.Lock()
	if i < 0 || i >= len(s.candidates) {
		s.mu.Unlock()
		return errordefs.Validation("no such thumbnail")
	}
	f := s.candidates[i]
	s.mu.Unlock()
	s.setThumb(thumbnail{source: ThumbnailGenerated, frame: f})
	return nil
}

// Submit uploads the video, then the thumbnail if any, then creates the
// record. On failure the form stays populated.
func (s *Single) Submit(ctx context.Context) (*model.Video, error) {
	user, err := s.sess.Require()
	if err != nil {
		return nil, errordefs.New(errordefs.VH_AUTHN, "You must be logged in to upload videos", "")
	}
	s.mu.Lock()
	if s.stage == StageUploading {
		s.mu.Unlock()
		return nil, errordefs.New(errordefs.VH_BUSY, "upload in progress", "")
	}
	if s.video == nil {
		s.mu.Unlock()
		return nil, errordefs.Validation("Please select a video to upload")
	}
	if err := s.form.validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.stage = StageUploading
	s.progress = 0
	s.errMsg = ""
	video, form, meta, thumb, short := s.video, s.form, s.meta, s.thumb, s.isShortLocked()
	s.mu.Unlock()

	created, err := s.submit(ctx, user.ID, video, form, meta, thumb, short)

	s.mu.Lock()
	if err != nil {
		s.stage = StageFailed
		s.errMsg = errMessage(err)
	} else {
		s.stage = StageCompleted
		s.progress = 100
		s.result = created
	}
	s.mu.Unlock()
	if err != nil {
		s.deps.observe("single", string(StageFailed))
		s.deps.logger().ErrorContext(ctx, "upload failed", slog.String("error", err.Error()))
		return nil, err
	}
	s.deps.observe("single", string(StageCompleted))
	return created, nil
}

func (s *Single) submit(ctx context.Context, owner string, video *Preview, form Form, meta mediaprobe.Metadata, thumb thumbnail, short bool) (*model.Video, error) {
	buckets := s.deps.Backend.Buckets()
	now := s.deps.now()

	f, err := video.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	videoURL, err := s.deps.Backend.UploadObject(ctx, media.UploadInput{
		Bucket:      buckets.Videos,
		Key:         media.ObjectKey(owner, video.Name, now),
		Body:        f,
		Size:        video.Size,
		ContentType: video.ContentType,
		Progress: func(sent, total int64) {
			s.mu.Lock()
			s.progress = media.Percent(sent, total)
			s.mu.Unlock()
		},
	})
	if err != nil {
		return nil, err
	}

	thumbURL, err := s.uploadThumbnail(ctx, owner, video.Name, thumb, now)
	if err != nil {
		return nil, err
	}

	published, publishedAt := publishState(form.Schedule, now)
	return s.deps.Backend.CreateVideo(ctx, model.NewVideo{
		UserID:              owner,
		Title:               strings.TrimSpace(form.Title),
		Description:         form.Description,
		VideoURL:            videoURL,
		ThumbnailURL:        thumbURL,
		Duration:            meta.Seconds(),
		IsPublished:         published,
		PublishedAt:         publishedAt,
		IsPremium:           form.IsPremium,
		IsShort:             short,
		Category:            form.Category,
		Tags:                ParseTags(form.Tags),
		Language:            form.Language,
		Location:            form.Location,
		AllowComments:       form.AllowComments,
		MonetizationEnabled: form.MonetizationEnabled,
	})
}

func (s *Single) uploadThumbnail(ctx context.Context, owner, videoName string, thumb thumbnail, now time.Time) (string, error) {
	in := media.UploadInput{Bucket: s.deps.Backend.Buckets().Thumbnails}
	switch thumb.source {
	case ThumbnailNone:
		return "", nil
	case ThumbnailFile:
		f, err := thumb.preview.Open()
		if err != nil {
			return "", err
		}
		defer f.Close()
		in.Key = media.ObjectKey(owner, thumb.preview.Name, now)
		in.Body = f
		in.Size = thumb.preview.Size
		in.ContentType = thumb.preview.ContentType
	default:
		in.Key = media.ObjectKey(owner, TitleFromFilename(videoName)+".jpg", now)
		in.Body = bytes.NewReader(thumb.frame.JPEG)
		in.Size = int64(len(thumb.frame.JPEG))
		in.ContentType = "image/jpeg"
	}
	return s.deps.Backend.UploadObject(ctx, in)
}

// Close releases every spooled file held by the form.
func (s *Single) Close() {
	s.mu.Lock()
	video, thumb := s.video, s.thumb.preview
	s.video = nil
	s.thumb = thumbnail{}
	s.stage = StageEmpty
	s.mu.Unlock()
	s.deps.Previews.Release(video)
	s.deps.Previews.Release(thumb)
}

// Snapshot returns the current state.
func (s *Single) Snapshot() SingleView {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := SingleView{
		Stage:           s.stage,
		Form:            s.form,
		Metadata:        s.meta,
		IsShort:         s.isShortLocked(),
		ShortOverridden: s.short != nil,
		Thumbnail:       s.thumb.source,
		Progress:        s.progress,
		Error:           s.errMsg,
		Result:          s.result,
	}
	if s.video != nil {
		v := *s.video
		view.Video = &v
	}
	for _, f := range s.candidates {
		view.Candidates = append(view.Candidates, f.At)
	}
	return view
}
