// Package upload implements the video upload pipelines: a single upload with
// metadata probing and thumbnail selection, and a batch queue whose items
// progress and fail independently.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/RegistryAccord/vidhub-go/internal/config"
	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/media"
	"github.com/RegistryAccord/vidhub-go/internal/mediaprobe"
	"github.com/RegistryAccord/vidhub-go/internal/metrics"
	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// Backend is the gateway surface the upload pipelines call.
type Backend interface {
	UploadObject(ctx context.Context, in media.UploadInput) (string, error)
	CreateVideo(ctx context.Context, nv model.NewVideo) (*model.Video, error)
	Buckets() config.Buckets
}

// Session identifies the uploader.
type Session interface {
	Require() (*model.User, error)
}

// Limits bounds accepted files. Empty type lists accept any video/* or image/*.
type Limits struct {
	MaxVideoSize int64
	MaxImageSize int64
	VideoTypes   []string
	ImageTypes   []string
}

// CheckVideo rejects content types that are not accepted videos.
func (l Limits) CheckVideo(contentType string) error {
	if !allowed(contentType, "video/", l.VideoTypes) {
		return errordefs.New(errordefs.VH_MEDIA_TYPE, "Please select a video file", "")
	}
	return nil
}

// CheckImage rejects content types that are not accepted images.
func (l Limits) CheckImage(contentType string) error {
	if !allowed(contentType, "image/", l.ImageTypes) {
		return errordefs.New(errordefs.VH_MEDIA_TYPE, "Please select an image file", "")
	}
	return nil
}

func allowed(contentType, prefix string, list []string) bool {
	ct, _, _ := strings.Cut(contentType, ";")
	ct = strings.ToLower(strings.TrimSpace(ct))
	if len(list) == 0 {
		return strings.HasPrefix(ct, prefix)
	}
	for _, t := range list {
		if ct == t {
			return true
		}
	}
	return false
}

// Deps are shared by every pipeline.
type Deps struct {
	Backend     Backend
	Opener      mediaprobe.Opener // nil disables probing and thumbnail capture
	Previews    *Previews
	Limits      Limits
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	Concurrency int              // parallel batch items; defaults to 3
	Now         func() time.Time // defaults to time.Now
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) observe(pipeline, state string) {
	if d.Metrics == nil {
		return
	}
	d.Metrics.UploadItemsTotal.WithLabelValues(pipeline, state).Inc()
}

// probe reads the metadata of the file at p. A missing decoder yields
// mediaprobe.ErrUnavailable.
func (d Deps) probe(ctx context.Context, p string) (mediaprobe.Metadata, error) {
	if d.Opener == nil {
		return mediaprobe.Metadata{}, mediaprobe.ErrUnavailable
	}
	dec, err := d.Opener(p)
	if err != nil {
		return mediaprobe.Metadata{}, err
	}
	defer dec.Close()
	return dec.Metadata(ctx)
}

// capture rasterises frames at targets, one seek at a time.
func (d Deps) capture(ctx context.Context, p string, targets []time.Duration) ([]mediaprobe.Frame, error) {
	if d.Opener == nil {
		return nil, mediaprobe.ErrUnavailable
	}
	dec, err := d.Opener(p)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	q := mediaprobe.NewFrameQueue(dec)
	defer q.Close()
	return q.CaptureAll(ctx, targets)
}

// Field limits shared with the video.create schema.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 5000
	MaxTags              = 30
	MaxTagLength         = 64
)

// TitleFromFilename derives a title: the extension is stripped, dashes and
// underscores become spaces, and the result is cut to MaxTitleLength.
func TitleFromFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	title := strings.NewReplacer("-", " ", "_", " ").Replace(base)
	if utf8.RuneCountInString(title) > MaxTitleLength {
		title = string([]rune(title)[:MaxTitleLength])
	}
	return strings.TrimSpace(title)
}

// CheckTitle rejects blank titles and titles over MaxTitleLength characters.
func CheckTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errordefs.Validation("Please enter a title for your video")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return errordefs.Validation(fmt.Sprintf("Title must be at most %d characters", MaxTitleLength))
	}
	return nil
}

func checkTags(tags []string) error {
	if len(tags) > MaxTags {
		return errordefs.Validation(fmt.Sprintf("At most %d tags are allowed", MaxTags))
	}
	for _, t := range tags {
		if utf8.RuneCountInString(t) > MaxTagLength {
			return errordefs.Validation(fmt.Sprintf("Tag %q is longer than %d characters", t, MaxTagLength))
		}
	}
	return nil
}

// ParseTags splits comma-separated text into trimmed, non-empty tags.
func ParseTags(text string) []string {
	tags := []string{}
	for _, t := range strings.Split(text, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// errMessage is the user-facing text of err.
func errMessage(err error) string {
	if e, ok := errordefs.As(err); ok {
		return e.Message
	}
	return err.Error()
}

// publishState maps an optional schedule onto the record's publish fields.
func publishState(schedule *time.Time, now time.Time) (bool, *time.Time) {
	if schedule != nil {
		at := *schedule
		return false, &at
	}
	return true, &now
}
