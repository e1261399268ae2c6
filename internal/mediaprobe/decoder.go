// Package mediaprobe inspects uploaded video files: it reads stream metadata
// and rasterises still frames for thumbnails.
package mediaprobe

import (
	"context"
	"errors"
	"time"
)

// ErrSeekInProgress is returned by Seek while an earlier seek on the same
// decoder has not completed.
var ErrSeekInProgress = errors.New("mediaprobe: seek already in progress")

// ErrUnavailable is returned when no decoder can be opened for a file.
var ErrUnavailable = errors.New("mediaprobe: decoder unavailable")

// Metadata is what the decoder learns about a video stream.
type Metadata struct {
	Duration time.Duration `json:"duration"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
}

// Portrait reports whether the frame is taller than it is wide.
func (m Metadata) Portrait() bool { return m.Height > m.Width }

// Seconds is the duration rounded down to whole seconds.
func (m Metadata) Seconds() int { return int(m.Duration / time.Second) }

// Frame is one rasterised JPEG still.
type Frame struct {
	At   time.Duration `json:"at"`
	JPEG []byte        `json:"-"`
}

// Decoder is a handle on one media file. A decoder has a single playback
// position: Seek moves it and signals completion on the returned channel,
// Capture rasterises the frame at the current position. Seeks must not
// overlap.
type Decoder interface {
	Metadata(ctx context.Context) (Metadata, error)
	Seek(ctx context.Context, at time.Duration) <-chan error
	Capture(ctx context.Context) (Frame, error)
	Close() error
}

// Opener opens a decoder for the file at path.
type Opener func(path string) (Decoder, error)

// ThumbnailTargets returns the three auto-thumbnail positions: 25%, 50% and
// 75% of d.
func ThumbnailTargets(d time.Duration) []time.Duration {
	return []time.Duration{d / 4, d / 2, d * 3 / 4}
}
