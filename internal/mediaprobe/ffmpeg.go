package mediaprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FFmpeg opens decoders backed by the ffprobe and ffmpeg binaries.
type FFmpeg struct {
	ProbePath  string // defaults to "ffprobe"
	FFmpegPath string // defaults to "ffmpeg"
}

// Available reports whether both binaries can be found.
func (f FFmpeg) Available() bool {
	if _, err := exec.LookPath(f.probe()); err != nil {
		return false
	}
	_, err := exec.LookPath(f.ffmpeg())
	return err == nil
}

func (f FFmpeg) probe() string {
	if f.ProbePath == "" {
		return "ffprobe"
	}
	return f.ProbePath
}

func (f FFmpeg) ffmpeg() string {
	if f.FFmpegPath == "" {
		return "ffmpeg"
	}
	return f.FFmpegPath
}

// Open returns a decoder for path. It does not touch the file until the
// first call.
func (f FFmpeg) Open(path string) (Decoder, error) {
	return &ffmpegDecoder{probe: f.probe(), ffmpeg: f.ffmpeg(), path: path}, nil
}

type ffmpegDecoder struct {
	probe  string
	ffmpeg string
	path   string

	mu       sync.Mutex
	meta     *Metadata
	position time.Duration
	seeking  bool
	closed   bool
}

type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (d *ffmpegDecoder) Metadata(ctx context.Context) (Metadata, error) {
	d.mu.Lock()
	if d.meta != nil {
		m := *d.meta
		d.mu.Unlock()
		return m, nil
	}
	d.mu.Unlock()

	cmd := exec.CommandContext(ctx, d.probe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "json",
		d.path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe %s: %w: %s", d.path, err, strings.TrimSpace(stderr.String()))
	}
	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return Metadata{}, fmt.Errorf("ffprobe output: %w", err)
	}
	if len(parsed.Streams) == 0 {
		return Metadata{}, fmt.Errorf("ffprobe %s: no video stream", d.path)
	}
	secs, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe duration %q: %w", parsed.Format.Duration, err)
	}
	m := Metadata{
		Duration: time.Duration(secs * float64(time.Second)),
		Width:    parsed.Streams[0].Width,
		Height:   parsed.Streams[0].Height,
	}
	d.mu.Lock()
	d.meta = &m
	d.mu.Unlock()
	return m, nil
}

// Seek validates the target against the stream duration and moves the
// position. ffmpeg seeks per capture, so completion is signalled as soon as
// the position is set.
func (d *ffmpegDecoder) Seek(ctx context.Context, at time.Duration) <-chan error {
	done := make(chan error, 1)
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		done <- fmt.Errorf("mediaprobe: decoder closed")
		return done
	}
	if d.seeking {
		d.mu.Unlock()
		done <- ErrSeekInProgress
		return done
	}
	d.seeking = true
	d.mu.Unlock()

	go func() {
		m, err := d.Metadata(ctx)
		d.mu.Lock()
		defer d.mu.Unlock()
		d.seeking = false
		if err != nil {
			done <- err
			return
		}
		if at < 0 || at > m.Duration {
			done <- fmt.Errorf("mediaprobe: seek to %s outside 0..%s", at, m.Duration)
			return
		}
		d.position = at
		done <- nil
	}()
	return done
}

func (d *ffmpegDecoder) Capture(ctx context.Context) (Frame, error) {
	d.mu.Lock()
	if d.seeking {
		d.mu.Unlock()
		return Frame{}, ErrSeekInProgress
	}
	at := d.position
	d.mu.Unlock()

	cmd := exec.CommandContext(ctx, d.ffmpeg,
		"-v", "error",
		"-ss", strconv.FormatFloat(at.Seconds(), 'f', 3, 64),
		"-i", d.path,
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"pipe:1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return Frame{}, fmt.Errorf("ffmpeg capture at %s: %w: %s", at, err, strings.TrimSpace(stderr.String()))
	}
	if len(out) == 0 {
		return Frame{}, fmt.Errorf("ffmpeg capture at %s: empty frame", at)
	}
	return Frame{At: at, JPEG: out}, nil
}

func (d *ffmpegDecoder) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}
