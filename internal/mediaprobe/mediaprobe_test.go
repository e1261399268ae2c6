package mediaprobe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThumbnailTargets(t *testing.T) {
	assert.Equal(t,
		[]time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second},
		ThumbnailTargets(40*time.Second))
	assert.Len(t, ThumbnailTargets(0), 3)
}

func TestMetadataPortrait(t *testing.T) {
	assert.True(t, Metadata{Width: 1080, Height: 1920}.Portrait())
	assert.False(t, Metadata{Width: 1920, Height: 1080}.Portrait())
	assert.False(t, Metadata{Width: 100, Height: 100}.Portrait())
	assert.Equal(t, 12, Metadata{Duration: 12900 * time.Millisecond}.Seconds())
}

func TestFrameQueueCapturesInOrder(t *testing.T) {
	dec := NewStatic(Metadata{Duration: 40 * time.Second})
	dec.SeekDelay = 5 * time.Millisecond
	q := NewFrameQueue(dec)
	defer q.Close()

	frames, err := q.CaptureAll(context.Background(), ThumbnailTargets(40*time.Second))
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for i, want := range []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second} {
		assert.Equal(t, want, frames[i].At)
		assert.Equal(t, "frame@"+want.String(), string(frames[i].JPEG))
	}
	assert.Equal(t, ThumbnailTargets(40*time.Second), dec.Seeks())
	assert.False(t, dec.Overlapped())
}

func TestFrameQueueNeverOverlapsSeeks(t *testing.T) {
	dec := NewStatic(Metadata{Duration: time.Minute})
	dec.SeekDelay = 2 * time.Millisecond
	q := NewFrameQueue(dec)
	defer q.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := q.Capture(context.Background(), time.Duration(i)*time.Second)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Len(t, dec.Seeks(), 8)
	assert.False(t, dec.Overlapped())
}

func TestFrameQueueClosed(t *testing.T) {
	q := NewFrameQueue(NewStatic(Metadata{Duration: time.Second}))
	q.Close()
	q.Close()
	_, err := q.Capture(context.Background(), 0)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestFrameQueueContextCancelled(t *testing.T) {
	dec := NewStatic(Metadata{Duration: time.Second})
	dec.SeekDelay = time.Hour
	q := NewFrameQueue(dec)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := q.Capture(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFFmpegDefaults(t *testing.T) {
	f := FFmpeg{}
	assert.Equal(t, "ffprobe", f.probe())
	assert.Equal(t, "ffmpeg", f.ffmpeg())
	dec, err := f.Open("/nonexistent.mp4")
	require.NoError(t, err)
	require.NoError(t, dec.Close())
	err = <-dec.Seek(context.Background(), 0)
	assert.Error(t, err)
}
