package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/vidhub-go/internal/metrics"
	"github.com/RegistryAccord/vidhub-go/internal/model"
)

type stubPublisher struct {
	mu    sync.Mutex
	calls int
	due   []model.Video
	err   error
}

func (p *stubPublisher) PublishDueVideos(context.Context, time.Time) ([]model.Video, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	out := p.due
	p.due = nil
	return out, nil
}

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}

func TestRunOnceCountsPublished(t *testing.T) {
	m := metrics.NewMetrics()
	before := counterValue(t, m.ScheduledPublishTotal)
	pub := &stubPublisher{due: []model.Video{{ID: "a"}, {ID: "b"}}}
	s, err := New("@every 1h", pub, m, nil)
	require.NoError(t, err)

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, before+2, counterValue(t, m.ScheduledPublishTotal))

	n, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunOnceError(t *testing.T) {
	s, err := New("@every 1h", &stubPublisher{err: errors.New("db down")}, nil, nil)
	require.NoError(t, err)
	_, err = s.RunOnce(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestInvalidSpec(t *testing.T) {
	_, err := New("not a schedule", &stubPublisher{}, nil, nil)
	assert.Error(t, err)
}

func TestStartRunsJob(t *testing.T) {
	pub := &stubPublisher{}
	s, err := New("@every 1s", pub, nil, nil)
	require.NoError(t, err)
	s.Start()
	assert.Eventually(t, func() bool { return pub.count() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
