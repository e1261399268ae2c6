// Package scheduler runs the periodic jobs of vidhubd.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/RegistryAccord/vidhub-go/internal/metrics"
	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// Publisher flips scheduled videos whose publish time has passed.
type Publisher interface {
	PublishDueVideos(ctx context.Context, now time.Time) ([]model.Video, error)
}

// Scheduler runs the scheduled-publish job on a cron spec.
type Scheduler struct {
	cron    *cron.Cron
	pub     Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// New registers the publish job under spec, e.g. "@every 1m" or "*/5 * * * *".
func New(spec string, pub Publisher, m *metrics.Metrics, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{pub: pub, metrics: m, logger: logger, timeout: 30 * time.Second, now: time.Now}
	cl := cronLogger{logger: logger}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid publish schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.ErrorContext(ctx, "scheduled publish failed", slog.String("error", err.Error()))
	}
}

// RunOnce publishes every due video and returns how many were published.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	published, err := s.pub.PublishDueVideos(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n := len(published); n > 0 {
		if s.metrics != nil {
			s.metrics.ScheduledPublishTotal.Add(float64(n))
		}
		for _, v := range published {
			s.logger.InfoContext(ctx, "video published on schedule",
				slog.String("video_id", v.ID), slog.String("user_id", v.UserID))
		}
	}
	return len(published), nil
}

// Start runs the cron loop in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the loop and waits for a running job, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ logger *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
