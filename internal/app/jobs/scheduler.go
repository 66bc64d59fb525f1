package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/observability/metrics"
)

// Job is one periodic batch task. Run returns the pass's overall error;
// partial failures inside a pass are the job's own business.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler drives each registered job on its own ticker. A job's panic or
// error is recovered and logged; the next tick runs regardless.
type Scheduler struct {
	logger *zap.Logger

	mu   sync.Mutex
	jobs []scheduledJob
	wg   sync.WaitGroup
}

type scheduledJob struct {
	job      Job
	interval time.Duration
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Register adds a job. Must be called before Start.
func (s *Scheduler) Register(job Job, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, scheduledJob{job: job, interval: interval})
}

// Start launches one goroutine per job. Each job runs immediately, then on
// its interval, until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sj := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, sj)
	}
}

// Wait blocks until every job goroutine has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, sj scheduledJob) {
	defer s.wg.Done()

	l := s.logger.With(zap.String("job", sj.job.Name()), zap.Duration("interval", sj.interval))
	l.Info("Background job started")

	ticker := time.NewTicker(sj.interval)
	defer ticker.Stop()

	s.runOnce(ctx, sj.job, l)
	for {
		select {
		case <-ctx.Done():
			l.Info("Background job stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx, sj.job, l)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job, l *zap.Logger) {
	start := time.Now()
	err := s.safeRun(ctx, job)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		l.Error("Background job run failed", zap.Any("error", err), zap.Duration("elapsed", elapsed))
	} else {
		l.Debug("Background job run complete", zap.Duration("elapsed", elapsed))
	}

	attrs := metric.WithAttributes(
		attribute.String("job", job.Name()),
		attribute.String("status", status),
	)
	metrics.App().JobRunsTotal.Add(ctx, 1, attrs)
	metrics.App().JobDurationSeconds.Record(ctx, elapsed.Seconds(), attrs)
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}
