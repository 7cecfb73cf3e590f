package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/academyhq/tournament-engine/repositories"
	"github.com/academyhq/tournament-engine/services"
	"golang.org/x/sync/errgroup"
)

var ErrQueueFull = errors.New("generation queue is full")

// GenerationPool runs session generation for large cohorts off the request
// path. Jobs re-enter the same guarded generation path the synchronous route
// uses, so a retried or duplicated job is harmless.
type GenerationPool struct {
	jobs       chan services.GenerationJob
	generator  services.GenerationService
	workers    int
	maxRetries int
	jobTimeout time.Duration
	logger     *slog.Logger
}

type GenerationPoolConfig struct {
	Workers    int
	QueueSize  int
	MaxRetries int
	JobTimeout time.Duration
}

func NewGenerationPool(cfg GenerationPoolConfig, logger *slog.Logger) *GenerationPool {
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	return &GenerationPool{
		jobs:       make(chan services.GenerationJob, cfg.QueueSize),
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		jobTimeout: cfg.JobTimeout,
		logger:     logger,
	}
}

// Bind attaches the generation service. The pool is constructed first so the
// service can take it as its dispatcher.
func (p *GenerationPool) Bind(generator services.GenerationService) {
	p.generator = generator
}

// Dispatch enqueues a job without blocking. A full queue is reported to the
// caller rather than stalling the request.
func (p *GenerationPool) Dispatch(job services.GenerationJob) error {
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run consumes jobs until the context is cancelled. It is meant to be run in
// an errgroup alongside the HTTP server.
func (p *GenerationPool) Run(ctx context.Context) error {
	if p.generator == nil {
		return fmt.Errorf("generation pool started without a bound generation service")
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		workerID := i
		g.Go(func() error {
			p.logger.Info("generation worker started", slog.Int("worker_id", workerID))
			for {
				select {
				case <-ctx.Done():
					return nil
				case job := <-p.jobs:
					p.process(ctx, workerID, job)
				}
			}
		})
	}
	return g.Wait()
}

func (p *GenerationPool) process(ctx context.Context, workerID int, job services.GenerationJob) {
	log := p.logger.With(
		slog.Int("worker_id", workerID),
		slog.String("job_id", job.JobID),
		slog.Int("tournament_id", job.TournamentID),
		slog.Int("attempt", job.Attempt))

	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	result, err := p.generator.GenerateSessions(jobCtx, job.TournamentID)
	if err == nil {
		log.InfoContext(ctx, "generation job finished",
			slog.Bool("already_generated", result.AlreadyGenerated),
			slog.Int("matches", len(result.Matches)))
		return
	}

	// Only storage-level transient failures are worth retrying; validation
	// and conflict errors will fail identically on every attempt.
	if repositories.IsTransient(err) && job.Attempt < p.maxRetries {
		retry := job
		retry.Attempt++
		log.WarnContext(ctx, "generation job hit transient error, requeueing", slog.Any("error", err))

		select {
		case <-ctx.Done():
		case <-time.After(backoff(retry.Attempt)):
			if dispatchErr := p.Dispatch(retry); dispatchErr != nil {
				log.ErrorContext(ctx, "failed to requeue generation job", slog.Any("error", dispatchErr))
			}
		}
		return
	}

	log.ErrorContext(ctx, "generation job failed", slog.Any("error", err))
}

func backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * 500 * time.Millisecond
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
