package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "wabridge/internal/errors"
	"wabridge/internal/retry"

	"github.com/sirupsen/logrus"
)

// Outcome tells the engine what to do with a job after a run.
type Outcome int

const (
	// Done finishes the job, successfully or because retrying cannot help.
	Done Outcome = iota
	// Retry consumes a delivery attempt and runs the job again after
	// backoff.
	Retry
	// Reprovision runs the job again without consuming an attempt. Used
	// when a prerequisite was rebuilt mid-flight, such as a replacement
	// thread for one that was deleted.
	Reprovision
)

// Job is a unit of delivery work.
type Job interface {
	Name() string
	Run(ctx context.Context) (Outcome, error)
}

// Config bounds the engine.
type Config struct {
	Workers        int
	QueueSize      int
	MaxAttempts    int
	AttemptTimeout time.Duration
	Backoff        retry.BackoffConfig
}

// Engine is a bounded worker pool that drives jobs through their retry
// lifecycle. Each job gets a fixed number of attempts with a per-attempt
// timeout; the queue is bounded so webhook intake backpressures instead of
// growing without limit.
type Engine struct {
	cfg     Config
	jobs    chan Job
	backoff *retry.Backoff
	logger  *logrus.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

func NewEngine(cfg Config, logger *logrus.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		jobs:    make(chan Job, cfg.QueueSize),
		backoff: retry.NewBackoff(cfg.Backoff),
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Start launches the worker pool. Workers exit when the context is cancelled
// and the queue has drained.
func (e *Engine) Start(ctx context.Context) {
	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx)
	}
}

// Submit enqueues a job. It fails when the queue is full or the engine has
// stopped; callers surface that as a transient intake error.
func (e *Engine) Submit(job Job) error {
	select {
	case <-e.stopped:
		return fmt.Errorf("delivery engine is stopped")
	default:
	}

	select {
	case e.jobs <- job:
		return nil
	default:
		return fmt.Errorf("delivery queue is full")
	}
}

// Stop closes intake and waits for in-flight jobs to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopped)
		close(e.jobs)
	})
	e.wg.Wait()
}

func (e *Engine) worker(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-e.jobs:
			if !ok {
				return
			}
			e.process(ctx, job)
		}
	}
}

func (e *Engine) process(ctx context.Context, job Job) {
	attempt := 1
	reprovisions := 0

	for {
		outcome, err := e.runOnce(ctx, job)

		switch outcome {
		case Done:
			if err != nil {
				level := logrus.ErrorLevel
				if apperrors.GetSeverity(err) == apperrors.SeverityWarning {
					level = logrus.WarnLevel
				}
				e.logger.WithFields(logrus.Fields{
					"job":     job.Name(),
					"attempt": attempt,
					"error":   err,
				}).Log(level, "Job finished without delivery")
			} else if attempt > 1 {
				e.logger.WithFields(logrus.Fields{
					"job":     job.Name(),
					"attempt": attempt,
				}).Info("Job succeeded after retry")
			}
			return

		case Reprovision:
			// Rebuilt prerequisites do not consume attempts, but a
			// bound keeps a broken prerequisite from looping forever.
			reprovisions++
			if reprovisions > e.cfg.MaxAttempts {
				e.logger.WithFields(logrus.Fields{
					"job":   job.Name(),
					"error": err,
				}).Error("Job abandoned, prerequisite keeps failing")
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(e.backoff.Delay(reprovisions)):
			}
			continue

		case Retry:
			if attempt >= e.cfg.MaxAttempts {
				e.logger.WithFields(logrus.Fields{
					"job":      job.Name(),
					"attempts": attempt,
					"error":    err,
				}).Error("Job failed, attempts exhausted")
				return
			}

			delay := e.backoff.Delay(attempt)
			attempt++

			e.logger.WithFields(logrus.Fields{
				"job":     job.Name(),
				"attempt": attempt,
				"delay":   delay.String(),
				"error":   err,
			}).Warn("Job attempt failed, retrying")

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}
}

func (e *Engine) runOnce(ctx context.Context, job Job) (Outcome, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
	defer cancel()

	return job.Run(attemptCtx)
}
