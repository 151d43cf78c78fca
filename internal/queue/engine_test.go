package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wabridge/internal/retry"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedJob struct {
	mu       sync.Mutex
	name     string
	outcomes []Outcome
	runs     int
	done     chan struct{}
}

func newScriptedJob(name string, outcomes ...Outcome) *scriptedJob {
	return &scriptedJob{name: name, outcomes: outcomes, done: make(chan struct{})}
}

func (j *scriptedJob) Name() string { return j.name }

func (j *scriptedJob) Run(ctx context.Context) (Outcome, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	idx := j.runs
	j.runs++

	var outcome Outcome
	if idx < len(j.outcomes) {
		outcome = j.outcomes[idx]
	} else {
		outcome = Done
	}

	if j.runs == len(j.outcomes) || outcome == Done {
		select {
		case <-j.done:
		default:
			close(j.done)
		}
	}

	if outcome == Done {
		return Done, nil
	}
	return outcome, fmt.Errorf("scripted failure %d", idx)
}

func (j *scriptedJob) runCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func testEngine(workers int) *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	return NewEngine(Config{
		Workers:        workers,
		QueueSize:      16,
		MaxAttempts:    5,
		AttemptTimeout: time.Second,
		Backoff: retry.BackoffConfig{
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
			Jitter:       false,
		},
	}, logger)
}

func waitForJob(t *testing.T, j *scriptedJob) {
	select {
	case <-j.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("job %s did not finish", j.name)
	}
}

func TestEngineRunsJob(t *testing.T) {
	engine := testEngine(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)
	defer engine.Stop()

	job := newScriptedJob("simple", Done)
	require.NoError(t, engine.Submit(job))

	waitForJob(t, job)
	assert.Equal(t, 1, job.runCount())
}

func TestEngineRetriesUntilSuccess(t *testing.T) {
	engine := testEngine(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)
	defer engine.Stop()

	job := newScriptedJob("flaky", Retry, Retry, Done)
	require.NoError(t, engine.Submit(job))

	waitForJob(t, job)
	assert.Equal(t, 3, job.runCount())
}

func TestEngineExhaustsAttempts(t *testing.T) {
	engine := testEngine(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	job := newScriptedJob("doomed", Retry, Retry, Retry, Retry, Retry, Retry, Retry)
	require.NoError(t, engine.Submit(job))

	engine.Stop()
	// Exactly the configured number of attempts, no more
	assert.Equal(t, 5, job.runCount())
}

func TestEngineReprovisionDoesNotConsumeAttempts(t *testing.T) {
	engine := testEngine(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	// Four retries remain available after a reprovision run
	job := newScriptedJob("rebuilt", Retry, Reprovision, Retry, Retry, Retry, Retry)
	require.NoError(t, engine.Submit(job))

	engine.Stop()
	// 5 attempts plus the reprovision run
	assert.Equal(t, 6, job.runCount())
}

func TestEngineQueueFull(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	engine := NewEngine(Config{
		Workers:        1,
		QueueSize:      1,
		MaxAttempts:    1,
		AttemptTimeout: time.Second,
		Backoff:        retry.DefaultBackoffConfig(),
	}, logger)
	// Not started: the queue holds one job and then refuses

	require.NoError(t, engine.Submit(newScriptedJob("first", Done)))
	err := engine.Submit(newScriptedJob("second", Done))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue is full")
}

func TestEngineSubmitAfterStop(t *testing.T) {
	engine := testEngine(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)
	engine.Stop()

	err := engine.Submit(newScriptedJob("late", Done))
	assert.Error(t, err)
}

func TestEngineAttemptTimeout(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	engine := NewEngine(Config{
		Workers:        1,
		QueueSize:      4,
		MaxAttempts:    2,
		AttemptTimeout: 20 * time.Millisecond,
		Backoff: retry.BackoffConfig{
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
			Multiplier:   1.0,
		},
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	var sawDeadline atomic.Bool
	job := &funcJob{name: "slow", fn: func(ctx context.Context) (Outcome, error) {
		select {
		case <-ctx.Done():
			sawDeadline.Store(true)
			return Retry, ctx.Err()
		case <-time.After(time.Second):
			return Done, nil
		}
	}}
	require.NoError(t, engine.Submit(job))

	engine.Stop()
	assert.True(t, sawDeadline.Load())
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) (Outcome, error)
}

func (j *funcJob) Name() string                                { return j.name }
func (j *funcJob) Run(ctx context.Context) (Outcome, error)    { return j.fn(ctx) }
