package genrunner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vidforge/vidforge/config"
	"github.com/vidforge/vidforge/internal/core"
	"github.com/vidforge/vidforge/internal/data"
	"github.com/vidforge/vidforge/internal/device"
	"github.com/vidforge/vidforge/internal/domain/model"
	"github.com/vidforge/vidforge/internal/mocks"
)

type testRunner struct {
	runner    *Runner
	repo      *mocks.MockJobRepository
	queue     *mocks.MockWorkQueue
	generator *mocks.MockFrameGenerator
	encoder   *mocks.MockVideoEncoder
	reclaims  *int
}

func newTestRunner(t *testing.T, mutate func(*RunnerOptions)) testRunner {
	t.Helper()
	ctrl := gomock.NewController(t)

	reclaims := 0
	guard, err := device.NewGuard(device.GuardOptions{
		BudgetMB: 48000,
		Reclaim: func(context.Context) error {
			reclaims++
			return nil
		},
	})
	require.NoError(t, err)

	opts := RunnerOptions{
		Repo:      mocks.NewMockJobRepository(ctrl),
		Queue:     mocks.NewMockWorkQueue(ctrl),
		Generator: mocks.NewMockFrameGenerator(ctrl),
		Encoder:   mocks.NewMockVideoEncoder(ctrl),
		Guard:     guard,
		WorkerID:  "test-worker",
		Config: config.WorkerConfig{
			Concurrency:         1,
			MaxAttempts:         3,
			VisibilityTimeout:   time.Minute,
			PopTimeout:          50 * time.Millisecond,
			GenerationTimeout:   5 * time.Second,
			RetryBackoffBase:    30 * time.Second,
			RetryBackoffCeiling: 10 * time.Minute,
			HeartbeatInterval:   time.Minute,
			OutputDir:           t.TempDir(),
		},
	}
	if mutate != nil {
		mutate(&opts)
	}

	r, err := NewRunner(opts)
	require.NoError(t, err)

	return testRunner{
		runner:    r,
		repo:      opts.Repo.(*mocks.MockJobRepository),
		queue:     opts.Queue.(*mocks.MockWorkQueue),
		generator: opts.Generator.(*mocks.MockFrameGenerator),
		encoder:   opts.Encoder.(*mocks.MockVideoEncoder),
		reclaims:  &reclaims,
	}
}

func processingJob(attempt int) *model.Job {
	return &model.Job{
		ID:          "5cc34b1a-0000-4000-8000-00000000aa01",
		Prompt:      "a tram crossing a rainy intersection",
		Duration:    4,
		FPS:         12,
		Resolution:  model.Resolution480p,
		Status:      model.JobStatusProcessing,
		Attempt:     attempt,
		MaxAttempts: 3,
	}
}

func TestNewRunner_RequiresDeps(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	require.Error(t, err)
}

func TestProcessJob_Success(t *testing.T) {
	tr := newTestRunner(t, nil)
	ctx := context.Background()
	job := processingJob(1)

	framesDir := filepath.Join(t.TempDir(), "frames")
	require.NoError(t, os.MkdirAll(framesDir, 0o750))

	tr.repo.EXPECT().MarkProcessing(gomock.Any(), job.ID, 60).Return(job, nil)
	tr.generator.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.GenerateParams) (string, error) {
			assert.Equal(t, job.ID, params.JobID)
			assert.Equal(t, 848, params.Width)
			assert.Equal(t, 480, params.Height)
			assert.Equal(t, 48, params.NumFrames)
			return framesDir, nil
		})
	tr.encoder.EXPECT().
		Encode(gomock.Any(), framesDir, filepath.Join(tr.runner.config.OutputDir, job.ID+".mp4"), job.FPS).
		Return(nil)
	tr.repo.EXPECT().
		Complete(gomock.Any(), job.ID, filepath.Join(tr.runner.config.OutputDir, job.ID+".mp4")).
		Return(true, nil)

	tr.runner.processJob(ctx, job.ID)

	assert.False(t, tr.runner.guard.Outstanding())
	_, statErr := os.Stat(framesDir)
	assert.True(t, os.IsNotExist(statErr), "frames dir should be cleaned up")
}

func TestProcessJob_ClaimConflict(t *testing.T) {
	tr := newTestRunner(t, nil)

	tr.repo.EXPECT().
		MarkProcessing(gomock.Any(), "job-1", gomock.Any()).
		Return(nil, data.ErrStatusConflict)

	tr.runner.processJob(context.Background(), "job-1")
	assert.False(t, tr.runner.guard.Outstanding())
}

func TestProcessJob_ResourceExhausted(t *testing.T) {
	tr := newTestRunner(t, func(opts *RunnerOptions) {
		guard, err := device.NewGuard(device.GuardOptions{BudgetMB: 1024})
		require.NoError(t, err)
		opts.Guard = guard
	})
	job := processingJob(1)

	tr.repo.EXPECT().MarkProcessing(gomock.Any(), job.ID, gomock.Any()).Return(job, nil)
	tr.repo.EXPECT().Requeue(gomock.Any(), job.ID).Return(true, nil)
	tr.queue.EXPECT().
		PushDelayed(gomock.Any(), job.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, readyAt time.Time) error {
			assert.WithinDuration(t, time.Now().Add(30*time.Second), readyAt, 5*time.Second)
			return nil
		})

	tr.runner.processJob(context.Background(), job.ID)
}

// A job claimed while a sibling slot holds the device must cycle through the
// queue indefinitely without burning attempts or invoking the generator; only
// real generation failures may spend the retry budget.
func TestProcessJob_ContentionNeverFailsJob(t *testing.T) {
	tr := newTestRunner(t, nil)
	ctx := context.Background()
	job := processingJob(1)

	// A sibling generation holds the only device slot throughout.
	lease, err := tr.runner.guard.Acquire(18000)
	require.NoError(t, err)
	defer tr.runner.guard.Release(ctx, lease, false)

	tr.repo.EXPECT().MarkProcessing(gomock.Any(), job.ID, gomock.Any()).Return(job, nil).Times(3)
	tr.repo.EXPECT().Requeue(gomock.Any(), job.ID).Return(true, nil).Times(3)
	tr.queue.EXPECT().PushDelayed(gomock.Any(), job.ID, gomock.Any()).Return(nil).Times(3)

	for range 3 {
		tr.runner.processJob(ctx, job.ID)
	}
	// No Retry, no Fail, no Generate: the mock controller rejects any of them.
}

func TestProcessJob_RequeueLostLease(t *testing.T) {
	tr := newTestRunner(t, func(opts *RunnerOptions) {
		guard, err := device.NewGuard(device.GuardOptions{BudgetMB: 1024})
		require.NoError(t, err)
		opts.Guard = guard
	})
	job := processingJob(1)

	tr.repo.EXPECT().MarkProcessing(gomock.Any(), job.ID, gomock.Any()).Return(job, nil)
	// The sweeper got there first; nothing is pushed.
	tr.repo.EXPECT().Requeue(gomock.Any(), job.ID).Return(false, nil)

	tr.runner.processJob(context.Background(), job.ID)
}

func TestProcessJob_TransientOOM(t *testing.T) {
	tr := newTestRunner(t, nil)
	job := processingJob(2)

	tr.repo.EXPECT().MarkProcessing(gomock.Any(), job.ID, gomock.Any()).Return(job, nil)
	tr.generator.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		Return("", fmt.Errorf("pipeline: %w", model.ErrOutOfMemory))
	tr.repo.EXPECT().
		Retry(gomock.Any(), job.ID, gomock.Any()).
		Return(model.JobStatusQueued, nil)
	tr.queue.EXPECT().
		PushDelayed(gomock.Any(), job.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, readyAt time.Time) error {
			// Second attempt failed, so the third waits base*2.
			assert.WithinDuration(t, time.Now().Add(time.Minute), readyAt, 5*time.Second)
			return nil
		})

	tr.runner.processJob(context.Background(), job.ID)

	assert.False(t, tr.runner.guard.Outstanding())
	assert.GreaterOrEqual(t, *tr.reclaims, 1, "reclaim hook should run after OOM")
}

func TestProcessJob_RetryBudgetExhausted(t *testing.T) {
	tr := newTestRunner(t, nil)
	job := processingJob(3)

	tr.repo.EXPECT().MarkProcessing(gomock.Any(), job.ID, gomock.Any()).Return(job, nil)
	tr.generator.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		Return("", model.ErrOutOfMemory)
	tr.repo.EXPECT().
		Retry(gomock.Any(), job.ID, gomock.Any()).
		Return(model.JobStatusFailed, nil)
	// No PushDelayed: the job failed terminally.

	tr.runner.processJob(context.Background(), job.ID)
}

func TestProcessJob_InvalidPromptIsTerminal(t *testing.T) {
	tr := newTestRunner(t, nil)
	job := processingJob(1)

	tr.repo.EXPECT().MarkProcessing(gomock.Any(), job.ID, gomock.Any()).Return(job, nil)
	tr.generator.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		Return("", fmt.Errorf("pipeline: %w", model.ErrInvalidPrompt))
	tr.repo.EXPECT().
		Fail(gomock.Any(), job.ID, gomock.Any()).
		Return(true, nil)

	tr.runner.processJob(context.Background(), job.ID)
}

func TestProcessJob_EncodeFailureIsTerminal(t *testing.T) {
	tr := newTestRunner(t, nil)
	job := processingJob(1)

	framesDir := t.TempDir()

	tr.repo.EXPECT().MarkProcessing(gomock.Any(), job.ID, gomock.Any()).Return(job, nil)
	tr.generator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(framesDir, nil)
	tr.encoder.EXPECT().
		Encode(gomock.Any(), framesDir, gomock.Any(), job.FPS).
		Return(errors.New("ffmpeg exited with status 1"))
	tr.repo.EXPECT().
		Fail(gomock.Any(), job.ID, gomock.Any()).
		Return(true, nil)

	tr.runner.processJob(context.Background(), job.ID)
}

func TestProcessJob_GenerationTimeoutRetries(t *testing.T) {
	tr := newTestRunner(t, func(opts *RunnerOptions) {
		opts.Config.GenerationTimeout = 20 * time.Millisecond
	})
	job := processingJob(1)

	tr.repo.EXPECT().MarkProcessing(gomock.Any(), job.ID, gomock.Any()).Return(job, nil)
	tr.generator.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ any) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
	tr.repo.EXPECT().
		Retry(gomock.Any(), job.ID, gomock.Any()).
		Return(model.JobStatusQueued, nil)
	tr.queue.EXPECT().PushDelayed(gomock.Any(), job.ID, gomock.Any()).Return(nil)

	tr.runner.processJob(context.Background(), job.ID)
}

func TestProcessJob_ShutdownLeavesJobForSweeper(t *testing.T) {
	tr := newTestRunner(t, nil)
	job := processingJob(1)

	ctx, cancel := context.WithCancel(context.Background())

	tr.repo.EXPECT().MarkProcessing(gomock.Any(), job.ID, gomock.Any()).Return(job, nil)
	tr.generator.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(genCtx context.Context, _ any) (string, error) {
			cancel()
			<-genCtx.Done()
			return "", genCtx.Err()
		})
	// No Retry, no Fail: the sweeper recovers the lease.

	tr.runner.processJob(ctx, job.ID)
}

func TestBackoffDelay(t *testing.T) {
	tr := newTestRunner(t, nil)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 30 * time.Second},
		{attempt: 1, want: 30 * time.Second},
		{attempt: 2, want: time.Minute},
		{attempt: 3, want: 2 * time.Minute},
		{attempt: 10, want: 10 * time.Minute},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tr.runner.backoffDelay(tc.attempt), "attempt %d", tc.attempt)
	}
}

func TestRun_QueuePreflightFailure(t *testing.T) {
	tr := newTestRunner(t, nil)

	tr.queue.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	err := tr.runner.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "queue preflight")
}

func TestRun_StopsOnCancel(t *testing.T) {
	tr := newTestRunner(t, nil)

	tr.queue.EXPECT().Ping(gomock.Any()).Return(nil)
	tr.queue.EXPECT().WorkerHeartbeat(gomock.Any(), "test-worker", gomock.Any()).Return(nil).AnyTimes()
	tr.queue.EXPECT().
		PopBlocking(gomock.Any(), gomock.Any()).
		Return("", model.ErrNoJobsAvailable).
		AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tr.runner.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on context cancel")
	}
}
