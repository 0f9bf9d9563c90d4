package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vidforge/vidforge/internal/data"
	"github.com/vidforge/vidforge/internal/domain/model"
	"github.com/vidforge/vidforge/internal/mocks"
	"github.com/vidforge/vidforge/internal/testutil"
)

func newJobService(t *testing.T) (*JobService, *mocks.MockJobRepository, *mocks.MockWorkQueue) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	queue := mocks.NewMockWorkQueue(ctrl)
	svc, err := NewJobService(JobServiceOptions{Repo: repo, Queue: queue})
	require.NoError(t, err)
	return svc, repo, queue
}

func sampleJob() *model.Job {
	return &model.Job{
		ID:          "7f6a1c9e-0000-4000-8000-000000000001",
		Prompt:      "a lighthouse at dusk",
		Duration:    5,
		FPS:         12,
		Resolution:  model.Resolution720p,
		Status:      model.JobStatusQueued,
		MaxAttempts: 3,
	}
}

func TestNewJobService_RequiresDeps(t *testing.T) {
	ctrl := gomock.NewController(t)

	_, err := NewJobService(JobServiceOptions{Queue: mocks.NewMockWorkQueue(ctrl)})
	require.Error(t, err)

	_, err = NewJobService(JobServiceOptions{Repo: mocks.NewMockJobRepository(ctrl)})
	require.Error(t, err)
}

func TestJobService_Submit(t *testing.T) {
	svc, repo, queue := newJobService(t)
	ctx := context.Background()
	job := sampleJob()

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
	queue.EXPECT().Push(gomock.Any(), job.ID).Return(nil)

	got, err := svc.Submit(ctx, &model.CreateJobRequest{
		Prompt:     job.Prompt,
		Duration:   job.Duration,
		FPS:        job.FPS,
		Resolution: job.Resolution,
	})
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, model.JobStatusQueued, got.Status)
}

func TestJobService_Submit_ValidationError(t *testing.T) {
	svc, repo, _ := newJobService(t)

	repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		Return(nil, &model.ValidationError{Field: "fps", Message: "too high"})

	_, err := svc.Submit(context.Background(), &model.CreateJobRequest{})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestJobService_Submit_PushFailure(t *testing.T) {
	svc, repo, queue := newJobService(t)
	job := sampleJob()

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
	queue.EXPECT().Push(gomock.Any(), job.ID).Return(errors.New("redis down"))

	_, err := svc.Submit(context.Background(), &model.CreateJobRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enqueue job")
}

func TestJobService_GetStatus_NotFound(t *testing.T) {
	svc, repo, _ := newJobService(t)

	repo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, data.ErrJobNotFound)

	_, err := svc.GetStatus(context.Background(), "missing")
	require.ErrorIs(t, err, data.ErrJobNotFound)
}

func TestJobService_Result(t *testing.T) {
	ctx := context.Background()

	t.Run("completed", func(t *testing.T) {
		svc, repo, _ := newJobService(t)
		job := sampleJob()
		job.Status = model.JobStatusCompleted
		job.ResultPath = testutil.StringPtr("/data/outputs/" + job.ID + ".mp4")
		repo.EXPECT().GetByID(gomock.Any(), job.ID).Return(job, nil)

		path, err := svc.Result(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, *job.ResultPath, path)
	})

	t.Run("still processing", func(t *testing.T) {
		svc, repo, _ := newJobService(t)
		job := sampleJob()
		job.Status = model.JobStatusProcessing
		repo.EXPECT().GetByID(gomock.Any(), job.ID).Return(job, nil)

		_, err := svc.Result(ctx, job.ID)
		require.ErrorIs(t, err, ErrResultNotReady)
	})

	t.Run("failed", func(t *testing.T) {
		svc, repo, _ := newJobService(t)
		job := sampleJob()
		job.Status = model.JobStatusFailed
		job.ErrorMessage = testutil.StringPtr("max retries exceeded: device out of memory")
		repo.EXPECT().GetByID(gomock.Any(), job.ID).Return(job, nil)

		_, err := svc.Result(ctx, job.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max retries exceeded")
	})
}

func TestJobService_StatsAndList(t *testing.T) {
	svc, repo, _ := newJobService(t)
	ctx := context.Background()

	repo.EXPECT().Stats(gomock.Any()).Return(&model.JobStats{Queued: 2, Completed: 5}, nil)
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Queued)
	assert.Equal(t, 5, stats.Completed)

	repo.EXPECT().
		List(gomock.Any(), &model.JobListOptions{Status: model.JobStatusQueued}).
		Return([]*model.Job{sampleJob()}, nil)
	jobs, err := svc.List(ctx, &model.JobListOptions{Status: model.JobStatusQueued})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

func TestJobService_Health(t *testing.T) {
	svc, repo, queue := newJobService(t)
	ctx := context.Background()

	repo.EXPECT().Ping(gomock.Any()).Return(nil)
	queue.EXPECT().Ping(gomock.Any()).Return(nil)
	require.NoError(t, svc.Health(ctx))

	repo.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))
	err := svc.Health(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database ping")

	repo.EXPECT().Ping(gomock.Any()).Return(nil)
	queue.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))
	err = svc.Health(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue ping")
}
