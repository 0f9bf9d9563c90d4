package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vidforge/vidforge/internal/data"
	"github.com/vidforge/vidforge/internal/domain/model"
	"github.com/vidforge/vidforge/internal/mocks"
	"github.com/vidforge/vidforge/internal/service"
	"github.com/vidforge/vidforge/internal/testutil"
)

type handlerFixture struct {
	handler http.Handler
	repo    *mocks.MockJobRepository
	queue   *mocks.MockWorkQueue
}

func newHandlerFixture(t *testing.T) handlerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	queue := mocks.NewMockWorkQueue(ctrl)

	svc := service.MustNewJobService(service.JobServiceOptions{Repo: repo, Queue: queue})
	return handlerFixture{
		handler: NewRouter(RouterServices{Jobs: svc}),
		repo:    repo,
		queue:   queue,
	}
}

func storedJob() *model.Job {
	return &model.Job{
		ID:          "b9c1fe0e-0000-4000-8000-000000000002",
		Prompt:      "a fox running through snow",
		Duration:    5,
		FPS:         12,
		Resolution:  model.Resolution720p,
		Status:      model.JobStatusQueued,
		MaxAttempts: 3,
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSubmitJob(t *testing.T) {
	fx := newHandlerFixture(t)
	job := storedJob()

	fx.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
	fx.queue.EXPECT().Push(gomock.Any(), job.ID).Return(nil)

	body := `{"prompt":"a fox running through snow","duration":5,"fps":12,"resolution":"720p"}`
	req := httptest.NewRequest(http.MethodPost, "/generate-video", strings.NewReader(body))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, job.ID, resp["job_id"])
	assert.Equal(t, "queued", resp["status"])
}

func TestSubmitJob_ValidationError(t *testing.T) {
	fx := newHandlerFixture(t)

	fx.repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		Return(nil, &model.ValidationError{Field: "fps", Message: "must be between 1 and 24"})

	body := `{"prompt":"x","duration":5,"fps":60,"resolution":"720p"}`
	req := httptest.NewRequest(http.MethodPost, "/generate-video", strings.NewReader(body))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
	assert.Contains(t, rec.Body.String(), "fps")
}

func TestSubmitJob_MalformedBody(t *testing.T) {
	fx := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/generate-video", strings.NewReader(`{"prompt":`))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_json")
}

func TestSubmitJob_OversizedBody(t *testing.T) {
	fx := newHandlerFixture(t)

	huge := `{"prompt":"` + strings.Repeat("a", 80*1024) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/generate-video", strings.NewReader(huge))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "request_too_large")
}

func TestGetJob(t *testing.T) {
	fx := newHandlerFixture(t)
	job := storedJob()

	fx.repo.EXPECT().GetByID(gomock.Any(), job.ID).Return(job, nil)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID, nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, model.JobStatusQueued, got.Status)
}

func TestGetJob_NotFound(t *testing.T) {
	fx := newHandlerFixture(t)

	fx.repo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, data.ErrJobNotFound)

	req := httptest.NewRequest(http.MethodGet, "/jobs/missing", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "job_not_found")
}

func TestListJobs(t *testing.T) {
	fx := newHandlerFixture(t)

	fx.repo.EXPECT().
		List(gomock.Any(), &model.JobListOptions{Status: model.JobStatusCompleted, Limit: 10, Offset: 0}).
		Return([]*model.Job{storedJob()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/jobs?status=completed&limit=10", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs []*model.Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 1)
}

func TestListJobs_InvalidStatus(t *testing.T) {
	fx := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs?status=exploded", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_status")
}

func TestGetResult(t *testing.T) {
	fx := newHandlerFixture(t)
	job := storedJob()
	job.Status = model.JobStatusCompleted
	job.ResultPath = testutil.StringPtr("/data/outputs/" + job.ID + ".mp4")

	fx.repo.EXPECT().GetByID(gomock.Any(), job.ID).Return(job, nil)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID+"/result", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, *job.ResultPath, resp["result_path"])
}

func TestGetResult_NotReady(t *testing.T) {
	fx := newHandlerFixture(t)
	job := storedJob()
	job.Status = model.JobStatusProcessing

	fx.repo.EXPECT().GetByID(gomock.Any(), job.ID).Return(job, nil)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID+"/result", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "result_not_ready")
}

func TestGetResult_FailedJob(t *testing.T) {
	fx := newHandlerFixture(t)
	job := storedJob()
	job.Status = model.JobStatusFailed
	job.ErrorMessage = testutil.StringPtr("max retries exceeded: device out of memory")

	fx.repo.EXPECT().GetByID(gomock.Any(), job.ID).Return(job, nil)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID+"/result", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "job_failed")
	assert.Contains(t, rec.Body.String(), "max retries exceeded")
}

func TestStats(t *testing.T) {
	fx := newHandlerFixture(t)

	fx.repo.EXPECT().Stats(gomock.Any()).Return(&model.JobStats{Queued: 4, Processing: 1}, nil)
	fx.queue.EXPECT().Depth(gomock.Any()).Return(int64(4), nil)
	fx.queue.EXPECT().LiveWorkers(gomock.Any()).Return(2, nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs        model.JobStats `json:"jobs"`
		QueueDepth  int64          `json:"queue_depth"`
		LiveWorkers int            `json:"live_workers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Jobs.Queued)
	assert.Equal(t, int64(4), resp.QueueDepth)
	assert.Equal(t, 2, resp.LiveWorkers)
}

func TestStats_RepoError(t *testing.T) {
	fx := newHandlerFixture(t)

	fx.repo.EXPECT().Stats(gomock.Any()).Return(nil, errors.New("db down"))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
