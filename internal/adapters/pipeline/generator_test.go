package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidforge/vidforge/config"
	"github.com/vidforge/vidforge/internal/core"
	"github.com/vidforge/vidforge/internal/domain/model"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gen, err := NewGenerator(GeneratorOptions{
		Config: config.PipelineConfig{
			Endpoint:       srv.URL,
			RequestTimeout: 2 * time.Second,
			ModelDir:       "/models/mochi-1-preview",
		},
	})
	require.NoError(t, err)
	return gen
}

func sampleParams() core.GenerateParams {
	return core.GenerateParams{
		JobID:     "job-1",
		Prompt:    "a paper boat on a stream",
		Width:     848,
		Height:    480,
		FPS:       12,
		NumFrames: 48,
	}
}

func TestGenerator_Generate(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/generate", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "job-1", req["job_id"])
		assert.Equal(t, float64(848), req["width"])
		assert.Equal(t, float64(48), req["num_frames"])
		assert.Equal(t, "/models/mochi-1-preview", req["model_dir"])

		_ = json.NewEncoder(w).Encode(map[string]string{"frames_dir": "/tmp/frames/job-1"})
	})

	framesDir, err := gen.Generate(context.Background(), sampleParams())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/frames/job-1", framesDir)
}

func TestGenerator_Generate_FailureClasses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{
			name:   "oom by status",
			status: http.StatusInsufficientStorage,
			body:   `{"message":"CUDA out of memory"}`,
			want:   model.ErrOutOfMemory,
		},
		{
			name:   "oom by code",
			status: http.StatusInternalServerError,
			body:   `{"code":"out_of_memory","message":"allocator failed"}`,
			want:   model.ErrOutOfMemory,
		},
		{
			name:   "invalid prompt",
			status: http.StatusUnprocessableEntity,
			body:   `{"message":"prompt failed safety filter"}`,
			want:   model.ErrInvalidPrompt,
		},
		{
			name:   "timeout",
			status: http.StatusGatewayTimeout,
			body:   `{"message":"render deadline"}`,
			want:   model.ErrGenerationTimeout,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := newTestGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := gen.Generate(context.Background(), sampleParams())
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGenerator_Generate_UnclassifiedFailure(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream restarting"}`))
	})

	_, err := gen.Generate(context.Background(), sampleParams())
	require.Error(t, err)
	assert.False(t, model.IsTransientGeneration(err))
	assert.Contains(t, err.Error(), "upstream restarting")
}

func TestGenerator_Generate_ContextCancellation(t *testing.T) {
	started := make(chan struct{})
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can observe the
		// client disconnect and cancel the request context.
		_, _ = io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := gen.Generate(ctx, sampleParams())
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerator_Generate_EmptyFramesDir(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := gen.Generate(context.Background(), sampleParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no frames directory")
}

func TestGenerator_Reclaim(t *testing.T) {
	var called bool
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/reclaim", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, gen.Reclaim(context.Background()))
	assert.True(t, called)
}

func TestGenerator_Reclaim_Failure(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	require.Error(t, gen.Reclaim(context.Background()))
}

func TestGenerator_Ready(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, gen.Ready(context.Background()))
}

func TestGenerator_Ready_Unavailable(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := gen.Ready(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNewGenerator_RequiresEndpoint(t *testing.T) {
	_, err := NewGenerator(GeneratorOptions{Config: config.PipelineConfig{}})
	// The default endpoint comes from config parsing; an explicitly empty one
	// is a wiring bug.
	require.Error(t, err)
}
