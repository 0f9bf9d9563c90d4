// Package pipeline adapts the external inference sidecar and the ffmpeg
// encoder onto the generation interfaces.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vidforge/vidforge/config"
	"github.com/vidforge/vidforge/internal/core"
	"github.com/vidforge/vidforge/internal/domain/model"
)

const maxErrorBodyBytes = 4 * 1024

// GeneratorOptions configures the sidecar client.
type GeneratorOptions struct {
	Config     config.PipelineConfig
	Logger     *slog.Logger
	HTTPClient *http.Client // Optional: a client without a timeout is used so generation contexts govern
}

// Generator calls the inference sidecar over HTTP to render frames. The
// sidecar loads the model weights once and keeps them resident; one request
// renders all frames for one job.
type Generator struct {
	endpoint       string
	modelDir       string
	requestTimeout time.Duration
	http           *http.Client
	logger         *slog.Logger
}

// NewGenerator constructs a sidecar-backed frame generator.
func NewGenerator(opts GeneratorOptions) (*Generator, error) {
	opts.Config.Sanitize()
	if opts.Config.Endpoint == "" {
		return nil, errors.New("pipeline endpoint is required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		// No client-level timeout: generation is bounded by the caller's
		// context, and short calls get a per-request timeout.
		hc = &http.Client{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		endpoint:       strings.TrimRight(opts.Config.Endpoint, "/"),
		modelDir:       opts.Config.ModelDir,
		requestTimeout: opts.Config.RequestTimeout,
		http:           hc,
		logger:         logger.With("component", "pipeline_generator"),
	}, nil
}

type generateRequest struct {
	JobID     string `json:"job_id"`
	Prompt    string `json:"prompt"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FPS       int    `json:"fps"`
	NumFrames int    `json:"num_frames"`
	ModelDir  string `json:"model_dir,omitempty"`
}

type generateResponse struct {
	FramesDir string `json:"frames_dir"`
}

type sidecarError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Generate renders frames for one job. Sidecar failures are mapped onto the
// model sentinels so callers can pick a retry policy.
func (g *Generator) Generate(ctx context.Context, params core.GenerateParams) (string, error) {
	body, err := json.Marshal(generateRequest{
		JobID:     params.JobID,
		Prompt:    params.Prompt,
		Width:     params.Width,
		Height:    params.Height,
		FPS:       params.FPS,
		NumFrames: params.NumFrames,
		ModelDir:  g.modelDir,
	})
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("call pipeline: %w", err)
	}
	defer closeBody(resp.Body, g.logger)

	if resp.StatusCode != http.StatusOK {
		return "", g.classifyFailure(resp)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if out.FramesDir == "" {
		return "", errors.New("pipeline returned no frames directory")
	}
	return out.FramesDir, nil
}

// classifyFailure maps a non-200 sidecar response onto a model sentinel.
// Status codes carry the class; the body's error code is a fallback for
// sidecars that always answer 500.
func (g *Generator) classifyFailure(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var serr sidecarError
	_ = json.Unmarshal(raw, &serr)

	switch {
	case resp.StatusCode == http.StatusInsufficientStorage,
		serr.Code == "out_of_memory":
		return fmt.Errorf("pipeline status %d: %w", resp.StatusCode, model.ErrOutOfMemory)
	case resp.StatusCode == http.StatusUnprocessableEntity,
		serr.Code == "invalid_prompt":
		return fmt.Errorf("pipeline status %d: %w", resp.StatusCode, model.ErrInvalidPrompt)
	case resp.StatusCode == http.StatusGatewayTimeout,
		serr.Code == "timeout":
		return fmt.Errorf("pipeline status %d: %w", resp.StatusCode, model.ErrGenerationTimeout)
	}

	msg := serr.Message
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = "no error detail"
	}
	return fmt.Errorf("pipeline status %d: %s", resp.StatusCode, msg)
}

// Ready probes the sidecar's health endpoint. Used as a startup preflight so
// a worker does not sit in its loop against a sidecar that never loaded its
// model.
func (g *Generator) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("call pipeline health: %w", err)
	}
	defer closeBody(resp.Body, g.logger)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pipeline health status %d", resp.StatusCode)
	}
	return nil
}

// Reclaim asks the sidecar to drop cached device memory.
func (g *Generator) Reclaim(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/reclaim", nil)
	if err != nil {
		return fmt.Errorf("build reclaim request: %w", err)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("call pipeline reclaim: %w", err)
	}
	defer closeBody(resp.Body, g.logger)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("pipeline reclaim status %d", resp.StatusCode)
	}
	return nil
}

func closeBody(body io.ReadCloser, logger *slog.Logger) {
	if _, err := io.Copy(io.Discard, body); err != nil && logger != nil {
		logger.Debug("drain response body failed", "error", err)
	}
	if err := body.Close(); err != nil && logger != nil {
		logger.Debug("close response body failed", "error", err)
	}
}
