package config

import "time"

// WorkerConfig contains generation worker configuration.
type WorkerConfig struct {
	// Concurrency is the number of worker goroutines pulling from the queue.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"2"`

	// MaxAttempts is the attempt budget stamped onto new jobs.
	MaxAttempts int `env:"WORKER_MAX_ATTEMPTS" envDefault:"3"`

	// VisibilityTimeout is the lease granted when a worker claims a job. A
	// job whose lease lapses without an outcome is considered abandoned.
	VisibilityTimeout time.Duration `env:"WORKER_VISIBILITY_TIMEOUT" envDefault:"10m"`

	// PopTimeout is how long a blocking queue pop waits before re-checking
	// for shutdown.
	PopTimeout time.Duration `env:"WORKER_POP_TIMEOUT" envDefault:"5s"`

	// GenerationTimeout bounds one generation call end to end.
	GenerationTimeout time.Duration `env:"WORKER_GENERATION_TIMEOUT" envDefault:"8m"`

	// RetryBackoffBase is the backoff before the second attempt; it doubles
	// per subsequent attempt up to RetryBackoffCeiling.
	RetryBackoffBase    time.Duration `env:"WORKER_RETRY_BACKOFF_BASE"    envDefault:"30s"`
	RetryBackoffCeiling time.Duration `env:"WORKER_RETRY_BACKOFF_CEILING" envDefault:"10m"`

	// HeartbeatInterval is how often a busy worker extends its lease and
	// refreshes its liveness key.
	HeartbeatInterval time.Duration `env:"WORKER_HEARTBEAT_INTERVAL" envDefault:"30s"`

	// OutputDir is where encoded videos are written.
	OutputDir string `env:"OUTPUT_DIR" envDefault:"/data/outputs"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.MaxAttempts < 1 {
		w.MaxAttempts = 1
	}
	if w.VisibilityTimeout < time.Minute {
		w.VisibilityTimeout = time.Minute
	}
	if w.PopTimeout <= 0 {
		w.PopTimeout = 5 * time.Second
	}
	if w.GenerationTimeout <= 0 {
		w.GenerationTimeout = 8 * time.Minute
	}
	if w.RetryBackoffBase <= 0 {
		w.RetryBackoffBase = 30 * time.Second
	}
	if w.RetryBackoffCeiling < w.RetryBackoffBase {
		w.RetryBackoffCeiling = w.RetryBackoffBase
	}
	if w.HeartbeatInterval <= 0 {
		w.HeartbeatInterval = 30 * time.Second
	}
}

// SweeperConfig contains lease sweeper configuration.
type SweeperConfig struct {
	// Interval is the sweep tick interval.
	Interval time.Duration `env:"SWEEPER_INTERVAL" envDefault:"30s"`
}

// Sanitize applies guardrails to sweeper configuration values.
func (s *SweeperConfig) Sanitize() {
	if s.Interval < time.Second {
		s.Interval = time.Second
	}
}

// PipelineConfig contains configuration for the inference pipeline sidecar
// and the video encoder.
type PipelineConfig struct {
	// Endpoint is the base URL of the pipeline sidecar.
	Endpoint string `env:"PIPELINE_ENDPOINT" envDefault:"http://localhost:9090"`

	// RequestTimeout bounds individual sidecar HTTP calls other than
	// generation itself, which uses the worker's generation timeout.
	RequestTimeout time.Duration `env:"PIPELINE_REQUEST_TIMEOUT" envDefault:"30s"`

	// ModelDir is passed through to the sidecar for model weight lookup.
	ModelDir string `env:"MODEL_DIR" envDefault:"/models/mochi-1-preview"`

	// FFmpegPath locates the encoder binary.
	FFmpegPath string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
}

// Sanitize applies guardrails to pipeline configuration values.
func (p *PipelineConfig) Sanitize() {
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = 30 * time.Second
	}
	if p.FFmpegPath == "" {
		p.FFmpegPath = "ffmpeg"
	}
}

// DeviceConfig contains device memory guard configuration.
type DeviceConfig struct {
	// BudgetMB is the device memory available to one worker process.
	BudgetMB int `env:"DEVICE_BUDGET_MB" envDefault:"48000"`

	// AggressiveReclaim forces a memory reclaim after successful generations
	// too, not only after failures.
	AggressiveReclaim bool `env:"DEVICE_AGGRESSIVE_RECLAIM" envDefault:"false"`
}

// Sanitize applies guardrails to device configuration values.
func (d *DeviceConfig) Sanitize() {
	if d.BudgetMB < 1024 {
		d.BudgetMB = 1024
	}
}
