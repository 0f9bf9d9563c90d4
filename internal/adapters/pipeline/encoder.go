package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
)

const maxStderrBytes = 4 * 1024

// EncoderOptions configures the ffmpeg encoder.
type EncoderOptions struct {
	FFmpegPath string // defaults to "ffmpeg" on PATH
	Logger     *slog.Logger
}

// FFmpegEncoder shells out to ffmpeg to assemble rendered frames into an
// H.264 mp4. Frames are expected as frame_%05d.png in the frames directory,
// which is what the sidecar writes.
type FFmpegEncoder struct {
	path   string
	logger *slog.Logger
}

// NewFFmpegEncoder constructs an ffmpeg-backed encoder.
func NewFFmpegEncoder(opts EncoderOptions) *FFmpegEncoder {
	path := opts.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegEncoder{
		path:   path,
		logger: logger.With("component", "ffmpeg_encoder"),
	}
}

// Encode runs ffmpeg over the frames directory. The context bounds the
// subprocess; cancellation kills it.
func (e *FFmpegEncoder) Encode(ctx context.Context, framesDir, outputPath string, fps int) error {
	if fps <= 0 {
		return fmt.Errorf("fps must be positive, got %d", fps)
	}

	args := []string{
		"-y",
		"-framerate", strconv.Itoa(fps),
		"-i", filepath.Join(framesDir, "frame_%05d.png"),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, e.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.logger.DebugContext(ctx, "encoding video", "frames_dir", framesDir, "output", outputPath, "fps", fps)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, truncateStderr(stderr.Bytes()))
	}
	return nil
}

func truncateStderr(b []byte) string {
	if len(b) > maxStderrBytes {
		b = b[len(b)-maxStderrBytes:]
	}
	s := string(bytes.TrimSpace(b))
	if s == "" {
		return "no stderr output"
	}
	return s
}
