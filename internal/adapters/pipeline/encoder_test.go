package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFFmpeg writes a shell script standing in for the ffmpeg binary.
func fakeFFmpeg(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg script requires a unix shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestFFmpegEncoder_Encode(t *testing.T) {
	enc := NewFFmpegEncoder(EncoderOptions{FFmpegPath: fakeFFmpeg(t, "exit 0")})

	err := enc.Encode(context.Background(), "/tmp/frames", "/tmp/out.mp4", 12)
	require.NoError(t, err)
}

func TestFFmpegEncoder_Encode_RejectsBadFPS(t *testing.T) {
	enc := NewFFmpegEncoder(EncoderOptions{FFmpegPath: "ffmpeg"})

	err := enc.Encode(context.Background(), "/tmp/frames", "/tmp/out.mp4", 0)
	require.Error(t, err)
}

func TestFFmpegEncoder_Encode_SurfacesStderr(t *testing.T) {
	enc := NewFFmpegEncoder(EncoderOptions{
		FFmpegPath: fakeFFmpeg(t, `echo "No such file or directory" >&2; exit 1`),
	})

	err := enc.Encode(context.Background(), "/tmp/frames", "/tmp/out.mp4", 12)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such file or directory")
}

func TestFFmpegEncoder_Encode_ContextCancellation(t *testing.T) {
	enc := NewFFmpegEncoder(EncoderOptions{FFmpegPath: fakeFFmpeg(t, "sleep 10")})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := enc.Encode(ctx, "/tmp/frames", "/tmp/out.mp4", 12)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewFFmpegEncoder_DefaultsPath(t *testing.T) {
	enc := NewFFmpegEncoder(EncoderOptions{})
	assert.Equal(t, "ffmpeg", enc.path)
}
