// Package transcode converts raw uploaded recordings to the canonical codec
// via an external ffmpeg binary.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Transcoder invokes ffmpeg with fixed AAC parameters to produce the
// canonical .m4a form of a recording, and ffprobe to measure its duration.
type Transcoder struct {
	FFmpegPath  string
	FFprobePath string
	logger      *zap.Logger
}

// New creates a Transcoder. Empty paths fall back to binaries on PATH.
func New(ffmpegPath, ffprobePath string, logger *zap.Logger) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transcoder{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, logger: logger}
}

// Transcode converts the file at inputPath to .m4a next to it, removes the
// input on success, and returns the output path with the measured duration
// in seconds. A non-zero ffmpeg exit is a terminal conversion failure; any
// partial output file is cleaned up.
//
// The output name carries an _enc suffix so it never collides with the
// input: recordings uploaded as .m4a, and retries of recordings whose blob
// was already swapped, re-encode instead of overwriting themselves.
func (t *Transcoder) Transcode(ctx context.Context, inputPath string) (string, int, error) {
	outputPath := strings.TrimSuffix(inputPath, ext(inputPath)) + "_enc.m4a"

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.FFmpegPath,
		"-y", "-i", inputPath,
		"-acodec", "aac",
		"-b:a", "192k",
		outputPath,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return "", 0, fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.String()))
	}
	os.Remove(inputPath)

	duration, err := t.probeDuration(ctx, outputPath)
	if err != nil {
		os.Remove(outputPath)
		return "", 0, err
	}

	t.logger.Debug("transcoded recording",
		zap.String("output", outputPath),
		zap.Int("duration_sec", duration),
	)
	return outputPath, duration, nil
}

// probeDuration returns the rounded duration of the encoded file in seconds.
func (t *Transcoder) probeDuration(ctx context.Context, path string) (int, error) {
	out, err := exec.CommandContext(ctx, t.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return int(math.Round(seconds)), nil
}

func ext(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 && !strings.Contains(path[i:], "/") {
		return path[i:]
	}
	return ""
}

// tail keeps the last few lines of ffmpeg's stderr for the error message.
func tail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return strings.Join(lines, " | ")
}
