package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// MergeStrategy turns an ordered list of chunk files into one artifact.
// The reconciler tries strategies in order and stops at the first success.
type MergeStrategy interface {
	Name() string
	Merge(ctx context.Context, inputs []string, output string) error
}

const defaultFFmpegTimeout = 2 * time.Minute

// FFmpegStrategy concatenates containers with the ffmpeg concat demuxer,
// copying streams without re-encoding.
type FFmpegStrategy struct {
	binary  string
	timeout time.Duration
	log     zerolog.Logger
}

func NewFFmpegStrategy(binary string, timeout time.Duration, log zerolog.Logger) *FFmpegStrategy {
	if binary == "" {
		binary = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = defaultFFmpegTimeout
	}
	return &FFmpegStrategy{
		binary:  binary,
		timeout: timeout,
		log:     log.With().Str("component", "ffmpeg").Logger(),
	}
}

func (s *FFmpegStrategy) Name() string { return "ffmpeg-concat" }

func (s *FFmpegStrategy) Merge(ctx context.Context, inputs []string, output string) error {
	list, err := os.CreateTemp("", "chunks_*.txt")
	if err != nil {
		return fmt.Errorf("create chunk list: %w", err)
	}
	defer os.Remove(list.Name())

	var buf bytes.Buffer
	for _, in := range inputs {
		fmt.Fprintf(&buf, "file '%s'\n", filepath.ToSlash(in))
	}
	if _, err := list.Write(buf.Bytes()); err != nil {
		list.Close()
		return fmt.Errorf("write chunk list: %w", err)
	}
	if err := list.Close(); err != nil {
		return err
	}

	// The timeout bounds the external process; on expiry the process is
	// killed and the reconciler moves on to the next strategy.
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.binary,
		"-f", "concat",
		"-safe", "0",
		"-i", list.Name(),
		"-c", "copy",
		"-y", output,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		s.log.Warn().Err(err).Str("stderr", tail(stderr.String(), 512)).Msg("ffmpeg merge failed")
		return fmt.Errorf("ffmpeg: %w", err)
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("ffmpeg produced empty output")
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// ConcatStrategy is the tool-free fallback: raw sequential byte
// concatenation. Container-level concatenation keeps webm decodable.
type ConcatStrategy struct {
	log zerolog.Logger
}

func NewConcatStrategy(log zerolog.Logger) *ConcatStrategy {
	return &ConcatStrategy{log: log.With().Str("component", "concat").Logger()}
}

func (s *ConcatStrategy) Name() string { return "byte-concat" }

func (s *ConcatStrategy) Merge(ctx context.Context, inputs []string, output string) error {
	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := os.Open(in)
		if os.IsNotExist(err) {
			s.log.Warn().Str("chunk", in).Msg("chunk file missing, skipping")
			continue
		}
		if err != nil {
			return err
		}
		_, err = io.Copy(out, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("append %s: %w", in, err)
		}
	}
	return out.Sync()
}
