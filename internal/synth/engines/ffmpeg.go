package engines

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dictation-buddy/internal/audio"
)

// maxDecodedSize bounds ffmpeg output for a single clip.
const maxDecodedSize = 64 * 1024 * 1024

// ffmpegDecoder converts compressed audio files to raw PCM.
type ffmpegDecoder struct {
	binary  string
	timeout time.Duration
}

// decode runs ffmpeg on path and returns signed 16-bit little-endian PCM in
// format f.
func (d ffmpegDecoder) decode(ctx context.Context, path string, f audio.Format) ([]byte, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "s16le",
		"-ar", strconv.Itoa(f.SampleRate),
		"-ac", strconv.Itoa(f.Channels),
		"-",
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// not CommandContext: the process gets an interrupt before a kill
	cmd := exec.Command(d.binary, args...) //nolint:gosec

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
		}
	case <-ctx.Done():
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
			log.Debug("ffmpeg ignored interrupt, killing", "pid", cmd.Process.Pid)
			_ = cmd.Process.Kill()
			<-done
		}
		return nil, fmt.Errorf("ffmpeg conversion stopped: %w", ctx.Err())
	}

	pcm := stdout.Bytes()
	if len(pcm) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no PCM output, stderr: %s", stderr.String())
	}
	if len(pcm) > maxDecodedSize {
		return nil, fmt.Errorf("ffmpeg PCM output too large: %d bytes (max %d)", len(pcm), maxDecodedSize)
	}
	// ffmpeg may stop mid-frame on truncated input
	return pcm[:len(pcm)-len(pcm)%f.BytesPerFrame()], nil
}
