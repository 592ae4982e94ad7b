package audiodev

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
)

var goos = runtime.GOOS

// captureArgs builds the ffmpeg arguments that write mono PCM16 at sampleRate
// to stdout.
func captureArgs(osName, device string, sampleRate int) ([]string, error) {
	if sampleRate <= 0 {
		return nil, core.NewInvalidRequestError(fmt.Sprintf("capture sample rate must be > 0, got %d", sampleRate))
	}
	var input []string
	switch osName {
	case "darwin":
		if device == "" {
			device = "0"
		}
		// none:<index> avoids opening a camera.
		input = []string{"-f", "avfoundation", "-i", "none:" + device}
	case "linux":
		if device == "" {
			device = "default"
		}
		input = []string{"-f", "pulse", "-i", device}
	case "windows":
		if device == "" {
			return nil, core.NewCapabilityUnavailableError("set audio.input_device to a dshow microphone name", nil)
		}
		input = []string{"-f", "dshow", "-i", "audio=" + device}
	default:
		return nil, core.NewCapabilityUnavailableError("microphone capture is not supported on "+osName, nil)
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, input...)
	args = append(args,
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"-",
	)
	return args, nil
}

type capture struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	stderr *tailBuffer
	logger *slog.Logger
	lock   *flock.Flock

	readMu  sync.Mutex
	raw     []byte
	closeMu sync.Once
}

func startCapture(ctx context.Context, path string, args []string, probe time.Duration, logger *slog.Logger) (*capture, error) {
	cmd := exec.Command(path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, core.NewCapabilityUnavailableError("open microphone pipe", err)
	}
	stderr := &tailBuffer{max: 2048}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, core.NewCapabilityUnavailableError("start microphone capture", err)
	}
	logger.Debug("microphone capture started", "pid", cmd.Process.Pid, "path", path)

	c := &capture{
		cmd:    cmd,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, 64*1024),
		stderr: stderr,
		logger: logger,
	}

	// A refused microphone makes ffmpeg exit before producing any audio.
	peeked := make(chan error, 1)
	go func() {
		_, err := c.reader.Peek(audio.BytesPerSample)
		peeked <- err
	}()

	timer := time.NewTimer(probe)
	defer timer.Stop()
	select {
	case err := <-peeked:
		if err != nil {
			waitErr := cmd.Wait()
			msg := stderr.String()
			if msg == "" && waitErr != nil {
				msg = waitErr.Error()
			}
			return nil, core.NewPermissionDeniedError("microphone unavailable: "+msg, errors.Join(err, waitErr))
		}
	case <-timer.C:
		logger.Debug("microphone slow to start; continuing")
	case <-ctx.Done():
		_ = c.Close()
		return nil, ctx.Err()
	}

	return c, nil
}

// Read blocks until len(dst) samples were read or the capture ended. A short
// final block is returned without error; the next call returns io.EOF.
func (c *capture) Read(dst []float32) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	need := len(dst) * audio.BytesPerSample
	if cap(c.raw) < need {
		c.raw = make([]byte, need)
	}
	raw := c.raw[:need]
	n, err := io.ReadFull(c.reader, raw)
	samples := pcm16ToFloat(dst, raw[:n-n%audio.BytesPerSample])
	switch {
	case err == nil:
		return samples, nil
	case errors.Is(err, io.ErrUnexpectedEOF) && samples > 0:
		return samples, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return 0, io.EOF
	default:
		return samples, err
	}
}

// Close stops ffmpeg and releases the microphone.
func (c *capture) Close() error {
	c.closeMu.Do(func() {
		_ = c.stdout.Close()
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		_ = c.cmd.Wait()
		releaseMicLock(c.lock)
		c.logger.Debug("microphone capture stopped")
	})
	return nil
}

// pcm16ToFloat decodes little-endian PCM16 into dst and returns the number of
// samples written.
func pcm16ToFloat(dst []float32, raw []byte) int {
	n := len(raw) / audio.BytesPerSample
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		dst[i] = float32(v) / 32768
	}
	return n
}
