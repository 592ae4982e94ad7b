// Package audiodev implements live audio devices on top of the ffmpeg and
// ffplay command line tools: ffmpeg captures the microphone as raw PCM16 on
// stdout and ffplay plays PCM16 written to its stdin.
package audiodev

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/live"
)

// DefaultProbeTimeout is how long OpenCapture waits for the first samples
// before assuming the microphone is slow rather than refused.
const DefaultProbeTimeout = 1500 * time.Millisecond

// Devices opens ffmpeg capture and ffplay playback processes.
type Devices struct {
	FFmpeg string
	FFplay string
	// InputDevice overrides the platform default capture device.
	InputDevice  string
	ProbeTimeout time.Duration
	// LockPath is an exclusive lock held while the microphone is captured, so
	// two sessions never read it at once. Empty disables locking.
	LockPath string
	Logger   *slog.Logger
}

var _ live.Devices = (*Devices)(nil)

// New returns Devices using the given binaries.
func New(ffmpeg, ffplay, inputDevice string, logger *slog.Logger) *Devices {
	if logger == nil {
		logger = slog.Default()
	}
	return &Devices{
		FFmpeg:       ffmpeg,
		FFplay:       ffplay,
		InputDevice:  inputDevice,
		ProbeTimeout: DefaultProbeTimeout,
		LockPath:     filepath.Join(os.TempDir(), "vai-studio-mic.lock"),
		Logger:       logger,
	}
}

func (d *Devices) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// OpenCapture implements live.Devices.
func (d *Devices) OpenCapture(ctx context.Context, sampleRate int) (live.Capture, error) {
	path, err := lookPath(d.FFmpeg, "ffmpeg")
	if err != nil {
		return nil, err
	}
	args, err := captureArgs(goos, d.InputDevice, sampleRate)
	if err != nil {
		return nil, err
	}
	probe := d.ProbeTimeout
	if probe <= 0 {
		probe = DefaultProbeTimeout
	}

	lock, err := acquireMicLock(d.LockPath)
	if err != nil {
		return nil, err
	}
	c, err := startCapture(ctx, path, args, probe, d.logger())
	if err != nil {
		releaseMicLock(lock)
		return nil, err
	}
	c.lock = lock
	return c, nil
}

func acquireMicLock(path string) (*flock.Flock, error) {
	if path == "" {
		return nil, nil
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, core.NewCapabilityUnavailableError(fmt.Sprintf("acquire microphone lock %s", path), err)
	}
	if !ok {
		return nil, core.NewPermissionDeniedError("microphone is in use by another live session", nil)
	}
	return lock, nil
}

func releaseMicLock(lock *flock.Flock) {
	if lock != nil {
		_ = lock.Unlock()
	}
}

// OpenPlayback implements live.Devices.
func (d *Devices) OpenPlayback(ctx context.Context, sampleRate int) (live.Playback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := lookPath(d.FFplay, "ffplay")
	if err != nil {
		return nil, err
	}
	sink := newFFplaySink(path, playbackArgs(sampleRate), d.logger())
	if err := sink.Restart(); err != nil {
		return nil, core.NewCapabilityUnavailableError("start audio output", err)
	}
	return newPlayback(sink, d.logger()), nil
}

func lookPath(bin, fallback string) (string, error) {
	if bin == "" {
		bin = fallback
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", core.NewCapabilityUnavailableError(fallback+" was not found; install it or set its path in the config", err)
	}
	return path, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf.Bytes()))
}
