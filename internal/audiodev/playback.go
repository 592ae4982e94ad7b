package audiodev

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/live"
)

// playbackArgs builds the ffplay arguments that read mono PCM16 at sampleRate
// from stdin without opening a window.
func playbackArgs(sampleRate int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-nodisp",
		"-f", "s16le",
		// ffplay does not accept -ac; use -ch_layout.
		"-ch_layout", "mono",
		"-ar", strconv.Itoa(sampleRate),
		"-i", "-",
	}
}

// sink is a restartable PCM16 output stream. Restart discards anything
// already queued in the output.
type sink interface {
	Write(p []byte) error
	Restart() error
	Close() error
}

type ffplaySink struct {
	path   string
	args   []string
	logger *slog.Logger

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func newFFplaySink(path string, args []string, logger *slog.Logger) *ffplaySink {
	return &ffplaySink{path: path, args: args, logger: logger}
}

func (s *ffplaySink) Write(p []byte) error {
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()
	if stdin == nil {
		return errors.New("ffplay is not running")
	}
	_, err := stdin.Write(p)
	return err
}

func (s *ffplaySink) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()

	cmd := exec.Command(s.path, s.args...)
	if runtime.GOOS == "darwin" && os.Getenv("SDL_AUDIODRIVER") == "" {
		// SDL can otherwise pick a silent dummy backend.
		cmd.Env = append(os.Environ(), "SDL_AUDIODRIVER=coreaudio")
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = &tailBuffer{max: 2048}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return err
	}
	s.logger.Debug("ffplay started", "pid", cmd.Process.Pid)
	s.cmd = cmd
	s.stdin = stdin
	go func(c *exec.Cmd) {
		_ = c.Wait()
		s.mu.Lock()
		if s.cmd == c {
			s.cmd = nil
			s.stdin = nil
		}
		s.mu.Unlock()
	}(cmd)
	return nil
}

func (s *ffplaySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *ffplaySink) closeLocked() {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.cmd = nil
	s.stdin = nil
}

// playback implements live.Playback. Its clock starts when it is opened;
// scheduled buffers are written to the sink when their start time arrives.
type playback struct {
	sink   sink
	start  time.Time
	logger *slog.Logger

	mu     sync.Mutex
	gen    uint64
	closed bool
}

func newPlayback(s sink, logger *slog.Logger) *playback {
	return &playback{sink: s, start: time.Now(), logger: logger}
}

func (p *playback) Now() time.Duration {
	return time.Since(p.start)
}

func (p *playback) Schedule(buf *audio.Buffer, at time.Duration) (live.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("playback closed")
	}

	h := &handle{p: p, done: make(chan struct{}), pcm: buf.PCM16()}
	startIn := at - p.Now()
	if startIn < 0 {
		startIn = 0
	}
	endIn := startIn + buf.Duration()
	h.startTimer = time.AfterFunc(startIn, h.write)
	h.endTimer = time.AfterFunc(endIn, h.finish)
	return h, nil
}

func (p *playback) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.sink.Close()
}

// flush discards queued output once per generation of written handles.
func (p *playback) flush(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || gen != p.gen {
		return
	}
	p.gen++
	if err := p.sink.Restart(); err != nil {
		p.logger.Warn("restart audio output", "err", err)
	}
}

type handle struct {
	p          *playback
	pcm        []byte
	startTimer *time.Timer
	endTimer   *time.Timer

	mu       sync.Mutex
	written  bool
	gen      uint64
	finished bool
	done     chan struct{}
}

func (h *handle) write() {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return
	}
	h.written = true
	h.p.mu.Lock()
	h.gen = h.p.gen
	h.p.mu.Unlock()
	h.mu.Unlock()

	if err := h.p.sink.Write(h.pcm); err != nil {
		h.p.logger.Debug("write audio output", "err", err)
	}
}

func (h *handle) finish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.finished {
		h.finished = true
		close(h.done)
	}
}

func (h *handle) Stop() {
	h.startTimer.Stop()
	h.endTimer.Stop()

	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return
	}
	h.finished = true
	close(h.done)
	written, gen := h.written, h.gen
	h.mu.Unlock()

	if written {
		h.p.flush(gen)
	}
}

func (h *handle) Done() <-chan struct{} {
	return h.done
}
