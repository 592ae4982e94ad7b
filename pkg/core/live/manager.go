package live

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// DefaultBlockSize is the number of samples per captured frame.
const DefaultBlockSize = 4096

// Config configures the sessions started by a Manager.
type Config struct {
	Voice            string
	System           string
	InputSampleRate  int
	OutputSampleRate int
	BlockSize        int
}

func (c Config) withDefaults() Config {
	if c.InputSampleRate <= 0 {
		c.InputSampleRate = audio.InputSampleRate
	}
	if c.OutputSampleRate <= 0 {
		c.OutputSampleRate = audio.OutputSampleRate
	}
	if c.BlockSize <= 0 {
		c.BlockSize = DefaultBlockSize
	}
	return c
}

// Callbacks receive session notifications. Nil fields are skipped. Callbacks
// run on the manager's goroutines and must not call Start or Stop
// synchronously.
type Callbacks struct {
	OnTranscript   func(partial types.TranscriptTurn)
	OnTurnComplete func(turn types.TranscriptTurn)
	OnError        func(reason string)
	OnStateChange  func(state types.LiveState)
	OnInputLevel   func(rms float64)
	OnInterrupted  func(discarded int)
	// OnModelAudio receives each decoded model audio chunk as PCM16 mono.
	OnModelAudio func(pcm []byte, sampleRate int)
}

// Manager owns the single live session of a client.
type Manager struct {
	connector core.LiveConnector
	devices   Devices
	config    Config
	callbacks Callbacks
	logger    *slog.Logger

	// startMu serializes Start and Stop.
	startMu sync.Mutex

	mu      sync.Mutex
	state   types.LiveState
	sess    *session
	pending types.TranscriptTurn
	history []types.TranscriptTurn
}

// session holds the resources of one Start..Stop span. Every field may be nil
// when initialization failed part way.
type session struct {
	id        string
	capture   Capture
	playback  Playback
	transport core.LiveTransport
	scheduler *Scheduler
	cancel    context.CancelFunc
	group     *errgroup.Group
}

// NewManager creates an idle manager.
func NewManager(connector core.LiveConnector, devices Devices, cfg Config, cb Callbacks, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		connector: connector,
		devices:   devices,
		config:    cfg.withDefaults(),
		callbacks: cb,
		logger:    logger,
		state:     types.LiveIdle,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() types.LiveState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending returns the partial transcripts of the turn in progress.
func (m *Manager) Pending() types.TranscriptTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// History returns the completed turns of the current or last session.
func (m *Manager) History() []types.TranscriptTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.TranscriptTurn, len(m.history))
	copy(out, m.history)
	return out
}

// Start opens a new session, stopping any existing one first. It returns once
// the devices are open and the transport is connected; capture begins when
// the service acknowledges the session.
func (m *Manager) Start(ctx context.Context) error {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	if m.State() != types.LiveIdle {
		m.stop(nil)
	}
	if m.connector == nil || m.devices == nil {
		return core.NewCapabilityUnavailableError("live audio is not configured", nil)
	}

	s := &session{id: uuid.NewString()}
	m.mu.Lock()
	m.sess = s
	m.pending = types.TranscriptTurn{}
	m.history = nil
	m.mu.Unlock()
	m.setState(types.LiveConnecting)
	log := m.logger.With("session_id", s.id)

	fail := func(msg string, err error) error {
		log.Error(msg, "err", err)
		m.stop(s)
		return err
	}

	var err error
	if s.capture, err = m.devices.OpenCapture(ctx, m.config.InputSampleRate); err != nil {
		return fail("open microphone failed", err)
	}
	if s.playback, err = m.devices.OpenPlayback(ctx, m.config.OutputSampleRate); err != nil {
		return fail("open playback failed", err)
	}
	s.scheduler = NewScheduler(s.playback)

	s.transport, err = m.connector.ConnectLive(ctx, core.LiveConfig{
		Voice:            m.config.Voice,
		System:           m.config.System,
		InputSampleRate:  m.config.InputSampleRate,
		OutputSampleRate: m.config.OutputSampleRate,
		TranscribeInput:  true,
		TranscribeOutput: true,
	})
	if err != nil {
		return fail("live connect failed", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	s.group = g
	g.Go(func() error { return m.receiveLoop(gctx, s, log) })
	g.Go(func() error { return m.captureLoop(gctx, s, log) })

	log.Info("live session started", "voice", m.config.Voice)
	return nil
}

// Stop tears down the current session. It is idempotent and safe to call
// after a partially failed Start.
func (m *Manager) Stop() {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	m.stop(nil)
}

// stop tears down target, or the current session when target is nil. A
// target that is no longer current is left alone.
func (m *Manager) stop(target *session) {
	m.mu.Lock()
	s := m.sess
	if s == nil || (target != nil && target != s) {
		idle := m.state == types.LiveIdle
		m.mu.Unlock()
		if !idle && target == nil {
			m.setState(types.LiveIdle)
		}
		return
	}
	m.sess = nil
	m.mu.Unlock()
	m.setState(types.LiveClosing)

	if s.cancel != nil {
		s.cancel()
	}
	if s.transport != nil {
		if err := s.transport.Close(); err != nil {
			m.logger.Debug("live transport close", "session_id", s.id, "err", err)
		}
	}
	if s.capture != nil {
		_ = s.capture.Close()
	}
	if s.scheduler != nil {
		s.scheduler.Interrupt()
	}
	if s.playback != nil {
		_ = s.playback.Close()
	}
	if s.group != nil {
		if err := s.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Debug("live session goroutines ended", "session_id", s.id, "err", err)
		}
	}

	m.mu.Lock()
	m.pending = types.TranscriptTurn{}
	m.mu.Unlock()
	// Closed is reported once every resource is released, then collapses to
	// Idle so the manager can start again.
	m.setState(types.LiveClosed)
	m.setState(types.LiveIdle)
	m.logger.Info("live session stopped", "session_id", s.id)
}

func (m *Manager) captureLoop(ctx context.Context, s *session, log *slog.Logger) error {
	select {
	case <-ctx.Done():
		return nil
	case <-s.transport.Opened():
	}
	if !m.markOpen(s) {
		return nil
	}
	log.Debug("live session open, capturing")

	buf := make([]float32, m.config.BlockSize)
	for {
		n, err := s.capture.Read(buf)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			m.fail(s, log, core.NewCapabilityUnavailableError("microphone capture ended", err))
			return err
		}
		if n == 0 {
			continue
		}
		frame := audio.EncodeFrame(buf[:n])
		if m.callbacks.OnInputLevel != nil {
			m.callbacks.OnInputLevel(audio.RMSEnergy(frame))
		}
		if err := s.transport.SendAudio(frame); err != nil {
			log.Debug("dropped audio frame", "err", err)
		}
	}
}

func (m *Manager) receiveLoop(ctx context.Context, s *session, log *slog.Logger) error {
	events := s.transport.Events()
	for {
		var ev core.LiveEvent
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case ev, ok = <-events:
		}
		if ctx.Err() != nil {
			return nil
		}
		if !ok {
			m.fail(s, log, core.NewTransportError("live connection closed", nil))
			return nil
		}

		switch e := ev.(type) {
		case core.TranscriptFragment:
			m.appendTranscript(e)
		case core.AudioPayload:
			m.play(s, log, e)
		case core.TurnComplete:
			m.completeTurn()
		case core.Interrupted:
			n := s.scheduler.Interrupt()
			log.Debug("playback interrupted", "discarded", n)
			if m.callbacks.OnInterrupted != nil {
				m.callbacks.OnInterrupted(n)
			}
		case core.TransportFailure:
			m.fail(s, log, e.Err)
			return nil
		}
	}
}

func (m *Manager) appendTranscript(f core.TranscriptFragment) {
	if f.Text == "" {
		return
	}
	m.mu.Lock()
	switch f.Speaker {
	case core.SpeakerUser:
		m.pending.User += f.Text
	default:
		m.pending.Model += f.Text
	}
	partial := m.pending
	m.mu.Unlock()

	if m.callbacks.OnTranscript != nil {
		m.callbacks.OnTranscript(partial)
	}
}

func (m *Manager) completeTurn() {
	m.mu.Lock()
	turn := types.TranscriptTurn{
		User:  strings.TrimSpace(m.pending.User),
		Model: strings.TrimSpace(m.pending.Model),
	}
	m.pending = types.TranscriptTurn{}
	if !turn.Empty() {
		m.history = append(m.history, turn)
	}
	m.mu.Unlock()

	if !turn.Empty() && m.callbacks.OnTurnComplete != nil {
		m.callbacks.OnTurnComplete(turn)
	}
}

func (m *Manager) play(s *session, log *slog.Logger, p core.AudioPayload) {
	rate := p.SampleRate
	if rate <= 0 {
		rate = m.config.OutputSampleRate
	}
	buf, err := audio.DecodeFrame(p.PCM, rate, 1)
	if err != nil {
		log.Warn("dropping undecodable audio chunk", "bytes", len(p.PCM), "err", err)
		return
	}
	if _, err := s.scheduler.Schedule(buf); err != nil {
		log.Warn("schedule playback failed", "err", err)
	}
	if m.callbacks.OnModelAudio != nil {
		m.callbacks.OnModelAudio(p.PCM, rate)
	}
}

// fail reports err and stops s from a separate goroutine, since the caller is
// one of the goroutines Stop waits for.
func (m *Manager) fail(s *session, log *slog.Logger, err error) {
	log.Error("live session failed", "err", err)
	if m.callbacks.OnError != nil {
		m.callbacks.OnError(core.UserMessage(err))
	}
	go func() {
		m.startMu.Lock()
		defer m.startMu.Unlock()
		m.stop(s)
	}()
}

// markOpen moves a still-current session to Open.
func (m *Manager) markOpen(s *session) bool {
	m.mu.Lock()
	if m.sess != s {
		m.mu.Unlock()
		return false
	}
	m.state = types.LiveOpen
	m.mu.Unlock()

	if m.callbacks.OnStateChange != nil {
		m.callbacks.OnStateChange(types.LiveOpen)
	}
	return true
}

func (m *Manager) setState(state types.LiveState) {
	m.mu.Lock()
	changed := m.state != state
	m.state = state
	m.mu.Unlock()

	if changed && m.callbacks.OnStateChange != nil {
		m.callbacks.OnStateChange(state)
	}
}
