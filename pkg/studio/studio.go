// Package studio is the boundary between a front-end and the client core. It
// owns one conversation, one live session manager and the media store, and
// reports every state change through an Observer.
package studio

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/chat"
	"github.com/vango-go/vai-studio/pkg/core/jobs"
	"github.com/vango-go/vai-studio/pkg/core/live"
	"github.com/vango-go/vai-studio/pkg/core/media"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// ErrGenerationInFlight is returned by Send, StartGeneration and Clear while a
// media generation is running. While a chat exchange is running they return
// chat.ErrExchangeInFlight instead.
var ErrGenerationInFlight = errors.New("a generation is already in progress")

// activity is the transcript writer currently in flight.
type activity int

const (
	idle activity = iota
	chatting
	generating
)

// Observer receives every state change. Methods are called from the goroutine
// doing the work and must not block for long.
type Observer interface {
	MessageUpdated(msg types.Message)
	GenerationCompleted(ref types.MediaRef, prompt string)
	GenerationFailed(reason string)
	GenerationStatus(status string)
	LiveTranscriptUpdated(partial types.TranscriptTurn)
	LiveTurnCompleted(turn types.TranscriptTurn)
	LiveError(reason string)
	LiveStateChanged(state types.LiveState)
}

// AudioObserver is optionally implemented by an Observer that wants the model's
// live audio, for example to record it.
type AudioObserver interface {
	LiveAudioReceived(pcm []byte, sampleRate int)
}

// NopObserver ignores every notification. Embed it to implement only some
// Observer methods.
type NopObserver struct{}

func (NopObserver) MessageUpdated(types.Message)               {}
func (NopObserver) GenerationCompleted(types.MediaRef, string) {}
func (NopObserver) GenerationFailed(string)                    {}
func (NopObserver) GenerationStatus(string)                    {}
func (NopObserver) LiveTranscriptUpdated(types.TranscriptTurn) {}
func (NopObserver) LiveTurnCompleted(types.TranscriptTurn)     {}
func (NopObserver) LiveError(string)                           {}
func (NopObserver) LiveStateChanged(types.LiveState)           {}

// Studio wires the core components to one observer.
type Studio struct {
	service  core.Service
	observer Observer
	logger   *slog.Logger

	aspectRatio string
	conv        *chat.Conversation
	poller      *jobs.Poller
	store       *media.Store
	live        *live.Manager

	mu     sync.Mutex
	busy   activity
	source string
}

type settings struct {
	system       string
	aspectRatio  string
	pollInterval time.Duration
	sleep        jobs.SleepFunc
	live         live.Config
	logger       *slog.Logger
}

// Option configures a Studio.
type Option func(*settings)

// WithSystem sets the chat system instruction.
func WithSystem(system string) Option {
	return func(s *settings) { s.system = system }
}

// WithAspectRatio sets the aspect ratio requested for generated images and
// videos.
func WithAspectRatio(ratio string) Option {
	return func(s *settings) { s.aspectRatio = ratio }
}

// WithPollInterval sets the video job poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *settings) { s.pollInterval = d }
}

// WithSleep replaces the poller's wait between polls.
func WithSleep(fn jobs.SleepFunc) Option {
	return func(s *settings) { s.sleep = fn }
}

// WithLiveConfig configures live sessions.
func WithLiveConfig(cfg live.Config) Option {
	return func(s *settings) { s.live = cfg }
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Studio over service. devices may be nil when live sessions
// are not needed; starting one then fails with CapabilityUnavailable.
func New(service core.Service, devices live.Devices, observer Observer, opts ...Option) *Studio {
	cfg := settings{
		pollInterval: types.DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if observer == nil {
		observer = NopObserver{}
	}

	s := &Studio{
		service:     service,
		observer:    observer,
		logger:      cfg.logger,
		aspectRatio: cfg.aspectRatio,
		store:       media.NewStore(cfg.logger),
	}
	s.conv = chat.NewConversation(service,
		chat.WithSystem(cfg.system),
		chat.WithLogger(cfg.logger),
		chat.WithListener(observer.MessageUpdated),
	)
	s.poller = &jobs.Poller{
		Service:  service,
		Interval: cfg.pollInterval,
		Sleep:    cfg.sleep,
		Logger:   cfg.logger,
	}
	if devices != nil {
		cb := live.Callbacks{
			OnTranscript:   observer.LiveTranscriptUpdated,
			OnTurnComplete: observer.LiveTurnCompleted,
			OnError:        observer.LiveError,
			OnStateChange:  observer.LiveStateChanged,
		}
		if ao, ok := observer.(AudioObserver); ok {
			cb.OnModelAudio = ao.LiveAudioReceived
		}
		s.live = live.NewManager(service, devices, cfg.live, cb, cfg.logger)
	}
	return s
}

// Send runs one grounded chat exchange. See chat.Conversation.Send.
func (s *Studio) Send(ctx context.Context, prompt string) (types.Message, error) {
	if err := s.claim(chatting); err != nil {
		return types.Message{}, err
	}
	defer s.release()
	return s.conv.Send(ctx, strings.TrimSpace(prompt))
}

// claim reserves the transcript for one chat exchange or generation at a time.
func (s *Studio) claim(a activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.busyErrLocked(); err != nil {
		return err
	}
	s.busy = a
	return nil
}

func (s *Studio) release() {
	s.mu.Lock()
	s.busy = idle
	s.mu.Unlock()
}

func (s *Studio) busyErrLocked() error {
	switch s.busy {
	case chatting:
		return chat.ErrExchangeInFlight
	case generating:
		return ErrGenerationInFlight
	}
	return nil
}

// Messages returns a snapshot of the transcript.
func (s *Studio) Messages() []types.Message {
	return s.conv.Messages()
}

// Clear empties the transcript. It fails while a chat exchange or a
// generation is in flight.
func (s *Studio) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.busyErrLocked(); err != nil {
		return err
	}
	return s.conv.Clear()
}

// SelectSource registers a local image as the source for edits and
// image-to-video generations, releasing the previously selected one.
func (s *Studio) SelectSource(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		locator string
		err     error
	)
	if s.source == "" {
		locator, err = s.store.RegisterLocalFile(path)
	} else {
		locator, err = s.store.Replace(s.source, path)
	}
	if err != nil {
		return "", err
	}
	s.source = locator
	return locator, nil
}

// Source returns the selected source locator, or "" when none is selected.
func (s *Studio) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// StartLiveSession starts a live audio session, replacing any running one.
func (s *Studio) StartLiveSession(ctx context.Context) error {
	if s.live == nil {
		err := core.NewCapabilityUnavailableError("live audio devices are not configured", nil)
		s.observer.LiveError(core.UserMessage(err))
		return err
	}
	if err := s.live.Start(ctx); err != nil {
		s.observer.LiveError(core.UserMessage(err))
		return err
	}
	return nil
}

// StopLiveSession stops the live session. It is safe to call at any time.
func (s *Studio) StopLiveSession() {
	if s.live != nil {
		s.live.Stop()
	}
}

// LiveState returns the live session state.
func (s *Studio) LiveState() types.LiveState {
	if s.live == nil {
		return types.LiveIdle
	}
	return s.live.State()
}

// LiveHistory returns the completed turns of the current or last session.
func (s *Studio) LiveHistory() []types.TranscriptTurn {
	if s.live == nil {
		return nil
	}
	return s.live.History()
}

// Close stops the live session and releases every registered media object.
func (s *Studio) Close() error {
	s.StopLiveSession()
	return s.store.Close()
}
