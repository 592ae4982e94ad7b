package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
)

const (
	liveHandshakeTimeout = 10 * time.Second
	liveCloseGrace       = 500 * time.Millisecond
	liveWriteTimeout     = 10 * time.Second
	liveEventBuffer      = 256
)

// ConnectLive dials the live endpoint and sends the session setup. The
// returned transport's Opened channel closes when the service acknowledges
// the setup.
func (p *Provider) ConnectLive(ctx context.Context, cfg core.LiveConfig) (core.LiveTransport, error) {
	if p.apiKey == "" {
		return nil, core.NewCredentialMissingError("no Gemini API key configured")
	}
	if cfg.InputSampleRate <= 0 {
		cfg.InputSampleRate = audio.InputSampleRate
	}
	if cfg.OutputSampleRate <= 0 {
		cfg.OutputSampleRate = audio.OutputSampleRate
	}

	u, err := url.Parse(p.liveURL)
	if err != nil {
		return nil, core.NewInvalidRequestError("invalid live URL: " + err.Error())
	}
	q := u.Query()
	q.Set("key", p.apiKey)
	u.RawQuery = q.Encode()

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: liveHandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, core.NewUpstreamRejectedError(
				fmt.Sprintf("live handshake rejected (status %d)", resp.StatusCode),
				strconv.Itoa(resp.StatusCode), err)
		}
		return nil, core.NewTransportError("live dial", err)
	}

	if err := conn.WriteJSON(buildLiveSetup(p.liveModel, cfg)); err != nil {
		_ = conn.Close()
		return nil, core.NewTransportError("send live setup", err)
	}

	t := &liveTransport{
		conn:       conn,
		inputRate:  cfg.InputSampleRate,
		outputRate: cfg.OutputSampleRate,
		opened:     make(chan struct{}),
		events:     make(chan core.LiveEvent, liveEventBuffer),
		stopped:    make(chan struct{}),
		logger:     p.logger,
	}
	go t.readLoop()
	p.logger.Debug("live transport connected", "model", p.liveModel, "voice", cfg.Voice)
	return t, nil
}

// liveTransport is one websocket session with the live endpoint.
type liveTransport struct {
	conn       *websocket.Conn
	inputRate  int
	outputRate int

	opened     chan struct{}
	openedOnce sync.Once
	events     chan core.LiveEvent
	stopped    chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	logger *slog.Logger
}

func (t *liveTransport) Opened() <-chan struct{} { return t.opened }

func (t *liveTransport) Events() <-chan core.LiveEvent { return t.events }

// SendAudio sends one PCM16 frame at the session's input rate.
func (t *liveTransport) SendAudio(pcm []byte) error {
	if t.closed.Load() {
		return core.NewTransportError("live session is closed", nil)
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	if err := t.conn.WriteJSON(buildAudioInput(pcm, t.inputRate)); err != nil {
		return core.NewTransportError("send audio", err)
	}
	return nil
}

// Close sends a close frame and tears down the connection without waiting for
// the server's reply. It does not take writeMu: WriteControl and Close may run
// concurrently with a SendAudio stuck on a peer that stopped reading, and
// closing the socket releases that write.
func (t *liveTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.stopped)
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(liveCloseGrace))
		_ = t.conn.Close()
	})
	return nil
}

func (t *liveTransport) readLoop() {
	defer close(t.events)

	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			if t.closed.Load() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			t.emit(core.TransportFailure{Err: closeError(err)})
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		events, setupDone, msgErr := decodeLiveFrame(data, t.outputRate)
		if msgErr != nil {
			t.logger.Warn("skipping undecodable live frame", "err", msgErr)
			continue
		}
		if setupDone {
			t.openedOnce.Do(func() { close(t.opened) })
		}
		for _, ev := range events {
			if !t.emit(ev) {
				return
			}
		}
	}
}

// emit delivers ev unless the transport was closed locally.
func (t *liveTransport) emit(ev core.LiveEvent) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.stopped:
		return false
	}
}

// closeError classifies a terminal read error. The service reports rejected
// keys and bad setups as policy-violation closes with a reason.
func closeError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		reason := ce.Text
		if reason == "" {
			reason = fmt.Sprintf("live session closed (code %d)", ce.Code)
		}
		if ce.Code == websocket.ClosePolicyViolation || core.LooksLikeInvalidCredential(reason) {
			return core.NewUpstreamRejectedError(reason, strconv.Itoa(ce.Code), err)
		}
		return core.NewTransportError(reason, err)
	}
	return core.NewTransportError("live read", err)
}
