package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
)

type fakeHandle struct {
	once sync.Once
	done chan struct{}
	mu   sync.Mutex
	stop bool
}

func newFakeHandle() *fakeHandle { return &fakeHandle{done: make(chan struct{})} }

func (h *fakeHandle) Stop() {
	h.mu.Lock()
	h.stop = true
	h.mu.Unlock()
	h.finish()
}

func (h *fakeHandle) finish()               { h.once.Do(func() { close(h.done) }) }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stop
}

type scheduled struct {
	at  time.Duration
	dur time.Duration
	h   *fakeHandle
}

type fakePlayback struct {
	mu     sync.Mutex
	now    time.Duration
	queue  []scheduled
	closed bool
}

func (p *fakePlayback) Now() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now
}

func (p *fakePlayback) setNow(d time.Duration) {
	p.mu.Lock()
	p.now = d
	p.mu.Unlock()
}

func (p *fakePlayback) Schedule(buf *audio.Buffer, at time.Duration) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("playback closed")
	}
	h := newFakeHandle()
	p.queue = append(p.queue, scheduled{at: at, dur: buf.Duration(), h: h})
	return h, nil
}

func (p *fakePlayback) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePlayback) snapshot() []scheduled {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]scheduled, len(p.queue))
	copy(out, p.queue)
	return out
}

func (p *fakePlayback) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeCapture struct {
	blocks    chan []float32
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{blocks: make(chan []float32, 8), closed: make(chan struct{})}
}

func (c *fakeCapture) Read(dst []float32) (int, error) {
	select {
	case <-c.closed:
		return 0, errors.New("capture closed")
	case b := <-c.blocks:
		return copy(dst, b), nil
	}
}

func (c *fakeCapture) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeCapture) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDevices struct {
	captureErr error
	capture    *fakeCapture
	playback   *fakePlayback
}

func (d *fakeDevices) OpenCapture(context.Context, int) (Capture, error) {
	if d.captureErr != nil {
		return nil, d.captureErr
	}
	return d.capture, nil
}

func (d *fakeDevices) OpenPlayback(context.Context, int) (Playback, error) {
	return d.playback, nil
}

type fakeTransport struct {
	opened    chan struct{}
	events    chan core.LiveEvent
	mu        sync.Mutex
	sent      [][]byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		opened: make(chan struct{}),
		events: make(chan core.LiveEvent, 16),
		closed: make(chan struct{}),
	}
}

func (t *fakeTransport) Opened() <-chan struct{}       { return t.opened }
func (t *fakeTransport) Events() <-chan core.LiveEvent { return t.events }

func (t *fakeTransport) SendAudio(pcm []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, pcm)
	return nil
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) sentFrames() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.sent...)
}

func (t *fakeTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

type fakeConnector struct {
	mu         sync.Mutex
	transports []*fakeTransport
	configs    []core.LiveConfig
	err        error
}

func (c *fakeConnector) ConnectLive(_ context.Context, cfg core.LiveConfig) (core.LiveTransport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs = append(c.configs, cfg)
	if c.err != nil {
		return nil, c.err
	}
	t := newFakeTransport()
	c.transports = append(c.transports, t)
	return t, nil
}

func (c *fakeConnector) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.configs)
}

func (c *fakeConnector) transport(i int) *fakeTransport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transports[i]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func seconds(rate int, s float64) *audio.Buffer {
	return &audio.Buffer{SampleRate: rate, Data: [][]float32{make([]float32, int(float64(rate)*s))}}
}
