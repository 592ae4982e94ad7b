package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-studio/pkg/core"
)

type liveServer struct {
	srv     *httptest.Server
	setup   chan liveClientMessage
	inputs  chan liveClientMessage
	rawKey  chan string
	handler func(conn *websocket.Conn)
}

func newLiveServer(t *testing.T, handler func(conn *websocket.Conn)) *liveServer {
	t.Helper()
	ls := &liveServer{
		setup:   make(chan liveClientMessage, 1),
		inputs:  make(chan liveClientMessage, 16),
		rawKey:  make(chan string, 1),
		handler: handler,
	}
	upgrader := websocket.Upgrader{}
	ls.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ls.rawKey <- r.URL.Query().Get("key")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var setup liveClientMessage
		if err := conn.ReadJSON(&setup); err != nil {
			t.Errorf("read setup: %v", err)
			return
		}
		ls.setup <- setup
		ls.handler(conn)
	}))
	t.Cleanup(ls.srv.Close)
	return ls
}

func (ls *liveServer) url() string {
	return "ws" + strings.TrimPrefix(ls.srv.URL, "http")
}

func writeFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// The service delivers JSON in binary frames.
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Errorf("write frame: %v", err)
	}
}

func nextEvent(t *testing.T, tr core.LiveTransport) core.LiveEvent {
	t.Helper()
	select {
	case ev, ok := <-tr.Events():
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for live event")
	}
	return nil
}

func TestConnectLive_SessionRoundTrip(t *testing.T) {
	pcm := []byte{1, 0, 2, 0}
	var ls *liveServer
	ls = newLiveServer(t, func(conn *websocket.Conn) {
		writeFrame(t, conn, map[string]any{"setupComplete": map[string]any{}})

		var in liveClientMessage
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		ls.inputs <- in

		writeFrame(t, conn, map[string]any{"serverContent": map[string]any{
			"inputTranscription":  map[string]any{"text": "hello"},
			"outputTranscription": map[string]any{"text": "hi there"},
			"modelTurn": map[string]any{"parts": []any{map[string]any{
				"inlineData": map[string]any{"mimeType": "audio/pcm;rate=24000", "data": base64.StdEncoding.EncodeToString(pcm)},
			}}},
		}})
		writeFrame(t, conn, map[string]any{"serverContent": map[string]any{"interrupted": true}})
		writeFrame(t, conn, map[string]any{"serverContent": map[string]any{"turnComplete": true}})

		// Hold the connection until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	p := New("test-key", WithLiveURL(ls.url()), WithModels(Models{Live: "live-model"}))
	tr, err := p.ConnectLive(context.Background(), core.LiveConfig{
		Voice:            "Puck",
		System:           "be brief",
		TranscribeInput:  true,
		TranscribeOutput: true,
	})
	if err != nil {
		t.Fatalf("ConnectLive: %v", err)
	}
	defer tr.Close()

	if key := <-ls.rawKey; key != "test-key" {
		t.Fatalf("key = %q", key)
	}
	setup := (<-ls.setup).Setup
	if setup == nil || setup.Model != "models/live-model" {
		t.Fatalf("setup = %+v", setup)
	}
	if setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Puck" {
		t.Fatalf("voice not sent: %+v", setup.GenerationConfig)
	}
	if setup.SystemInstruction.Parts[0].Text != "be brief" || setup.InputAudioTranscription == nil || setup.OutputAudioTranscription == nil {
		t.Fatalf("setup = %+v", setup)
	}

	select {
	case <-tr.Opened():
	case <-time.After(2 * time.Second):
		t.Fatal("transport never opened")
	}

	if err := tr.SendAudio(pcm); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	in := <-ls.inputs
	if in.RealtimeInput == nil || in.RealtimeInput.Audio.MIMEType != "audio/pcm;rate=16000" {
		t.Fatalf("realtime input = %+v", in.RealtimeInput)
	}
	if in.RealtimeInput.Audio.Data != base64.StdEncoding.EncodeToString(pcm) {
		t.Fatalf("audio payload = %q", in.RealtimeInput.Audio.Data)
	}

	if ev, ok := nextEvent(t, tr).(core.TranscriptFragment); !ok || ev.Speaker != core.SpeakerUser || ev.Text != "hello" {
		t.Fatalf("want user transcript, got %#v", ev)
	}
	if ev, ok := nextEvent(t, tr).(core.TranscriptFragment); !ok || ev.Speaker != core.SpeakerModel {
		t.Fatalf("want model transcript, got %#v", ev)
	}
	audioEv, ok := nextEvent(t, tr).(core.AudioPayload)
	if !ok || audioEv.SampleRate != 24000 || string(audioEv.PCM) != string(pcm) {
		t.Fatalf("want audio payload, got %#v", audioEv)
	}
	if _, ok := nextEvent(t, tr).(core.Interrupted); !ok {
		t.Fatal("want interrupted")
	}
	if _, ok := nextEvent(t, tr).(core.TurnComplete); !ok {
		t.Fatal("want turn complete")
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tr.SendAudio(pcm); !core.IsType(err, core.ErrTransport) {
		t.Fatalf("SendAudio after Close = %v", err)
	}
}

func TestLiveTransport_CloseDoesNotWaitForStalledWrite(t *testing.T) {
	release := make(chan struct{})
	ls := newLiveServer(t, func(conn *websocket.Conn) {
		// Never read again, so the client's socket buffers fill up.
		<-release
	})
	t.Cleanup(func() { close(release) })

	p := New("k", WithLiveURL(ls.url()))
	tr, err := p.ConnectLive(context.Background(), core.LiveConfig{})
	if err != nil {
		t.Fatalf("ConnectLive: %v", err)
	}
	<-ls.setup

	frame := make([]byte, 64<<10)
	var sent atomic.Int64
	sendErr := make(chan error, 1)
	go func() {
		for {
			if err := tr.SendAudio(frame); err != nil {
				sendErr <- err
				return
			}
			sent.Add(1)
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for last := int64(-1); ; {
		time.Sleep(200 * time.Millisecond)
		n := sent.Load()
		if n == last {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("writes never stalled (%d frames sent)", n)
		}
		last = n
	}

	closed := make(chan struct{})
	go func() {
		_ = tr.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("Close blocked behind a stalled SendAudio")
	}

	select {
	case err := <-sendErr:
		if !core.IsType(err, core.ErrTransport) {
			t.Fatalf("SendAudio err = %v, want transport error", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("stalled SendAudio was not released by Close")
	}
}

func TestConnectLive_PolicyCloseIsRejection(t *testing.T) {
	ls := newLiveServer(t, func(conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "API key not valid. Please pass a valid API key.")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	p := New("bad-key", WithLiveURL(ls.url()))
	tr, err := p.ConnectLive(context.Background(), core.LiveConfig{})
	if err != nil {
		t.Fatalf("ConnectLive: %v", err)
	}
	defer tr.Close()

	failure, ok := nextEvent(t, tr).(core.TransportFailure)
	if !ok {
		t.Fatal("want transport failure")
	}
	if !core.IsType(failure.Err, core.ErrUpstreamRejected) {
		t.Fatalf("failure = %v, want upstream_rejected", failure.Err)
	}
	select {
	case _, open := <-tr.Events():
		if open {
			t.Fatal("events channel should close after failure")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}
}

func TestConnectLive_HandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	p := New("k", WithLiveURL("ws"+strings.TrimPrefix(srv.URL, "http")))
	_, err := p.ConnectLive(context.Background(), core.LiveConfig{})
	if !core.IsType(err, core.ErrUpstreamRejected) {
		t.Fatalf("err = %v, want upstream_rejected", err)
	}
}

func TestRateFromMIME(t *testing.T) {
	tests := map[string]int{
		"audio/pcm;rate=24000":  24000,
		"audio/pcm; rate=16000": 16000,
		"audio/pcm":             24000,
		"audio/pcm;rate=abc":    24000,
	}
	for mime, want := range tests {
		if got := rateFromMIME(mime, 24000); got != want {
			t.Errorf("rateFromMIME(%q) = %d, want %d", mime, got, want)
		}
	}
}
