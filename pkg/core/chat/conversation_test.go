package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

type scriptedStream struct {
	fragments []core.Fragment
	err       error
	i         int
	gate      chan struct{}
	closed    bool
}

func (s *scriptedStream) Next() (core.Fragment, error) {
	if s.gate != nil {
		<-s.gate
	}
	if s.i >= len(s.fragments) {
		if s.err != nil {
			return core.Fragment{}, s.err
		}
		return core.Fragment{}, io.EOF
	}
	f := s.fragments[s.i]
	s.i++
	return f, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type fakeStreamer struct {
	mu       sync.Mutex
	streams  []*scriptedStream
	requests []core.ChatRequest
	openErr  error
}

func (f *fakeStreamer) StreamChat(_ context.Context, req core.ChatRequest) (core.FragmentStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.openErr != nil {
		return nil, f.openErr
	}
	s := f.streams[0]
	f.streams = f.streams[1:]
	return s, nil
}

func (f *fakeStreamer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func TestConversation_SendStreamsIntoPendingMessage(t *testing.T) {
	stream := &scriptedStream{fragments: []core.Fragment{{Text: "Hel"}, {Text: "lo"}}}
	streamer := &fakeStreamer{streams: []*scriptedStream{stream}}

	var updates []types.Message
	conv := NewConversation(streamer, WithListener(func(m types.Message) {
		updates = append(updates, m)
	}))

	final, err := conv.Send(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if final.Text != "Hello" || final.Pending || final.Role != types.RoleModel {
		t.Fatalf("final = %+v", final)
	}
	if !stream.closed {
		t.Fatal("stream was not closed")
	}

	msgs := conv.Messages()
	if len(msgs) != 2 || msgs[0].Text != "hi" || msgs[1].Text != "Hello" {
		t.Fatalf("transcript = %+v", msgs)
	}

	// user, pending model, two fragments, final
	if len(updates) != 5 {
		t.Fatalf("updates = %d, want 5", len(updates))
	}
	if !updates[1].Pending || updates[1].Text != "" {
		t.Fatalf("second update should be the empty pending model message: %+v", updates[1])
	}
	if updates[2].Text != "Hel" || updates[3].Text != "Hello" {
		t.Fatalf("incremental updates = %q, %q", updates[2].Text, updates[3].Text)
	}
}

func TestConversation_StreamErrorBecomesApology(t *testing.T) {
	stream := &scriptedStream{
		fragments: []core.Fragment{{Text: "partial", Grounding: &core.Grounding{Sources: []core.Source{{URL: "u"}}}}},
		err:       core.NewTransportError("connection reset", nil),
	}
	conv := NewConversation(&fakeStreamer{streams: []*scriptedStream{stream}})

	final, err := conv.Send(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if final.Text != ApologyText || final.Pending {
		t.Fatalf("final = %+v", final)
	}
	if len(final.Citations) != 1 {
		t.Fatalf("citations = %+v, want last computed", final.Citations)
	}
	if conv.Pending() {
		t.Fatal("conversation still pending after failure")
	}
}

func TestConversation_OpenErrorBecomesApology(t *testing.T) {
	conv := NewConversation(&fakeStreamer{openErr: core.NewCredentialMissingError("no key")})
	final, err := conv.Send(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if final.Text != ApologyText {
		t.Fatalf("Text = %q", final.Text)
	}
}

func TestConversation_RejectsConcurrentSend(t *testing.T) {
	gate := make(chan struct{})
	stream := &scriptedStream{fragments: []core.Fragment{{Text: "one"}}, gate: gate}
	streamer := &fakeStreamer{streams: []*scriptedStream{stream}}
	conv := NewConversation(streamer)

	done := make(chan types.Message, 1)
	go func() {
		m, _ := conv.Send(context.Background(), "first")
		done <- m
	}()

	deadline := time.Now().Add(time.Second)
	for !conv.Pending() {
		if time.Now().After(deadline) {
			t.Fatal("first Send never became pending")
		}
		time.Sleep(time.Millisecond)
	}

	before := conv.Messages()
	if _, err := conv.Send(context.Background(), "second"); !errors.Is(err, ErrExchangeInFlight) {
		t.Fatalf("second Send err = %v, want ErrExchangeInFlight", err)
	}
	if err := conv.Clear(); !errors.Is(err, ErrExchangeInFlight) {
		t.Fatalf("Clear err = %v, want ErrExchangeInFlight", err)
	}
	if err := conv.Append(types.Message{Role: types.RoleModel, Media: []types.MediaRef{{Kind: types.MediaImage}}}); !errors.Is(err, ErrExchangeInFlight) {
		t.Fatalf("Append err = %v, want ErrExchangeInFlight", err)
	}
	after := conv.Messages()
	if len(after) != len(before) {
		t.Fatalf("rejected send mutated transcript: %d -> %d", len(before), len(after))
	}
	if streamer.calls() != 1 {
		t.Fatalf("stream opened %d times, want 1", streamer.calls())
	}

	close(gate)
	select {
	case m := <-done:
		if m.Text != "one" {
			t.Fatalf("first exchange text = %q", m.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("first Send did not finish")
	}
}

func TestConversation_SendsHistory(t *testing.T) {
	streamer := &fakeStreamer{streams: []*scriptedStream{
		{fragments: []core.Fragment{{Text: "4"}}},
		{fragments: []core.Fragment{{Text: "6"}}},
	}}
	conv := NewConversation(streamer, WithSystem("be brief"))

	if _, err := conv.Send(context.Background(), "2+2?"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := conv.Send(context.Background(), "and 3+3?"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	req := streamer.requests[1]
	if req.System != "be brief" || req.Prompt != "and 3+3?" {
		t.Fatalf("request = %+v", req)
	}
	if len(req.History) != 2 || req.History[0].Text != "2+2?" || req.History[1].Role != types.RoleModel {
		t.Fatalf("history = %+v", req.History)
	}
}

func TestConversation_AppendAndClear(t *testing.T) {
	conv := NewConversation(nil)
	if err := conv.Append(types.Message{Role: types.RoleModel, Media: []types.MediaRef{{Kind: types.MediaImage, Locator: "data:image/png;base64,AA=="}}}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	msgs := conv.Messages()
	if len(msgs) != 1 || msgs[0].ID == "" || len(msgs[0].Media) != 1 {
		t.Fatalf("messages = %+v", msgs)
	}
	if err := conv.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(conv.Messages()) != 0 {
		t.Fatal("transcript not cleared")
	}
}

func TestConversation_EmptyPromptRejected(t *testing.T) {
	conv := NewConversation(&fakeStreamer{})
	if _, err := conv.Send(context.Background(), ""); !core.IsType(err, core.ErrInvalidRequest) {
		t.Fatalf("err = %v, want invalid request", err)
	}
	if len(conv.Messages()) != 0 {
		t.Fatal("empty prompt should not touch the transcript")
	}
}
