package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/citations"
	"github.com/vango-go/vai-studio/pkg/core/types"
	"github.com/vango-go/vai-studio/pkg/studio"
)

// terminalObserver prints studio events as plain text. Model messages are
// streamed as deltas; their sources are listed once the message is final.
type terminalObserver struct {
	studio.NopObserver

	out    io.Writer
	stream bool

	mu        sync.Mutex
	printed   map[string]string
	live      types.TranscriptTurn
	opened    bool
	endOnce   sync.Once
	liveEnded chan struct{}

	// record enables capture of the model's live audio.
	record     bool
	recording  bytes.Buffer
	recordRate int
}

func newTerminalObserver(out io.Writer, stream bool) *terminalObserver {
	return &terminalObserver{
		out:       out,
		stream:    stream,
		printed:   make(map[string]string),
		liveEnded: make(chan struct{}),
	}
}

func (o *terminalObserver) MessageUpdated(msg types.Message) {
	if msg.Role != types.RoleModel || len(msg.Media) > 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.stream {
		if !msg.Pending {
			fmt.Fprintln(o.out, renderAnswer(msg))
		}
		return
	}

	prev := o.printed[msg.ID]
	switch {
	case strings.HasPrefix(msg.Text, prev):
		fmt.Fprint(o.out, msg.Text[len(prev):])
	default:
		// The text was replaced, e.g. by the failure apology.
		fmt.Fprint(o.out, "\n"+msg.Text)
	}
	o.printed[msg.ID] = msg.Text

	if !msg.Pending {
		fmt.Fprintln(o.out)
		if len(msg.Citations) > 0 {
			fmt.Fprint(o.out, "\nSources:\n"+citations.Footnotes(msg.Citations))
		}
		delete(o.printed, msg.ID)
	}
}

func (o *terminalObserver) GenerationStatus(status string) {
	fmt.Fprintln(o.out, status)
}

func (o *terminalObserver) GenerationFailed(reason string) {
	fmt.Fprintln(o.out, "Generation failed: "+reason)
}

func (o *terminalObserver) LiveTranscriptUpdated(partial types.TranscriptTurn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.live = partial
}

func (o *terminalObserver) LiveTurnCompleted(turn types.TranscriptTurn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.live = types.TranscriptTurn{}
	if turn.User != "" {
		fmt.Fprintf(o.out, "you:   %s\n", turn.User)
	}
	if turn.Model != "" {
		fmt.Fprintf(o.out, "model: %s\n", turn.Model)
	}
}

func (o *terminalObserver) LiveError(reason string) {
	fmt.Fprintln(o.out, "Live session error: "+reason)
}

func (o *terminalObserver) LiveStateChanged(state types.LiveState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch state {
	case types.LiveConnecting:
		fmt.Fprintln(o.out, "Connecting...")
	case types.LiveOpen:
		o.opened = true
		fmt.Fprintln(o.out, "Listening. Press Enter or Ctrl-C to stop.")
	case types.LiveIdle:
		if o.opened {
			o.endOnce.Do(func() { close(o.liveEnded) })
		}
	}
}

func (o *terminalObserver) LiveAudioReceived(pcm []byte, sampleRate int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.record {
		return
	}
	if o.recordRate == 0 {
		o.recordRate = sampleRate
	}
	o.recording.Write(pcm)
}

// writeRecording saves the recorded model audio as a WAV file. It reports
// whether anything was written.
func (o *terminalObserver) writeRecording(path string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.recording.Len() == 0 {
		return false, nil
	}
	wav := audio.PCMToWAV(o.recording.Bytes(), o.recordRate, 16, 1)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return false, fmt.Errorf("write recording: %w", err)
	}
	return true, nil
}

// renderAnswer replaces "[S<n>]" markers with "[n]" and appends the source
// list.
func renderAnswer(msg types.Message) string {
	text := citations.Render(citations.Resolve(msg.Text, msg.Citations), func(c types.Citation) string {
		return "[" + strings.TrimPrefix(c.ID, "S") + "]"
	})
	if len(msg.Citations) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\nSources:\n")
	for _, c := range msg.Citations {
		title := c.Title
		if title == "" {
			title = c.Domain
		}
		fmt.Fprintf(&b, "[%s] %s <%s>\n", strings.TrimPrefix(c.ID, "S"), title, c.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}
