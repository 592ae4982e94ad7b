// Package chat turns a streamed, grounded chat response into a live-updating
// transcript message.
package chat

import (
	"fmt"
	"strings"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// ApologyText replaces the message text when an exchange fails.
const ApologyText = "Sorry, something went wrong while generating a response. Please try again."

// Assembler reconstructs one model message from stream fragments.
//
// Citations follow a replace-not-merge policy: every fragment that carries
// grounding metadata rebuilds the whole set, so ids are only stable while the
// service keeps sending sources in the same order.
type Assembler struct {
	msg   types.Message
	text  strings.Builder
	usage types.Usage
}

// NewAssembler starts assembling into msg, which is marked pending.
func NewAssembler(msg types.Message) *Assembler {
	a := &Assembler{msg: msg}
	a.text.WriteString(msg.Text)
	a.msg.Pending = true
	return a
}

// Apply folds one fragment into the message.
func (a *Assembler) Apply(f core.Fragment) {
	if f.Text != "" {
		a.text.WriteString(f.Text)
		a.msg.Text = a.text.String()
	}
	if f.Grounding != nil {
		a.msg.Citations = CitationsFrom(f.Grounding)
	}
	if f.Usage != nil {
		a.usage = *f.Usage
	}
}

// Finish marks the message complete.
func (a *Assembler) Finish() {
	a.msg.Pending = false
}

// Fail replaces the text with ApologyText, keeps the last citation set, and
// clears pending.
func (a *Assembler) Fail() {
	a.text.Reset()
	a.text.WriteString(ApologyText)
	a.msg.Text = ApologyText
	a.msg.Pending = false
}

// Message returns a snapshot of the message being assembled.
func (a *Assembler) Message() types.Message {
	return a.msg.Clone()
}

// Usage returns the last token usage reported by the stream.
func (a *Assembler) Usage() types.Usage {
	return a.usage
}

// CitationsFrom numbers every source S1..Sn in the order it appears.
func CitationsFrom(g *core.Grounding) []types.Citation {
	if g == nil {
		return nil
	}
	out := make([]types.Citation, 0, len(g.Sources))
	for i, src := range g.Sources {
		out = append(out, types.Citation{
			ID:     fmt.Sprintf("S%d", i+1),
			URL:    src.URL,
			Title:  src.Title,
			Domain: src.Domain,
		})
	}
	return out
}
