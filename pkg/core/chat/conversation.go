package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// ErrExchangeInFlight is returned by Send, Append and Clear while a model
// message is still pending.
var ErrExchangeInFlight = errors.New("chat: a response is still being generated")

// Listener receives a snapshot of a message every time it changes.
type Listener func(types.Message)

// Conversation owns the in-memory transcript and allows one streamed
// exchange at a time.
type Conversation struct {
	streamer core.ChatStreamer
	system   string
	logger   *slog.Logger

	mu       sync.Mutex
	messages []types.Message
	inFlight bool
	listener Listener
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithSystem sets the system instruction sent with every exchange.
func WithSystem(system string) Option {
	return func(c *Conversation) {
		c.system = system
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conversation) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithListener registers the message-updated callback.
func WithListener(l Listener) Option {
	return func(c *Conversation) {
		c.listener = l
	}
}

// NewConversation creates an empty conversation.
func NewConversation(streamer core.ChatStreamer, opts ...Option) *Conversation {
	c := &Conversation{
		streamer: streamer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send appends the user prompt and a pending model message, then streams the
// response into it until the stream ends. It blocks for the whole exchange.
//
// Stream failures are not returned: they are folded into the model message as
// ApologyText. The returned error is non-nil only when the exchange could not
// start (ErrExchangeInFlight or an empty prompt).
func (c *Conversation) Send(ctx context.Context, prompt string) (types.Message, error) {
	if prompt == "" {
		return types.Message{}, core.NewInvalidRequestError("prompt must not be empty")
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return types.Message{}, ErrExchangeInFlight
	}
	c.inFlight = true
	history := c.historyLocked()
	user := types.NewMessage(types.RoleUser, prompt)
	model := types.NewMessage(types.RoleModel, "")
	model.Pending = true
	c.messages = append(c.messages, user, model)
	c.mu.Unlock()

	c.notify(user)
	c.notify(model)

	asm := NewAssembler(model)
	err := c.stream(ctx, asm, core.ChatRequest{
		Prompt:  prompt,
		History: history,
		System:  c.system,
	})
	if err != nil {
		c.logger.Error("chat exchange failed", "message_id", model.ID, "err", err)
		asm.Fail()
	} else {
		asm.Finish()
		if u := asm.Usage(); !u.IsZero() {
			c.logger.Debug("chat exchange complete", "message_id", model.ID,
				"input_tokens", u.InputTokens, "output_tokens", u.OutputTokens)
		}
	}

	final := asm.Message()
	c.mu.Lock()
	c.replaceLocked(final)
	c.inFlight = false
	c.mu.Unlock()
	c.notify(final)
	return final, nil
}

func (c *Conversation) stream(ctx context.Context, asm *Assembler, req core.ChatRequest) error {
	if c.streamer == nil {
		return core.NewCapabilityUnavailableError("chat is not configured", nil)
	}
	stream, err := c.streamer.StreamChat(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		frag, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		asm.Apply(frag)

		snapshot := asm.Message()
		c.mu.Lock()
		c.replaceLocked(snapshot)
		c.mu.Unlock()
		c.notify(snapshot)
	}
}

// Append adds a finished message produced by another collaborator, such as a
// generated image. It fails with ErrExchangeInFlight while a model message is
// pending, since only that exchange may write the transcript.
func (c *Conversation) Append(msg types.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Pending = false
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrExchangeInFlight
	}
	c.messages = append(c.messages, msg.Clone())
	c.mu.Unlock()
	c.notify(msg)
	return nil
}

// Messages returns a snapshot of the transcript.
func (c *Conversation) Messages() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Clone()
	}
	return out
}

// Pending reports whether an exchange is in flight.
func (c *Conversation) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Clear empties the transcript.
func (c *Conversation) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return ErrExchangeInFlight
	}
	c.messages = nil
	return nil
}

// historyLocked returns the finished text turns as context for the next request.
func (c *Conversation) historyLocked() []core.ChatTurn {
	turns := make([]core.ChatTurn, 0, len(c.messages))
	for _, m := range c.messages {
		if m.Pending || m.Text == "" || m.Text == ApologyText {
			continue
		}
		turns = append(turns, core.ChatTurn{Role: m.Role, Text: m.Text})
	}
	return turns
}

func (c *Conversation) replaceLocked(msg types.Message) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == msg.ID {
			c.messages[i] = msg
			return
		}
	}
}

func (c *Conversation) notify(msg types.Message) {
	if c.listener != nil {
		c.listener(msg.Clone())
	}
}
