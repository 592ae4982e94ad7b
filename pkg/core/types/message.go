package types

import (
	"slices"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one entry of the conversation transcript.
//
// Text is accumulated while Pending is true; Citations is replaced as a whole
// each time new grounding metadata arrives.
type Message struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
	Media     []MediaRef `json:"media,omitempty"`
	Pending   bool       `json:"pending,omitempty"`
}

// NewMessage creates a message with a fresh identifier.
func NewMessage(role Role, text string) Message {
	return Message{
		ID:   uuid.NewString(),
		Role: role,
		Text: text,
	}
}

// Clone returns a deep copy so callers can hand snapshots to observers.
func (m Message) Clone() Message {
	out := m
	out.Citations = slices.Clone(m.Citations)
	out.Media = slices.Clone(m.Media)
	return out
}

// Citation is a web source referenced by generated text via an "[S<n>]" marker.
type Citation struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// Lookup returns the citation with the given id.
func Lookup(set []Citation, id string) (Citation, bool) {
	for _, c := range set {
		if c.ID == id {
			return c, true
		}
	}
	return Citation{}, false
}
