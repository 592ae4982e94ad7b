package types

// LiveState is the lifecycle state of a live audio session.
type LiveState string

const (
	LiveIdle       LiveState = "idle"
	LiveConnecting LiveState = "connecting"
	LiveOpen       LiveState = "open"
	LiveClosing    LiveState = "closing"
	LiveClosed     LiveState = "closed"
)

// TranscriptTurn is one user-then-model exchange of a live session.
// While a turn is in progress it holds the partial transcripts.
type TranscriptTurn struct {
	User  string `json:"user"`
	Model string `json:"model"`
}

// Empty reports whether neither side has said anything yet.
func (t TranscriptTurn) Empty() bool {
	return t.User == "" && t.Model == ""
}
