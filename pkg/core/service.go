package core

import (
	"context"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

// Service is the full capability set of the remote generative service.
type Service interface {
	ChatStreamer
	ImageGenerator
	ImageEditor
	VideoJobs
	LiveConnector
}

// ChatTurn is a prior exchange sent as context with a chat request.
type ChatTurn struct {
	Role types.Role
	Text string
}

// ChatRequest opens one grounded chat exchange.
type ChatRequest struct {
	Prompt  string
	History []ChatTurn
	// System is an optional system instruction.
	System string
}

// Source is one web source found in a fragment's grounding metadata.
type Source struct {
	URL    string
	Title  string
	Domain string
}

// Grounding is the citation metadata attached to a streamed fragment.
type Grounding struct {
	Sources []Source
}

// Fragment is one incremental unit of a streamed chat response.
type Fragment struct {
	Text      string
	Grounding *Grounding
	Usage     *types.Usage
}

// FragmentStream is an iterator over streamed fragments.
type FragmentStream interface {
	// Next returns the next fragment. Returns io.EOF when the stream ended normally.
	Next() (Fragment, error)

	// Close releases resources.
	Close() error
}

// ChatStreamer opens grounded streaming chat exchanges.
type ChatStreamer interface {
	StreamChat(ctx context.Context, req ChatRequest) (FragmentStream, error)
}

// ImageRequest describes a single-image generation.
type ImageRequest struct {
	Prompt      string
	AspectRatio string
}

// EditRequest describes an image edit.
type EditRequest struct {
	Prompt    string
	Image     []byte
	ImageMIME string
}

// GeneratedMedia is a binary payload or remote URL returned by the service.
type GeneratedMedia struct {
	Data     []byte
	URL      string
	MIMEType string
}

// ImageGenerator produces one image from a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*GeneratedMedia, error)
}

// ImageEditor produces one edited image from a source image and a prompt.
type ImageEditor interface {
	EditImage(ctx context.Context, req EditRequest) (*GeneratedMedia, error)
}

// VideoRequest describes a video generation job.
type VideoRequest struct {
	Prompt      string
	AspectRatio string
	Image       []byte
	ImageMIME   string
}

// JobStatus is the remote view of a long-running job after submit or poll.
type JobStatus struct {
	Name   string
	Done   bool
	Result *GeneratedMedia
}

// VideoJobs submits and polls video generation jobs.
type VideoJobs interface {
	SubmitVideo(ctx context.Context, req VideoRequest) (*JobStatus, error)
	PollVideo(ctx context.Context, name string) (*JobStatus, error)
}

// LiveConfig configures a bidirectional audio session.
type LiveConfig struct {
	Voice            string
	System           string
	InputSampleRate  int
	OutputSampleRate int
	TranscribeInput  bool
	TranscribeOutput bool
}

// LiveConnector opens bidirectional real-time audio sessions.
type LiveConnector interface {
	ConnectLive(ctx context.Context, cfg LiveConfig) (LiveTransport, error)
}

// LiveTransport is an open live session with the service.
//
// Events yields server events in arrival order and is closed when the
// transport ends. SendAudio is fire-and-forget per frame. Close does not wait
// for the service to acknowledge.
type LiveTransport interface {
	// Opened is closed once the service acknowledged the session setup.
	Opened() <-chan struct{}
	Events() <-chan LiveEvent
	SendAudio(pcm []byte) error
	Close() error
}

// LiveEvent is a tagged union of the events a live transport delivers.
type LiveEvent interface {
	liveEvent()
}

// Speaker identifies which side a transcript fragment belongs to.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// TranscriptFragment is a partial transcription of either side.
type TranscriptFragment struct {
	Speaker Speaker
	Text    string
}

// AudioPayload is a chunk of model speech as PCM16 little-endian mono.
type AudioPayload struct {
	PCM        []byte
	SampleRate int
}

// TurnComplete marks the end of a model turn.
type TurnComplete struct{}

// Interrupted signals barge-in: queued playback must be discarded.
type Interrupted struct{}

// TransportFailure carries a terminal transport error.
type TransportFailure struct {
	Err error
}

func (TranscriptFragment) liveEvent() {}
func (AudioPayload) liveEvent()       {}
func (TurnComplete) liveEvent()       {}
func (Interrupted) liveEvent()        {}
func (TransportFailure) liveEvent()   {}
