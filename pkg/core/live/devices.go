package live

import (
	"context"
	"time"

	"github.com/vango-go/vai-studio/pkg/core/audio"
)

// Devices opens the audio endpoints used by a session.
type Devices interface {
	// OpenCapture acquires the microphone and starts capturing mono audio at
	// sampleRate. A refused microphone must be reported as a
	// core.ErrPermissionDenied error.
	OpenCapture(ctx context.Context, sampleRate int) (Capture, error)

	// OpenPlayback opens an output context running at sampleRate.
	OpenPlayback(ctx context.Context, sampleRate int) (Playback, error)
}

// Capture is a running microphone capture.
type Capture interface {
	// Read fills dst with the next normalized samples and returns how many were
	// written. It blocks until a full block is available or the capture ends.
	Read(dst []float32) (int, error)

	// Close releases the microphone and unblocks Read.
	Close() error
}

// Playback is an output device context with a monotonic clock.
type Playback interface {
	// Now is the context's clock, measured from when it was opened.
	Now() time.Duration

	// Schedule queues buf to start playing at the given clock time.
	Schedule(buf *audio.Buffer, at time.Duration) (Handle, error)

	Close() error
}

// Handle is one scheduled playback buffer.
type Handle interface {
	// Stop cancels the buffer if it has not finished. Stop is idempotent.
	Stop()

	// Done is closed when the buffer finished playing or was stopped.
	Done() <-chan struct{}
}
