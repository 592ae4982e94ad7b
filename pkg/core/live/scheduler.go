package live

import (
	"sync"
	"time"

	"github.com/vango-go/vai-studio/pkg/core/audio"
)

// Scheduler lays out incoming audio chunks back to back on a playback clock.
//
// Each chunk starts at max(cursor, now) and advances the cursor by its
// duration, so chunks arriving in order never gap or overlap unless the
// playback ran dry in between.
type Scheduler struct {
	playback Playback

	mu      sync.Mutex
	cursor  time.Duration
	handles []Handle
}

// NewScheduler creates a scheduler with its cursor at the clock base.
func NewScheduler(playback Playback) *Scheduler {
	return &Scheduler{playback: playback}
}

// Schedule queues buf and returns the clock time it will start at.
func (s *Scheduler) Schedule(buf *audio.Buffer) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := max(s.cursor, s.playback.Now())
	h, err := s.playback.Schedule(buf, start)
	if err != nil {
		return 0, err
	}
	s.cursor = start + buf.Duration()
	s.pruneLocked()
	s.handles = append(s.handles, h)
	return start, nil
}

// Interrupt stops and discards every queued buffer and resets the cursor, so
// the next chunk starts immediately.
func (s *Scheduler) Interrupt() int {
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.cursor = 0
	s.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
	return len(handles)
}

// Cursor returns the end time of the last scheduled buffer.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Active returns the number of buffers that have not finished.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	return len(s.handles)
}

func (s *Scheduler) pruneLocked() {
	kept := s.handles[:0]
	for _, h := range s.handles {
		select {
		case <-h.Done():
		default:
			kept = append(kept, h)
		}
	}
	clear(s.handles[len(kept):])
	s.handles = kept
}
