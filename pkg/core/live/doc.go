// Package live runs a real-time, bidirectional audio conversation with the
// service.
//
// A Manager owns exactly one session at a time. It captures microphone audio
// in fixed-size blocks, encodes each block as PCM16 and sends it over the
// transport, and schedules the model's audio for gapless playback through a
// Scheduler. Partial transcripts of both sides are accumulated and flushed into
// the session history when the model completes a turn.
//
// # State Machine
//
//	IDLE → CONNECTING → OPEN → CLOSING → CLOSED → IDLE
//	           │                  ↑
//	           └──── failure ─────┘
//
// Stop is the only cancellation primitive. It is unconditional: in-flight
// frames are dropped and queued playback is discarded.
package live
