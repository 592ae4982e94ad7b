// Package audio converts between floating-point microphone samples and the
// 16-bit little-endian PCM frames carried by the live audio channel.
//
// Every function in this package is pure and safe for concurrent use.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	// InputSampleRate is the capture rate expected by the live service.
	InputSampleRate = 16000

	// OutputSampleRate is the rate of audio streamed back by the live service.
	OutputSampleRate = 24000

	// BytesPerSample is the size of one PCM16 sample.
	BytesPerSample = 2

	pcmScale = 32768.0
)

// EncodeFrame scales samples in [-1, 1] to signed 16-bit integers
// (round(s * 32768)) and serializes them little-endian.
//
// Values outside [-1, 1] saturate to the int16 range.
func EncodeFrame(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(saturate(s)))
	}
	return out
}

// EncodeFrameWrapping is EncodeFrame without saturation: out-of-range values
// wrap around the int16 range the way a plain integer narrowing would.
func EncodeFrameWrapping(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := int16(int64(math.Round(float64(s) * pcmScale)))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// EncodeBase64 returns the textual transport form of a PCM16 frame.
func EncodeBase64(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

func saturate(s float32) int16 {
	v := math.Round(float64(s) * pcmScale)
	if math.IsNaN(v) {
		return 0
	}
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Buffer is decoded, playable audio. Samples are stored planar: one slice per
// channel, all of equal length.
type Buffer struct {
	SampleRate int
	Data       [][]float32
}

// Channels returns the channel count.
func (b *Buffer) Channels() int {
	if b == nil {
		return 0
	}
	return len(b.Data)
}

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// PCM16 re-encodes the buffer as interleaved little-endian PCM16.
func (b *Buffer) PCM16() []byte {
	channels := b.Channels()
	frames := b.Frames()
	out := make([]byte, frames*channels*BytesPerSample)
	idx := 0
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			binary.LittleEndian.PutUint16(out[idx:], uint16(saturate(b.Data[c][f])))
			idx += BytesPerSample
		}
	}
	return out
}

// DecodeFrame reinterprets interleaved PCM16 little-endian bytes as samples in
// [-1, 1) and builds a buffer at the declared rate and channel count.
func DecodeFrame(data []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be > 0, got %d", channels)
	}
	frameBytes := channels * BytesPerSample
	if len(data)%frameBytes != 0 {
		return nil, fmt.Errorf("pcm length %d is not a multiple of %d", len(data), frameBytes)
	}

	frames := len(data) / frameBytes
	buf := &Buffer{
		SampleRate: sampleRate,
		Data:       make([][]float32, channels),
	}
	for c := range buf.Data {
		buf.Data[c] = make([]float32, frames)
	}
	idx := 0
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			sample := int16(binary.LittleEndian.Uint16(data[idx:]))
			buf.Data[c][f] = float32(float64(sample) / pcmScale)
			idx += BytesPerSample
		}
	}
	return buf, nil
}

// DecodeBase64 reverses EncodeBase64. The payload must hold whole PCM16
// samples.
func DecodeBase64(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 audio: %w", err)
	}
	if len(data)%BytesPerSample != 0 {
		return nil, fmt.Errorf("pcm length %d is not a multiple of %d", len(data), BytesPerSample)
	}
	return data, nil
}

// MIMEType returns the live API mime type for PCM16 at the given rate.
func MIMEType(sampleRate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}
