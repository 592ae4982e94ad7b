package audio

import "math"

// RMSEnergy computes the root-mean-square energy of PCM16 little-endian audio.
// Returns a value between 0.0 and 1.0.
func RMSEnergy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < len(pcm)-1; i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := float64(sample) / pcmScale
		sum += normalized * normalized
	}

	return math.Sqrt(sum / float64(samples))
}
