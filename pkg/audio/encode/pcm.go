// ABOUTME: PCM frame encoder
// ABOUTME: Encodes float32 capture frames to 16-bit little-endian PCM
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/voicebridge/voicebridge-go/pkg/audio"
)

// PCMEncoder encodes float frames as signed 16-bit little-endian PCM
type PCMEncoder struct{}

// NewPCM creates a new PCM frame encoder
func NewPCM(format audio.Format) (Encoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (capture path is 16-bit)", format.BitDepth)
	}

	return &PCMEncoder{}, nil
}

// Encode converts float32 samples to 16-bit LE PCM bytes. Each sample is
// clamped to [-1, 1] and scaled asymmetrically (see audio.FloatToInt16).
// The output buffer is the only allocation.
func (e *PCMEncoder) Encode(samples []float32) ([]byte, error) {
	output := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(output[i*2:], uint16(audio.FloatToInt16(sample)))
	}
	return output, nil
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
