// ABOUTME: PCM audio decoder
// ABOUTME: Decodes 16-bit little-endian PCM to int16 samples
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/voicebridge/voicebridge-go/pkg/audio"
)

// PCMDecoder decodes raw 16-bit LE PCM
type PCMDecoder struct{}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}

	return &PCMDecoder{}, nil
}

// Decode converts PCM bytes to int16 samples. A trailing odd byte is
// ignored rather than treated as an error.
func (d *PCMDecoder) Decode(data []byte) ([]int16, error) {
	numSamples := len(data) / 2
	samples := make([]int16, numSamples)
	for i := 0; i < numSamples; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, nil
}

// Close releases decoder resources
func (d *PCMDecoder) Close() error {
	return nil
}
