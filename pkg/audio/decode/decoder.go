// ABOUTME: Decoder interface and codec registry
// ABOUTME: Selects a decoder implementation by stream format
package decode

import (
	"fmt"

	"github.com/voicebridge/voicebridge-go/pkg/audio"
)

// Decoder decodes audio in various formats to int16 PCM samples
type Decoder interface {
	// Decode converts encoded audio data to PCM samples
	Decode(data []byte) ([]int16, error)

	// Close releases decoder resources
	Close() error
}

// New creates a decoder for the given format
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "mp3":
		return NewMP3(format)
	case "opus":
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
	}
}
