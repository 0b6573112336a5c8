// ABOUTME: Audio capture sources for the client
// ABOUTME: Provides a test tone generator and a WAV file source
package capture

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/voicebridge/voicebridge-go/pkg/audio"
	"github.com/voicebridge/voicebridge-go/pkg/audio/wav"
)

// ErrSourceUnavailable reports a capture source that cannot deliver
// samples anymore
var ErrSourceUnavailable = errors.New("capture source unavailable")

// Source produces float32 PCM in [-1, 1]. Read fills the slice with
// interleaved samples and returns how many it wrote; io.EOF means the
// source is exhausted.
type Source interface {
	Read(samples []float32) (int, error)
	SampleRate() int
	Channels() int
	Close() error
}

// ToneSource generates a sine wave, useful for exercising the capture
// path without a microphone
type ToneSource struct {
	mu          sync.Mutex
	sampleIndex uint64
	frequency   float64
	sampleRate  int
}

// NewToneSource creates a tone generator at the given sample rate
func NewToneSource(sampleRate int) *ToneSource {
	return &ToneSource{
		frequency:  440.0, // A4 note
		sampleRate: sampleRate,
	}
}

func (s *ToneSource) Read(samples []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range samples {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.sampleRate)
		samples[i] = float32(math.Sin(2*math.Pi*s.frequency*t) * 0.5)
	}
	s.sampleIndex += uint64(len(samples))

	return len(samples), nil
}

func (s *ToneSource) SampleRate() int { return s.sampleRate }
func (s *ToneSource) Channels() int  { return 1 }
func (s *ToneSource) Close() error   { return nil }

// FileSource replays a WAV file as if it were live input
type FileSource struct {
	mu       sync.Mutex
	samples  []int16
	position int
	format   audio.Format
}

// NewFileSource loads a WAV file into memory
func NewFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	samples, format, err := wav.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &FileSource{samples: samples, format: format}, nil
}

func (s *FileSource) Read(samples []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.position >= len(s.samples) {
		return 0, io.EOF
	}

	n := 0
	for n < len(samples) && s.position < len(s.samples) {
		samples[n] = audio.Int16ToFloat(s.samples[s.position])
		s.position++
		n++
	}
	return n, nil
}

func (s *FileSource) SampleRate() int { return s.format.SampleRate }
func (s *FileSource) Channels() int   { return s.format.Channels }
func (s *FileSource) Close() error    { return nil }
