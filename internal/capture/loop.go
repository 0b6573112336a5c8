// ABOUTME: Capture loop feeding source audio to the relay
// ABOUTME: Resamples, encodes, and frames microphone-side PCM
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/voicebridge/voicebridge-go/pkg/audio"
	"github.com/voicebridge/voicebridge-go/pkg/audio/encode"
	"github.com/voicebridge/voicebridge-go/pkg/audio/resample"
)

// ErrTransportClosed reports that the relay connection went away while
// capture was still running
var ErrTransportClosed = errors.New("capture transport closed")

// DefaultFrameSamples is the per-channel frame size read from the
// source each tick
const DefaultFrameSamples = 4096

// Transport is where captured frames go
type Transport interface {
	SendFrame(pcm []byte, mimeType string, endOfTurn bool) error
}

// LoopConfig configures a capture loop
type LoopConfig struct {
	Source       Source
	Transport    Transport
	UpstreamRate int // PCM rate the relay's upstream expects
	FrameSamples int // per-channel samples per frame; 0 means default
}

// Loop pulls frames from a source in real time and streams them to the
// transport while recording is on. Frames read while recording is off
// are dropped so the source stays drained.
type Loop struct {
	source    Source
	transport Transport
	resampler *resample.Resampler
	encoder   encode.Encoder
	mimeType  string
	frameSize int

	mu         sync.Mutex
	recording  bool
	endPending bool
}

// NewLoop creates a capture loop. The source's rate is resampled to
// the upstream rate before encoding.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Source == nil || cfg.Transport == nil {
		return nil, errors.New("capture loop needs a source and a transport")
	}
	if cfg.UpstreamRate <= 0 {
		return nil, fmt.Errorf("invalid upstream rate %d", cfg.UpstreamRate)
	}

	frameSize := cfg.FrameSamples
	if frameSize <= 0 {
		frameSize = DefaultFrameSamples
	}

	format := audio.Format{
		Codec:      "pcm",
		SampleRate: cfg.UpstreamRate,
		Channels:   cfg.Source.Channels(),
		BitDepth:   16,
	}
	encoder, err := encode.NewPCM(format)
	if err != nil {
		return nil, err
	}

	return &Loop{
		source:    cfg.Source,
		transport: cfg.Transport,
		resampler: resample.New(cfg.Source.SampleRate(), cfg.UpstreamRate, cfg.Source.Channels()),
		encoder:   encoder,
		mimeType:  format.MimeType(),
		frameSize: frameSize,
	}, nil
}

// StartRecording begins streaming captured frames
func (l *Loop) StartRecording() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.recording {
		l.recording = true
		l.resampler.Reset()
		log.Printf("Capture: recording on")
	}
}

// StopRecording stops streaming and marks the turn's end. The end
// marker is emitted by the loop itself so it always follows the last
// streamed frame.
func (l *Loop) StopRecording() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recording {
		l.recording = false
		l.endPending = true
		log.Printf("Capture: recording off")
	}
}

// IsRecording reports whether frames are currently being streamed
func (l *Loop) IsRecording() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recording
}

// Run drives the loop at real-time pace until the context ends, the
// source is exhausted, or the transport fails. Source exhaustion ends
// the current turn cleanly.
func (l *Loop) Run(ctx context.Context) error {
	frame := make([]float32, l.frameSize*l.source.Channels())
	frameDur := time.Duration(l.frameSize) * time.Second / time.Duration(l.source.SampleRate())

	ticker := time.NewTicker(frameDur)
	defer ticker.Stop()
	defer l.source.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		n, err := l.source.Read(frame)
		if err == io.EOF {
			if l.IsRecording() {
				l.StopRecording()
			}
			return l.flushEnd()
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}

		if l.IsRecording() && n > 0 {
			resampled := l.resampler.Resample(frame[:n])
			pcm, err := l.encoder.Encode(resampled)
			if err != nil {
				return err
			}
			if err := l.transport.SendFrame(pcm, l.mimeType, false); err != nil {
				return fmt.Errorf("%w: %v", ErrTransportClosed, err)
			}
		}

		if err := l.flushEnd(); err != nil {
			return err
		}
	}
}

// flushEnd emits a pending end-of-turn marker
func (l *Loop) flushEnd() error {
	l.mu.Lock()
	pending := l.endPending
	l.endPending = false
	l.mu.Unlock()

	if !pending {
		return nil
	}
	if err := l.transport.SendFrame(nil, l.mimeType, true); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	return nil
}
