// ABOUTME: Audio output using oto library
// ABOUTME: Handles PCM playback with software volume control
package player

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/voicebridge/voicebridge-go/pkg/audio"
)

// Output plays PCM buffers through the system audio device. It
// implements Sink so the scheduler can drive it.
type Output struct {
	mu      sync.Mutex
	otoCtx  *oto.Context
	current *oto.Player
	format  audio.Format
	volume  int
	muted   bool
	ready   bool
}

// NewOutput creates an audio output
func NewOutput() *Output {
	return &Output{volume: 100}
}

// Initialize sets up oto with the specified format
func (o *Output) Initialize(format audio.Format) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready && o.format.SampleRate == format.SampleRate && o.format.Channels == format.Channels {
		return nil
	}
	if o.otoCtx != nil {
		// oto contexts are process-wide; the rate cannot change once set
		return fmt.Errorf("output already initialized at %dHz", o.format.SampleRate)
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.format = format
	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels",
		format.SampleRate, format.Channels)

	return nil
}

// Play starts playback of one buffer and calls done when it finishes.
// Implements Sink.
func (o *Output) Play(buf audio.Buffer, done func(error)) error {
	o.mu.Lock()
	if !o.ready {
		o.mu.Unlock()
		return fmt.Errorf("output not initialized")
	}

	data := make([]byte, len(buf.Samples)*2)
	multiplier := getVolumeMultiplier(o.volume, o.muted)
	for i, sample := range buf.Samples {
		scaled := int16(float64(sample) * multiplier)
		binary.LittleEndian.PutUint16(data[i*2:], uint16(scaled))
	}

	player := o.otoCtx.NewPlayer(bytes.NewReader(data))
	o.current = player
	o.mu.Unlock()

	player.Play()

	go func() {
		for player.IsPlaying() {
			time.Sleep(10 * time.Millisecond)
		}
		o.mu.Lock()
		if o.current == player {
			o.current = nil
		}
		o.mu.Unlock()
		done(player.Close())
	}()

	return nil
}

// Stop halts the buffer currently playing, if any. Implements Sink.
func (o *Output) Stop() error {
	o.mu.Lock()
	player := o.current
	o.current = nil
	o.mu.Unlock()

	if player != nil {
		return player.Close()
	}
	return nil
}

// SetVolume sets the volume (0-100)
func (o *Output) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	o.mu.Lock()
	o.volume = volume
	o.mu.Unlock()
	log.Printf("Volume set to %d", volume)
}

// SetMuted sets mute state
func (o *Output) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.mu.Unlock()
	log.Printf("Muted: %v", muted)
}

// GetVolume returns current volume
func (o *Output) GetVolume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// IsMuted returns mute state
func (o *Output) IsMuted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}

// Close suspends the audio device
func (o *Output) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.ready = false
	}
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
