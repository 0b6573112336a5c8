// ABOUTME: Upstream model session abstraction
// ABOUTME: Defines the tagged event stream and session interface
package upstream

import (
	"context"
	"errors"

	"github.com/voicebridge/voicebridge-go/pkg/audio"
)

// Error types
var (
	ErrUnavailable    = errors.New("upstream endpoint unavailable")
	ErrSessionClosed  = errors.New("upstream session closed")
	ErrSendBufferFull = errors.New("upstream send buffer full")
)

// EventKind discriminates the variants of an upstream event
type EventKind int

const (
	KindText EventKind = iota
	KindAudio
	KindFileRef
	KindTurnComplete
	KindError
)

func (k EventKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindAudio:
		return "audio"
	case KindFileRef:
		return "file-ref"
	case KindTurnComplete:
		return "turn-complete"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one element of the upstream event stream. Exactly the fields
// for its Kind are set; everything else is zero.
type Event struct {
	Kind     EventKind
	Text     string       // KindText
	Audio    []byte       // KindAudio: raw chunk bytes
	MimeType string       // KindAudio
	Format   audio.Format // KindAudio: parsed from MimeType
	URI      string       // KindFileRef
	Message  string       // KindError
}

// Config describes how to reach the model endpoint
type Config struct {
	Endpoint        string // wss:// URL
	APIKey          string
	Model           string
	InputSampleRate int // PCM rate the endpoint expects from us
}

// Session is one live streaming exchange with the model endpoint.
// Events are delivered on Events() in arrival order; the channel is
// closed when the session ends for any reason.
type Session interface {
	// SendAudio forwards one PCM frame of user audio
	SendAudio(ctx context.Context, pcm []byte, mimeType string) error

	// EndTurn signals the end of the user's audio for the current turn
	EndTurn(ctx context.Context) error

	// Interrupt asks the endpoint to halt in-flight generation
	Interrupt(ctx context.Context) error

	// Events returns the inbound event stream
	Events() <-chan Event

	// Close tears the session down; safe to call more than once
	Close() error
}

// Factory creates sessions; the relay uses it so tests can substitute
// a fake endpoint
type Factory interface {
	Dial(ctx context.Context, cfg Config) (Session, error)
}
