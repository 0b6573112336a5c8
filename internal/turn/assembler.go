// ABOUTME: Turn assembly from the upstream event stream
// ABOUTME: Accumulates parts per turn and flushes WAV artifacts on completion
package turn

import (
	"log"

	"github.com/voicebridge/voicebridge-go/internal/upstream"
	"github.com/voicebridge/voicebridge-go/pkg/audio"
	"github.com/voicebridge/voicebridge-go/pkg/audio/wav"
)

// Artifact is the durable audio of one completed turn, one per mime type
// observed during the turn
type Artifact struct {
	MimeType string
	Format   audio.Format
	WAV      []byte
}

// Sink receives assembled output. Text, audio, and file references are
// delivered immediately as they arrive; OnTurnComplete fires exactly once
// per turn, including turns that accumulated nothing.
type Sink interface {
	OnText(text string)
	OnAudio(chunk []byte, mimeType string)
	OnFileRef(uri string)
	OnTurnComplete(artifacts []Artifact)
}

// Assembler reassembles the upstream event stream into discrete turns.
// At most one turn accumulates at a time; a new turn begins only after
// the previous turn's completion marker has been processed.
type Assembler struct {
	sink Sink

	// Accumulated raw audio for the in-progress turn, keyed by mime
	// type, with key arrival order preserved for deterministic flushes
	chunks map[string][][]byte
	order  []string
}

// NewAssembler creates an assembler delivering into sink
func NewAssembler(sink Sink) *Assembler {
	return &Assembler{
		sink:   sink,
		chunks: make(map[string][][]byte),
	}
}

// Feed processes one upstream event in arrival order. Audio chunks are
// both accumulated for the turn artifact and handed to the sink right
// away so playback starts before the turn completes.
func (a *Assembler) Feed(ev upstream.Event) {
	switch ev.Kind {
	case upstream.KindText:
		a.sink.OnText(ev.Text)

	case upstream.KindAudio:
		mime := ev.MimeType
		if mime == "" {
			mime = audio.DefaultFormat().MimeType()
		}
		if _, seen := a.chunks[mime]; !seen {
			a.order = append(a.order, mime)
		}
		a.chunks[mime] = append(a.chunks[mime], ev.Audio)
		a.sink.OnAudio(ev.Audio, mime)

	case upstream.KindFileRef:
		a.sink.OnFileRef(ev.URI)

	case upstream.KindTurnComplete:
		a.flush()

	case upstream.KindError:
		// Errors are the session's concern, not the turn's; the
		// accumulated state stays intact for a possible flush.

	default:
		log.Printf("Dropping upstream event of unknown kind %d", ev.Kind)
	}
}

// PendingChunks reports how many audio chunks the in-progress turn holds
func (a *Assembler) PendingChunks() int {
	n := 0
	for _, chunks := range a.chunks {
		n += len(chunks)
	}
	return n
}

// flush builds the final WAV snapshot for every accumulated mime type,
// emits turn-complete, and resets accumulation for the next turn. The
// header is computed once here, from the full chunk list.
func (a *Assembler) flush() {
	artifacts := make([]Artifact, 0, len(a.order))
	for _, mime := range a.order {
		format := audio.ParseFormat(mime)
		artifacts = append(artifacts, Artifact{
			MimeType: mime,
			Format:   format,
			WAV:      wav.Build(a.chunks[mime], format),
		})
	}

	a.chunks = make(map[string][][]byte)
	a.order = nil

	a.sink.OnTurnComplete(artifacts)
}
