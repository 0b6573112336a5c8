// ABOUTME: Tests for turn assembly
// ABOUTME: Verifies ordering, artifact flushing, and turn isolation
package turn

import (
	"encoding/binary"
	"testing"

	"github.com/voicebridge/voicebridge-go/internal/upstream"
	"github.com/voicebridge/voicebridge-go/pkg/audio/wav"
)

type recordingSink struct {
	texts     []string
	audio     [][]byte
	mimes     []string
	files     []string
	completes [][]Artifact
}

func (r *recordingSink) OnText(text string) { r.texts = append(r.texts, text) }
func (r *recordingSink) OnAudio(chunk []byte, mimeType string) {
	r.audio = append(r.audio, chunk)
	r.mimes = append(r.mimes, mimeType)
}
func (r *recordingSink) OnFileRef(uri string) { r.files = append(r.files, uri) }
func (r *recordingSink) OnTurnComplete(artifacts []Artifact) {
	r.completes = append(r.completes, artifacts)
}

func TestAssemblerDeliversPartsImmediately(t *testing.T) {
	sink := &recordingSink{}
	a := NewAssembler(sink)

	a.Feed(upstream.Event{Kind: upstream.KindText, Text: "Hi"})
	a.Feed(upstream.Event{Kind: upstream.KindAudio, Audio: []byte{1, 2}, MimeType: "audio/L16;rate=24000"})
	a.Feed(upstream.Event{Kind: upstream.KindFileRef, URI: "https://example.com/x"})

	if len(sink.texts) != 1 || sink.texts[0] != "Hi" {
		t.Errorf("expected immediate text delivery, got %v", sink.texts)
	}
	if len(sink.audio) != 1 {
		t.Errorf("expected immediate audio delivery, got %d chunks", len(sink.audio))
	}
	if len(sink.files) != 1 {
		t.Errorf("expected immediate file delivery, got %v", sink.files)
	}
	if len(sink.completes) != 0 {
		t.Error("turn-complete fired before completion marker")
	}
}

func TestAssemblerFlushBuildsWAV(t *testing.T) {
	sink := &recordingSink{}
	a := NewAssembler(sink)

	mime := "audio/L16;rate=24000"
	a.Feed(upstream.Event{Kind: upstream.KindAudio, Audio: []byte{1, 2}, MimeType: mime})
	a.Feed(upstream.Event{Kind: upstream.KindAudio, Audio: []byte{3, 4, 5, 6}, MimeType: mime})
	a.Feed(upstream.Event{Kind: upstream.KindTurnComplete})

	if len(sink.completes) != 1 {
		t.Fatalf("expected 1 turn-complete, got %d", len(sink.completes))
	}
	artifacts := sink.completes[0]
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}

	file := artifacts[0].WAV
	if len(file) != wav.HeaderSize+6 {
		t.Fatalf("expected %d bytes, got %d", wav.HeaderSize+6, len(file))
	}
	if dataSize := binary.LittleEndian.Uint32(file[40:44]); dataSize != 6 {
		t.Errorf("data size: expected 6, got %d", dataSize)
	}
	if rate := binary.LittleEndian.Uint32(file[24:28]); rate != 24000 {
		t.Errorf("sample rate: expected 24000, got %d", rate)
	}

	payload := file[wav.HeaderSize:]
	for i, b := range []byte{1, 2, 3, 4, 5, 6} {
		if payload[i] != b {
			t.Fatalf("payload byte %d: expected %d, got %d", i, b, payload[i])
		}
	}
}

func TestAssemblerTurnIsolation(t *testing.T) {
	sink := &recordingSink{}
	a := NewAssembler(sink)

	a.Feed(upstream.Event{Kind: upstream.KindText, Text: "Hi"})
	a.Feed(upstream.Event{Kind: upstream.KindAudio, Audio: []byte{1, 2}, MimeType: "audio/L16;rate=24000"})
	a.Feed(upstream.Event{Kind: upstream.KindTurnComplete})
	a.Feed(upstream.Event{Kind: upstream.KindText, Text: "Bye"})
	a.Feed(upstream.Event{Kind: upstream.KindTurnComplete})

	if len(sink.completes) != 2 {
		t.Fatalf("expected exactly 2 turn-completes, got %d", len(sink.completes))
	}
	if len(sink.completes[1]) != 0 {
		t.Errorf("second turn leaked %d artifacts from the first", len(sink.completes[1]))
	}
	if a.PendingChunks() != 0 {
		t.Errorf("expected empty accumulation after flush, got %d chunks", a.PendingChunks())
	}
}

func TestAssemblerEmptyTurnStillCompletes(t *testing.T) {
	sink := &recordingSink{}
	a := NewAssembler(sink)

	a.Feed(upstream.Event{Kind: upstream.KindTurnComplete})

	if len(sink.completes) != 1 {
		t.Fatalf("expected turn-complete for empty turn, got %d", len(sink.completes))
	}
	if len(sink.completes[0]) != 0 {
		t.Errorf("expected no artifacts, got %d", len(sink.completes[0]))
	}
}

func TestAssemblerMultipleMimeTypes(t *testing.T) {
	sink := &recordingSink{}
	a := NewAssembler(sink)

	a.Feed(upstream.Event{Kind: upstream.KindAudio, Audio: []byte{1, 2}, MimeType: "audio/L16;rate=24000"})
	a.Feed(upstream.Event{Kind: upstream.KindAudio, Audio: []byte{3, 4}, MimeType: "audio/L16;rate=16000"})
	a.Feed(upstream.Event{Kind: upstream.KindAudio, Audio: []byte{5, 6}, MimeType: "audio/L16;rate=24000"})
	a.Feed(upstream.Event{Kind: upstream.KindTurnComplete})

	artifacts := sink.completes[0]
	if len(artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(artifacts))
	}
	// Key order follows first appearance
	if artifacts[0].Format.SampleRate != 24000 || artifacts[1].Format.SampleRate != 16000 {
		t.Errorf("unexpected artifact order: %v then %v", artifacts[0].MimeType, artifacts[1].MimeType)
	}
	if got := binary.LittleEndian.Uint32(artifacts[0].WAV[40:44]); got != 4 {
		t.Errorf("first artifact data size: expected 4, got %d", got)
	}
}

func TestAssemblerErrorEventPreservesState(t *testing.T) {
	sink := &recordingSink{}
	a := NewAssembler(sink)

	a.Feed(upstream.Event{Kind: upstream.KindAudio, Audio: []byte{1, 2}, MimeType: "audio/L16;rate=24000"})
	a.Feed(upstream.Event{Kind: upstream.KindError, Message: "transient"})

	if a.PendingChunks() != 1 {
		t.Errorf("error event corrupted accumulation: %d chunks", a.PendingChunks())
	}
}

func TestAssemblerDefaultsMissingMime(t *testing.T) {
	sink := &recordingSink{}
	a := NewAssembler(sink)

	a.Feed(upstream.Event{Kind: upstream.KindAudio, Audio: []byte{1, 2}})
	a.Feed(upstream.Event{Kind: upstream.KindTurnComplete})

	artifacts := sink.completes[0]
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}
	if artifacts[0].Format.SampleRate != 24000 {
		t.Errorf("expected default format, got %+v", artifacts[0].Format)
	}
}
