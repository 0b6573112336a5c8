// ABOUTME: Tests for the artifact store
// ABOUTME: Verifies per-session, per-turn file layout
package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/voicebridge/voicebridge-go/internal/turn"
	"github.com/voicebridge/voicebridge-go/pkg/audio"
	"github.com/voicebridge/voicebridge-go/pkg/audio/wav"
)

func testArtifact(t *testing.T, payload []byte) turn.Artifact {
	t.Helper()
	format := audio.DefaultFormat()
	return turn.Artifact{
		MimeType: format.MimeType(),
		Format:   format,
		WAV:      wav.Build([][]byte{payload}, format),
	}
}

func TestDirSaveTurn(t *testing.T) {
	base := t.TempDir()
	store, err := NewDir(base)
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}

	artifact := testArtifact(t, []byte{1, 2, 3, 4})
	if err := store.SaveTurn("session-a", "turn-1", []turn.Artifact{artifact}); err != nil {
		t.Fatalf("SaveTurn failed: %v", err)
	}

	path := filepath.Join(base, "session-a", "turn-1.wav")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}

	info, err := wav.Probe(data)
	if err != nil {
		t.Fatalf("saved artifact is not valid WAV: %v", err)
	}
	if info.DataBytes != 4 {
		t.Errorf("expected 4 data bytes, got %d", info.DataBytes)
	}
}

func TestDirSeparateSessionsDoNotCollide(t *testing.T) {
	base := t.TempDir()
	store, _ := NewDir(base)

	a := testArtifact(t, []byte{1, 1})
	b := testArtifact(t, []byte{2, 2, 2, 2})

	if err := store.SaveTurn("session-a", "turn-1", []turn.Artifact{a}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveTurn("session-b", "turn-1", []turn.Artifact{b}); err != nil {
		t.Fatal(err)
	}

	dataA, _ := os.ReadFile(filepath.Join(base, "session-a", "turn-1.wav"))
	dataB, _ := os.ReadFile(filepath.Join(base, "session-b", "turn-1.wav"))
	if len(dataA) == len(dataB) {
		t.Error("expected distinct artifacts for distinct sessions")
	}
}

func TestDirMultipleArtifactsPerTurn(t *testing.T) {
	base := t.TempDir()
	store, _ := NewDir(base)

	artifacts := []turn.Artifact{
		testArtifact(t, []byte{1, 2}),
		testArtifact(t, []byte{3, 4}),
	}
	if err := store.SaveTurn("s", "t", artifacts); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(base, "s", "t.wav")); err != nil {
		t.Errorf("first artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "s", "t-1.wav")); err != nil {
		t.Errorf("second artifact missing: %v", err)
	}
}

func TestDirEmptyTurnWritesNothing(t *testing.T) {
	base := t.TempDir()
	store, _ := NewDir(base)

	if err := store.SaveTurn("s", "t", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "s")); !os.IsNotExist(err) {
		t.Error("expected no session directory for an empty turn")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemory()

	artifact := testArtifact(t, []byte{9, 9})
	if err := store.SaveTurn("s", "t", []turn.Artifact{artifact}); err != nil {
		t.Fatal(err)
	}

	saved, ok := store.Turn("s", "t")
	if !ok || len(saved) != 1 {
		t.Fatalf("expected saved turn, got ok=%v n=%d", ok, len(saved))
	}
	if store.Count() != 1 {
		t.Errorf("expected 1 turn, got %d", store.Count())
	}
}
