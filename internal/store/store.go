// ABOUTME: Durable storage for completed turn audio artifacts
// ABOUTME: Writes per-session, per-turn WAV files under a base directory
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/voicebridge/voicebridge-go/internal/turn"
)

// Store persists the audio artifacts of completed turns. Artifacts are
// keyed by session and turn so concurrent sessions never contend for a
// shared filename.
type Store interface {
	SaveTurn(sessionID, turnID string, artifacts []turn.Artifact) error
}

// Dir stores artifacts as <base>/<session>/<turn>[-n].wav
type Dir struct {
	base string
}

// NewDir creates a directory-backed store rooted at base
func NewDir(base string) (*Dir, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Dir{base: base}, nil
}

// SaveTurn writes each artifact of a completed turn. A turn with several
// mime types gets an index suffix per extra artifact.
func (d *Dir) SaveTurn(sessionID, turnID string, artifacts []turn.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}

	dir := filepath.Join(d.base, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	for i, artifact := range artifacts {
		name := turnID + ".wav"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.wav", turnID, i)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, artifact.WAV, 0o644); err != nil {
			return fmt.Errorf("failed to write artifact %s: %w", path, err)
		}
	}

	return nil
}

// Memory keeps artifacts in a map for tests and the dev server
type Memory struct {
	mu    sync.Mutex
	turns map[string][]turn.Artifact
}

// NewMemory creates an in-memory store
func NewMemory() *Memory {
	return &Memory{turns: make(map[string][]turn.Artifact)}
}

// SaveTurn records the artifacts under "<session>/<turn>"
func (m *Memory) SaveTurn(sessionID, turnID string, artifacts []turn.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[sessionID+"/"+turnID] = artifacts
	return nil
}

// Turn returns the artifacts saved for one turn, if any
func (m *Memory) Turn(sessionID, turnID string) ([]turn.Artifact, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	artifacts, ok := m.turns[sessionID+"/"+turnID]
	return artifacts, ok
}

// Count returns the number of saved turns
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}
