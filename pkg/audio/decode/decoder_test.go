// ABOUTME: Tests for decoder registry and PCM decoding
// ABOUTME: Verifies codec selection and sample extraction
package decode

import (
	"encoding/binary"
	"testing"

	"github.com/voicebridge/voicebridge-go/pkg/audio"
)

func TestNewSelectsCodec(t *testing.T) {
	if _, err := New(audio.ParseFormat("audio/L16;rate=24000")); err != nil {
		t.Errorf("pcm: unexpected error: %v", err)
	}
	if _, err := New(audio.ParseFormat("audio/mpeg")); err != nil {
		t.Errorf("mp3: unexpected error: %v", err)
	}
	if _, err := New(audio.Format{Codec: "flac"}); err == nil {
		t.Error("expected error for unsupported codec")
	}
}

func TestPCMDecode(t *testing.T) {
	decoder, err := NewPCM(audio.DefaultFormat())
	if err != nil {
		t.Fatalf("NewPCM failed: %v", err)
	}

	input := []int16{0, 1, -1, 32767, -32768}
	data := make([]byte, len(input)*2)
	for i, s := range input {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	samples, err := decoder.Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(samples) != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), len(samples))
	}
	for i, s := range input {
		if samples[i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, samples[i])
		}
	}
}

func TestPCMDecodeOddTrailingByte(t *testing.T) {
	decoder, _ := NewPCM(audio.DefaultFormat())

	samples, err := decoder.Decode([]byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(samples) != 1 {
		t.Errorf("expected 1 sample, got %d", len(samples))
	}
}

func TestPCMDecodeEmpty(t *testing.T) {
	decoder, _ := NewPCM(audio.DefaultFormat())

	samples, err := decoder.Decode(nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("expected no samples, got %d", len(samples))
	}
}

func TestMP3DecodeRejectsGarbage(t *testing.T) {
	decoder, err := NewMP3(audio.Format{Codec: "mp3"})
	if err != nil {
		t.Fatalf("NewMP3 failed: %v", err)
	}
	if _, err := decoder.Decode([]byte{0xde, 0xad, 0xbe, 0xef}); err == nil {
		t.Error("expected error for garbage input")
	}
}
