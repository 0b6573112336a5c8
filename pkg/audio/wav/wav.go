// ABOUTME: WAV container building and parsing
// ABOUTME: Synthesizes 44-byte RIFF/WAVE headers over raw PCM chunks
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/voicebridge/voicebridge-go/pkg/audio"
)

// HeaderSize is the fixed size of the RIFF/WAVE/fmt/data header we emit
const HeaderSize = 44

// Header represents the header structure of a PCM WAV file
type Header struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // 36 + data length
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // data length
}

// Build concatenates raw PCM chunks under a freshly computed header.
// The header is derived entirely from the chunk lengths and the format,
// so the final artifact's length fields are exact regardless of how many
// chunks arrived. Non-positive format fields fall back to the defaults,
// making Build total. An empty chunk list yields a valid zero-length file.
func Build(chunks [][]byte, f audio.Format) []byte {
	if f.SampleRate <= 0 {
		f.SampleRate = audio.DefaultSampleRate
	}
	if f.Channels <= 0 {
		f.Channels = audio.DefaultChannels
	}
	if f.BitDepth <= 0 {
		f.BitDepth = audio.DefaultBitDepth
	}

	dataLen := 0
	for _, c := range chunks {
		dataLen += len(c)
	}

	header := Header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + dataLen),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.SampleRate) * uint32(f.Channels) * uint32(f.BitDepth) / 8,
		BlockAlign:    uint16(f.Channels * f.BitDepth / 8),
		BitsPerSample: uint16(f.BitDepth),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataLen),
	}

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+dataLen))
	// binary.Write on a fixed-size struct into a bytes.Buffer cannot fail
	_ = binary.Write(buf, binary.LittleEndian, header)
	for _, c := range chunks {
		buf.Write(c)
	}

	return buf.Bytes()
}

// Decode parses a PCM WAV file into int16 samples and its format
func Decode(data []byte) ([]int16, audio.Format, error) {
	var f audio.Format

	header, err := readHeader(data)
	if err != nil {
		return nil, f, err
	}

	if header.AudioFormat != 1 {
		return nil, f, fmt.Errorf("unsupported audio format tag: %d (only PCM is supported)", header.AudioFormat)
	}
	if header.BitsPerSample != 16 {
		return nil, f, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", header.BitsPerSample)
	}

	f = audio.Format{
		Codec:      "pcm",
		SampleRate: int(header.SampleRate),
		Channels:   int(header.NumChannels),
		BitDepth:   int(header.BitsPerSample),
	}

	payload := data[HeaderSize:]
	if uint32(len(payload)) > header.Subchunk2Size {
		payload = payload[:header.Subchunk2Size]
	}

	samples := make([]int16, len(payload)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(payload[i*2:]))
	}

	return samples, f, nil
}

// Info summarizes a WAV file without decoding its payload
type Info struct {
	SampleRate    int     `json:"sample_rate"`
	Channels      int     `json:"channels"`
	BitsPerSample int     `json:"bits_per_sample"`
	DataBytes     int     `json:"data_bytes"`
	Duration      float64 `json:"duration_seconds"`
}

// Probe extracts header metadata from a WAV file
func Probe(data []byte) (Info, error) {
	header, err := readHeader(data)
	if err != nil {
		return Info{}, err
	}

	bytesPerSecond := int(header.SampleRate) * int(header.NumChannels) * int(header.BitsPerSample) / 8
	info := Info{
		SampleRate:    int(header.SampleRate),
		Channels:      int(header.NumChannels),
		BitsPerSample: int(header.BitsPerSample),
		DataBytes:     int(header.Subchunk2Size),
	}
	if bytesPerSecond > 0 {
		info.Duration = float64(header.Subchunk2Size) / float64(bytesPerSecond)
	}

	return info, nil
}

func readHeader(data []byte) (Header, error) {
	var header Header

	if len(data) < HeaderSize {
		return header, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", HeaderSize, len(data))
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return header, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" {
		return header, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(header.Format[:]) != "WAVE" {
		return header, fmt.Errorf("invalid WAV file: missing WAVE format")
	}
	if string(header.Subchunk1ID[:]) != "fmt " {
		return header, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	if string(header.Subchunk2ID[:]) != "data" {
		return header, fmt.Errorf("invalid WAV file: missing data chunk")
	}

	return header, nil
}
