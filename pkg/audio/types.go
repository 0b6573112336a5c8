// ABOUTME: Audio type definitions and format descriptor parsing
// ABOUTME: Defines stream formats, decoded buffers, and sample conversion
package audio

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// Defaults applied when a format descriptor omits a field
	DefaultSampleRate = 24000
	DefaultChannels   = 1
	DefaultBitDepth   = 16
)

// Format describes an audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Buffer represents decoded PCM audio ready for playback
type Buffer struct {
	Samples []int16
	Format  Format
}

// DefaultFormat returns the pipeline's default format (mono 16-bit 24kHz PCM)
func DefaultFormat() Format {
	return Format{
		Codec:      "pcm",
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		BitDepth:   DefaultBitDepth,
	}
}

// ParseFormat parses a MIME-style descriptor like "audio/L16;rate=24000"
// into a Format. It is a total function: malformed or missing fields fall
// back to the defaults rather than producing an error.
func ParseFormat(descriptor string) Format {
	f := DefaultFormat()

	segments := strings.Split(descriptor, ";")
	if len(segments) == 0 {
		return f
	}

	// First segment is "type/subtype". A subtype of the form L<digits>
	// carries the bit depth (e.g. L16, L24). Other known subtypes map to
	// a codec for the decoder registry.
	head := strings.TrimSpace(segments[0])
	if slash := strings.Index(head, "/"); slash >= 0 {
		subtype := head[slash+1:]
		if strings.HasPrefix(subtype, "L") {
			if bits, err := strconv.Atoi(subtype[1:]); err == nil && bits > 0 {
				f.BitDepth = bits
			}
		} else {
			switch strings.ToLower(subtype) {
			case "mpeg", "mp3":
				f.Codec = "mp3"
			case "opus", "ogg":
				f.Codec = "opus"
			case "pcm", "wav", "x-wav":
				f.Codec = "pcm"
			}
		}
	}

	// Remaining segments are key=value parameters
	for _, seg := range segments[1:] {
		seg = strings.TrimSpace(seg)
		key, value, found := strings.Cut(seg, "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "rate":
			if rate, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && rate > 0 {
				f.SampleRate = rate
			}
		case "channels":
			if ch, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && ch > 0 {
				f.Channels = ch
			}
		}
	}

	return f
}

// MimeType renders the format as a descriptor string for the wire
func (f Format) MimeType() string {
	switch f.Codec {
	case "mp3":
		return "audio/mpeg"
	case "opus":
		return "audio/opus"
	default:
		return fmt.Sprintf("audio/L%d;rate=%d", f.BitDepth, f.SampleRate)
	}
}

// FrameBytes returns the byte size of one interleaved sample frame
func (f Format) FrameBytes() int {
	return f.Channels * f.BitDepth / 8
}

// FloatToInt16 converts a float sample in [-1, 1] to a signed 16-bit
// sample. Input is clamped first; negative values scale by 32768 and
// non-negative by 32767 so both extremes stay in the int16 range.
func FloatToInt16(sample float32) int16 {
	if sample < -1.0 {
		sample = -1.0
	}
	if sample > 1.0 {
		sample = 1.0
	}
	if sample < 0 {
		return int16(sample * 32768.0)
	}
	return int16(sample * 32767.0)
}

// Int16ToFloat converts a signed 16-bit sample back to float in [-1, 1]
func Int16ToFloat(sample int16) float32 {
	if sample < 0 {
		return float32(sample) / 32768.0
	}
	return float32(sample) / 32767.0
}
