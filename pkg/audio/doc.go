// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Buffer types and sample conversion functions
// Package audio provides fundamental audio types for the voice pipeline.
//
// This package defines core types used throughout the module:
//   - Format: Describes an audio stream (codec, sample rate, channels, bit depth),
//     parseable from mime-style descriptors like "audio/L16;rate=24000"
//   - Buffer: Decoded 16-bit PCM with its format
//
// It also provides conversion between float32 samples in [-1, 1] and
// 16-bit PCM:
//
//	pcm := audio.FloatToInt16(sample)
//	f := audio.Int16ToFloat(pcm)
package audio
