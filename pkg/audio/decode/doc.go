// ABOUTME: Audio decoder package for the playback path
// ABOUTME: Provides Decoder interface and implementations for PCM, MP3, Opus
// Package decode turns incoming encoded audio chunks into int16 PCM
// samples for playback.
//
// Supports: PCM (L16), MP3, Opus. Decoders are selected per chunk
// mime type via New.
//
// Example:
//
//	decoder, err := decode.New(audio.ParseFormat(mimeType))
//	samples, err := decoder.Decode(chunk)
package decode
