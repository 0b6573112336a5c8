// ABOUTME: Audio encoder package for the capture path
// ABOUTME: Provides Encoder interface and the PCM frame implementation
// Package encode turns captured floating-point sample frames into the
// wire format sent upstream.
//
// The capture path is one-directional: frames are encoded, transported,
// and never decoded again on this side. Decoding of incoming audio is
// the decode package's job.
//
// Example:
//
//	encoder, err := encode.NewPCM(format)
//	data, err := encoder.Encode(frame)
package encode
