// ABOUTME: Sample rate conversion for the capture path
// ABOUTME: Linear interpolation resampler for float32 frames
// Package resample converts captured audio between sample rates using
// linear interpolation. The capture loop uses it when a source's native
// rate differs from the upstream session's input rate.
package resample
