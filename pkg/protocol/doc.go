// ABOUTME: VoiceBridge wire protocol package
// ABOUTME: JSON message shapes exchanged between client and relay
// Package protocol defines the JSON messages exchanged over the
// client/relay WebSocket.
//
// Client to relay: audio frames (base64 PCM with a mime descriptor and
// an end-of-turn flag) and end-turn control messages. Relay to client:
// open, text deltas, audio chunks, file references, turn-complete and
// error events.
package protocol
