// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for capture-side frame encoders
package encode

// Encoder encodes captured float32 sample frames to wire bytes
type Encoder interface {
	// Encode converts one frame of samples in [-1, 1] to encoded bytes
	Encode(samples []float32) ([]byte, error)

	// Close releases encoder resources
	Close() error
}
