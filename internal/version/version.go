// ABOUTME: Version constants for the voicebridge client and server
// ABOUTME: Single source of truth for product identity strings
package version

const (
	// Version is the release version
	Version = "0.1.0"

	// Product is the product name reported over discovery
	Product = "VoiceBridge"

	// Manufacturer identifies who builds this
	Manufacturer = "VoiceBridge Project"
)
