// Package weft builds executable workflow graphs from natural-language
// descriptions, grounding every step against an external capability
// registry.
package weft

const (
	// Name is the service name used in logs and health responses
	Name = "weft"

	// Version is the service version reported at startup
	Version = "0.1.0"
)
