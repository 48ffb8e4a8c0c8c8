package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations.
// Centroid seeding, weight initialization and dropout masks all draw from named
// streams so repeated runs with the same seed reproduce bit-identical results.
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)
}
