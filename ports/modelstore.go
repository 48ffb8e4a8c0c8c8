package ports

import (
	"context"

	"edupulse/domain/core"
)

// ModelSnapshot is an opaque serialized set of trained model weights.
type ModelSnapshot struct {
	ModelID core.ModelID `json:"model_id"`
	Kind    string       `json:"kind"` // "risk"; the autoencoder is refit per batch and never persisted
	Payload []byte       `json:"payload"`
}

// ModelStore persists trained model state between sessions.
// Load failures are non-fatal for callers: the engine falls back to an
// untrained model and retrains.
type ModelStore interface {
	Save(ctx context.Context, snapshot ModelSnapshot) error
	Load(ctx context.Context, id core.ModelID, kind string) (ModelSnapshot, error)
}
