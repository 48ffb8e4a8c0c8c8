package ports

import (
	"edupulse/domain/core"
)

// IDGenerator produces identifiers for analysis results.
// Injected so tests can assert deterministic ids.
type IDGenerator interface {
	NewAnalysisID() core.AnalysisID
	NewPatternID() core.PatternID
}
