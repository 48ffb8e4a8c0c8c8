package identity

import (
	"edupulse/domain/core"
	"edupulse/ports"
)

// UUIDGenerator issues time-ordered UUID identifiers for analysis results.
type UUIDGenerator struct{}

// NewUUIDGenerator creates the production id generator.
func NewUUIDGenerator() ports.IDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewAnalysisID() core.AnalysisID {
	return core.AnalysisID(core.NewID())
}

func (g *UUIDGenerator) NewPatternID() core.PatternID {
	return core.PatternID(core.NewID())
}
