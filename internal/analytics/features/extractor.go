package features

import (
	"edupulse/domain/analytics"
	"edupulse/domain/core"
	"edupulse/domain/student"
	"edupulse/internal/errors"
)

// Normalization divisors. Chosen to map plausible domain ranges onto [0,1];
// out-of-range inputs are clamped rather than rejected.
const (
	gradeDivisor         = 10.0
	attendanceDivisor    = 100.0 // records carry attendance as a 0-100 percentage
	behaviorDivisor      = 10.0
	ageDivisor           = 18.0
	gradeLevelDivisor    = 12.0
	socioeconomicDivisor = 10.0
	outcomeDivisor       = 10.0
)

// Extractor turns raw student records into fixed-length normalized profiles.
// Pure and stateless: safe for concurrent use.
type Extractor struct{}

// NewExtractor creates a feature extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract builds the normalized feature vector for one record. The only
// failure mode on well-formed input is an empty grade sequence, which would
// otherwise divide by zero.
func (e *Extractor) Extract(rec student.Record) (analytics.FeatureVector, error) {
	avg, err := rec.AverageGrade()
	if err != nil {
		return nil, errors.WithCode(errors.CodeEmptyGradeSequence, core.ErrEmptyGradeSequence)
	}

	vec := make(analytics.FeatureVector, 0, analytics.FeatureCount)
	vec = append(vec,
		analytics.Clamp01(avg/gradeDivisor),
		analytics.Clamp01(rec.Attendance/attendanceDivisor),
		analytics.Clamp01(rec.Behavior/behaviorDivisor),
		analytics.Clamp01(float64(rec.Age)/ageDivisor),
		analytics.Clamp01(float64(rec.GradeLevel)/gradeLevelDivisor),
		analytics.Clamp01(rec.Socioeconomic/socioeconomicDivisor),
	)

	// One slot per known intervention type, most recent outcome, 0 if absent.
	latest := rec.LatestOutcomes()
	for _, t := range student.KnownInterventionTypes() {
		vec = append(vec, analytics.Clamp01(latest[t]/outcomeDivisor))
	}

	return vec, nil
}

// ExtractBatch extracts vectors for every record, preserving order.
// Any record with an empty grade sequence fails the whole call; callers
// that want skip-and-report semantics filter records first.
func (e *Extractor) ExtractBatch(records []student.Record) ([]analytics.FeatureVector, error) {
	vectors := make([]analytics.FeatureVector, 0, len(records))
	for _, rec := range records {
		vec, err := e.Extract(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "extracting features for student %s", rec.ID)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}
