package student

import (
	"edupulse/domain/core"
)

// InterventionType identifies one of the known intervention programs.
type InterventionType string

// Fixed vocabulary of intervention types. The feature encoding reserves one
// slot per type, so the order here is load-bearing and must stay stable.
const (
	InterventionTutoring       InterventionType = "tutoring"
	InterventionCounseling     InterventionType = "counseling"
	InterventionMentoring      InterventionType = "mentoring"
	InterventionParentMeeting  InterventionType = "parent_meeting"
	InterventionStudyGroup     InterventionType = "study_group"
	InterventionBehavioralPlan InterventionType = "behavioral_plan"
)

// KnownInterventionTypes returns the fixed vocabulary in slot order.
func KnownInterventionTypes() []InterventionType {
	return []InterventionType{
		InterventionTutoring,
		InterventionCounseling,
		InterventionMentoring,
		InterventionParentMeeting,
		InterventionStudyGroup,
		InterventionBehavioralPlan,
	}
}

// SlotIndex returns the feature slot reserved for this intervention type,
// or -1 if the type is outside the known vocabulary.
func (t InterventionType) SlotIndex() int {
	for i, known := range KnownInterventionTypes() {
		if known == t {
			return i
		}
	}
	return -1
}

// String returns the string representation
func (t InterventionType) String() string { return string(t) }

// InterventionRecord captures one applied intervention and its observed outcome.
type InterventionRecord struct {
	Type    InterventionType `json:"type" db:"type"`
	Date    core.Timestamp   `json:"date" db:"date"`
	Outcome float64          `json:"outcome" db:"outcome"` // 0-10 scale
}

// Record is the immutable per-student input to the analytics engine.
// It is owned by the external record store; the engine never mutates it.
//
// Attendance is carried on the 0-100 percentage scale as supplied by the
// record store. The feature extractor divides by 100 to normalize; every
// other consumer must treat the field as a percentage.
type Record struct {
	ID            core.StudentID       `json:"id" db:"id"`
	Grades        []float64            `json:"grades"`                             // 0-10 scale, ordered
	Attendance    float64              `json:"attendance" db:"attendance"`         // 0-100 percentage
	Behavior      float64              `json:"behavior" db:"behavior"`             // 0-10 scale
	Age           int                  `json:"age" db:"age"`                       // years
	GradeLevel    int                  `json:"grade_level" db:"grade_level"`       // 1-12
	Socioeconomic float64              `json:"socioeconomic" db:"socioeconomic"`   // 0-10 index
	Interventions []InterventionRecord `json:"interventions"`
}

// AverageGrade returns the mean of the grade sequence.
// Returns core.ErrEmptyGradeSequence when no grades are recorded.
func (r Record) AverageGrade() (float64, error) {
	if len(r.Grades) == 0 {
		return 0, core.ErrEmptyGradeSequence
	}
	sum := 0.0
	for _, g := range r.Grades {
		sum += g
	}
	return sum / float64(len(r.Grades)), nil
}

// LatestOutcomes returns the most recent outcome per intervention type.
// Records with types outside the known vocabulary are ignored.
func (r Record) LatestOutcomes() map[InterventionType]float64 {
	latest := make(map[InterventionType]float64)
	seen := make(map[InterventionType]core.Timestamp)

	for _, iv := range r.Interventions {
		if iv.Type.SlotIndex() < 0 {
			continue
		}
		at, ok := seen[iv.Type]
		if !ok || iv.Date.After(at) {
			seen[iv.Type] = iv.Date
			latest[iv.Type] = iv.Outcome
		}
	}
	return latest
}
